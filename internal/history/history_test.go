package history

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hoopcast/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() []features.FeatureRow {
	base := time.Date(2025, 3, 10, 0, 30, 0, 0, time.UTC)
	return []features.FeatureRow{
		{
			GameID: "401705001", Timestamp: base, MinutesPlayed: 36.5, OpponentTeamID: 14,
			BackToBack: 1, DefensiveRating: 112.3,
			Targets: map[string]float64{"PTS": 31, "AST": 9, "REB": 12, "TO": 4, "BLK": 1},
		},
		{
			GameID: "401704990", Timestamp: base.Add(-24 * time.Hour), MinutesPlayed: 33, OpponentTeamID: 2,
			BackToBack: 0, DefensiveRating: 110,
			Targets: map[string]float64{"PTS": 22.5, "AST": 11, "REB": 8, "TO": 2, "BLK": 0},
		},
	}
}

func TestStore_WriteRead(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	rows := sampleRows()
	require.NoError(t, store.Write("Nikola Jokic", rows))

	got, err := store.Read("Nikola Jokic")
	require.NoError(t, err)
	require.Len(t, got, 2)

	for i := range rows {
		assert.Equal(t, rows[i].GameID, got[i].GameID)
		assert.True(t, rows[i].Timestamp.Equal(got[i].Timestamp))
		assert.Equal(t, rows[i].MinutesPlayed, got[i].MinutesPlayed)
		assert.Equal(t, rows[i].OpponentTeamID, got[i].OpponentTeamID)
		assert.Equal(t, rows[i].BackToBack, got[i].BackToBack)
		assert.Equal(t, rows[i].DefensiveRating, got[i].DefensiveRating)
		assert.Equal(t, rows[i].Targets, got[i].Targets)
	}

	path, err := store.Path("Nikola Jokic")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	firstLine := strings.SplitN(string(data), "\n", 2)[0]
	assert.Equal(t, "gameId,timestamp,minutesPlayed,opponentTeamId,backToBackFlag,defensiveRating,PTS,AST,REB,TO,BLK", firstLine)
}

func TestStore_ReadMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read("Nobody")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingDataFile))

	_, err = store.Latest("Nobody")
	assert.ErrorIs(t, err, ErrMissingDataFile)
}

func TestStore_ReadMinimalColumns(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	csvData := "minutesPlayed,opponentTeamId,backToBackFlag,PTS\n30,5,0,18\n28,7,1,\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Stephen Curry_stats.csv"), []byte(csvData), 0o644))

	rows, err := store.Read("Stephen Curry")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 18.0, rows[0].Targets["PTS"])
	_, ok := rows[1].Target("PTS")
	assert.False(t, ok)
	assert.Equal(t, features.DefaultDefensiveRating, rows[0].DefensiveRating)
}

func TestStore_ReadMalformed(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	tests := []struct {
		name string
		data string
	}{
		{"missing column", "minutesPlayed,PTS\n30,18\n"},
		{"non numeric minutes", "minutesPlayed,opponentTeamId,backToBackFlag\nabc,5,0\n"},
		{"empty flag", "minutesPlayed,opponentTeamId,backToBackFlag\n30,5,\n"},
		{"bad timestamp", "timestamp,minutesPlayed,opponentTeamId,backToBackFlag\nyesterday,30,5,0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "Bad_stats.csv"), []byte(tt.data), 0o644))
			_, err := store.Read("Bad")
			assert.Error(t, err)
			assert.False(t, errors.Is(err, ErrMissingDataFile))
		})
	}
}

func TestStore_Latest(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	rows := sampleRows()
	// Oldest first on disk; Latest must still pick by timestamp.
	require.NoError(t, store.Write("LeBron James", []features.FeatureRow{rows[1], rows[0]}))

	latest, err := store.Latest("LeBron James")
	require.NoError(t, err)
	assert.Equal(t, "401705001", latest.GameID)
	assert.Equal(t, 36.5, latest.MinutesPlayed)
}

func TestStore_ListAthletes(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Write("Stephen Curry", sampleRows()))
	require.NoError(t, store.Write("Jayson Tatum", sampleRows()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Dir_stats.csv"), 0o755))

	athletes, err := store.ListAthletes()
	require.NoError(t, err)
	assert.Equal(t, []string{"Jayson Tatum", "Stephen Curry"}, athletes)
}

func TestStore_InvalidAthlete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "  ", "../escape", "a/b"} {
		_, err := store.Path(name)
		assert.ErrorIs(t, err, ErrInvalidAthlete, name)
	}
}
