package features

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// makeFeed builds valid games two days apart with invalid entries interleaved.
func makeFeed(valid, invalid int) []GameRecord {
	feed := make([]GameRecord, 0, valid+invalid)
	for i := 0; i < valid; i++ {
		feed = append(feed, GameRecord{
			GameID:         fmt.Sprintf("g%d", i),
			Timestamp:      baseTime.Add(time.Duration(i) * 48 * time.Hour),
			OpponentTeamID: i%30 + 1,
			MinutesPlayed:  30,
			StatValues:     map[string]float64{"PTS": float64(i)},
		})
	}
	for i := 0; i < invalid; i++ {
		feed = append(feed, GameRecord{
			GameID:         fmt.Sprintf("x%d", i),
			Timestamp:      baseTime.Add(time.Duration(valid*2)*24*time.Hour + time.Duration(i)*time.Hour),
			OpponentTeamID: 31 + i,
		})
	}
	return feed
}

func TestWindowGames_ExactWindow(t *testing.T) {
	testCases := []struct {
		name    string
		valid   int
		invalid int
	}{
		{"only valid", 25, 0},
		{"more valid than needed", 40, 0},
		{"invalid newest entries", 25, 5},
		{"many invalid entries", 30, 60},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			feed := makeFeed(tc.valid, tc.invalid)
			rand.New(rand.NewSource(1)).Shuffle(len(feed), func(i, j int) { feed[i], feed[j] = feed[j], feed[i] })

			window, err := WindowGames(feed, 25)
			require.NoError(t, err)
			require.Len(t, window, 25)

			for i, g := range window {
				assert.LessOrEqual(t, g.OpponentTeamID, 30, "invalid entry at %d", i)
				if i > 0 {
					assert.True(t, window[i-1].Timestamp.After(g.Timestamp), "window not newest-first at %d", i)
				}
			}
			assert.Equal(t, fmt.Sprintf("g%d", tc.valid-1), window[0].GameID)
		})
	}
}

func TestWindowGames_InsufficientHistory(t *testing.T) {
	for _, invalid := range []int{0, 1, 10, 100} {
		t.Run(fmt.Sprintf("%d invalid", invalid), func(t *testing.T) {
			_, err := WindowGames(makeFeed(24, invalid), 25)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInsufficientHistory))
		})
	}
}

func TestWindowGames_EmptyFeed(t *testing.T) {
	_, err := WindowGames(nil, 25)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestWindowGames_InvalidTargetCount(t *testing.T) {
	_, err := WindowGames(makeFeed(30, 0), 0)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrInsufficientHistory))
}

func TestWindowGames_DoesNotMutateFeed(t *testing.T) {
	feed := makeFeed(25, 3)
	first := feed[0].GameID

	_, err := WindowGames(feed, 25)
	require.NoError(t, err)
	assert.Equal(t, first, feed[0].GameID)
}
