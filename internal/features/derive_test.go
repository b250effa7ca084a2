package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDefensiveRating(t *testing.T) {
	window := []GameRecord{{OpponentTeamID: 1}, {OpponentTeamID: 2}, {OpponentTeamID: 3}}
	lookup := StaticRatings{1: 104.5, 3: 118.2}

	ratings := ComputeDefensiveRating(window, lookup)
	assert.Equal(t, []float64{104.5, DefaultDefensiveRating, 118.2}, ratings)
}

func TestComputeDefensiveRating_NilLookup(t *testing.T) {
	ratings := ComputeDefensiveRating([]GameRecord{{OpponentTeamID: 5}}, nil)
	assert.Equal(t, []float64{110.0}, ratings)
}

func TestDerive(t *testing.T) {
	feed := makeFeed(26, 4)
	// Newest valid game played the day after the previous one.
	feed[25].Timestamp = feed[24].Timestamp.Add(24 * time.Hour)

	rows, err := Derive(feed, 25, StaticRatings{26: 99.0})
	require.NoError(t, err)
	require.Len(t, rows, 25)

	assert.Equal(t, "g25", rows[0].GameID)
	assert.Equal(t, 1, rows[0].BackToBack)
	assert.Equal(t, 0, rows[24].BackToBack)
	assert.Equal(t, 99.0, rows[0].DefensiveRating)
	assert.Equal(t, DefaultDefensiveRating, rows[1].DefensiveRating)

	pts, ok := rows[0].Target("PTS")
	assert.True(t, ok)
	assert.Equal(t, 25.0, pts)

	// Rows own their targets.
	rows[0].Targets["PTS"] = -1
	assert.Equal(t, 25.0, feed[25].StatValues["PTS"])
}

func TestDerive_InsufficientHistory(t *testing.T) {
	_, err := Derive(makeFeed(10, 0), 25, nil)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}
