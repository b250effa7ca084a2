package features

import "hoopcast/internal/common"

// DefaultDefensiveRating is the league-average proxy used for unknown opponents.
const DefaultDefensiveRating = common.DefaultDefensiveRating

// RatingLookup resolves a team's defensive rating.
type RatingLookup interface {
	Rating(teamID int) (float64, bool)
}

// StaticRatings is an in-memory RatingLookup.
type StaticRatings map[int]float64

// Rating returns the stored rating of teamID.
func (s StaticRatings) Rating(teamID int) (float64, bool) {
	r, ok := s[teamID]
	return r, ok
}

// ComputeDefensiveRating returns the opponent rating of every game in window,
// substituting DefaultDefensiveRating when lookup is nil or has no entry.
func ComputeDefensiveRating(window []GameRecord, lookup RatingLookup) []float64 {
	ratings := make([]float64, len(window))
	for i, g := range window {
		ratings[i] = DefaultDefensiveRating
		if lookup == nil {
			continue
		}
		if r, ok := lookup.Rating(g.OpponentTeamID); ok {
			ratings[i] = r
		}
	}
	return ratings
}
