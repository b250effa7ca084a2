// Package features turns an athlete's raw game feed into the fixed-size,
// validated rows the per-statistic models are trained and queried with.
package features

import "time"

// GameRecord is one game from the feed. Records are treated as immutable once ingested.
type GameRecord struct {
	GameID         string             `json:"game_id"`
	Timestamp      time.Time          `json:"timestamp"`
	OpponentTeamID int                `json:"opponent_team_id"`
	MinutesPlayed  float64            `json:"minutes_played"`
	StatValues     map[string]float64 `json:"stat_values"`
}

// IsRegularSeason reports whether the opponent is a recognized regular-season team.
func (g GameRecord) IsRegularSeason() bool {
	return g.OpponentTeamID <= maxTeamID
}

// FeatureRow is the derived view of a single windowed game.
type FeatureRow struct {
	GameID          string
	Timestamp       time.Time
	MinutesPlayed   float64
	OpponentTeamID  int
	BackToBack      int
	DefensiveRating float64
	Targets         map[string]float64
}

// Target returns the value of stat for this row and whether it was present.
func (r FeatureRow) Target(stat string) (float64, bool) {
	v, ok := r.Targets[stat]
	return v, ok
}
