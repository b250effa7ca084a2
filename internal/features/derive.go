package features

import "github.com/rs/zerolog/log"

// Derive windows feed and attaches the rest and opponent-strength features.
// Rows keep window order (newest first) and carry a copy of each game's stat values.
func Derive(feed []GameRecord, targetCount int, lookup RatingLookup) ([]FeatureRow, error) {
	window, err := WindowGames(feed, targetCount)
	if err != nil {
		return nil, err
	}

	b2b := ComputeBackToBack(window)
	ratings := ComputeDefensiveRating(window, lookup)

	rows := make([]FeatureRow, len(window))
	for i, g := range window {
		targets := make(map[string]float64, len(g.StatValues))
		for k, v := range g.StatValues {
			targets[k] = v
		}
		rows[i] = FeatureRow{
			GameID:          g.GameID,
			Timestamp:       g.Timestamp,
			MinutesPlayed:   g.MinutesPlayed,
			OpponentTeamID:  g.OpponentTeamID,
			BackToBack:      b2b[i],
			DefensiveRating: ratings[i],
			Targets:         targets,
		}
	}

	log.Debug().
		Int("feed_size", len(feed)).
		Int("window_size", len(rows)).
		Msg("derived feature rows")

	return rows, nil
}
