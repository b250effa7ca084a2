package features

import (
	"errors"
	"fmt"
	"sort"

	"hoopcast/internal/common"
)

const maxTeamID = common.MaxRegularSeasonTeamID

// ErrInsufficientHistory is returned when a feed cannot yield a full window of valid games.
var ErrInsufficientHistory = errors.New("insufficient game history")

// WindowGames selects the targetCount most recent regular-season games from feed, newest first.
//
// The candidate prefix starts at targetCount entries. Each pass counts the
// non-season entries inside the prefix and re-queries targetCount plus that
// shortfall, so the loop ends once the prefix holds enough valid games or
// covers the whole feed.
func WindowGames(feed []GameRecord, targetCount int) ([]GameRecord, error) {
	if targetCount <= 0 {
		return nil, fmt.Errorf("target count must be positive, got %d", targetCount)
	}

	sorted := make([]GameRecord, len(feed))
	copy(sorted, feed)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	prefix := targetCount
	for {
		if prefix > len(sorted) {
			prefix = len(sorted)
		}

		window := make([]GameRecord, 0, targetCount)
		skipped := 0
		for _, g := range sorted[:prefix] {
			if !g.IsRegularSeason() {
				skipped++
				continue
			}
			window = append(window, g)
		}

		if len(window) >= targetCount {
			return window[:targetCount], nil
		}
		if prefix == len(sorted) {
			return nil, fmt.Errorf("%w: found %d of %d valid games in %d entries",
				ErrInsufficientHistory, len(window), targetCount, len(sorted))
		}

		// valid = prefix - skipped < targetCount, so this always grows the prefix.
		prefix = targetCount + skipped
	}
}
