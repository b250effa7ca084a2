package backtest

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"hoopcast/internal/features"
	"hoopcast/internal/history"

	"github.com/rs/zerolog/log"
)

// DataLoader holds the history rows of each athlete, oldest game first.
type DataLoader struct {
	series    map[string][]features.FeatureRow
	StartTime time.Time
	EndTime   time.Time
}

// NewDataLoader creates an empty data loader
func NewDataLoader() *DataLoader {
	return &DataLoader{series: make(map[string][]features.FeatureRow)}
}

// LoadFromHistory reads the history table of every athlete and keeps the rows
// within [start, end]. A zero start or end leaves that side unbounded.
// Athletes without a table are skipped.
func (dl *DataLoader) LoadFromHistory(store *history.Store, athletes []string, start, end time.Time) error {
	log.Info().
		Time("start", start).
		Time("end", end).
		Strs("athletes", athletes).
		Msg("Loading history tables")

	for _, athlete := range athletes {
		rows, err := store.Read(athlete)
		if errors.Is(err, history.ErrMissingDataFile) {
			log.Warn().Str("athlete", athlete).Msg("no history table, skipping")
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load history for %s: %w", athlete, err)
		}

		var kept []features.FeatureRow
		for _, r := range rows {
			if !start.IsZero() && r.Timestamp.Before(start) {
				continue
			}
			if !end.IsZero() && r.Timestamp.After(end) {
				continue
			}
			kept = append(kept, r)
		}
		dl.Add(athlete, kept)
	}

	log.Info().
		Int("athletes", len(dl.series)).
		Time("data_start", dl.StartTime).
		Time("data_end", dl.EndTime).
		Msg("History loaded successfully")

	return nil
}

// Add sets the rows of athlete, sorting them oldest first.
func (dl *DataLoader) Add(athlete string, rows []features.FeatureRow) {
	if len(rows) == 0 {
		return
	}
	sorted := make([]features.FeatureRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	dl.series[athlete] = sorted

	first, last := sorted[0].Timestamp, sorted[len(sorted)-1].Timestamp
	if dl.StartTime.IsZero() || first.Before(dl.StartTime) {
		dl.StartTime = first
	}
	if last.After(dl.EndTime) {
		dl.EndTime = last
	}
}

// Athletes returns the loaded athletes in name order.
func (dl *DataLoader) Athletes() []string {
	names := make([]string, 0, len(dl.series))
	for name := range dl.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Series returns the rows of athlete, oldest first.
func (dl *DataLoader) Series(athlete string) []features.FeatureRow {
	return dl.series[athlete]
}
