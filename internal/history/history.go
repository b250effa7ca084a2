// Package history reads and writes the per-athlete training tables.
//
// Each athlete owns one CSV file, <root>/<athlete>_stats.csv, holding the
// derived feature rows of its current window with one column per statistic.
package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"hoopcast/internal/common"
	"hoopcast/internal/features"

	"github.com/rs/zerolog/log"
)

const fileSuffix = "_stats.csv"

var (
	ErrMissingDataFile = errors.New("missing data file")
	ErrInvalidAthlete  = errors.New("invalid athlete name")
)

// Header is the column layout of every history table.
var Header = append([]string{
	"gameId", "timestamp", "minutesPlayed", "opponentTeamId", "backToBackFlag", "defensiveRating",
}, common.PredictionStats...)

// Store manages the history tables under one directory.
type Store struct {
	root string
}

// NewStore creates root if needed.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("history root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create history root: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) Root() string { return s.root }

// Path returns the table path for athlete.
func (s *Store) Path(athlete string) (string, error) {
	if err := checkName(athlete); err != nil {
		return "", err
	}
	return filepath.Join(s.root, athlete+fileSuffix), nil
}

func checkName(athlete string) error {
	if strings.TrimSpace(athlete) == "" || strings.ContainsAny(athlete, `/\`) || strings.Contains(athlete, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidAthlete, athlete)
	}
	return nil
}

// Write replaces the athlete's table with rows. The file is written next to
// the destination and renamed into place.
func (s *Store) Write(athlete string, rows []features.FeatureRow) error {
	path, err := s.Path(athlete)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create history file: %w", err)
	}

	if err := encode(f, rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write history for %s: %w", athlete, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close history file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit history file: %w", err)
	}

	log.Info().
		Str("athlete", athlete).
		Int("rows", len(rows)).
		Str("path", path).
		Msg("history table written")
	return nil
}

func encode(w io.Writer, rows []features.FeatureRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.GameID,
			r.Timestamp.UTC().Format(time.RFC3339),
			formatFloat(r.MinutesPlayed),
			strconv.Itoa(r.OpponentTeamID),
			strconv.Itoa(r.BackToBack),
			formatFloat(r.DefensiveRating),
		}
		for _, stat := range common.PredictionStats {
			v, ok := r.Target(stat)
			if !ok {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, formatFloat(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Read loads the athlete's table. A missing file yields ErrMissingDataFile.
func (s *Store) Read(athlete string) ([]features.FeatureRow, error) {
	path, err := s.Path(athlete)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingDataFile, path)
		}
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	rows, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

func decode(r io.Reader) ([]features.FeatureRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	// Map header indices
	indices := make(map[string]int, len(header))
	for i, col := range header {
		indices[strings.TrimSpace(col)] = i
	}
	for _, col := range []string{"minutesPlayed", "opponentTeamId", "backToBackFlag"} {
		if _, ok := indices[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var rows []features.FeatureRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row, err := parseRow(record, indices)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(record []string, indices map[string]int) (features.FeatureRow, error) {
	field := func(col string) (string, bool) {
		i, ok := indices[col]
		if !ok || i >= len(record) {
			return "", false
		}
		v := strings.TrimSpace(record[i])
		return v, v != ""
	}

	var row features.FeatureRow
	row.GameID, _ = field("gameId")

	if ts, ok := field("timestamp"); ok {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return row, fmt.Errorf("timestamp: %w", err)
		}
		row.Timestamp = t
	}

	minutes, err := requiredFloat(field, "minutesPlayed")
	if err != nil {
		return row, err
	}
	opp, err := requiredFloat(field, "opponentTeamId")
	if err != nil {
		return row, err
	}
	b2b, err := requiredFloat(field, "backToBackFlag")
	if err != nil {
		return row, err
	}
	row.MinutesPlayed = minutes
	row.OpponentTeamID = int(opp)
	row.BackToBack = int(b2b)

	row.DefensiveRating = features.DefaultDefensiveRating
	if v, ok := field("defensiveRating"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			row.DefensiveRating = f
		}
	}

	row.Targets = make(map[string]float64, len(common.PredictionStats))
	for _, stat := range common.PredictionStats {
		v, ok := field(stat)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return row, fmt.Errorf("%s: %w", stat, err)
		}
		row.Targets[stat] = f
	}
	return row, nil
}

func requiredFloat(field func(string) (string, bool), col string) (float64, error) {
	v, ok := field(col)
	if !ok {
		return 0, fmt.Errorf("%s is empty", col)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", col, err)
	}
	return f, nil
}

// Latest returns the newest row of the athlete's table by timestamp. Rows
// without a timestamp fall back to file order, where the first row is newest.
func (s *Store) Latest(athlete string) (features.FeatureRow, error) {
	rows, err := s.Read(athlete)
	if err != nil {
		return features.FeatureRow{}, err
	}
	if len(rows) == 0 {
		return features.FeatureRow{}, fmt.Errorf("%w: %s has no rows", ErrMissingDataFile, athlete)
	}
	latest := rows[0]
	for _, r := range rows[1:] {
		if r.Timestamp.After(latest.Timestamp) {
			latest = r
		}
	}
	return latest, nil
}

// ListAthletes returns the athletes that have a history table, sorted.
func (s *Store) ListAthletes() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list history root: %w", err)
	}

	var athletes []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		athletes = append(athletes, strings.TrimSuffix(e.Name(), fileSuffix))
	}
	sort.Strings(athletes)
	return athletes, nil
}
