package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"hoopcast/internal/features"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

// RatingRecord is a team's defensive rating as last collected
type RatingRecord struct {
	TeamID    int       `json:"team_id"`
	Rating    float64   `json:"rating"`
	UpdatedAt time.Time `json:"updated_at"`
}

var _ features.RatingLookup = (*Store)(nil)

// StoreRatings replaces the rating of every team in ratings
func (s *Store) StoreRatings(ratings map[int]float64) error {
	now := time.Now().UTC()
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(ratingsBucket))

		for teamID, rating := range ratings {
			data, err := json.Marshal(RatingRecord{TeamID: teamID, Rating: rating, UpdatedAt: now})
			if err != nil {
				return fmt.Errorf("marshal rating record: %w", err)
			}
			if err := b.Put([]byte(strconv.Itoa(teamID)), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Rating implements features.RatingLookup. Unknown teams report false so the
// caller falls back to the league default.
func (s *Store) Rating(teamID int) (float64, bool) {
	var rec RatingRecord
	found := false

	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(ratingsBucket)).Get([]byte(strconv.Itoa(teamID)))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Int("team_id", teamID).Msg("unreadable rating record")
		return 0, false
	}
	return rec.Rating, found
}

// Ratings returns every stored rating keyed by team id
func (s *Store) Ratings() (map[int]float64, error) {
	out := make(map[int]float64)

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(ratingsBucket)).ForEach(func(_, v []byte) error {
			var rec RatingRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil // Skip malformed records
			}
			out[rec.TeamID] = rec.Rating
			return nil
		})
	})

	return out, err
}
