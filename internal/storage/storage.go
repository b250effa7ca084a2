// Package storage provides persistent data storage for hoopcast.
// It uses BoltDB as the underlying storage engine to cache raw game records
// fetched from the feed provider and the latest team defensive ratings.
//
// The package provides thread-safe operations for storing and retrieving
// per-athlete game feeds with efficient range queries and automatic bucket management.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"hoopcast/internal/features"

	"go.etcd.io/bbolt"
)

const (
	gamesBucket   = "games"   // Bucket name for storing raw game records
	ratingsBucket = "ratings" // Bucket name for storing team defensive ratings
	dbFile        = "hoopcast-data.db"
)

// Store provides persistent storage for feed data using BoltDB.
// It manages multiple buckets for different data types and provides
// efficient time-range queries for an athlete's game history.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New creates a new storage instance with the specified data path.
// It initializes the BoltDB database and creates necessary buckets.
// Returns an error if the database cannot be opened or buckets cannot be created.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(gamesBucket)); err != nil {
			return fmt.Errorf("create games bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(ratingsBucket)); err != nil {
			return fmt.Errorf("create ratings bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
// It should be called when the storage is no longer needed to ensure
// proper cleanup of database resources.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// gameKey orders an athlete's games by time. Nanosecond timestamps are
// zero-padded so lexical and chronological order agree.
func gameKey(athlete string, ts time.Time) []byte {
	return []byte(fmt.Sprintf("%s_%020d", athlete, ts.UnixNano()))
}

// ownsKey rejects keys of another athlete whose name extends prefix.
func ownsKey(k, prefix []byte) bool {
	return bytes.HasPrefix(k, prefix) && len(k) == len(prefix)+20
}

// StoreGames stores game records for athlete in a single transaction.
// Records are keyed by athlete and game time, so re-collecting a game overwrites it.
func (s *Store) StoreGames(athlete string, games []features.GameRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(gamesBucket))

		for _, g := range games {
			data, err := json.Marshal(g)
			if err != nil {
				return fmt.Errorf("marshal game %s: %w", g.GameID, err)
			}
			if err := b.Put(gameKey(athlete, g.Timestamp), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetGames retrieves the cached game records for athlete within a time range.
// Returns records ordered by timestamp, oldest first. The range is inclusive.
func (s *Store) GetGames(athlete string, start, end time.Time) ([]features.GameRecord, error) {
	var games []features.GameRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(gamesBucket))
		c := b.Cursor()

		prefix := []byte(athlete + "_")
		startKey := gameKey(athlete, start)
		endKey := gameKey(athlete, end)

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !ownsKey(k, prefix) {
				continue
			}

			var g features.GameRecord
			if err := json.Unmarshal(v, &g); err != nil {
				continue // Skip malformed records
			}
			games = append(games, g)
		}
		return nil
	})

	return games, err
}

// AllGames returns every cached game record for athlete, oldest first.
func (s *Store) AllGames(athlete string) ([]features.GameRecord, error) {
	var games []features.GameRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(gamesBucket)).Cursor()
		prefix := []byte(athlete + "_")

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if !ownsKey(k, prefix) {
				continue
			}
			var g features.GameRecord
			if err := json.Unmarshal(v, &g); err != nil {
				continue
			}
			games = append(games, g)
		}
		return nil
	})

	return games, err
}
