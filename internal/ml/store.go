package ml

import (
	"encoding/gob"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"hoopcast/internal/forest"

	"github.com/rs/zerolog/log"
)

const (
	modelKind       = "random_forest_regressor"
	artifactVersion = 1
	modelSuffix     = "_model.gob"
	tempSuffix      = ".tmp"
)

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9-]`)
	plainName   = regexp.MustCompile(`^[A-Za-z0-9 -]+$`)
)

// artifact is the on-disk envelope around a fitted forest.
type artifact struct {
	Kind    string
	Version int
	Athlete string
	Stat    string
	SavedAt time.Time
	Forest  *forest.Forest
}

// LoadResult is the outcome of Store.Load. When Present is false, Reason says why.
type LoadResult struct {
	Model   *forest.Forest
	Present bool
	Reason  string
	SavedAt time.Time
}

func absent(format string, args ...any) LoadResult {
	return LoadResult{Reason: fmt.Sprintf(format, args...)}
}

// Verifier decides whether a freshly re-read model may replace the canonical artifact.
type Verifier func(m *forest.Forest) error

// DefaultVerifier checks structure and the canonical synthetic input.
func DefaultVerifier(m *forest.Forest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	_, err := CheckCanonical(m)
	return err
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithVerifier replaces the post-write verification step.
func WithVerifier(v Verifier) StoreOption {
	return func(s *Store) { s.verify = v }
}

// Store owns the model artifacts under a single root directory.
type Store struct {
	root   string
	verify Verifier

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates root if needed and returns a store rooted there.
func NewStore(root string, opts ...StoreOption) (*Store, error) {
	if root == "" {
		return nil, errors.New("models root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create models root: %w", err)
	}
	s := &Store{
		root:   root,
		verify: DefaultVerifier,
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the models directory.
func (s *Store) Root() string { return s.root }

// FileSlug turns an athlete name into the token used in file names. Names made
// only of letters, digits, hyphens and spaces map spaces to underscores. Any
// other name is sanitised and suffixed with ".<fnv32a of the raw name>", so
// distinct names never share a token through sanitising alone.
func FileSlug(athlete string) string {
	if plainName.MatchString(athlete) {
		return strings.ReplaceAll(athlete, " ", "_")
	}
	h := fnv.New32a()
	h.Write([]byte(athlete))
	return fmt.Sprintf("%s.%08x", unsafeChars.ReplaceAllString(athlete, "_"), h.Sum32())
}

// ModelPath is the canonical artifact path for (athlete, stat).
func (s *Store) ModelPath(athlete, stat string) string {
	return filepath.Join(s.root, FileSlug(athlete)+"_"+stat+modelSuffix)
}

func (s *Store) tempPath(athlete, stat string) string {
	return s.ModelPath(athlete, stat) + tempSuffix
}

// keyLock serializes writers of one (athlete, stat) pair. Readers never take it.
func (s *Store) keyLock(athlete, stat string) *sync.Mutex {
	key := FileSlug(athlete) + "/" + stat
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Persist writes model to a temporary file, re-reads and verifies it, then
// renames it over the canonical path. On any failure the temporary file is
// removed and the canonical artifact is left as it was.
func (s *Store) Persist(athlete, stat string, model *forest.Forest) error {
	l := s.keyLock(athlete, stat)
	l.Lock()
	defer l.Unlock()

	tmp := s.tempPath(athlete, stat)
	final := s.ModelPath(athlete, stat)

	if err := s.writeAndVerify(tmp, athlete, stat, model); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn().Err(rmErr).Str("path", tmp).Msg("failed to remove temporary model")
		}
		return fmt.Errorf("%w: %s/%s: %v", ErrSerializationVerification, athlete, stat, err)
	}

	if err := replaceFile(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %s/%s: commit: %v", ErrSerializationVerification, athlete, stat, err)
	}

	log.Info().
		Str("athlete", athlete).
		Str("stat", stat).
		Str("path", final).
		Msg("model committed")
	return nil
}

func (s *Store) writeAndVerify(tmp, athlete, stat string, model *forest.Forest) error {
	if model == nil {
		return errors.New("nil model")
	}

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	a := artifact{
		Kind:    modelKind,
		Version: artifactVersion,
		Athlete: athlete,
		Stat:    stat,
		SavedAt: time.Now().UTC(),
		Forest:  model,
	}
	if err := gob.NewEncoder(f).Encode(&a); err != nil {
		f.Close()
		return fmt.Errorf("encode: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	reread, err := readArtifact(tmp)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if err := s.verify(reread.Forest); err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	pred, _ := CheckCanonical(reread.Forest)
	log.Debug().
		Str("athlete", athlete).
		Str("stat", stat).
		Float64("canonical_prediction", pred).
		Msg("verified temporary model")
	return nil
}

// replaceFile moves src over dst. Rename replaces dst atomically on POSIX;
// where it cannot, the old file is removed first and the rename retried.
func replaceFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if _, statErr := os.Stat(dst); statErr != nil {
		return err
	}
	if rmErr := os.Remove(dst); rmErr != nil {
		return fmt.Errorf("remove previous model: %w", rmErr)
	}
	return os.Rename(src, dst)
}

func readArtifact(path string) (*artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var a artifact
	if err := gob.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if a.Kind != modelKind {
		return nil, fmt.Errorf("unexpected model kind %q", a.Kind)
	}
	if a.Version != artifactVersion {
		return nil, fmt.Errorf("unsupported artifact version %d", a.Version)
	}
	if a.Forest == nil {
		return nil, errors.New("artifact has no model")
	}
	return &a, nil
}

// Load reads and verifies the canonical artifact for (athlete, stat).
func (s *Store) Load(athlete, stat string) LoadResult {
	path := s.ModelPath(athlete, stat)

	a, err := readArtifact(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug().Str("athlete", athlete).Str("stat", stat).Msg("no model on disk")
			return absent("model not found: %s", path)
		}
		log.Warn().Err(err).Str("athlete", athlete).Str("stat", stat).Msg("unreadable model")
		return absent("unreadable model: %v", err)
	}
	if a.Athlete != athlete || a.Stat != stat {
		log.Warn().Str("athlete", athlete).Str("stat", stat).Str("owner", a.Athlete+"/"+a.Stat).Msg("model belongs to another key")
		return absent("model belongs to %s/%s", a.Athlete, a.Stat)
	}
	if err := a.Forest.Validate(); err != nil {
		log.Warn().Err(err).Str("athlete", athlete).Str("stat", stat).Msg("corrupt model")
		return absent("corrupt model: %v", err)
	}
	if _, err := CheckCanonical(a.Forest); err != nil {
		log.Warn().Err(err).Str("athlete", athlete).Str("stat", stat).Msg("model failed canonical check")
		return absent("%v", err)
	}

	return LoadResult{Model: a.Forest, Present: true, SavedAt: a.SavedAt}
}

// Exists reports whether a canonical artifact file is present, without verifying it.
func (s *Store) Exists(athlete, stat string) bool {
	_, err := os.Stat(s.ModelPath(athlete, stat))
	return err == nil
}
