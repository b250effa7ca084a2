package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ModelRecord describes the model currently committed for one (athlete, stat) pair
type ModelRecord struct {
	Athlete   string       `json:"athlete"`
	Stat      string       `json:"stat"`
	Path      string       `json:"path"`
	CreatedAt time.Time    `json:"created_at"`
	Metrics   ModelMetrics `json:"metrics"`
}

// ModelMetrics contains holdout metrics for a model
type ModelMetrics struct {
	TrainRows           int     `json:"train_rows"`
	TestRows            int     `json:"test_rows"`
	RMSE                float64 `json:"rmse"`
	MAE                 float64 `json:"mae"`
	BaselineR2          float64 `json:"baseline_r2"`
	CanonicalPrediction float64 `json:"canonical_prediction"`
}

// ModelManager keeps a JSON manifest of committed models next to the artifacts
type ModelManager struct {
	mu           sync.RWMutex
	modelsDir    string
	manifestFile string
	records      []ModelRecord
}

// NewModelManager creates a new model manager
func NewModelManager(modelsDir string) (*ModelManager, error) {
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create models dir: %w", err)
	}

	mm := &ModelManager{
		modelsDir:    modelsDir,
		manifestFile: filepath.Join(modelsDir, "model_manifest.json"),
		records:      make([]ModelRecord, 0),
	}

	// Load existing records if available
	if err := mm.loadManifest(); err != nil {
		log.Warn().Err(err).Msg("Failed to load model manifest, starting fresh")
	}

	return mm, nil
}

// Record stores rec, replacing any earlier record for the same pair
func (mm *ModelManager) Record(rec ModelRecord) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	replaced := false
	for i := range mm.records {
		if mm.records[i].Athlete == rec.Athlete && mm.records[i].Stat == rec.Stat {
			mm.records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		mm.records = append(mm.records, rec)
	}

	sort.Slice(mm.records, func(i, j int) bool {
		if mm.records[i].Athlete != mm.records[j].Athlete {
			return mm.records[i].Athlete < mm.records[j].Athlete
		}
		return mm.records[i].Stat < mm.records[j].Stat
	})

	return mm.saveManifest()
}

// Get returns the record for (athlete, stat)
func (mm *ModelManager) Get(athlete, stat string) (ModelRecord, bool) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	for _, r := range mm.records {
		if r.Athlete == athlete && r.Stat == stat {
			return r, true
		}
	}
	return ModelRecord{}, false
}

// ListRecords returns a copy of all records
func (mm *ModelManager) ListRecords() []ModelRecord {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	out := make([]ModelRecord, len(mm.records))
	copy(out, mm.records)
	return out
}

// loadManifest loads records from file
func (mm *ModelManager) loadManifest() error {
	data, err := os.ReadFile(mm.manifestFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	return json.Unmarshal(data, &mm.records)
}

// saveManifest saves records to file
func (mm *ModelManager) saveManifest() error {
	data, err := json.MarshalIndent(mm.records, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(mm.manifestFile, data, 0o600)
}
