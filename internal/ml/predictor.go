package ml

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"hoopcast/internal/common"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the trainer and predictor
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLLatencyObserve(float64)
	MLModelAgeSet(float64)
	MLMissingModelInc(stat string)
	MLTrainingsInc(stat string, ok bool)
	MLTrainingDurationObserve(float64)
}

// Context feature keys accepted by PredictNextGame.
const (
	KeyMinutesPlayed  = "minutesPlayed"
	KeyOpponentTeamID = "opponentTeamId"
	KeyBackToBackFlag = "backToBackFlag"
)

// StatPrediction is one entry of a PredictionResult. A nil Value means no
// usable model for the statistic, never a predicted zero.
type StatPrediction struct {
	Stat  string
	Value *float64
}

// PredictionResult holds one entry per tracked statistic in reporting order.
type PredictionResult []StatPrediction

// Get returns the value for stat and whether the stat is part of the result.
func (r PredictionResult) Get(stat string) (*float64, bool) {
	for _, p := range r {
		if p.Stat == stat {
			return p.Value, true
		}
	}
	return nil, false
}

// Available counts the statistics that have a numeric prediction.
func (r PredictionResult) Available() int {
	n := 0
	for _, p := range r {
		if p.Value != nil {
			n++
		}
	}
	return n
}

// MarshalJSON renders the result as an object with keys in reporting order.
func (r PredictionResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Stat)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if p.Value == nil {
			buf.WriteString("null")
			continue
		}
		buf.WriteString(strconv.FormatFloat(*p.Value, 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Predictor produces per-stat predictions from the committed models.
type Predictor struct {
	source  ModelSource
	stats   []string
	metrics MetricsInterface
}

// NewPredictor returns a predictor over the tracked statistics. metrics may be nil.
func NewPredictor(source ModelSource, metrics MetricsInterface) *Predictor {
	return &Predictor{
		source:  source,
		stats:   common.PredictionStats,
		metrics: metrics,
	}
}

// PredictNextGame loads every statistic's model for athlete and predicts from
// contextFeatures. Statistics without a usable model are reported as nil; the
// call fails only when the input is invalid or no statistic could be predicted.
func (p *Predictor) PredictNextGame(athlete string, contextFeatures map[string]any) (PredictionResult, error) {
	if p == nil {
		return nil, fmt.Errorf("predictor is nil")
	}

	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.MLLatencyObserve(time.Since(start).Seconds())
		}
	}()

	x, err := ParseContextFeatures(contextFeatures)
	if err != nil {
		log.Error().Err(err).Str("athlete", athlete).Msg("invalid prediction input")
		return nil, err
	}

	result := make(PredictionResult, 0, len(p.stats))
	var oldest time.Time
	for _, stat := range p.stats {
		loaded := p.source.Load(athlete, stat)
		if !loaded.Present {
			log.Info().Str("athlete", athlete).Str("stat", stat).Str("reason", loaded.Reason).Msg("no usable model")
			if p.metrics != nil {
				p.metrics.MLMissingModelInc(stat)
			}
			result = append(result, StatPrediction{Stat: stat})
			continue
		}
		if oldest.IsZero() || loaded.SavedAt.Before(oldest) {
			oldest = loaded.SavedAt
		}

		v, err := safePredict(loaded.Model, x)
		if err != nil {
			log.Error().Err(err).Str("athlete", athlete).Str("stat", stat).Msg("prediction failed")
			if p.metrics != nil {
				p.metrics.MLFailuresInc()
			}
			result = append(result, StatPrediction{Stat: stat})
			continue
		}

		rounded := math.Round(v*10) / 10
		result = append(result, StatPrediction{Stat: stat, Value: &rounded})
		if p.metrics != nil {
			p.metrics.MLPredictionsInc()
		}
	}

	if p.metrics != nil && !oldest.IsZero() {
		p.metrics.MLModelAgeSet(time.Since(oldest).Seconds())
	}

	if result.Available() == 0 {
		return result, fmt.Errorf("%w for %s", ErrNoValidPredictions, athlete)
	}

	log.Debug().
		Str("athlete", athlete).
		Floats64("features", x).
		Int("available", result.Available()).
		Msg("Prediction successful")

	return result, nil
}

func safePredict(m Regressor, x []float64) (v float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = 0, fmt.Errorf("model panicked: %v", r)
		}
	}()
	v, err = m.Predict(x)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite prediction %v", v)
	}
	return v, nil
}

// ParseContextFeatures validates contextFeatures and returns the model input vector.
func ParseContextFeatures(contextFeatures map[string]any) ([]float64, error) {
	keys := []string{KeyMinutesPlayed, KeyOpponentTeamID, KeyBackToBackFlag}
	x := make([]float64, len(keys))
	for i, key := range keys {
		raw, ok := contextFeatures[key]
		if !ok || raw == nil {
			return nil, &FeatureInputError{Key: key, Reason: "missing"}
		}
		v, err := toFloat(raw)
		if err != nil {
			return nil, &FeatureInputError{Key: key, Reason: err.Error()}
		}
		x[i] = v
	}
	return x, nil
}

func toFloat(raw any) (float64, error) {
	var v float64
	switch t := raw.(type) {
	case float64:
		v = t
	case float32:
		v = float64(t)
	case int:
		v = float64(t)
	case int8:
		v = float64(t)
	case int16:
		v = float64(t)
	case int32:
		v = float64(t)
	case int64:
		v = float64(t)
	case uint:
		v = float64(t)
	case uint8:
		v = float64(t)
	case uint16:
		v = float64(t)
	case uint32:
		v = float64(t)
	case uint64:
		v = float64(t)
	case bool:
		if t {
			v = 1
		}
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", t.String())
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", t)
		}
		v = f
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not finite: %v", v)
	}
	return v, nil
}
