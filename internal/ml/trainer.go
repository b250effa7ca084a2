package ml

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"hoopcast/internal/common"
	"hoopcast/internal/features"
	"hoopcast/internal/forest"

	"github.com/rs/zerolog/log"
	"github.com/sajari/regression"
)

// TrainingFeatures lists the model input columns in order. Defensive rating is
// derived for analytics but is not part of the trained feature set.
var TrainingFeatures = []string{"minutesPlayed", "opponentTeamId", "backToBackFlag"}

// TrainReport summarises one fit.
type TrainReport struct {
	Athlete             string
	Stat                string
	TrainRows           int
	TestRows            int
	RMSE                float64
	MAE                 float64
	BaselineR2          float64
	CanonicalPrediction float64
	Duration            time.Duration
}

func (r TrainReport) metrics() ModelMetrics {
	return ModelMetrics{
		TrainRows:           r.TrainRows,
		TestRows:            r.TestRows,
		RMSE:                r.RMSE,
		MAE:                 r.MAE,
		BaselineR2:          r.BaselineR2,
		CanonicalPrediction: r.CanonicalPrediction,
	}
}

// FeatureVector returns the model input for r in TrainingFeatures order.
func FeatureVector(r features.FeatureRow) []float64 {
	return []float64{r.MinutesPlayed, float64(r.OpponentTeamID), float64(r.BackToBack)}
}

// BuildDataset extracts the feature matrix and the target vector for stat.
func BuildDataset(rows []features.FeatureRow, stat string) ([][]float64, []float64, error) {
	if !common.IsTrackedStat(stat) {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidStatistic, stat)
	}
	if len(rows) == 0 {
		return nil, nil, ErrEmptyDataset
	}

	X := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		v, ok := r.Target(stat)
		if !ok {
			return nil, nil, fmt.Errorf("row %d (%s) has no %s value", i, r.GameID, stat)
		}
		X[i] = FeatureVector(r)
		y[i] = v
	}
	return X, y, nil
}

// TrainTestSplit shuffles with a seeded generator and holds out ceil(ratio*n)
// rows for testing, always keeping at least one row for training.
func TrainTestSplit(X [][]float64, y []float64, ratio float64, seed int64) (xTrain, xTest [][]float64, yTrain, yTest []float64) {
	n := len(X)
	nTest := int(math.Ceil(ratio * float64(n)))
	if nTest >= n {
		nTest = n - 1
	}
	if nTest < 0 {
		nTest = 0
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	for k, i := range perm {
		if k < nTest {
			xTest = append(xTest, X[i])
			yTest = append(yTest, y[i])
		} else {
			xTrain = append(xTrain, X[i])
			yTrain = append(yTrain, y[i])
		}
	}
	return xTrain, xTest, yTrain, yTest
}

// TrainStatModel fits the forest for stat and runs the canonical check on it.
// A model that fails the check is discarded and an error returned.
func TrainStatModel(rows []features.FeatureRow, stat string) (*forest.Forest, TrainReport, error) {
	start := time.Now()
	report := TrainReport{Stat: stat}

	X, y, err := BuildDataset(rows, stat)
	if err != nil {
		return nil, report, err
	}

	xTrain, xTest, yTrain, yTest := TrainTestSplit(X, y, common.TestSplitRatio, common.ModelSeed)
	report.TrainRows, report.TestRows = len(xTrain), len(xTest)

	model := forest.New(forest.Params{
		NEstimators: common.ModelEstimators,
		Seed:        common.ModelSeed,
	})
	if err := model.Fit(xTrain, yTrain); err != nil {
		return nil, report, fmt.Errorf("fit %s: %w", stat, err)
	}

	pred, err := CheckCanonical(model)
	if err != nil {
		return nil, report, err
	}
	report.CanonicalPrediction = pred

	if len(xTest) > 0 {
		preds, err := model.PredictBatch(xTest)
		if err != nil {
			return nil, report, fmt.Errorf("score %s: %w", stat, err)
		}
		report.RMSE, report.MAE = holdoutErrors(preds, yTest)
	}
	report.BaselineR2 = linearBaselineR2(stat, xTrain, yTrain)
	report.Duration = time.Since(start)

	return model, report, nil
}

func holdoutErrors(preds, actual []float64) (rmse, mae float64) {
	var sq, abs float64
	for i := range preds {
		d := preds[i] - actual[i]
		sq += d * d
		abs += math.Abs(d)
	}
	n := float64(len(preds))
	return math.Sqrt(sq / n), abs / n
}

// linearBaselineR2 fits an ordinary least squares model on the same training
// rows. It is reported next to the forest metrics and never gates acceptance.
func linearBaselineR2(stat string, X [][]float64, y []float64) (r2 float64) {
	defer func() {
		if rec := recover(); rec != nil {
			r2 = 0
		}
	}()

	var r regression.Regression
	r.SetObserved(stat)
	for i, name := range TrainingFeatures {
		r.SetVar(i, name)
	}
	for i := range X {
		r.Train(regression.DataPoint(y[i], X[i]))
	}
	if err := r.Run(); err != nil {
		log.Debug().Err(err).Str("stat", stat).Msg("linear baseline unavailable")
		return 0
	}
	if math.IsNaN(r.R2) || math.IsInf(r.R2, 0) {
		return 0
	}
	return r.R2
}

// Trainer fits models and commits them through a Store.
type Trainer struct {
	store    *Store
	manifest *ModelManager
	metrics  MetricsInterface
}

// NewTrainer wires a trainer. manifest and metrics may be nil.
func NewTrainer(store *Store, manifest *ModelManager, metrics MetricsInterface) *Trainer {
	return &Trainer{store: store, manifest: manifest, metrics: metrics}
}

// Train fits the stat model for athlete from rows and persists it.
func (t *Trainer) Train(athlete, stat string, rows []features.FeatureRow) (TrainReport, error) {
	model, report, err := TrainStatModel(rows, stat)
	report.Athlete = athlete
	if err != nil {
		t.observe(stat, false, report.Duration)
		log.Error().Err(err).Str("athlete", athlete).Str("stat", stat).Msg("training failed")
		return report, err
	}

	if err := t.store.Persist(athlete, stat, model); err != nil {
		t.observe(stat, false, report.Duration)
		log.Error().Err(err).Str("athlete", athlete).Str("stat", stat).Msg("model persist failed")
		return report, err
	}
	t.observe(stat, true, report.Duration)

	if t.manifest != nil {
		rec := ModelRecord{
			Athlete:   athlete,
			Stat:      stat,
			Path:      t.store.ModelPath(athlete, stat),
			CreatedAt: time.Now().UTC(),
			Metrics:   report.metrics(),
		}
		if err := t.manifest.Record(rec); err != nil {
			log.Warn().Err(err).Str("athlete", athlete).Str("stat", stat).Msg("failed to update model manifest")
		}
	}

	log.Info().
		Str("athlete", athlete).
		Str("stat", stat).
		Int("train_rows", report.TrainRows).
		Int("test_rows", report.TestRows).
		Float64("rmse", report.RMSE).
		Float64("baseline_r2", report.BaselineR2).
		Float64("canonical_prediction", report.CanonicalPrediction).
		Msg("model trained")

	return report, nil
}

func (t *Trainer) observe(stat string, ok bool, d time.Duration) {
	if t.metrics == nil {
		return
	}
	t.metrics.MLTrainingsInc(stat, ok)
	t.metrics.MLTrainingDurationObserve(d.Seconds())
}
