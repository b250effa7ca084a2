package ml

import (
	"fmt"
	"math"
	"testing"
	"time"

	"hoopcast/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticRows builds a fixed dataset where every stat depends on minutes and rest.
func syntheticRows(n int) []features.FeatureRow {
	base := time.Date(2025, 3, 1, 19, 0, 0, 0, time.UTC)
	rows := make([]features.FeatureRow, n)
	for i := range rows {
		minutes := 20 + float64(i%15)
		b2b := 0
		if i%3 == 0 {
			b2b = 1
		}
		opp := i%30 + 1
		rows[i] = features.FeatureRow{
			GameID:          fmt.Sprintf("game-%d", i),
			Timestamp:       base.Add(-time.Duration(i) * 48 * time.Hour),
			MinutesPlayed:   minutes,
			OpponentTeamID:  opp,
			BackToBack:      b2b,
			DefensiveRating: 110,
			Targets: map[string]float64{
				"PTS": 0.9*minutes - 3*float64(b2b) + float64(opp%5),
				"AST": 0.2 * minutes,
				"REB": 0.3*minutes - float64(b2b),
				"TO":  0.1 * minutes,
				"BLK": float64(i % 2),
			},
		}
	}
	return rows
}

func TestTrainStatModel(t *testing.T) {
	model, report, err := TrainStatModel(syntheticRows(25), "PTS")
	require.NoError(t, err)
	require.NotNil(t, model)

	assert.Equal(t, 20, report.TrainRows)
	assert.Equal(t, 5, report.TestRows)
	assert.Len(t, model.Trees, 100)
	assert.Equal(t, 3, model.NFeatures)
	assert.False(t, math.IsNaN(report.CanonicalPrediction))
	assert.GreaterOrEqual(t, report.RMSE, 0.0)
}

func TestTrainStatModel_InvalidStatistic(t *testing.T) {
	for _, stat := range []string{"", "pts", "STL", "MIN"} {
		t.Run(stat, func(t *testing.T) {
			_, _, err := TrainStatModel(syntheticRows(25), stat)
			assert.ErrorIs(t, err, ErrInvalidStatistic)
		})
	}
}

func TestTrainStatModel_EmptyDataset(t *testing.T) {
	_, _, err := TrainStatModel(nil, "PTS")
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestTrainStatModel_SingleRow(t *testing.T) {
	model, report, err := TrainStatModel(syntheticRows(1), "AST")
	require.NoError(t, err)
	assert.Equal(t, 1, report.TrainRows)
	assert.Equal(t, 0, report.TestRows)

	pred, err := CheckCanonical(model)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, pred, 1e-9)
}

func TestTrainStatModel_MissingTarget(t *testing.T) {
	rows := syntheticRows(25)
	delete(rows[4].Targets, "REB")

	_, _, err := TrainStatModel(rows, "REB")
	assert.Error(t, err)
}

func TestTrainStatModel_Deterministic(t *testing.T) {
	rows := syntheticRows(25)

	first, _, err := TrainStatModel(rows, "PTS")
	require.NoError(t, err)
	second, _, err := TrainStatModel(rows, "PTS")
	require.NoError(t, err)

	a, err := CheckCanonical(first)
	require.NoError(t, err)
	b, err := CheckCanonical(second)
	require.NoError(t, err)
	assert.InDelta(t, a, b, 1e-5)

	// Rounded the way predictions are reported.
	assert.Equal(t, math.Round(a*10)/10, math.Round(b*10)/10)
}

func TestTrainTestSplit(t *testing.T) {
	X := make([][]float64, 25)
	y := make([]float64, 25)
	for i := range X {
		X[i] = []float64{float64(i)}
		y[i] = float64(i)
	}

	xTrain, xTest, yTrain, yTest := TrainTestSplit(X, y, 0.2, 42)
	assert.Len(t, xTrain, 20)
	assert.Len(t, xTest, 5)
	assert.Len(t, yTrain, 20)
	assert.Len(t, yTest, 5)

	seen := make(map[float64]bool)
	for _, v := range append(append([]float64{}, yTrain...), yTest...) {
		assert.False(t, seen[v], "row %v used twice", v)
		seen[v] = true
	}

	_, xTest2, _, _ := TrainTestSplit(X, y, 0.2, 42)
	assert.Equal(t, xTest, xTest2)
}

func TestTrainer_TrainPersistsAndRecords(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	manifest, err := NewModelManager(dir)
	require.NoError(t, err)
	metrics := &MockMetrics{}

	trainer := NewTrainer(store, manifest, metrics)
	report, err := trainer.Train("Nikola Jokic", "REB", syntheticRows(25))
	require.NoError(t, err)
	assert.Equal(t, "Nikola Jokic", report.Athlete)

	loaded := store.Load("Nikola Jokic", "REB")
	require.True(t, loaded.Present, loaded.Reason)

	rec, ok := manifest.Get("Nikola Jokic", "REB")
	require.True(t, ok)
	assert.Equal(t, store.ModelPath("Nikola Jokic", "REB"), rec.Path)
	assert.Equal(t, 20, rec.Metrics.TrainRows)
	assert.Equal(t, 1, metrics.trainings["REB"])
}

func TestTrainer_InvalidStatisticNotPersisted(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	metrics := &MockMetrics{}

	_, err = NewTrainer(store, nil, metrics).Train("Luka Doncic", "STL", syntheticRows(25))
	assert.ErrorIs(t, err, ErrInvalidStatistic)
	assert.False(t, store.Exists("Luka Doncic", "STL"))
	assert.Equal(t, 1, metrics.trainFailures["STL"])
}
