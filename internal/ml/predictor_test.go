package ml

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"hoopcast/internal/forest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves in-memory models keyed by stat.
type fakeSource map[string]*forest.Forest

func (f fakeSource) Load(_, stat string) LoadResult {
	m, ok := f[stat]
	if !ok {
		return LoadResult{Reason: "not trained"}
	}
	return LoadResult{Model: m, Present: true, SavedAt: time.Now().Add(-time.Hour)}
}

func constantForest(t *testing.T, v float64) *forest.Forest {
	t.Helper()
	f := forest.New(forest.Params{NEstimators: 3, Seed: 1})
	require.NoError(t, f.Fit([][]float64{{30, 1, 0}, {20, 2, 1}}, []float64{v, v}))
	return f
}

func validContext() map[string]any {
	return map[string]any{
		KeyMinutesPlayed:  34.5,
		KeyOpponentTeamID: 12,
		KeyBackToBackFlag: 0,
	}
}

func TestPredictNextGame_AllStats(t *testing.T) {
	source := fakeSource{
		"PTS": constantForest(t, 27.34),
		"AST": constantForest(t, 8.26),
		"REB": constantForest(t, 11),
		"TO":  constantForest(t, 3.06),
		"BLK": constantForest(t, 0.94),
	}
	metrics := &MockMetrics{}
	p := NewPredictor(source, metrics)

	result, err := p.PredictNextGame("Nikola Jokic", validContext())
	require.NoError(t, err)
	require.Len(t, result, 5)

	order := []string{"PTS", "AST", "REB", "TO", "BLK"}
	want := []float64{27.3, 8.3, 11.0, 3.1, 0.9}
	for i, stat := range order {
		assert.Equal(t, stat, result[i].Stat)
		require.NotNil(t, result[i].Value, stat)
		assert.InDelta(t, want[i], *result[i].Value, 1e-9, stat)
	}

	assert.Equal(t, 5, metrics.predictions)
	assert.Equal(t, 1, metrics.latencyCount)
	assert.Greater(t, metrics.modelAge, 0.0)
}

func TestPredictNextGame_PartialModels(t *testing.T) {
	source := fakeSource{
		"PTS": constantForest(t, 25),
		"REB": constantForest(t, 7),
	}
	metrics := &MockMetrics{}
	p := NewPredictor(source, metrics)

	result, err := p.PredictNextGame("Jayson Tatum", validContext())
	require.NoError(t, err)
	require.Len(t, result, 5)
	assert.Equal(t, 2, result.Available())

	pts, ok := result.Get("PTS")
	require.True(t, ok)
	require.NotNil(t, pts)
	assert.Equal(t, 25.0, *pts)

	for _, stat := range []string{"AST", "TO", "BLK"} {
		v, ok := result.Get(stat)
		assert.True(t, ok, stat)
		assert.Nil(t, v, stat)
		assert.Equal(t, 1, metrics.missing[stat])
	}
}

func TestPredictNextGame_NoModels(t *testing.T) {
	p := NewPredictor(fakeSource{}, nil)

	result, err := p.PredictNextGame("Nobody", validContext())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoValidPredictions))
	assert.Len(t, result, 5)
	assert.Equal(t, 0, result.Available())
}

func TestPredictNextGame_CorruptModelIsolated(t *testing.T) {
	broken := &forest.Forest{NFeatures: 3, Trees: []forest.Tree{{Nodes: []forest.Node{{Feature: 0, Left: 9, Right: 9}}}}}
	metrics := &MockMetrics{}
	p := NewPredictor(fakeSource{
		"PTS": broken,
		"AST": constantForest(t, 6),
	}, metrics)

	result, err := p.PredictNextGame("Luka Doncic", validContext())
	require.NoError(t, err)

	pts, _ := result.Get("PTS")
	assert.Nil(t, pts)
	ast, _ := result.Get("AST")
	require.NotNil(t, ast)
	assert.Equal(t, 6.0, *ast)
	assert.Equal(t, 1, metrics.failures)
}

func TestPredictNextGame_InvalidInput(t *testing.T) {
	p := NewPredictor(fakeSource{"PTS": constantForest(t, 20)}, nil)

	tests := []struct {
		name string
		ctx  map[string]any
		key  string
	}{
		{"missing minutes", map[string]any{KeyOpponentTeamID: 3, KeyBackToBackFlag: 0}, KeyMinutesPlayed},
		{"nil opponent", map[string]any{KeyMinutesPlayed: 30, KeyOpponentTeamID: nil, KeyBackToBackFlag: 0}, KeyOpponentTeamID},
		{"non numeric flag", map[string]any{KeyMinutesPlayed: 30, KeyOpponentTeamID: 3, KeyBackToBackFlag: "yes"}, KeyBackToBackFlag},
		{"nan minutes", map[string]any{KeyMinutesPlayed: math.NaN(), KeyOpponentTeamID: 3, KeyBackToBackFlag: 0}, KeyMinutesPlayed},
		{"slice opponent", map[string]any{KeyMinutesPlayed: 30, KeyOpponentTeamID: []int{3}, KeyBackToBackFlag: 0}, KeyOpponentTeamID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.PredictNextGame("Stephen Curry", tt.ctx)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidFeatureInput)

			var fe *FeatureInputError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.key, fe.Key)
		})
	}
}

func TestParseContextFeatures_Coercion(t *testing.T) {
	x, err := ParseContextFeatures(map[string]any{
		KeyMinutesPlayed:  " 31.5 ",
		KeyOpponentTeamID: json.Number("14"),
		KeyBackToBackFlag: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{31.5, 14, 1}, x)

	x, err = ParseContextFeatures(map[string]any{
		KeyMinutesPlayed:  int64(28),
		KeyOpponentTeamID: uint8(7),
		KeyBackToBackFlag: float32(0),
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{28, 7, 0}, x)
}

func TestPredictionResult_MarshalJSON(t *testing.T) {
	v1, v2 := 24.5, 3.0
	result := PredictionResult{
		{Stat: "PTS", Value: &v1},
		{Stat: "AST"},
		{Stat: "REB", Value: &v2},
		{Stat: "TO"},
		{Stat: "BLK"},
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Equal(t, `{"PTS":24.5,"AST":null,"REB":3,"TO":null,"BLK":null}`, string(data))

	var decoded map[string]*float64
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 5)
	assert.Nil(t, decoded["AST"])
}

func TestPredictNextGame_TrainedModelsRepeatable(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	trainer := NewTrainer(store, nil, nil)

	rows := syntheticRows(25)
	for _, stat := range []string{"PTS", "AST", "REB", "TO", "BLK"} {
		_, err := trainer.Train("Kevin Durant", stat, rows)
		require.NoError(t, err)
	}

	p := NewPredictor(store, nil)
	first, err := p.PredictNextGame("Kevin Durant", validContext())
	require.NoError(t, err)
	second, err := p.PredictNextGame("Kevin Durant", validContext())
	require.NoError(t, err)

	assert.Equal(t, 5, first.Available())
	for i := range first {
		require.NotNil(t, first[i].Value)
		assert.Equal(t, *first[i].Value, *second[i].Value)
		assert.Equal(t, math.Round(*first[i].Value*10)/10, *first[i].Value)
	}
}
