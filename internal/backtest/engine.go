// Package backtest replays an athlete's history game by game, training on the
// games before each one and scoring the prediction against what happened.
package backtest

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"hoopcast/internal/common"
	"hoopcast/internal/features"
	"hoopcast/internal/ml"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrNoData = errors.New("no history loaded")

// Params controls the walk-forward replay. Zero values select the defaults.
type Params struct {
	MinTrain int // games required before the first prediction
	Step     int // refit every Step games
	Workers  int
	Stats    []string
}

func (p Params) withDefaults() Params {
	if p.MinTrain < 1 {
		p.MinTrain = 10
	}
	if p.Step < 1 {
		p.Step = 5
	}
	if p.Workers < 1 {
		p.Workers = 1
	}
	if len(p.Stats) == 0 {
		p.Stats = common.PredictionStats
	}
	return p
}

// Prediction is one scored game.
type Prediction struct {
	Athlete   string    `json:"athlete"`
	GameID    string    `json:"game_id"`
	Timestamp time.Time `json:"timestamp"`
	Stat      string    `json:"stat"`
	Predicted float64   `json:"predicted"`
	Actual    float64   `json:"actual"`
	Error     float64   `json:"error"`
	TrainSize int       `json:"train_size"`
}

// StatSummary aggregates the errors of one statistic.
type StatSummary struct {
	Count int     `json:"count"`
	MAE   float64 `json:"mae"`
	RMSE  float64 `json:"rmse"`
	Bias  float64 `json:"bias"`
}

// Results holds backtesting results
type Results struct {
	Predictions []Prediction
	ByStat      map[string]StatSummary
	ByAthlete   map[string]StatSummary
	Fits        int
	FitFailures int
	StartTime   time.Time
	EndTime     time.Time
	mu          sync.Mutex
}

// Engine represents the backtesting engine
type Engine struct {
	params  Params
	data    *DataLoader
	results *Results
}

// NewEngine creates a new backtesting engine
func NewEngine(params Params, data *DataLoader) *Engine {
	return &Engine{
		params: params.withDefaults(),
		data:   data,
		results: &Results{
			ByStat:    make(map[string]StatSummary),
			ByAthlete: make(map[string]StatSummary),
		},
	}
}

// Run executes the backtest. Athletes are replayed in parallel; each replay is
// sequential so a model never sees the game it predicts.
func (e *Engine) Run(ctx context.Context) error {
	athletes := e.data.Athletes()
	if len(athletes) == 0 {
		return ErrNoData
	}

	log.Info().
		Time("start", e.data.StartTime).
		Time("end", e.data.EndTime).
		Strs("athletes", athletes).
		Int("min_train", e.params.MinTrain).
		Int("step", e.params.Step).
		Msg("Starting backtest")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.params.Workers)
	for _, athlete := range athletes {
		athlete := athlete
		g.Go(func() error {
			return e.replay(gctx, athlete, e.data.Series(athlete))
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	e.calculateMetrics()
	return nil
}

// replay walks rows (oldest first) and scores every game after the first MinTrain.
func (e *Engine) replay(ctx context.Context, athlete string, rows []features.FeatureRow) error {
	if len(rows) <= e.params.MinTrain {
		log.Warn().
			Str("athlete", athlete).
			Int("games", len(rows)).
			Int("min_train", e.params.MinTrain).
			Msg("not enough games to backtest")
		return nil
	}

	models := make(map[string]ml.Regressor, len(e.params.Stats))
	var out []Prediction
	fits, failures := 0, 0

	for i := e.params.MinTrain; i < len(rows); i++ {
		if (i-e.params.MinTrain)%e.params.Step == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			for _, stat := range e.params.Stats {
				model, _, err := ml.TrainStatModel(rows[:i], stat)
				fits++
				if err != nil {
					failures++
					delete(models, stat)
					log.Debug().Err(err).Str("athlete", athlete).Str("stat", stat).Int("train_size", i).Msg("fit skipped")
					continue
				}
				models[stat] = model
			}
		}

		game := rows[i]
		x := ml.FeatureVector(game)
		for _, stat := range e.params.Stats {
			model, ok := models[stat]
			if !ok {
				continue
			}
			actual, ok := game.Target(stat)
			if !ok {
				continue
			}
			v, err := model.Predict(x)
			if err != nil {
				log.Debug().Err(err).Str("athlete", athlete).Str("stat", stat).Msg("prediction failed")
				continue
			}
			predicted := math.Round(v*10) / 10
			out = append(out, Prediction{
				Athlete:   athlete,
				GameID:    game.GameID,
				Timestamp: game.Timestamp,
				Stat:      stat,
				Predicted: predicted,
				Actual:    actual,
				Error:     predicted - actual,
				TrainSize: lastFitSize(i, e.params),
			})
		}
	}

	e.results.mu.Lock()
	e.results.Predictions = append(e.results.Predictions, out...)
	e.results.Fits += fits
	e.results.FitFailures += failures
	e.results.mu.Unlock()

	log.Debug().Str("athlete", athlete).Int("predictions", len(out)).Msg("athlete replayed")
	return nil
}

// lastFitSize is the number of games the model used for game i was fitted on.
func lastFitSize(i int, p Params) int {
	return i - (i-p.MinTrain)%p.Step
}

// calculateMetrics calculates final error metrics
func (e *Engine) calculateMetrics() {
	r := e.results
	r.mu.Lock()
	defer r.mu.Unlock()

	sort.SliceStable(r.Predictions, func(i, j int) bool {
		a, b := r.Predictions[i], r.Predictions[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Athlete != b.Athlete {
			return a.Athlete < b.Athlete
		}
		return statOrder(a.Stat) < statOrder(b.Stat)
	})

	if len(r.Predictions) == 0 {
		return
	}

	byStat := make(map[string][]float64)
	byAthlete := make(map[string][]float64)
	for _, p := range r.Predictions {
		byStat[p.Stat] = append(byStat[p.Stat], p.Error)
		byAthlete[p.Athlete] = append(byAthlete[p.Athlete], p.Error)
	}
	for stat, errs := range byStat {
		r.ByStat[stat] = summarize(errs)
	}
	for athlete, errs := range byAthlete {
		r.ByAthlete[athlete] = summarize(errs)
	}

	r.StartTime = r.Predictions[0].Timestamp
	r.EndTime = r.Predictions[len(r.Predictions)-1].Timestamp
}

func summarize(errs []float64) StatSummary {
	var abs, sq, sum float64
	for _, d := range errs {
		abs += math.Abs(d)
		sq += d * d
		sum += d
	}
	n := float64(len(errs))
	return StatSummary{
		Count: len(errs),
		MAE:   abs / n,
		RMSE:  math.Sqrt(sq / n),
		Bias:  sum / n,
	}
}

func statOrder(stat string) int {
	for i, s := range common.PredictionStats {
		if s == stat {
			return i
		}
	}
	return len(common.PredictionStats)
}

// GetResults returns the backtesting results
func (e *Engine) GetResults() *Results {
	return e.results
}
