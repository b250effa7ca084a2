// Package pipeline wires the feed, the history tables and the model lifecycle
// into the operations exposed by the CLI and the HTTP boundary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"hoopcast/internal/common"
	"hoopcast/internal/espn"
	"hoopcast/internal/features"
	"hoopcast/internal/history"
	"hoopcast/internal/metrics"
	"hoopcast/internal/ml"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// FeedClient fetches raw game logs and the team listing.
type FeedClient interface {
	GetGameLog(ctx context.Context, athleteID, season string) ([]features.GameRecord, error)
	GetTeams(ctx context.Context, defaultRating float64) ([]espn.Team, error)
}

// GameCache keeps the raw records and ratings of the last collection.
type GameCache interface {
	features.RatingLookup
	StoreGames(athlete string, games []features.GameRecord) error
	StoreRatings(ratings map[int]float64) error
}

// CollectMetrics is the subset of metrics the collector reports to.
// CollectMetrics counts collected games and feed failures.
type CollectMetrics interface {
	GamesCollected() metrics.MetricsCounter
	CollectErrors() metrics.MetricsCounter
}

// Config holds the pipeline settings. Zero values select the defaults.
type Config struct {
	WindowSize    int
	Workers       int
	Season        string
	DefaultRating float64
	Athletes      map[string]string // name -> feed athlete id
	RatingSeed    map[int]float64
}

// Pipeline runs collection, training and prediction for the tracked athletes.
type Pipeline struct {
	cfg       Config
	feed      FeedClient
	cache     GameCache
	history   *history.Store
	trainer   *ml.Trainer
	predictor *ml.Predictor
	metrics   CollectMetrics
}

// New assembles a pipeline. feed, cache and m may be nil when the caller only
// trains or predicts.
func New(cfg Config, feed FeedClient, cache GameCache, hist *history.Store, trainer *ml.Trainer, predictor *ml.Predictor, m CollectMetrics) *Pipeline {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = common.DefaultWindowSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = common.DefaultTrainWorkers
	}
	if cfg.DefaultRating == 0 {
		cfg.DefaultRating = common.DefaultDefensiveRating
	}
	return &Pipeline{
		cfg:       cfg,
		feed:      feed,
		cache:     cache,
		history:   hist,
		trainer:   trainer,
		predictor: predictor,
		metrics:   m,
	}
}

// History exposes the history store for listing athletes.
func (p *Pipeline) History() *history.Store { return p.history }

// CollectResult is the outcome of collecting one athlete.
type CollectResult struct {
	Athlete string
	Games   int
	Rows    int
	Err     error
}

// Collect refreshes team ratings, then fetches, caches, derives and writes the
// history table of every tracked athlete. One athlete failing does not stop
// the others; the returned error is reserved for failures that affect all of them.
func (p *Pipeline) Collect(ctx context.Context) ([]CollectResult, error) {
	if p.feed == nil {
		return nil, errors.New("no feed client configured")
	}

	lookup, err := p.refreshRatings(ctx)
	if err != nil {
		return nil, err
	}

	names := sortedNames(p.cfg.Athletes)
	results := make([]CollectResult, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			results[i] = p.collectAthlete(gctx, name, lookup)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	log.Info().
		Int("athletes", len(names)).
		Int("failed", failed).
		Msg("collection finished")
	return results, nil
}

func (p *Pipeline) refreshRatings(ctx context.Context) (features.RatingLookup, error) {
	teams, err := p.feed.GetTeams(ctx, p.cfg.DefaultRating)
	if err != nil {
		return nil, fmt.Errorf("load team listing: %w", err)
	}

	ratings := espn.TeamRatings(teams)
	for id, r := range p.cfg.RatingSeed {
		ratings[id] = r
	}

	if p.cache == nil {
		return features.StaticRatings(ratings), nil
	}
	if err := p.cache.StoreRatings(ratings); err != nil {
		log.Warn().Err(err).Msg("failed to cache team ratings")
		return features.StaticRatings(ratings), nil
	}
	return p.cache, nil
}

func (p *Pipeline) collectAthlete(ctx context.Context, name string, lookup features.RatingLookup) CollectResult {
	res := CollectResult{Athlete: name}
	fail := func(err error) CollectResult {
		res.Err = err
		if p.metrics != nil {
			p.metrics.CollectErrors().Inc()
		}
		log.Error().Err(err).Str("athlete", name).Msg("collection failed")
		return res
	}

	games, err := p.feed.GetGameLog(ctx, p.cfg.Athletes[name], p.cfg.Season)
	if err != nil {
		return fail(err)
	}
	res.Games = len(games)
	if p.metrics != nil {
		counter := p.metrics.GamesCollected()
		for range games {
			counter.Inc()
		}
	}

	if p.cache != nil {
		if err := p.cache.StoreGames(name, games); err != nil {
			log.Warn().Err(err).Str("athlete", name).Msg("failed to cache game records")
		}
	}

	rows, err := features.Derive(games, p.cfg.WindowSize, lookup)
	if err != nil {
		return fail(err)
	}
	if err := p.history.Write(name, rows); err != nil {
		return fail(err)
	}
	res.Rows = len(rows)
	return res
}

// AthleteReport is the outcome of training every statistic of one athlete.
type AthleteReport struct {
	Athlete  string
	Trained  []ml.TrainReport
	Failures map[string]error // stat -> error
	Err      error            // set when no statistic could be attempted
}

// OK reports whether every statistic trained.
func (r AthleteReport) OK() bool {
	return r.Err == nil && len(r.Failures) == 0
}

// TrainAthlete trains every statistic of athlete from its history table.
// A failing statistic is recorded and the remaining ones still train.
func (p *Pipeline) TrainAthlete(ctx context.Context, athlete string) (AthleteReport, error) {
	report := AthleteReport{Athlete: athlete, Failures: make(map[string]error)}

	rows, err := p.history.Read(athlete)
	if err != nil {
		report.Err = err
		return report, err
	}

	start := time.Now()
	for _, stat := range common.PredictionStats {
		if err := ctx.Err(); err != nil {
			report.Err = err
			return report, err
		}
		tr, err := p.trainer.Train(athlete, stat, rows)
		if err != nil {
			report.Failures[stat] = err
			continue
		}
		report.Trained = append(report.Trained, tr)
	}

	log.Info().
		Str("athlete", athlete).
		Int("trained", len(report.Trained)).
		Int("failed", len(report.Failures)).
		Dur("duration", time.Since(start)).
		Msg("athlete training finished")
	return report, nil
}

// TrainAll trains every athlete that has a history table, several at a time.
// Failures stay inside each athlete's report.
func (p *Pipeline) TrainAll(ctx context.Context) ([]AthleteReport, error) {
	athletes, err := p.history.ListAthletes()
	if err != nil {
		return nil, err
	}
	if len(athletes) == 0 {
		log.Warn().Str("root", p.history.Root()).Msg("no history tables found")
		return nil, nil
	}

	reports := make([]AthleteReport, len(athletes))
	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, athlete := range athletes {
		i, athlete := i, athlete
		g.Go(func() error {
			rep, err := p.TrainAthlete(gctx, athlete)
			reports[i] = rep
			if err != nil || !rep.OK() {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			// Only cancellation stops the batch.
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}

	log.Info().
		Int("athletes", len(athletes)).
		Int("with_failures", failed).
		Msg("batch training finished")
	return reports, nil
}

// Predict predicts athlete's next game against opponentID. Minutes played
// are taken from the newest row of the athlete's history table.
func (p *Pipeline) Predict(athlete string, opponentID, backToBack int) (ml.PredictionResult, error) {
	latest, err := p.history.Latest(athlete)
	if err != nil {
		return nil, err
	}

	ctxFeatures := map[string]any{
		ml.KeyMinutesPlayed:  latest.MinutesPlayed,
		ml.KeyOpponentTeamID: opponentID,
		ml.KeyBackToBackFlag: backToBack,
	}
	return p.predictor.PredictNextGame(athlete, ctxFeatures)
}

// Athletes returns the athletes with a history table.
func (p *Pipeline) Athletes() ([]string, error) {
	return p.history.ListAthletes()
}

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
