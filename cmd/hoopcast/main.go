package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hoopcast/internal/cfg"
	"hoopcast/internal/espn"
	"hoopcast/internal/history"
	"hoopcast/internal/metrics"
	"hoopcast/internal/ml"
	"hoopcast/internal/pipeline"
	"hoopcast/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: hoopcast <command> [flags]

commands:
  collect    fetch game logs and write the history tables
  train      train models for one athlete or all of them
  predict    predict the next game of an athlete
  serve      run the HTTP API and the metrics endpoint
  athletes   list athletes with a history table
  backtest   replay history game by game and score the predictions
  export     dump cached game records as newline-delimited JSON
  models     list committed models and their holdout metrics
  teams      list the team directory with cached defensive ratings
`

// app holds the components shared by every command.
type app struct {
	cfg      cfg.Settings
	metrics  *metrics.Metrics
	store    *storage.Store
	models   *ml.Store
	manifest *ml.ModelManager
	pipeline *pipeline.Pipeline
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	// Setup logging
	zerolog.SetGlobalLevel(c.ZerologLevel())
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(c)
	if err != nil {
		log.Fatal().Err(err).Msg("initialization failed")
	}
	defer a.close()

	switch cmd {
	case "collect":
		err = a.runCollect(ctx, args)
	case "train":
		err = a.runTrain(ctx, args)
	case "predict":
		err = a.runPredict(args)
	case "serve":
		err = a.runServe(ctx, args)
	case "athletes":
		err = a.runAthletes(args)
	case "backtest":
		err = a.runBacktest(ctx, args)
	case "export":
		err = a.runExport(args)
	case "models":
		err = a.runModels(args)
	case "teams":
		err = a.runTeams(args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("command failed")
		a.close()
		os.Exit(1)
	}
}

func newApp(c cfg.Settings) (*app, error) {
	m := metrics.New()
	mw := metrics.NewWrapper(m)

	hist, err := history.NewStore(c.HistoryPath)
	if err != nil {
		return nil, err
	}
	models, err := ml.NewStore(c.ModelsPath)
	if err != nil {
		return nil, err
	}
	manifest, err := ml.NewModelManager(c.ModelsPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: c, metrics: m, models: models, manifest: manifest}
	a.store = initializeStorage(c)

	// A nil *storage.Store must not reach the pipeline as a non-nil interface.
	var cache pipeline.GameCache
	if a.store != nil {
		cache = a.store
	}

	feed := espn.NewClient(c.FeedBaseURL, c.TeamsURL, c.RESTTimeout)
	a.pipeline = pipeline.New(pipeline.Config{
		WindowSize:    c.WindowSize,
		Workers:       c.TrainWorkers,
		Season:        c.Season,
		DefaultRating: c.DefaultRating,
		Athletes:      c.Athletes,
		RatingSeed:    c.TeamRatingsSeed,
	}, feed, cache, hist, ml.NewTrainer(models, manifest, mw), ml.NewPredictor(models, mw), mw)

	return a, nil
}

// initializeStorage opens the feed cache if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	if err := os.MkdirAll(c.DataPath, 0o755); err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without feed cache")
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without feed cache")
		return nil
	}
	return store
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close storage")
		}
	}
}
