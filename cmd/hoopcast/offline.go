package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"hoopcast/internal/backtest"
	"hoopcast/internal/common"
	"hoopcast/internal/features"

	"github.com/rs/zerolog/log"
)

func (a *app) runBacktest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	athletes := fs.String("athletes", "", "Comma-separated athletes to test (default: every athlete with a history table)")
	startDate := fs.String("start", "", "Start date (YYYY-MM-DD)")
	endDate := fs.String("end", "", "End date (YYYY-MM-DD)")
	minTrain := fs.Int("min-train", 10, "Games required before the first prediction")
	step := fs.Int("step", 5, "Refit the models every N games")
	outputPath := fs.String("output", "", "Output directory for reports (default: console only)")
	fs.Parse(args)

	var start, end time.Time
	var err error
	if *startDate != "" {
		if start, err = time.Parse("2006-01-02", *startDate); err != nil {
			return fmt.Errorf("invalid start date: %w", err)
		}
	}
	if *endDate != "" {
		if end, err = time.Parse("2006-01-02", *endDate); err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
		end = end.Add(24*time.Hour - time.Nanosecond)
	}

	names := parseList(*athletes)
	if len(names) == 0 {
		if names, err = a.pipeline.Athletes(); err != nil {
			return err
		}
	}

	loader := backtest.NewDataLoader()
	if err := loader.LoadFromHistory(a.pipeline.History(), names, start, end); err != nil {
		return err
	}

	engine := backtest.NewEngine(backtest.Params{
		MinTrain: *minTrain,
		Step:     *step,
		Workers:  a.cfg.TrainWorkers,
	}, loader)
	if err := engine.Run(ctx); err != nil {
		return err
	}

	reporter := backtest.NewReporter(engine.GetResults(), *outputPath)
	if *outputPath != "" {
		if err := reporter.GenerateReport(); err != nil {
			log.Error().Err(err).Msg("Failed to generate reports")
		}
	}
	reporter.PrintSummary()
	return nil
}

func (a *app) runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	athlete := fs.String("athlete", "", "Athlete to export (default: every tracked athlete)")
	days := fs.Int("days", 0, "Number of days to export (0 for all)")
	outputPath := fs.String("output", "", "Output file (default: stdout)")
	fs.Parse(args)

	if a.store == nil {
		return errors.New("feed cache unavailable: set DATA_PATH and run collect first")
	}

	names := a.cfg.AthleteNames()
	if *athlete != "" {
		names = []string{*athlete}
	}

	out := os.Stdout
	if *outputPath != "" {
		f, err := os.Create(*outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	encoder := json.NewEncoder(out)

	type exportRecord struct {
		Athlete string `json:"athlete"`
		features.GameRecord
	}

	total := 0
	for _, name := range names {
		var games []features.GameRecord
		var err error
		if *days > 0 {
			games, err = a.store.GetGames(name, time.Now().AddDate(0, 0, -*days), time.Now())
		} else {
			games, err = a.store.AllGames(name)
		}
		if err != nil {
			return fmt.Errorf("read cached games for %s: %w", name, err)
		}
		for _, g := range games {
			if err := encoder.Encode(exportRecord{Athlete: name, GameRecord: g}); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
		}
		log.Info().Str("athlete", name).Int("games", len(games)).Msg("exported")
		total += len(games)
	}

	if total == 0 {
		log.Warn().Msg("no cached games matched")
	}
	return nil
}

// parseList splits a comma-separated flag value
func parseList(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

func (a *app) runModels(args []string) error {
	fs := flag.NewFlagSet("models", flag.ExitOnError)
	athlete := fs.String("athlete", "", "Only list models of this athlete")
	fs.Parse(args)

	records := a.manifest.ListRecords()
	if len(records) == 0 {
		fmt.Println("no models committed yet")
		return nil
	}

	for _, rec := range records {
		if *athlete != "" && rec.Athlete != *athlete {
			continue
		}
		state := "ok"
		if !a.models.Exists(rec.Athlete, rec.Stat) {
			state = "MISSING"
		}
		fmt.Printf("%-28s %-4s %-8s %s  train=%-3d test=%-3d rmse=%.2f mae=%.2f r2=%.2f\n",
			rec.Athlete, rec.Stat, state, rec.CreatedAt.Format("2006-01-02 15:04"),
			rec.Metrics.TrainRows, rec.Metrics.TestRows, rec.Metrics.RMSE, rec.Metrics.MAE, rec.Metrics.BaselineR2)
	}
	return nil
}

func (a *app) runTeams(args []string) error {
	fs := flag.NewFlagSet("teams", flag.ExitOnError)
	fs.Parse(args)

	var cached map[int]float64
	if a.store != nil {
		var err error
		if cached, err = a.store.Ratings(); err != nil {
			log.Warn().Err(err).Msg("failed to read cached ratings")
		}
	}

	for id := 1; id <= len(common.Teams); id++ {
		team, ok := common.Teams[id]
		if !ok {
			continue
		}
		rating, ok := cached[id]
		source := "cached"
		if !ok {
			rating, source = a.cfg.DefaultRating, "default"
		}
		fmt.Printf("%2d  %-14s %-14s %6.1f (%s)\n", team.ID, team.City, team.Name, rating, source)
	}
	return nil
}
