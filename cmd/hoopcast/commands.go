package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hoopcast/internal/api"
	"hoopcast/internal/pipeline"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func (a *app) runCollect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("collect", flag.ExitOnError)
	fs.Parse(args)

	results, err := a.pipeline.Collect(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("%-28s FAILED  %v\n", r.Athlete, r.Err)
			continue
		}
		fmt.Printf("%-28s %3d games, %3d rows\n", r.Athlete, r.Games, r.Rows)
	}
	if failed == len(results) && failed > 0 {
		return errors.New("collection failed for every athlete")
	}
	return nil
}

func (a *app) runTrain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	athlete := fs.String("athlete", "", "Athlete to train (default: every athlete with a history table)")
	fs.Parse(args)

	var reports []pipeline.AthleteReport
	if *athlete != "" {
		rep, err := a.pipeline.TrainAthlete(ctx, *athlete)
		if err != nil {
			return err
		}
		reports = append(reports, rep)
	} else {
		var err error
		if reports, err = a.pipeline.TrainAll(ctx); err != nil {
			return err
		}
	}

	for _, rep := range reports {
		if rep.Err != nil {
			fmt.Printf("%-28s FAILED  %v\n", rep.Athlete, rep.Err)
			continue
		}
		var stats []string
		for _, tr := range rep.Trained {
			stats = append(stats, fmt.Sprintf("%s(rmse=%.2f)", tr.Stat, tr.RMSE))
		}
		fmt.Printf("%-28s %s\n", rep.Athlete, strings.Join(stats, " "))
		for stat, err := range rep.Failures {
			fmt.Printf("%-28s   %s failed: %v\n", "", stat, err)
		}
	}
	return nil
}

func (a *app) runPredict(args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	athlete := fs.String("athlete", "", "Athlete to predict")
	opponent := fs.Int("opponent", 0, "Opponent team id (1-30)")
	b2b := fs.Bool("b2b", false, "Game is the second night of a back-to-back")
	fs.Parse(args)

	if *athlete == "" {
		return errors.New("-athlete is required")
	}
	if *opponent < 1 || *opponent > 30 {
		return fmt.Errorf("-opponent must be between 1 and 30, got %d", *opponent)
	}
	backToBack := 0
	if *b2b {
		backToBack = 1
	}

	result, err := a.pipeline.Predict(*athlete, *opponent, backToBack)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func (a *app) runAthletes(args []string) error {
	fs := flag.NewFlagSet("athletes", flag.ExitOnError)
	tracked := fs.Bool("tracked", false, "List configured athletes instead of those with history")
	fs.Parse(args)

	if *tracked {
		for _, name := range a.cfg.AthleteNames() {
			fmt.Printf("%-28s %s\n", name, a.cfg.Athletes[name])
		}
		return nil
	}

	athletes, err := a.pipeline.Athletes()
	if err != nil {
		return err
	}
	for _, name := range athletes {
		fmt.Println(name)
	}
	return nil
}

func (a *app) runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", a.cfg.APIPort, "API port")
	fs.Parse(args)

	startMetricsServer(ctx, a.cfg.MetricsPort)

	srv := api.NewServer(a.pipeline, a.metrics, *port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(ctx context.Context, port int) {
	go func() {
		mux := http.NewServeMux()

		// Add health endpoint
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		// Add metrics endpoint
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}
