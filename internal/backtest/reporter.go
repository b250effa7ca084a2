package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"hoopcast/internal/common"

	"github.com/rs/zerolog/log"
)

// Reporter generates backtest reports
type Reporter struct {
	results    *Results
	outputPath string
}

// NewReporter creates a new reporter
func NewReporter(results *Results, outputPath string) *Reporter {
	return &Reporter{
		results:    results,
		outputPath: outputPath,
	}
}

// GenerateReport writes the summary, the prediction log and the JSON report.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}

	if err := r.generatePredictionLog(); err != nil {
		return err
	}

	return r.generateJSONReport()
}

func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, "backtest_summary.txt")
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	r.writeSummary(file)

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

func (r *Reporter) writeSummary(w io.Writer) {
	res := r.results

	fmt.Fprintf(w, "BACKTEST RESULTS SUMMARY\n")
	fmt.Fprintf(w, "========================\n\n")

	fmt.Fprintf(w, "Games: %s to %s\n",
		res.StartTime.Format("2006-01-02"),
		res.EndTime.Format("2006-01-02"))
	fmt.Fprintf(w, "Predictions: %d\n", len(res.Predictions))
	fmt.Fprintf(w, "Model fits: %d (%d failed)\n\n", res.Fits, res.FitFailures)

	fmt.Fprintf(w, "ERROR BY STAT\n")
	fmt.Fprintf(w, "-------------\n")
	for _, stat := range common.PredictionStats {
		s, ok := res.ByStat[stat]
		if !ok {
			fmt.Fprintf(w, "%-4s no predictions\n", stat)
			continue
		}
		fmt.Fprintf(w, "%-4s n=%-5d MAE %.2f  RMSE %.2f  bias %+.2f\n", stat, s.Count, s.MAE, s.RMSE, s.Bias)
	}

	if len(res.ByAthlete) > 0 {
		fmt.Fprintf(w, "\nERROR BY ATHLETE\n")
		fmt.Fprintf(w, "----------------\n")
		athletes := make([]string, 0, len(res.ByAthlete))
		for a := range res.ByAthlete {
			athletes = append(athletes, a)
		}
		sort.Strings(athletes)
		for _, a := range athletes {
			s := res.ByAthlete[a]
			fmt.Fprintf(w, "%-28s n=%-5d MAE %.2f  RMSE %.2f\n", a, s.Count, s.MAE, s.RMSE)
		}
	}
}

// generatePredictionLog writes every scored prediction as CSV
func (r *Reporter) generatePredictionLog() error {
	csvPath := filepath.Join(r.outputPath, "prediction_log.csv")
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create prediction log: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"Athlete", "Game", "Date", "Stat", "Predicted", "Actual", "Error", "Train Size"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range r.results.Predictions {
		record := []string{
			p.Athlete,
			p.GameID,
			p.Timestamp.Format("2006-01-02"),
			p.Stat,
			fmt.Sprintf("%.1f", p.Predicted),
			fmt.Sprintf("%g", p.Actual),
			fmt.Sprintf("%.2f", p.Error),
			fmt.Sprintf("%d", p.TrainSize),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	log.Info().Str("file", csvPath).Msg("Prediction log generated")
	return nil
}

// generateJSONReport generates a JSON report with all data
func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, "backtest_results.json")

	report := map[string]interface{}{
		"summary": map[string]interface{}{
			"start_time":   r.results.StartTime,
			"end_time":     r.results.EndTime,
			"predictions":  len(r.results.Predictions),
			"fits":         r.results.Fits,
			"fit_failures": r.results.FitFailures,
			"by_stat":      r.results.ByStat,
			"by_athlete":   r.results.ByAthlete,
		},
		"predictions":  r.results.Predictions,
		"generated_at": time.Now(),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

// PrintSummary prints a summary to console
func (r *Reporter) PrintSummary() {
	fmt.Println("\n=== BACKTEST RESULTS ===")
	r.writeSummary(os.Stdout)
	fmt.Println("========================")
}
