package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// isolateEnv clears every variable Load reads and points the dotenv lookup at
// a file that does not exist.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "HISTORY_PATH", "MODELS_PATH", "DATA_PATH", "WINDOW_SIZE", "TRAIN_WORKERS",
		"FEED_BASE_URL", "TEAMS_URL", "SEASON", "REST_TIMEOUT", "METRICS_PORT", "API_PORT",
		"LOG_LEVEL", "ATHLETES", "DEFAULT_DEFENSIVE_RATING",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("DOTENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			validate: func(t *testing.T, settings Settings) {
				if settings.HistoryPath != "player_data" {
					t.Errorf("expected default HistoryPath, got %s", settings.HistoryPath)
				}
				if settings.ModelsPath != "models" {
					t.Errorf("expected default ModelsPath, got %s", settings.ModelsPath)
				}
				if settings.WindowSize != 25 {
					t.Errorf("expected default WindowSize 25, got %d", settings.WindowSize)
				}
				if settings.RESTTimeout != 10*time.Second {
					t.Errorf("expected default RESTTimeout 10s, got %v", settings.RESTTimeout)
				}
				if settings.DefaultRating != 110.0 {
					t.Errorf("expected default rating 110, got %f", settings.DefaultRating)
				}
				if len(settings.Athletes) != 10 {
					t.Errorf("expected 10 default athletes, got %d", len(settings.Athletes))
				}
				if settings.ZerologLevel() != zerolog.InfoLevel {
					t.Errorf("expected info level, got %v", settings.ZerologLevel())
				}
			},
		},
		{
			name: "custom settings",
			envVars: map[string]string{
				"HISTORY_PATH":  "/tmp/history",
				"WINDOW_SIZE":   "40",
				"TRAIN_WORKERS": "8",
				"REST_TIMEOUT":  "30s",
				"API_PORT":      "8181",
				"LOG_LEVEL":     "debug",
				"ATHLETES":      "Nikola Jokic=3112335, Stephen Curry=3975,broken,=12",
			},
			validate: func(t *testing.T, settings Settings) {
				if settings.HistoryPath != "/tmp/history" {
					t.Errorf("expected HistoryPath override, got %s", settings.HistoryPath)
				}
				if settings.WindowSize != 40 || settings.TrainWorkers != 8 {
					t.Errorf("expected window 40 and 8 workers, got %d and %d", settings.WindowSize, settings.TrainWorkers)
				}
				if settings.RESTTimeout != 30*time.Second {
					t.Errorf("expected RESTTimeout 30s, got %v", settings.RESTTimeout)
				}
				if settings.APIPort != 8181 {
					t.Errorf("expected API port 8181, got %d", settings.APIPort)
				}
				if settings.ZerologLevel() != zerolog.DebugLevel {
					t.Errorf("expected debug level, got %v", settings.ZerologLevel())
				}
				names := settings.AthleteNames()
				if len(names) != 2 || names[0] != "Nikola Jokic" || names[1] != "Stephen Curry" {
					t.Errorf("unexpected athletes %v", names)
				}
			},
		},
		{
			name:    "window size too large",
			envVars: map[string]string{"WINDOW_SIZE": "83"},
			wantErr: true,
		},
		{
			name:    "window size zero",
			envVars: map[string]string{"WINDOW_SIZE": "0"},
			wantErr: true,
		},
		{
			name:    "ports collide",
			envVars: map[string]string{"API_PORT": "9090", "METRICS_PORT": "9090"},
			wantErr: true,
		},
		{
			name:    "non numeric athlete id",
			envVars: map[string]string{"ATHLETES": "Someone=abc"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			settings, err := Load()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	configData := `
paths:
  history: ./hist
  models: ./mdl
feed:
  season: "2024"
  restTimeout: 5s
training:
  windowSize: 30
  workers: 2
ratings:
  default: 112
  teams:
    2: 106.5
system:
  apiPort: 8088
  metricsPort: 9099
  logLevel: warn
athletes:
  Jayson Tatum: "4065648"
`
	if err := os.WriteFile(configPath, []byte(configData), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("CONFIG_FILE", configPath)
	t.Setenv("WINDOW_SIZE", "20") // env wins over the file

	settings, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if settings.HistoryPath != "./hist" || settings.ModelsPath != "./mdl" {
		t.Errorf("unexpected paths %s, %s", settings.HistoryPath, settings.ModelsPath)
	}
	if settings.WindowSize != 20 {
		t.Errorf("expected env override window 20, got %d", settings.WindowSize)
	}
	if settings.TrainWorkers != 2 {
		t.Errorf("expected 2 workers, got %d", settings.TrainWorkers)
	}
	if settings.Season != "2024" {
		t.Errorf("expected season 2024, got %s", settings.Season)
	}
	if settings.RESTTimeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", settings.RESTTimeout)
	}
	if settings.DefaultRating != 112 {
		t.Errorf("expected default rating 112, got %f", settings.DefaultRating)
	}
	if settings.TeamRatingsSeed[2] != 106.5 {
		t.Errorf("expected seeded rating for team 2, got %v", settings.TeamRatingsSeed)
	}
	if settings.FeedBaseURL == "" || settings.TeamsURL == "" {
		t.Error("expected feed URLs to fall back to defaults")
	}
	if settings.ZerologLevel() != zerolog.WarnLevel {
		t.Errorf("expected warn level, got %v", settings.ZerologLevel())
	}
	if id := settings.Athletes["Jayson Tatum"]; id != "4065648" || len(settings.Athletes) != 1 {
		t.Errorf("unexpected athletes %v", settings.Athletes)
	}
}

func TestLoadFromYAML_Errors(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	t.Setenv("CONFIG_FILE", filepath.Join(dir, "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("paths: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", bad)
	if _, err := Load(); err == nil {
		t.Error("expected error for malformed config file")
	}
}

func TestLoad_DotEnv(t *testing.T) {
	isolateEnv(t)
	// godotenv does not override variables that are present, even empty ones.
	os.Unsetenv("SEASON")
	t.Cleanup(func() { os.Unsetenv("SEASON") })

	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("SEASON=2023\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOTENV_FILE", envFile)

	settings, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if settings.Season != "2023" {
		t.Errorf("expected season from dotenv file, got %s", settings.Season)
	}
}
