package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"hoopcast/internal/common"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	HistoryPath     string
	ModelsPath      string
	DataPath        string
	WindowSize      int
	TrainWorkers    int
	FeedBaseURL     string
	TeamsURL        string
	Season          string
	RESTTimeout     time.Duration
	MetricsPort     int
	APIPort         int
	LogLevel        string
	DefaultRating   float64
	Athletes        map[string]string // athlete name -> feed athlete id
	TeamRatingsSeed map[int]float64   // optional ratings applied before collection
}

type ConfigFile struct {
	Paths struct {
		History string `yaml:"history"`
		Models  string `yaml:"models"`
		Data    string `yaml:"data"`
	} `yaml:"paths"`

	Feed struct {
		BaseURL     string `yaml:"baseURL"`
		TeamsURL    string `yaml:"teamsURL"`
		Season      string `yaml:"season"`
		RESTTimeout string `yaml:"restTimeout"`
	} `yaml:"feed"`

	Training struct {
		WindowSize int `yaml:"windowSize"`
		Workers    int `yaml:"workers"`
	} `yaml:"training"`

	Ratings struct {
		Default float64         `yaml:"default"`
		Teams   map[int]float64 `yaml:"teams"`
	} `yaml:"ratings"`

	System struct {
		APIPort     int    `yaml:"apiPort"`
		MetricsPort int    `yaml:"metricsPort"`
		LogLevel    string `yaml:"logLevel"`
	} `yaml:"system"`

	Athletes map[string]string `yaml:"athletes"`
}

// Load reads an optional .env file, then CONFIG_FILE if set, otherwise the
// environment. Environment variables always win over file values.
func Load() (Settings, error) {
	loadDotEnv()

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

// loadDotEnv never overrides variables that are already set.
func loadDotEnv() {
	path := getEnvOrDefault(common.EnvDotEnvFile, ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		log.Warn().Err(err).Str("path", path).Msg("failed to load dotenv file")
	}
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	restTimeout, err := time.ParseDuration(config.Feed.RESTTimeout)
	if err != nil {
		restTimeout = 10 * time.Second
	}

	athletes := config.Athletes
	if len(athletes) == 0 {
		athletes = defaultAthletes()
	}

	settings := Settings{
		HistoryPath:     getEnvOrDefault(common.EnvHistoryPath, orString(config.Paths.History, common.DefaultHistoryPath)),
		ModelsPath:      getEnvOrDefault(common.EnvModelsPath, orString(config.Paths.Models, common.DefaultModelsPath)),
		DataPath:        getEnvOrDefault(common.EnvDataPath, config.Paths.Data),
		WindowSize:      getIntFromEnvOrConfig(common.EnvWindowSize, config.Training.WindowSize, common.DefaultWindowSize),
		TrainWorkers:    getIntFromEnvOrConfig(common.EnvTrainWorkers, config.Training.Workers, common.DefaultTrainWorkers),
		FeedBaseURL:     getEnvOrDefault(common.EnvFeedBaseURL, orString(config.Feed.BaseURL, common.DefaultFeedBaseURL)),
		TeamsURL:        getEnvOrDefault(common.EnvTeamsURL, orString(config.Feed.TeamsURL, common.DefaultTeamsURL)),
		Season:          getEnvOrDefault(common.EnvSeason, orString(config.Feed.Season, common.DefaultSeason)),
		RESTTimeout:     getDurationOrDefault(common.EnvRESTTimeout, restTimeout),
		MetricsPort:     getIntFromEnvOrConfig(common.EnvMetricsPort, config.System.MetricsPort, common.DefaultMetricsPort),
		APIPort:         getIntFromEnvOrConfig(common.EnvAPIPort, config.System.APIPort, common.DefaultAPIPort),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, orString(config.System.LogLevel, common.DefaultLogLevel)),
		DefaultRating:   getFloatFromEnvOrConfig(common.EnvDefaultRating, config.Ratings.Default, common.DefaultDefensiveRating),
		Athletes:        getAthletesFromEnvOrConfig(athletes),
		TeamRatingsSeed: config.Ratings.Teams,
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		HistoryPath:   getEnvOrDefault(common.EnvHistoryPath, common.DefaultHistoryPath),
		ModelsPath:    getEnvOrDefault(common.EnvModelsPath, common.DefaultModelsPath),
		DataPath:      os.Getenv(common.EnvDataPath), // optional
		WindowSize:    getIntOrDefault(common.EnvWindowSize, common.DefaultWindowSize),
		TrainWorkers:  getIntOrDefault(common.EnvTrainWorkers, common.DefaultTrainWorkers),
		FeedBaseURL:   getEnvOrDefault(common.EnvFeedBaseURL, common.DefaultFeedBaseURL),
		TeamsURL:      getEnvOrDefault(common.EnvTeamsURL, common.DefaultTeamsURL),
		Season:        getEnvOrDefault(common.EnvSeason, common.DefaultSeason),
		RESTTimeout:   getDurationOrDefault(common.EnvRESTTimeout, 10*time.Second),
		MetricsPort:   getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		APIPort:       getIntOrDefault(common.EnvAPIPort, common.DefaultAPIPort),
		LogLevel:      getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		DefaultRating: getFloatOrDefault(common.EnvDefaultRating, common.DefaultDefensiveRating),
		Athletes:      getAthletesFromEnvOrConfig(defaultAthletes()),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// AthleteNames returns the tracked athletes sorted by name.
func (s *Settings) AthleteNames() []string {
	names := make([]string, 0, len(s.Athletes))
	for name := range s.Athletes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ZerologLevel returns the configured level, or info if it does not parse.
func (s *Settings) ZerologLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(s.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func defaultAthletes() map[string]string {
	out := make(map[string]string, len(common.DefaultAthletes))
	for name, id := range common.DefaultAthletes {
		out[name] = id
	}
	return out
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// getAthletesFromEnvOrConfig parses ATHLETES as "Name=id,Name=id". Entries
// without an id are ignored.
func getAthletesFromEnvOrConfig(configAthletes map[string]string) map[string]string {
	env := os.Getenv(common.EnvAthletes)
	if env == "" {
		return configAthletes
	}

	athletes := make(map[string]string)
	for _, pair := range strings.Split(env, ",") {
		name, id, ok := strings.Cut(pair, "=")
		name, id = strings.TrimSpace(name), strings.TrimSpace(id)
		if !ok || name == "" || id == "" {
			continue
		}
		athletes[name] = id
	}
	return athletes
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	// Validate paths
	if settings.HistoryPath == "" {
		return fmt.Errorf("history path cannot be empty")
	}
	if settings.ModelsPath == "" {
		return fmt.Errorf("models path cannot be empty")
	}

	// Validate URLs
	if settings.FeedBaseURL == "" {
		return fmt.Errorf("feed base URL cannot be empty")
	}
	if settings.TeamsURL == "" {
		return fmt.Errorf("teams URL cannot be empty")
	}

	// Validate athletes
	if len(settings.Athletes) == 0 {
		return fmt.Errorf("at least one athlete must be tracked")
	}
	for name, id := range settings.Athletes {
		if strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("athlete name %q must not contain path separators", name)
		}
		if _, err := strconv.Atoi(id); err != nil {
			return fmt.Errorf("athlete %s: feed id must be numeric, got %q", name, id)
		}
	}

	// Validate time durations
	if settings.RESTTimeout < time.Second || settings.RESTTimeout > time.Minute {
		return fmt.Errorf("REST timeout must be between 1s and 1m, got %v", settings.RESTTimeout)
	}

	// Validate integer values
	if settings.WindowSize < common.MinWindowSize || settings.WindowSize > common.MaxWindowSize {
		return fmt.Errorf("window size must be between %d and %d, got %d", common.MinWindowSize, common.MaxWindowSize, settings.WindowSize)
	}
	if settings.TrainWorkers < 1 || settings.TrainWorkers > common.MaxTrainWorkers {
		return fmt.Errorf("train workers must be between 1 and %d, got %d", common.MaxTrainWorkers, settings.TrainWorkers)
	}
	if settings.MetricsPort < common.MinPort || settings.MetricsPort > common.MaxPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.MetricsPort)
	}
	if settings.APIPort < common.MinPort || settings.APIPort > common.MaxPort {
		return fmt.Errorf("API port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.APIPort)
	}
	if settings.APIPort == settings.MetricsPort {
		return fmt.Errorf("API port and metrics port must differ, both are %d", settings.APIPort)
	}

	// Validate float values
	if settings.DefaultRating < 80 || settings.DefaultRating > 140 {
		return fmt.Errorf("default defensive rating must be between 80 and 140, got %f", settings.DefaultRating)
	}
	for teamID, rating := range settings.TeamRatingsSeed {
		if teamID < 1 || teamID > common.MaxRegularSeasonTeamID {
			return fmt.Errorf("team rating for unknown team id %d", teamID)
		}
		if rating < 80 || rating > 140 {
			return fmt.Errorf("team %d: defensive rating must be between 80 and 140, got %f", teamID, rating)
		}
	}

	return nil
}
