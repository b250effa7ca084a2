package common

// Tracked statistics
const (
	StatPoints    = "PTS"
	StatAssists   = "AST"
	StatRebounds  = "REB"
	StatTurnovers = "TO"
	StatBlocks    = "BLK"
)

// PredictionStats is the order in which predictions are assembled and reported.
var PredictionStats = []string{StatPoints, StatAssists, StatRebounds, StatTurnovers, StatBlocks}

// IsTrackedStat reports whether name is one of the statistics a model can be trained for.
func IsTrackedStat(name string) bool {
	switch name {
	case StatPoints, StatAssists, StatRebounds, StatBlocks, StatTurnovers:
		return true
	}
	return false
}

// Environment variable keys
const (
	EnvConfigFile    = "CONFIG_FILE"
	EnvHistoryPath   = "HISTORY_PATH"
	EnvModelsPath    = "MODELS_PATH"
	EnvDataPath      = "DATA_PATH"
	EnvWindowSize    = "WINDOW_SIZE"
	EnvTrainWorkers  = "TRAIN_WORKERS"
	EnvFeedBaseURL   = "FEED_BASE_URL"
	EnvTeamsURL      = "TEAMS_URL"
	EnvSeason        = "SEASON"
	EnvRESTTimeout   = "REST_TIMEOUT"
	EnvMetricsPort   = "METRICS_PORT"
	EnvAPIPort       = "API_PORT"
	EnvLogLevel      = "LOG_LEVEL"
	EnvAthletes      = "ATHLETES"
	EnvDefaultRating = "DEFAULT_DEFENSIVE_RATING"
	EnvDotEnvFile    = "DOTENV_FILE"
)

// Configuration defaults
const (
	DefaultHistoryPath     = "player_data"
	DefaultModelsPath      = "models"
	DefaultDataPath        = "data"
	DefaultWindowSize      = 25
	DefaultTrainWorkers    = 4
	DefaultFeedBaseURL     = "https://site.web.api.espn.com/apis/common/v3/sports/basketball/nba"
	DefaultTeamsURL        = "https://site.api.espn.com/apis/site/v2/sports/basketball/nba/teams"
	DefaultSeason          = "2025"
	DefaultMetricsPort     = 9090
	DefaultAPIPort         = 8080
	DefaultLogLevel        = "info"
	DefaultDefensiveRating = 110.0
)

// Model constants. These are fixed so training runs are reproducible.
const (
	ModelSeed       = 42
	ModelEstimators = 100
	TestSplitRatio  = 0.2

	// MaxRegularSeasonTeamID is the highest opponent id of a recognized team.
	// Anything above marks an exhibition or placeholder entry.
	MaxRegularSeasonTeamID = 30
)

// Canonical synthetic input used to sanity-check every model after fit and after reload.
const (
	CanonicalMinutes    = 30.0
	CanonicalOpponentID = 1.0
	CanonicalBackToBack = 0.0
)

// CanonicalInput returns the canonical feature vector in training column order.
func CanonicalInput() []float64 {
	return []float64{CanonicalMinutes, CanonicalOpponentID, CanonicalBackToBack}
}

// Validation constants
const (
	MinWindowSize   = 1
	MaxWindowSize   = 82
	MinPort         = 1024
	MaxPort         = 65535
	MaxTrainWorkers = 64
)
