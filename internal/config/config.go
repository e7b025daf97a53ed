package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// sqlitePrefix is accepted on DB_CONNECTION_STR so SQLAlchemy-style URLs keep working.
const sqlitePrefix = "sqlite:///"

type Config struct {
	Port           int
	APIToken       string
	LogDirectory   string
	CameraConfig   string
	CameraUser     string
	CameraPassword string
	AreaName       string
	AreaDesc       string
	DBConnection   string

	ModelPath       string
	ModelConfigPath string
	Device          string // cuda lub cpu
	BatchPrediction bool

	SaveImages      bool
	SaveDensityMaps bool
	PredictionsDir  string
	JPEGQuality     int
	SaveWorkers     int
	SaveQueueSize   int

	CycleInterval time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	HistorySize   int
}

func Load() *Config {
	saveImages := getEnvAsBool("SAVE_IMAGES", false)

	return &Config{
		Port:            getEnvAsInt("PORT", 8080),
		APIToken:        getEnv("API_TOKEN", ""),
		LogDirectory:    getEnv("LOG_DIR", filepath.Join(".", "logs")),
		CameraConfig:    getEnv("CAMERA_CONFIG", "camera_definitions.json"),
		CameraUser:      getEnv("CAMERA_USER", ""),
		CameraPassword:  getEnv("CAMERA_PASSWORD", ""),
		AreaName:        getEnv("AREA_NAME", "GLT"),
		AreaDesc:        getEnv("AREA_DESCRIPTION", "Gröna Lunds Tivoli"),
		DBConnection:    getEnv("DB_CONNECTION_STR", sqlitePrefix+"./database/predictions.db"),
		ModelPath:       getEnv("MODEL_PATH", filepath.Join(".", "models", "density.onnx")),
		ModelConfigPath: getEnv("MODEL_CONFIG_PATH", ""),
		Device:          strings.ToLower(getEnv("DEVICE", "cuda")),
		BatchPrediction: getEnvAsBool("BATCH_PREDICTION", false),
		SaveImages:      saveImages,
		SaveDensityMaps: getEnvAsBool("SAVE_DENSITY_MAPS", saveImages),
		PredictionsDir:  getEnv("PREDICTIONS_DIR", "predictions"),
		JPEGQuality:     getEnvAsInt("JPEG_QUALITY", 70),
		SaveWorkers:     getEnvAsInt("SAVE_WORKERS", 4),
		SaveQueueSize:   getEnvAsInt("SAVE_QUEUE_SIZE", 64),
		CycleInterval:   getEnvAsDuration("CYCLE_INTERVAL", 120*time.Second),
		MaxRetries:      getEnvAsInt("MAX_RETRIES", 5),
		RetryDelay:      getEnvAsDuration("RETRY_DELAY", 2*time.Second),
		HistorySize:     getEnvAsInt("HISTORY_SIZE", 100),
	}
}

// DatabasePath strips the optional sqlite:/// scheme from DBConnection.
func (c *Config) DatabasePath() string {
	return strings.TrimPrefix(c.DBConnection, sqlitePrefix)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s", "2m") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
