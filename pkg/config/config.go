package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"marquee/pkg/env"
	"marquee/pkg/logger"
)

// Update frequencies accepted for the periodic library refresh
const (
	FrequencyDay   = "day"
	FrequencyWeek  = "week"
	FrequencyMonth = "month"
	FrequencyNever = "never"
)

var validate = validator.New()

// Config holds the startup configuration assembled from the environment
type Config struct {
	DataDir                 string        `validate:"required"`
	BindIP                  string        `validate:"required"`
	Port                    int           `validate:"gte=1,lte=65535"`
	AuthEnabled             bool          `validate:"-"`
	Username                string        `validate:"required"`
	Password                string        `validate:"required"`
	JWTSecret               string        `validate:"-"`
	TMDBAPIKey              string        `validate:"-"`
	TMDBLanguage            string        `validate:"required"`
	TMDBRegion              string        `validate:"required"`
	UpdateFrequency         string        `validate:"oneof=day week month never"`
	OfflineMode             bool          `validate:"-"`
	MaxConcurrentActivities int           `validate:"gte=0"`
	ActivityQueueSize       int           `validate:"gte=0"`
	NotificationInterval    time.Duration `validate:"gt=0"`
}

var (
	subMutex    sync.Mutex
	subscribers []func()
)

// EnvFilePath returns the path to the .env file
func EnvFilePath() string {
	return env.GetString("MARQUEE_ENV_FILE", ".env")
}

// Load reads the .env file, assembles the configuration and validates it.
// A missing .env file is not an error; the process environment wins either way.
func Load() (*Config, error) {
	envPath := EnvFilePath()
	if err := godotenv.Load(envPath); err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Could not load %s: %v", envPath, err)
		}
	} else {
		logger.Debug("Environment variables loaded from %s", envPath)
	}

	cfg := &Config{
		DataDir:                 env.GetString("MARQUEE_DATA_DIR", "data"),
		BindIP:                  env.GetString("MARQUEE_IP", "0.0.0.0"),
		Port:                    env.GetInt("MARQUEE_PORT", 8082),
		AuthEnabled:             env.IsBool("MARQUEE_AUTH_ENABLED", true),
		Username:                env.GetString("MARQUEE_USERNAME", "admin"),
		Password:                env.GetString("MARQUEE_PASSWORD", "password"),
		JWTSecret:               env.GetString("MARQUEE_JWT_SECRET", ""),
		TMDBAPIKey:              env.GetString("TMDB_API_KEY", ""),
		TMDBLanguage:            env.GetString("TMDB_LANGUAGE", "en"),
		TMDBRegion:              env.GetString("TMDB_REGION", "US"),
		UpdateFrequency:         UpdateFrequency(),
		OfflineMode:             env.IsBool("OFFLINE_MODE", false),
		MaxConcurrentActivities: env.GetInt("MAX_CONCURRENT_ACTIVITIES", 0),
		ActivityQueueSize:       env.GetInt("ACTIVITY_QUEUE_SIZE", 64),
		NotificationInterval:    env.GetDuration("NOTIFICATION_CHECK_INTERVAL", 12*time.Hour),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	for _, dir := range []string{cfg.DataDir, cfg.PostersDir(), cfg.ExportsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return cfg, nil
}

// LibraryDBPath returns the location of the SQLite library database
func (c *Config) LibraryDBPath() string {
	return filepath.Join(c.DataDir, "marquee.db")
}

// StateDBPath returns the location of the bolt state database
func (c *Config) StateDBPath() string {
	return filepath.Join(c.DataDir, "state.db")
}

// PostersDir returns the directory holding downloaded artwork
func (c *Config) PostersDir() string {
	return filepath.Join(c.DataDir, "posters")
}

// ExportsDir returns the directory holding library export archives
func (c *Config) ExportsDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.BindIP, c.Port)
}

// UpdateFrequency returns the live refresh frequency from the environment
func UpdateFrequency() string {
	freq := env.GetString("UPDATE_FREQUENCY", FrequencyWeek)
	switch freq {
	case FrequencyDay, FrequencyWeek, FrequencyMonth, FrequencyNever:
		return freq
	}
	logger.Warn("Invalid UPDATE_FREQUENCY value '%s', defaulting to '%s'", freq, FrequencyWeek)
	return FrequencyWeek
}

// OfflineMode returns whether provider calls are currently disabled
func OfflineMode() bool {
	return env.IsBool("OFFLINE_MODE", false)
}

// NotificationInterval returns the live cadence of the watchlist check
func NotificationInterval() time.Duration {
	return env.GetDuration("NOTIFICATION_CHECK_INTERVAL", 12*time.Hour)
}

// Subscribe registers a callback invoked whenever the configuration is saved
func Subscribe(fn func()) {
	subMutex.Lock()
	defer subMutex.Unlock()
	subscribers = append(subscribers, fn)
}

func notifySubscribers() {
	subMutex.Lock()
	subs := make([]func(), len(subscribers))
	copy(subs, subscribers)
	subMutex.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Save persists updates to the .env file, applies them to the process
// environment and notifies subscribers
func Save(updates map[string]string) error {
	envPath := EnvFilePath()
	values, err := godotenv.Read(envPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read %s: %w", envPath, err)
		}
		values = make(map[string]string)
	}

	for key, value := range updates {
		values[key] = value
		env.SetEnvVar(key, value)
	}

	if err := godotenv.Write(values, envPath); err != nil {
		return fmt.Errorf("failed to write %s: %w", envPath, err)
	}

	logger.Info("Configuration updated (%d keys), notifying subscribers", len(updates))
	notifySubscribers()
	return nil
}

// Value represents a configuration value exposed over the API
type Value struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Category string `json:"category"`
	Secret   bool   `json:"secret,omitempty"`
}

var knownKeys = []Value{
	{Key: "MARQUEE_DATA_DIR", Category: "General"},
	{Key: "MARQUEE_IP", Category: "General"},
	{Key: "MARQUEE_PORT", Category: "General"},
	{Key: "MARQUEE_AUTH_ENABLED", Category: "Auth"},
	{Key: "MARQUEE_USERNAME", Category: "Auth"},
	{Key: "MARQUEE_PASSWORD", Category: "Auth", Secret: true},
	{Key: "MARQUEE_JWT_SECRET", Category: "Auth", Secret: true},
	{Key: "TMDB_API_KEY", Category: "Metadata", Secret: true},
	{Key: "TMDB_LANGUAGE", Category: "Metadata"},
	{Key: "TMDB_REGION", Category: "Metadata"},
	{Key: "UPDATE_FREQUENCY", Category: "Refresh"},
	{Key: "NOTIFICATION_CHECK_INTERVAL", Category: "Refresh"},
	{Key: "OFFLINE_MODE", Category: "Refresh"},
	{Key: "MAX_CONCURRENT_ACTIVITIES", Category: "Activities"},
	{Key: "ACTIVITY_QUEUE_SIZE", Category: "Activities"},
	{Key: "LOG_LEVEL", Category: "General"},
}

// KnownKey reports whether key is one of the editable settings
func KnownKey(key string) bool {
	for _, v := range knownKeys {
		if v.Key == key {
			return true
		}
	}
	return false
}

// Values returns the current configuration values with secrets masked
func Values() []Value {
	out := make([]Value, 0, len(knownKeys))
	for _, v := range knownKeys {
		current := env.GetString(v.Key, "")
		if v.Secret && current != "" {
			current = "********"
		}
		out = append(out, Value{Key: v.Key, Value: current, Category: v.Category, Secret: v.Secret})
	}
	return out
}
