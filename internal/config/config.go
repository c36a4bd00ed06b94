// Package config loads and validates application configuration.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/spf13/viper"
)

// SyncConfig holds the reconciliation tunables. The tolerance constants
// are policy, not contract: observer-triggered sync uses the tight
// window, historical import the loose one.
type SyncConfig struct {
	ObserverWindow     time.Duration `mapstructure:"observerWindow" validate:"required"`
	ObserverValueDelta float64       `mapstructure:"observerValueDelta" validate:"required"`
	ImportWindow       time.Duration `mapstructure:"importWindow" validate:"required"`
	ImportValueDelta   float64       `mapstructure:"importValueDelta" validate:"required"`
	SuppressionDelay   time.Duration `mapstructure:"suppressionDelay" validate:"required"`
	Debounce           time.Duration `mapstructure:"debounce" validate:"required"`
	ImportLookbackDays int           `mapstructure:"importLookbackDays" validate:"required|min:1"`
	ReconcileDays      int           `mapstructure:"reconcileDays" validate:"required|min:1"`
}

// GoalsConfig holds the per-tracker daily goal thresholds in canonical
// units (milliliters, hours).
type GoalsConfig struct {
	HydrationML float64 `mapstructure:"hydrationMl" validate:"min:0"`
	SleepHours  float64 `mapstructure:"sleepHours" validate:"min:0"`
}

// StorageConfig configures the durable key-value store.
type StorageConfig struct {
	Path         string `mapstructure:"path" validate:"required"`
	MaxBlobBytes int    `mapstructure:"maxBlobBytes" validate:"required|min:1024"`
	Compress     bool   `mapstructure:"compress"`
}

// StatsConfig configures the streak/statistics calculator.
type StatsConfig struct {
	CacheBytes int    `mapstructure:"cacheBytes" validate:"min:0"`
	CacheTTL   int    `mapstructure:"cacheTtlSeconds" validate:"min:0"`
	Timezone   string `mapstructure:"timezone"`
}

// LoggerConfig configures zerolog output.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"required|in:trace,debug,info,warn,error"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"maxSizeMb" validate:"min:1"`
	MaxBackups int    `mapstructure:"maxBackups" validate:"min:0"`
}

// RemoteConfig selects and configures the external health store adapter.
// Mode "file" watches a local sample directory; mode "api" talks to an
// HTTP provider with client-credentials auth.
type RemoteConfig struct {
	Mode         string `mapstructure:"mode" validate:"required|in:file,api"`
	Dir          string `mapstructure:"dir"`
	BaseURL      string `mapstructure:"baseUrl"`
	TokenURL     string `mapstructure:"tokenUrl"`
	ClientID     string `mapstructure:"clientId"`
	ClientSecret string `mapstructure:"clientSecret"`
}

// Config is the root configuration object.
type Config struct {
	Sync    SyncConfig    `mapstructure:"sync"`
	Goals   GoalsConfig   `mapstructure:"goals"`
	Storage StorageConfig `mapstructure:"storage"`
	Stats   StatsConfig   `mapstructure:"stats"`
	Logger  LoggerConfig  `mapstructure:"logger"`
	Remote  RemoteConfig  `mapstructure:"remote"`
}

// Load reads the config file at path (yaml), applies env overrides and
// defaults, and validates the result. A missing file is not an error;
// defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	filename := filepath.Base(path)
	v.AddConfigPath(filepath.Dir(path))
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.SetConfigType("yaml")

	v.BindEnv("logger.level", "HEALTHSYNC_LOG_LEVEL")
	v.BindEnv("storage.path", "HEALTHSYNC_STORAGE_PATH")
	v.BindEnv("remote.mode", "HEALTHSYNC_REMOTE_MODE")
	v.BindEnv("remote.dir", "HEALTHSYNC_REMOTE_DIR")
	v.BindEnv("remote.baseUrl", "HEALTHSYNC_REMOTE_BASE_URL")
	v.BindEnv("remote.clientId", "HEALTHSYNC_CLIENT_ID")
	v.BindEnv("remote.clientSecret", "HEALTHSYNC_CLIENT_SECRET")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	if err := validateConfig(&conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sync.observerWindow", 90*time.Second)
	v.SetDefault("sync.observerValueDelta", 0.1)
	v.SetDefault("sync.importWindow", 10*time.Minute)
	v.SetDefault("sync.importValueDelta", 0.5)
	v.SetDefault("sync.suppressionDelay", 3*time.Second)
	v.SetDefault("sync.debounce", 2*time.Second)
	v.SetDefault("sync.importLookbackDays", 365)
	v.SetDefault("sync.reconcileDays", 30)

	v.SetDefault("goals.hydrationMl", 1893.0) // 64 oz
	v.SetDefault("goals.sleepHours", 7.0)

	v.SetDefault("storage.path", "healthsync.db")
	v.SetDefault("storage.maxBlobBytes", 1<<20)
	v.SetDefault("storage.compress", true)

	v.SetDefault("stats.cacheBytes", 1<<20)
	v.SetDefault("stats.cacheTtlSeconds", 300)
	v.SetDefault("stats.timezone", "Local")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.maxSizeMb", 10)
	v.SetDefault("logger.maxBackups", 3)

	v.SetDefault("remote.mode", "file")
	v.SetDefault("remote.dir", "healthstore")
}

func validateConfig(conf *Config) error {
	val := validate.Struct(conf)
	if !val.Validate() {
		return fmt.Errorf("invalid config: %s", val.Errors.One())
	}
	if conf.Remote.Mode == "api" && conf.Remote.BaseURL == "" {
		return fmt.Errorf("invalid config: remote.baseUrl is required in api mode")
	}
	return nil
}

// Location resolves the configured stats timezone, falling back to the
// process-local zone on any parse failure.
func (c *Config) Location() *time.Location {
	if c.Stats.Timezone == "" || c.Stats.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Stats.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
