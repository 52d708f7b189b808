// Package config loads wsop configuration.
//
// Values come from (highest precedence first) command-line flags bound by
// the CLI, WSOP_* environment variables, the workshop.yaml config file, and
// the defaults registered here. Remote git settings are not part of this
// file; they live in the datastore next to the data they back up.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Keys
const (
	KeyDB             = "db"
	KeyVault          = "vault"
	KeyLogFile        = "log.file"
	KeyLogMaxSizeMB   = "log.max_size_mb"
	KeyLogMaxBackups  = "log.max_backups"
	KeyLogMaxAgeDays  = "log.max_age_days"
	KeyWatchDebounce  = "watch.debounce"
	KeyWatchRetries   = "watch.max_retries"
	KeyWatchRetryWait = "watch.retry_wait"
	KeyFeedPort       = "feed.port"
)

// EnvPrefix is prepended to environment overrides: WSOP_DB, WSOP_LOG_FILE...
const EnvPrefix = "WSOP"

// Config is the resolved configuration.
type Config struct {
	DB    string
	Vault string
	Log   LogConfig
	Watch WatchConfig
	Feed  FeedConfig

	// File is the config file that was read, empty if none
	File string
}

// LogConfig configures the log sink
type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// WatchConfig configures auto sync
type WatchConfig struct {
	Debounce   time.Duration
	MaxRetries int
	RetryWait  time.Duration
}

// FeedConfig configures the status feed server
type FeedConfig struct {
	// Port is the listen port; 0 disables the feed
	Port int
}

// New returns a viper instance with defaults and env binding applied.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyDB, defaultDBPath())
	v.SetDefault(KeyVault, "")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLogMaxSizeMB, 10)
	v.SetDefault(KeyLogMaxBackups, 3)
	v.SetDefault(KeyLogMaxAgeDays, 28)
	v.SetDefault(KeyWatchDebounce, "2s")
	v.SetDefault(KeyWatchRetries, 3)
	v.SetDefault(KeyWatchRetryWait, "5s")
	v.SetDefault(KeyFeedPort, 0)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the config file into v. An explicit path must exist; otherwise
// workshop.yaml is looked up in the working directory and the user config
// dir, and a missing file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("workshop")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "wsop"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		DB:    v.GetString(KeyDB),
		Vault: v.GetString(KeyVault),
		Log: LogConfig{
			File:       v.GetString(KeyLogFile),
			MaxSizeMB:  v.GetInt(KeyLogMaxSizeMB),
			MaxBackups: v.GetInt(KeyLogMaxBackups),
			MaxAgeDays: v.GetInt(KeyLogMaxAgeDays),
		},
		Watch: WatchConfig{
			Debounce:   v.GetDuration(KeyWatchDebounce),
			MaxRetries: v.GetInt(KeyWatchRetries),
			RetryWait:  v.GetDuration(KeyWatchRetryWait),
		},
		Feed: FeedConfig{
			Port: v.GetInt(KeyFeedPort),
		},
		File: v.ConfigFileUsed(),
	}

	if cfg.DB == "" {
		return nil, fmt.Errorf("config: %s must not be empty", KeyDB)
	}
	if cfg.Watch.Debounce <= 0 {
		return nil, fmt.Errorf("config: %s must be positive, got %s", KeyWatchDebounce, cfg.Watch.Debounce)
	}
	if cfg.Watch.MaxRetries < 0 {
		return nil, fmt.Errorf("config: %s must not be negative", KeyWatchRetries)
	}

	return cfg, nil
}

func defaultDBPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "wsop", "workshop.db")
	}
	return "workshop.db"
}
