// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Library   LibraryConfig   `yaml:"library"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Storage   StorageConfig   `yaml:"storage"`
	Downloads DownloadsConfig `yaml:"downloads"`
	Record    RecordConfig    `yaml:"record"`
}

// ServerConfig represents the remote-control API server configuration.
type ServerConfig struct {
	Addr           string   `yaml:"addr" default:":8090"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LibraryConfig represents the music catalog configuration.
type LibraryConfig struct {
	// DataURL points at the catalog JSON listing every track.
	DataURL string `yaml:"data_url" validate:"required,url"`
	// AudioBaseURL is joined with a track id to form its remote source.
	AudioBaseURL string `yaml:"audio_base_url" validate:"required,url"`
	// FetchTimeoutSec bounds catalog and audio metadata requests.
	FetchTimeoutSec int `yaml:"fetch_timeout_sec" default:"15" validate:"gt=0,lte=120"`
	// OfflineOnly restricts playback to tracks in the offline cache.
	OfflineOnly bool `yaml:"offline_only"`
}

// PlaybackConfig represents player facade policy settings.
type PlaybackConfig struct {
	LoadDebounceMs      int `yaml:"load_debounce_ms" default:"300" validate:"gte=0,lte=5000"`
	RestartThresholdSec int `yaml:"restart_threshold_sec" default:"3" validate:"gte=0,lte=60"`
}

// StorageConfig represents local data locations.
type StorageConfig struct {
	// DataDir holds the saved user data file and the offline cache.
	DataDir string `yaml:"data_dir" default:"data"`
}

// DownloadsConfig represents offline download settings.
type DownloadsConfig struct {
	Concurrency int `yaml:"concurrency" default:"5" validate:"gt=0,lte=32"`
}

// RecordConfig represents the link-shortener record service.
type RecordConfig struct {
	BaseURL     string `yaml:"base_url" validate:"omitempty,url"`
	HeaderKey   string `yaml:"header_key"`
	HeaderValue string `yaml:"header_value"`
	TimeoutSec  int    `yaml:"timeout_sec" default:"3" validate:"gt=0,lte=30"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for secrets.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("MAPLEPOD_RECORD_HEADER_KEY"); v != "" {
		c.Record.HeaderKey = v
	}
	if v := os.Getenv("MAPLEPOD_RECORD_HEADER_VALUE"); v != "" {
		c.Record.HeaderValue = v
	}
	if v := os.Getenv("MAPLEPOD_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// LoadDebounce returns the facade load debounce as a duration.
func (c *Config) LoadDebounce() time.Duration {
	return time.Duration(c.Playback.LoadDebounceMs) * time.Millisecond
}

// RestartThreshold returns the previous-restarts-track threshold.
func (c *Config) RestartThreshold() time.Duration {
	return time.Duration(c.Playback.RestartThresholdSec) * time.Second
}

// FetchTimeout returns the catalog fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Library.FetchTimeoutSec) * time.Second
}

// RecordTimeout returns the record service call timeout.
func (c *Config) RecordTimeout() time.Duration {
	return time.Duration(c.Record.TimeoutSec) * time.Second
}
