package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	CDS     CDSConfig
	Fetch   FetchConfig
	Logging LogConfig
}

// CDSConfig holds Climate Data Store API configuration.
type CDSConfig struct {
	URL     string  `envconfig:"CDS_URL" default:"https://cds.climate.copernicus.eu/api"`
	Key     string  `envconfig:"CDS_KEY"`
	Timeout int     `envconfig:"CDS_TIMEOUT_SECONDS" default:"60"`
	Rate    float64 `envconfig:"CDS_REQUESTS_PER_SECOND" default:"1"`
}

// FetchConfig holds retrieval pipeline configuration.
type FetchConfig struct {
	MaxConcurrent int    `envconfig:"FETCH_MAX_CONCURRENT" default:"10"`
	ArchiveDir    string `envconfig:"FETCH_ARCHIVE_DIR" default:"./archive"`
	PollSeconds   int    `envconfig:"FETCH_POLL_SECONDS" default:"5"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		CDS: CDSConfig{
			URL:     "https://cds.climate.copernicus.eu/api",
			Timeout: 60,
			Rate:    1,
		},
		Fetch: FetchConfig{
			MaxConcurrent: 10,
			ArchiveDir:    "./archive",
			PollSeconds:   5,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
