package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LoadConfig reads an optional .env file, then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}
	return Parse()
}

// Parse builds a Config from the current environment without touching .env.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DiscordToken == "" {
		return ErrConfig("DISCORD_TOKEN required")
	}
	c.SearchSource = strings.ToLower(strings.TrimSpace(c.SearchSource))
	switch c.SearchSource {
	case SearchSourceYouTube, SearchSourceMusic:
	default:
		return ErrConfig("SEARCH_SOURCE must be youtube or music")
	}
	if c.SearchResults <= 0 {
		c.SearchResults = 10
	}
	if c.ExtractWorkers <= 0 {
		c.ExtractWorkers = 1
	}
	if c.QueueCapacity <= 0 {
		return ErrConfig("QUEUE_CAPACITY must be positive")
	}
	if c.ProgressInterval <= 0 {
		return ErrConfig("PROGRESS_INTERVAL must be positive")
	}
	return nil
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
