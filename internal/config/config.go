package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all runtime settings for the trade engine.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Boost    BoostConfig    `toml:"boost"`
	Ranking  RankingConfig  `toml:"ranking"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            string        `toml:"port"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// DatabaseConfig contains storage settings.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// AuthConfig contains token issuance settings.
type AuthConfig struct {
	JWTSecret string        `toml:"jwt_secret"`
	TokenTTL  time.Duration `toml:"token_ttl"`
}

// BoostConfig bounds the staleness of cached boost scores.
type BoostConfig struct {
	CacheSize int           `toml:"cache_size"`
	CacheTTL  time.Duration `toml:"cache_ttl"`
}

// RankingConfig caps read-side projections.
type RankingConfig struct {
	PortfolioCap int `toml:"portfolio_cap"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "barterly.db",
		},
		Auth: AuthConfig{
			JWTSecret: "barterly-secret-key",
			TokenTTL:  24 * time.Hour,
		},
		Boost: BoostConfig{
			CacheSize: 1024,
			CacheTTL:  30 * time.Second,
		},
		Ranking: RankingConfig{
			PortfolioCap: 20,
		},
	}
}

// Load reads the TOML config at path, falling back to defaults when the file
// does not exist. Settings absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Port may be overridden by environment for container deployments
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}

	return cfg, nil
}
