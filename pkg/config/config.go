// Package config holds the server's runtime configuration: listen address,
// knowledge-pack directory, default simulation options, and log level.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/lattice-health/physioreason/pkg/model"
	"github.com/lattice-health/physioreason/pkg/validation"
)

// Config is the top-level server configuration.
type Config struct {
	Port              int
	PacksDir          string
	LogLevel          string
	DefaultOptions    model.SimulationOptions
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxRequestBodyKB  int
	WatchDebounce     time.Duration
}

// DefaultConfig returns the server's documented defaults.
func DefaultConfig() Config {
	return Config{
		Port:             8080,
		PacksDir:         "knowledge/packs",
		LogLevel:         "info",
		DefaultOptions:   model.DefaultSimulationOptions(),
		ReadTimeout:      15 * time.Second,
		WriteTimeout:     15 * time.Second,
		IdleTimeout:      60 * time.Second,
		MaxRequestBodyKB: 256,
		WatchDebounce:    500 * time.Millisecond,
	}
}

// FromEnv layers PHYSIO_* / LOG_LEVEL environment overrides onto the
// defaults. Malformed numeric overrides are reported as errors rather than
// silently ignored.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("PHYSIO_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: PHYSIO_PORT: %w", err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("PHYSIO_PACKS_DIR"); v != "" {
		cfg.PacksDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PHYSIO_MAX_HOPS"); v != "" {
		hops, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: PHYSIO_MAX_HOPS: %w", err)
		}
		cfg.DefaultOptions.MaxHops = hops
	}
	if v := os.Getenv("PHYSIO_CONFLICT_EPSILON"); v != "" {
		epsilon, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: PHYSIO_CONFLICT_EPSILON: %w", err)
		}
		cfg.DefaultOptions.ConflictEpsilon = epsilon
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration and returns every violation found.
func (c Config) Validate() error {
	v := validation.NewConfigValidator("Config")
	v.RangeInt("Port", c.Port, 1, 65535)
	v.Required("PacksDir", c.PacksDir)
	v.OneOf("LogLevel", c.LogLevel, []string{"debug", "info", "warn", "error"})
	v.RangeInt("DefaultOptions.MaxHops", c.DefaultOptions.MaxHops, 0, 100)
	v.Custom("DefaultOptions.MinConfidence", func() error {
		if c.DefaultOptions.MinConfidence < 0 || c.DefaultOptions.MinConfidence > 1 {
			return fmt.Errorf("must be within [0, 1], got %v", c.DefaultOptions.MinConfidence)
		}
		return nil
	})
	v.Custom("DefaultOptions.ConflictEpsilon", func() error {
		if c.DefaultOptions.ConflictEpsilon < 0 || c.DefaultOptions.ConflictEpsilon > 1 {
			return fmt.Errorf("must be within [0, 1], got %v", c.DefaultOptions.ConflictEpsilon)
		}
		return nil
	})
	v.Positive("MaxRequestBodyKB", c.MaxRequestBodyKB)
	v.RequiredDuration("ReadTimeout", c.ReadTimeout)
	v.RequiredDuration("WriteTimeout", c.WriteTimeout)
	v.RequiredDuration("IdleTimeout", c.IdleTimeout)
	return v.Validate()
}
