// Package config loads server and simulation settings from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/tuning"
)

// Config holds every tunable the binaries read at startup.
type Config struct {
	// Simulation
	StartingCash      int64 `env:"BACKLOT_STARTING_CASH" envDefault:"600000"`
	StartingRep       int   `env:"BACKLOT_STARTING_REPUTATION" envDefault:"50"`
	StartYear         int   `env:"BACKLOT_START_YEAR" envDefault:"1950"`
	Seed              int64 `env:"BACKLOT_SEED" envDefault:"0"` // 0 = random
	TransactionLogCap int   `env:"BACKLOT_TX_LOG_CAP" envDefault:"200"`
	MaxProductions    int   `env:"BACKLOT_MAX_PRODUCTIONS" envDefault:"2"`

	// Server
	HTTPAddr     string        `env:"BACKLOT_HTTP_ADDR" envDefault:":8080"`
	TickInterval time.Duration `env:"BACKLOT_TICK_INTERVAL" envDefault:"30s"`
	AutoAdvance  bool          `env:"BACKLOT_AUTO_ADVANCE" envDefault:"false"`
	DBPath       string        `env:"BACKLOT_DB_PATH" envDefault:"data/backlot.db"`
	RedisAddr    string        `env:"BACKLOT_REDIS_ADDR"`
	RedisPass    string        `env:"BACKLOT_REDIS_PASSWORD"`
	RedisDB      int           `env:"BACKLOT_REDIS_DB" envDefault:"0"`
	ClientBuffer int           `env:"BACKLOT_WS_SEND_BUFFER"` // 0 = from the tuning profile
	Tuning       string        `env:"BACKLOT_TUNING_PROFILE" envDefault:"default"`

	// Logging
	LogLevel  string `env:"BACKLOT_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"BACKLOT_LOG_FORMAT" envDefault:"text"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects settings the simulation cannot run with.
func (c Config) Validate() error {
	if c.TransactionLogCap <= 0 {
		return fmt.Errorf("transaction log cap must be positive, got %d", c.TransactionLogCap)
	}
	if c.MaxProductions <= 0 {
		return fmt.Errorf("max productions must be positive, got %d", c.MaxProductions)
	}
	if c.StartingRep < 0 || c.StartingRep > 100 {
		return fmt.Errorf("starting reputation must be within 0-100, got %d", c.StartingRep)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.ClientBuffer < 0 {
		return fmt.Errorf("websocket send buffer must not be negative, got %d", c.ClientBuffer)
	}
	if _, err := tuning.ByName(c.Tuning); err != nil {
		return err
	}
	return nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
