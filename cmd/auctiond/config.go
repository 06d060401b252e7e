package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// config is the daemon's environment-sourced configuration.
type config struct {
	DatabaseURL     string        `env:"DATABASE_URL,required,notEmpty"`
	ListenAddr      string        `env:"LISTEN_ADDR" envDefault:":8080"`
	MonitorInterval time.Duration `env:"MONITOR_INTERVAL" envDefault:"1s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ApplySchema     bool          `env:"APPLY_SCHEMA" envDefault:"false"`
}

// loadConfig parses the environment and applies sanity bounds.
func loadConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, err
	}
	if cfg.MonitorInterval < 100*time.Millisecond {
		return config{}, fmt.Errorf("MONITOR_INTERVAL %s below 100ms floor", cfg.MonitorInterval)
	}
	return cfg, nil
}
