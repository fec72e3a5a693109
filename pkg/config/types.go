package config

import (
	"runtime"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

// Config represents the process configuration of racesim
type Config struct {
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// DBPath points at the SQLite file holding the historical tables.
	DBPath string `koanf:"db_path"`

	Season      int    `koanf:"season"`
	Location    string `koanf:"location"`
	Simulations int    `koanf:"simulations"`
	Workers     int    `koanf:"workers"`
	Seed        int64  `koanf:"seed"`
	TestMode    bool   `koanf:"test_mode"`

	// StrategiesPath is an optional YAML file of per-driver strategies.
	StrategiesPath string `koanf:"strategies_path"`

	HTTPAddr string `koanf:"http_addr"`
	GRPCAddr string `koanf:"grpc_addr"`

	// ExcludedLocations are left out of lap-time model training (wet races).
	ExcludedLocations []string `koanf:"excluded_locations"`
}

// Default returns a Config populated with defaults
func Default() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		DBPath:            "f1sim.db",
		Simulations:       100,
		Workers:           runtime.NumCPU(),
		HTTPAddr:          ":8080",
		GRPCAddr:          ":50051",
		ExcludedLocations: []string{"Budapest", "SaoPaulo"},
	}
}

// StrategyFile is the YAML document holding named driver strategies
type StrategyFile struct {
	Strategies map[string]models.Strategy `yaml:"strategies"`
}
