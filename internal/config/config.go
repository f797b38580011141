package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Simulation SimulationConfig `toml:"simulation"`
	Scenario   ScenarioConfig   `toml:"scenario"`
	Scripts    ScriptsConfig    `toml:"scripts"`
	Record     RecordConfig     `toml:"record"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Logging    LoggingConfig    `toml:"logging"`
}

type SimulationConfig struct {
	Periods uint64 `toml:"periods"`
	Workers int    `toml:"workers"` // 0 = one per CPU
	Seed    uint64 `toml:"seed"`    // 0 = OS entropy (ERIS_RNG_SEED overrides)
}

type ScenarioConfig struct {
	Path string `toml:"path"`
}

type ScriptsConfig struct {
	Dir string `toml:"dir"`
}

type RecordConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Periods: 100,
			Workers: 0,
			Seed:    0,
		},
		Scenario: ScenarioConfig{
			Path: "scenarios/exchange.yaml",
		},
		Scripts: ScriptsConfig{
			Dir: "scripts",
		},
		Record: RecordConfig{
			Enabled: false,
			Path:    "eris.db",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9810",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
