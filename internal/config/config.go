package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level configuration for Wattmap.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Data    DataConfig    `koanf:"data"`
	Sources SourcesConfig `koanf:"sources"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
	Mode string `koanf:"mode"` // "debug" or "release"
}

// DataConfig locates the layer files produced by the pipeline.
type DataConfig struct {
	Dir string `koanf:"dir"`
}

// SourcesConfig holds the raw input file paths the pipelines read.
type SourcesConfig struct {
	VehicleRegistrations string `koanf:"vehicle_registrations"`
	GasConnections       string `koanf:"gas_connections"`
	EnergyByFuel         string `koanf:"energy_by_fuel"`
	Generation           string `koanf:"generation"`
	GenerationPOC        string `koanf:"generation_poc"`
}

// MetricsConfig holds settings for the metric stage.
type MetricsConfig struct {
	// RulesDir holds one YAML rule per file. Empty means the built-in
	// metric set.
	RulesDir string `koanf:"rules_dir"`
}

// Addr is the listen address derived from host and port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load loads the configuration from the given file path and environment variables.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"server.port": 8080,
		"server.host": "0.0.0.0",
		"server.mode": "release",

		"data.dir": "./data",

		"sources.vehicle_registrations": filepath.Join("sources", "vehicle_registrations.csv"),
		"sources.gas_connections":       filepath.Join("sources", "gas_connections.xlsx"),
		"sources.energy_by_fuel":        filepath.Join("sources", "energy_by_fuel.csv"),
		"sources.generation":            filepath.Join("sources", "generation.csv"),
		"sources.generation_poc":        filepath.Join("sources", "poc_concordance.csv"),

		"metrics.rules_dir": "",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// 2. Load from file
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// 3. Load from Environment Variables
	// WATTMAP_SERVER__PORT=9090 overrides server.port
	if err := k.Load(env.Provider("WATTMAP_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "WATTMAP_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
