package main

import (
	"fmt"
	"os"

	"epsonconf/common/config"
)

// ConfigFileName is looked up in the platform search paths when --config is
// not given.
const ConfigFileName = "epsonconf.toml"

// Config is the CLI configuration file.
type Config struct {
	SNMP        config.SNMPConfig     `toml:"snmp" yaml:"snmp"`
	Logging     config.LoggingConfig  `toml:"logging" yaml:"logging"`
	Database    config.DatabaseConfig `toml:"database" yaml:"database"`
	Registry    config.RegistryConfig `toml:"registry" yaml:"registry"`
	DryRun      bool                  `toml:"dry_run" yaml:"dry_run"`
	ForceDryRun bool                  `toml:"force_dry_run" yaml:"force_dry_run"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		SNMP: config.SNMPConfig{
			Community: "public",
			Version:   "1",
			Port:      161,
			TimeoutMS: 5000,
			Retries:   1,
		},
		Logging: config.LoggingConfig{
			Level: "info",
		},
		Database: config.DatabaseConfig{
			Path: "", // platform data directory
		},
	}
}

// LoadConfig reads the configuration with environment overrides applied.
// An explicit path must exist; without one the search paths are tried and
// defaults are used if nothing is found. It returns the file actually read,
// or "" for defaults.
func LoadConfig(path string) (*Config, string, error) {
	cfg := DefaultConfig()

	if path == "" {
		if found, _, err := config.FindConfigFile(ConfigFileName); err == nil {
			path = found
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, "", fmt.Errorf("config file %s: %w", path, err)
	}

	if path != "" {
		if err := config.LoadFile(path, cfg); err != nil {
			return nil, "", err
		}
	}

	config.ApplySNMPEnvOverrides(&cfg.SNMP)
	config.ApplyLoggingEnvOverrides(&cfg.Logging)
	config.ApplyDatabaseEnvOverrides(&cfg.Database)
	if v, ok := config.EnvBool("EPSONCONF_DRY_RUN"); ok {
		cfg.DryRun = v
	}
	if v, ok := config.EnvBool("EPSONCONF_FORCE_DRY_RUN"); ok {
		cfg.ForceDryRun = v
	}
	return cfg, path, nil
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string) error {
	return config.WriteDefaultTOML(path, DefaultConfig())
}
