package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the layerstack configuration file
// (~/.config/layerstack/config.yaml). Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Seed        *uint64 `yaml:"seed"`
	Concurrency *int64  `yaml:"concurrency"`

	// Server
	ServerAddress string `yaml:"server_address"`
	StoreCapacity *int   `yaml:"store_capacity"`
}

const envConfigPath = "LAYERSTACK_CONFIG"

func configPath() string {
	if p := os.Getenv(envConfigPath); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "layerstack", "config.yaml")
}

// LoadConfig reads the config file. A missing file yields a zero Config.
func LoadConfig() (Config, error) {
	path := configPath()
	if path == "" {
		return Config{}, nil
	}
	return loadConfigFile(path)
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyModelConfig applies config file defaults to the model flags when the
// corresponding flag was not set. It reports whether a seed was chosen by
// flag or config; otherwise the definition's own seed is used.
func applyModelConfig(c *cli.Command, cfg Config) (seedSet bool) {
	if cfg.Concurrency != nil && !c.IsSet("concurrency") {
		concurrency = *cfg.Concurrency
	}
	if c.IsSet("seed") {
		return true
	}
	if cfg.Seed != nil {
		seed = *cfg.Seed
		return true
	}
	return false
}

func applyServeConfig(c *cli.Command, cfg Config, addr *string, storeCapacity *int64) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.StoreCapacity != nil && !c.IsSet("store-capacity") {
		*storeCapacity = int64(*cfg.StoreCapacity)
	}
}
