package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the explora configuration file (~/.config/explora/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	// Pipeline
	Dimensions *int64 `yaml:"dimensions"`
	Heads      *int64 `yaml:"heads"`
	Seed       *int64 `yaml:"seed"`
	TopN       *int64 `yaml:"top_n"`
	MaxTokens  *int64 `yaml:"max_tokens"`

	// Sampling defaults
	Strategy    string   `yaml:"strategy"`
	Temperature *float64 `yaml:"temperature"`
	TopK        *int64   `yaml:"top_k"`
	SampleSeed  *int64   `yaml:"sample_seed"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress    string `yaml:"server_address"`
	UsagePostgresDSN string `yaml:"usage_postgres_dsn"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "explora", "config.yaml")
}

// loadConfig reads the config file at path, or the default location when
// path is empty. A missing default file yields a zero Config; a missing
// explicit file is an error.
func loadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = configPath()
		if path == "" {
			return Config{}, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyLoggingConfig applies config file logging defaults when the
// corresponding flag was not set.
func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyPipelineConfig applies config file defaults to the pipeline flags.
func applyPipelineConfig(c *cli.Command, cfg Config) {
	setInt(c, cfg.Dimensions, &dimensions, "dimensions")
	setInt(c, cfg.Heads, &heads, "heads")
	setInt(c, cfg.Seed, &seed, "seed")
	setInt(c, cfg.TopN, &topN, "top-n")
	setInt(c, cfg.MaxTokens, &maxTokens, "max-tokens")
}

// applySamplingConfig applies config file defaults to the sampling flags.
func applySamplingConfig(c *cli.Command, cfg Config) {
	if cfg.Strategy != "" && !c.IsSet("strategy") {
		strategy = cfg.Strategy
	}
	if cfg.Temperature != nil && !c.IsSet("temp") {
		temperature = *cfg.Temperature
	}
	setInt(c, cfg.TopK, &topK, "top-k")
	setInt(c, cfg.SampleSeed, &sampleSeed, "sample-seed")
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr, usageDSN *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.UsagePostgresDSN != "" && !c.IsSet("usage-dsn") {
		*usageDSN = cfg.UsagePostgresDSN
	}
}

func setInt(c *cli.Command, v *int64, dst *int64, flag string) {
	if v != nil && !c.IsSet(flag) {
		*dst = *v
	}
}
