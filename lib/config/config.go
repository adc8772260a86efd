// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for xfiles commands.
//
// Configuration is loaded from a single YAML file specified by:
//   - XFILES_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery; every run states
// exactly which file it used. String values may reference environment
// variables as ${VAR} or ${VAR:-default}, which keeps access tokens
// out of the file itself.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cryptopatrick/xfiles/lib/substrate"
	"github.com/cryptopatrick/xfiles/lib/xfs"
)

// Config is the full configuration for an xfiles command.
type Config struct {
	// Author is recorded on every commit published by this instance.
	Author string `yaml:"author"`

	// Index configures the local SQLite catalog.
	Index IndexConfig `yaml:"index"`

	// Substrate configures the remote substrate gateway.
	Substrate SubstrateConfig `yaml:"substrate"`

	// Engine configures write behavior.
	Engine EngineConfig `yaml:"engine"`

	// Retry configures the retry policy on substrate calls.
	Retry RetryConfig `yaml:"retry"`

	// Budget configures the shared substrate rate budget.
	Budget BudgetConfig `yaml:"budget"`
}

// IndexConfig configures the local catalog database.
type IndexConfig struct {
	// Path is the SQLite database file. Required.
	Path string `yaml:"path"`

	// PoolSize is the connection pool size. Zero takes the pool's
	// default.
	PoolSize int `yaml:"pool_size"`
}

// SubstrateConfig configures the remote adapter.
type SubstrateConfig struct {
	// BaseURL is the substrate gateway, e.g. "https://gateway.example".
	// Required.
	BaseURL string `yaml:"base_url"`

	// AccessToken is the bearer token for the gateway. Usually written
	// as ${XFILES_TOKEN} so the secret lives in the environment.
	AccessToken string `yaml:"access_token"`
}

// EngineConfig configures the commit engine.
type EngineConfig struct {
	// MaxPayloadSize is the substrate's per-post size limit in bytes.
	MaxPayloadSize int `yaml:"max_payload_size"`

	// Compress enables zstd compression of written content.
	Compress bool `yaml:"compress"`
}

// RetryConfig configures the retry policy. Zero values take the
// policy defaults.
type RetryConfig struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	InitialBackoff Duration `yaml:"initial_backoff"`
	MaxBackoff     Duration `yaml:"max_backoff"`
	Multiplier     float64  `yaml:"multiplier"`
}

// ToSubstrate converts to the retry wrapper's config type.
func (r RetryConfig) ToSubstrate() substrate.RetryConfig {
	return substrate.RetryConfig{
		MaxAttempts:    r.MaxAttempts,
		InitialBackoff: time.Duration(r.InitialBackoff),
		MaxBackoff:     time.Duration(r.MaxBackoff),
		Multiplier:     r.Multiplier,
	}
}

// BudgetConfig configures the shared rate budget.
type BudgetConfig struct {
	// Calls allowed per Window across every substrate call the engine
	// makes.
	Calls  int      `yaml:"calls"`
	Window Duration `yaml:"window"`
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "100ms" or "15m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration defaults applied underneath any
// loaded file.
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			Path: "${HOME}/.xfiles/catalog.db",
		},
		Engine: EngineConfig{
			MaxPayloadSize: xfs.DefaultMaxPayloadSize,
		},
		Budget: BudgetConfig{
			Calls:  xfs.DefaultBudgetCalls,
			Window: Duration(xfs.DefaultBudgetWindow),
		},
	}
}

// Load reads the file named by the XFILES_CONFIG environment variable.
func Load() (*Config, error) {
	configPath := os.Getenv("XFILES_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("XFILES_CONFIG environment variable not set; " +
			"set it to the path of your xfiles.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile reads and validates a configuration file, applying defaults
// and environment variable expansion.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} references in the
// string-valued fields. References do not nest.
func (c *Config) expandVariables() {
	c.Author = expandVars(c.Author)
	c.Index.Path = expandVars(c.Index.Path)
	c.Substrate.BaseURL = expandVars(c.Substrate.BaseURL)
	c.Substrate.AccessToken = expandVars(c.Substrate.AccessToken)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns against the
// environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Author == "" {
		errs = append(errs, fmt.Errorf("author is required"))
	}
	if c.Index.Path == "" {
		errs = append(errs, fmt.Errorf("index.path is required"))
	}
	if c.Engine.MaxPayloadSize <= 0 {
		errs = append(errs, fmt.Errorf("engine.max_payload_size must be positive"))
	}
	if c.Budget.Calls <= 0 {
		errs = append(errs, fmt.Errorf("budget.calls must be positive"))
	}
	if c.Budget.Window <= 0 {
		errs = append(errs, fmt.Errorf("budget.window must be positive"))
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must not be negative"))
	}

	return errors.Join(errs...)
}
