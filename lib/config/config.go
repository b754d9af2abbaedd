// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the SOGS client
// daemon.
//
// Configuration is loaded from a single YAML file specified by:
//   - the SOGS_CONFIG environment variable, or
//   - the --config flag passed to the command
//
// There are no fallbacks or automatic discovery; this keeps the
// configuration deterministic and auditable. The only expansion
// performed is ${VAR} substitution in paths for portability.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opengroup-foundation/sogs/lib/ref"
)

// Config is the master configuration for the SOGS client daemon.
type Config struct {
	// StorePath is the directory for the local Pebble store.
	StorePath string `yaml:"store_path"`

	// IdentitySeedPath is the path of a file holding the hex-encoded
	// 32-byte Ed25519 identity seed.
	IdentitySeedPath string `yaml:"identity_seed_path"`

	// PollInterval is the delay between poll cycles per server
	// (Go duration string, e.g. "15s").
	PollInterval string `yaml:"poll_interval"`

	// MaxInactivityPeriod is the elapsed time since the last
	// successful poll beyond which the first poll of a session
	// resynchronizes from the recent-message tail instead of
	// requesting the full incremental backlog. Default "336h"
	// (14 days).
	MaxInactivityPeriod string `yaml:"max_inactivity_period"`

	// RequestTimeout bounds a single batch request round trip.
	RequestTimeout string `yaml:"request_timeout"`

	// MetricsListen is the address for the Prometheus /metrics
	// endpoint. Empty disables the endpoint.
	MetricsListen string `yaml:"metrics_listen"`

	// DirectMessages enables inbox/outbox polling on servers that
	// support blinded identities.
	DirectMessages bool `yaml:"direct_messages"`

	// Servers lists the community servers to poll.
	Servers []ServerConfig `yaml:"servers"`
}

// ServerConfig describes one community server.
type ServerConfig struct {
	// URL is the server base URL (e.g. "https://open.example.org").
	URL string `yaml:"url"`

	// PublicKey is the server's static public key, hex-encoded. May
	// be empty if the server is to be discovered via a join URL that
	// carries the key.
	PublicKey string `yaml:"public_key"`

	// Rooms lists the room tokens to join and poll on this server.
	Rooms []string `yaml:"rooms"`
}

// Default returns the default configuration. These defaults ensure
// all fields have sensible values before the config file is merged
// in — the file itself is still required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		StorePath:           filepath.Join(homeDir, ".cache", "sogs", "store"),
		PollInterval:        "15s",
		MaxInactivityPeriod: "336h",
		RequestTimeout:      "30s",
		DirectMessages:      true,
	}
}

// Load loads configuration from the SOGS_CONFIG environment variable.
func Load() (*Config, error) {
	configPath := os.Getenv("SOGS_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("SOGS_CONFIG environment variable not set; " +
			"set it to the path of your sogs.yaml config file, or use the --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging it
// over the defaults and expanding ${VAR} patterns in paths.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.StorePath = expandVars(cfg.StorePath)
	cfg.IdentitySeedPath = expandVars(cfg.IdentitySeedPath)

	return cfg, nil
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

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

	if c.StorePath == "" {
		errs = append(errs, fmt.Errorf("store_path is required"))
	}
	if c.IdentitySeedPath == "" {
		errs = append(errs, fmt.Errorf("identity_seed_path is required"))
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"poll_interval", c.PollInterval},
		{"max_inactivity_period", c.MaxInactivityPeriod},
		{"request_timeout", c.RequestTimeout},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s %q: %w", field.name, field.value, err))
		}
	}

	if len(c.Servers) == 0 {
		errs = append(errs, fmt.Errorf("at least one server is required"))
	}
	for i, server := range c.Servers {
		if _, err := ref.ParseServerURL(server.URL); err != nil {
			errs = append(errs, fmt.Errorf("servers[%d]: %w", i, err))
		}
		for _, room := range server.Rooms {
			if _, err := ref.ParseRoomToken(room); err != nil {
				errs = append(errs, fmt.Errorf("servers[%d]: %w", i, err))
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// PollIntervalDuration returns the parsed poll interval. Call
// Validate first; an unparseable value returns the default.
func (c *Config) PollIntervalDuration() time.Duration {
	return parseDurationOr(c.PollInterval, 15*time.Second)
}

// MaxInactivityDuration returns the parsed inactivity threshold.
func (c *Config) MaxInactivityDuration() time.Duration {
	return parseDurationOr(c.MaxInactivityPeriod, 14*24*time.Hour)
}

// RequestTimeoutDuration returns the parsed request timeout.
func (c *Config) RequestTimeoutDuration() time.Duration {
	return parseDurationOr(c.RequestTimeout, 30*time.Second)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
