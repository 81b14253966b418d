// ABOUTME: Client configuration loaded from an optional YAML file with RUNWATCH_* env overrides.
// ABOUTME: Carries the server base URL and the reconciliation timing knobs.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults. The poll cadence and early-check delay are the engine's
// reference values.
const (
	DefaultServerURL       = "http://127.0.0.1:8787"
	DefaultPollInterval    = 2 * time.Second
	DefaultEarlyCheckDelay = 500 * time.Millisecond
	DefaultCallTimeout     = 10 * time.Second
)

// ErrInvalidDuration reports a duration field that failed to parse or was
// not positive.
var ErrInvalidDuration = errors.New("config: invalid duration")

// Config holds the resolved client configuration.
type Config struct {
	ServerURL       string        // workflow service base URL
	PollInterval    time.Duration // reconciliation poll cadence
	EarlyCheckDelay time.Duration // one-shot poll delay after attach
	CallTimeout     time.Duration // timeout for status/cancel/submit calls
}

// fileConfig is the YAML shape; durations are strings like "2s".
type fileConfig struct {
	ServerURL       string `yaml:"server_url"`
	PollInterval    string `yaml:"poll_interval"`
	EarlyCheckDelay string `yaml:"early_check_delay"`
	CallTimeout     string `yaml:"call_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ServerURL:       DefaultServerURL,
		PollInterval:    DefaultPollInterval,
		EarlyCheckDelay: DefaultEarlyCheckDelay,
		CallTimeout:     DefaultCallTimeout,
	}
}

// Load resolves configuration in precedence order: defaults, then the YAML
// file at path (skipped when path is empty), then RUNWATCH_* environment
// variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := applyFile(&cfg, fc); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.ServerURL == "" {
		return Config{}, errors.New("config: server_url must not be empty")
	}
	return cfg, nil
}

func applyFile(cfg *Config, fc fileConfig) error {
	if fc.ServerURL != "" {
		cfg.ServerURL = fc.ServerURL
	}
	for _, f := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"poll_interval", fc.PollInterval, &cfg.PollInterval},
		{"early_check_delay", fc.EarlyCheckDelay, &cfg.EarlyCheckDelay},
		{"call_timeout", fc.CallTimeout, &cfg.CallTimeout},
	} {
		if f.raw == "" {
			continue
		}
		d, err := parseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("RUNWATCH_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	for _, f := range []struct {
		name string
		dst  *time.Duration
	}{
		{"RUNWATCH_POLL_INTERVAL", &cfg.PollInterval},
		{"RUNWATCH_EARLY_CHECK_DELAY", &cfg.EarlyCheckDelay},
		{"RUNWATCH_CALL_TIMEOUT", &cfg.CallTimeout},
	} {
		v := os.Getenv(f.name)
		if v == "" {
			continue
		}
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return nil
}

func parseDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %q must be positive", ErrInvalidDuration, raw)
	}
	return d, nil
}
