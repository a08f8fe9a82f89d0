package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
)

// EnvConfig names an explicit YAML settings file. Without it Load looks for
// config.yaml in the data directory and skips it when absent.
const EnvConfig = "EVENTFEED_CONFIG"

// fileConfig is the on-disk shape. Nil fields leave the default in place.
// The token is only read from the environment.
type fileConfig struct {
	BaseURL             *string      `yaml:"base_url"`
	UserAgent           *string      `yaml:"user_agent"`
	DataDir             *string      `yaml:"data_dir"`
	HTTPTimeout         *string      `yaml:"http_timeout"`
	PollFloor           *int         `yaml:"poll_floor"`
	DefaultPollInterval *int         `yaml:"default_poll_interval"`
	ErrorCooldown       *string      `yaml:"error_cooldown"`
	RequestsPerSecond   *float64     `yaml:"requests_per_second"`
	Trace               *bool        `yaml:"trace"`
	Retry               *retryConfig `yaml:"retry"`
}

type retryConfig struct {
	MaxAttempts  *int     `yaml:"max_attempts"`
	InitialDelay *string  `yaml:"initial_delay"`
	MaxDelay     *string  `yaml:"max_delay"`
	Factor       *float64 `yaml:"factor"`
}

// configPath picks the YAML file to read and whether it must exist.
func configPath(lookup func(string) (string, bool)) (string, bool) {
	if v, ok := lookup(EnvConfig); ok && v != "" {
		return v, true
	}
	dir := DataDir()
	if v, ok := lookup(EnvDataDir); ok && v != "" {
		dir = v
	}
	return filepath.Join(dir, "config.yaml"), false
}

// loadFile applies the YAML file at path onto c.
func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.UnmarshalWithOptions(data, &fc, yaml.DisallowUnknownField()); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c.applyFile(&fc)
}

func (c *Config) applyFile(fc *fileConfig) error {
	if fc.BaseURL != nil {
		c.BaseURL = *fc.BaseURL
	}
	if fc.UserAgent != nil {
		c.UserAgent = *fc.UserAgent
	}
	if fc.DataDir != nil {
		c.DataDir = *fc.DataDir
	}
	if fc.PollFloor != nil {
		c.PollFloor = *fc.PollFloor
	}
	if fc.DefaultPollInterval != nil {
		c.DefaultPollInterval = *fc.DefaultPollInterval
	}
	if fc.RequestsPerSecond != nil {
		c.RequestsPerSecond = *fc.RequestsPerSecond
	}
	if fc.Trace != nil {
		c.Trace = *fc.Trace
	}
	if err := setDuration(&c.HTTPTimeout, "http_timeout", fc.HTTPTimeout); err != nil {
		return err
	}
	if err := setDuration(&c.ErrorCooldown, "error_cooldown", fc.ErrorCooldown); err != nil {
		return err
	}

	if r := fc.Retry; r != nil {
		if r.MaxAttempts != nil {
			c.Retry.MaxAttempts = *r.MaxAttempts
		}
		if r.Factor != nil {
			c.Retry.Factor = *r.Factor
		}
		if err := setDuration(&c.Retry.InitialDelay, "retry.initial_delay", r.InitialDelay); err != nil {
			return err
		}
		if err := setDuration(&c.Retry.MaxDelay, "retry.max_delay", r.MaxDelay); err != nil {
			return err
		}
	}
	return nil
}

func setDuration(dst *time.Duration, key string, v *string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return &Error{Key: key, Value: *v, Err: err}
	}
	*dst = d
	return nil
}
