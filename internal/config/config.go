// Package config loads eventfeed settings from an optional YAML file, an
// optional dotenv file and the environment, in that order of precedence
// from lowest to highest.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/abelbrown/eventfeed/internal/fetch"
	"github.com/abelbrown/eventfeed/internal/poll"
	"github.com/abelbrown/eventfeed/internal/retry"
)

// Environment variables read by Load.
const (
	EnvToken     = "GITHUB_TOKEN"
	EnvBaseURL   = "EVENTFEED_BASE_URL"
	EnvUserAgent = "EVENTFEED_USER_AGENT"
	EnvPollFloor = "EVENTFEED_POLL_FLOOR"
	EnvRPS       = "EVENTFEED_RPS"
	EnvTrace     = "EVENTFEED_TRACE"
	EnvDataDir   = "EVENTFEED_DATA_DIR"
)

// Config is the runtime configuration.
type Config struct {
	Token     string // sent as "Authorization: token <Token>" when set
	BaseURL   string
	UserAgent string

	HTTPTimeout         time.Duration
	PollFloor           int // seconds
	DefaultPollInterval int // seconds, until the server advises one
	ErrorCooldown       time.Duration
	Retry               RetryConfig

	RequestsPerSecond float64 // client-side limit; 0 disables
	Trace             bool

	DataDir string // logs and the events JSONL live here
}

// RetryConfig mirrors retry.Policy without the callback.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
}

// Error reports a malformed setting.
type Error struct {
	Key   string
	Value string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Default returns the built-in settings.
func Default() *Config {
	p := retry.DefaultPolicy()
	return &Config{
		BaseURL:             fetch.DefaultBaseURL,
		UserAgent:           fetch.DefaultUserAgent,
		HTTPTimeout:         30 * time.Second,
		PollFloor:           poll.DefaultPollFloor,
		DefaultPollInterval: fetch.DefaultPollInterval,
		ErrorCooldown:       poll.DefaultErrorCooldown,
		Retry: RetryConfig{
			MaxAttempts:  p.MaxAttempts,
			InitialDelay: p.InitialDelay,
			MaxDelay:     p.MaxDelay,
			Factor:       p.Factor,
		},
		RequestsPerSecond: 2,
		DataDir:           DataDir(),
	}
}

// DataDir returns ~/.eventfeed.
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".eventfeed")
}

// Load starts from Default, applies the YAML settings file, then envFile (if
// it exists) and the process environment. Variables already set in the
// environment win over envFile. An empty envFile skips it.
func Load(envFile string) (*Config, error) {
	fileVars := map[string]string{}
	if envFile != "" {
		vars, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileVars = vars
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: read %s: %w", envFile, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}

	cfg := Default()
	if err := cfg.loadFile(configPath(lookup)); err != nil {
		return nil, err
	}
	if err := cfg.apply(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) apply(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvToken); ok {
		c.Token = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvBaseURL); ok && strings.TrimSpace(v) != "" {
		c.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvUserAgent); ok && strings.TrimSpace(v) != "" {
		c.UserAgent = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvDataDir); ok && strings.TrimSpace(v) != "" {
		c.DataDir = strings.TrimSpace(v)
	}

	if v, ok := lookup(EnvPollFloor); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &Error{Key: EnvPollFloor, Value: v, Err: err}
		}
		c.PollFloor = n
	}
	if v, ok := lookup(EnvRPS); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return &Error{Key: EnvRPS, Value: v, Err: err}
		}
		c.RequestsPerSecond = f
	}
	if v, ok := lookup(EnvTrace); ok {
		c.Trace = v == "1" || strings.EqualFold(v, "true")
	}
	return nil
}

// Validate checks the settings for values the engine cannot run with.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return &Error{Key: EnvBaseURL, Value: c.BaseURL, Err: err}
	}
	if c.PollFloor < 1 {
		return &Error{Key: EnvPollFloor, Value: strconv.Itoa(c.PollFloor), Err: errors.New("must be at least 1 second")}
	}
	if c.RequestsPerSecond < 0 {
		return &Error{Key: EnvRPS, Value: strconv.FormatFloat(c.RequestsPerSecond, 'g', -1, 64), Err: errors.New("must not be negative")}
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("config: retry attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.InitialDelay < 0 || c.Retry.MaxDelay <= 0 {
		return &Error{Key: "retry.max_delay", Value: c.Retry.MaxDelay.String(), Err: fmt.Errorf("delays must be positive (initial %s)", c.Retry.InitialDelay)}
	}
	return nil
}

// RetryPolicy converts Retry to a retry.Policy.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  c.Retry.MaxAttempts,
		InitialDelay: c.Retry.InitialDelay,
		MaxDelay:     c.Retry.MaxDelay,
		Factor:       c.Retry.Factor,
	}
}

// LogDir is where the text log is written.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// EventsPath is the JSONL observability log.
func (c *Config) EventsPath() string {
	return filepath.Join(c.DataDir, "events.jsonl")
}
