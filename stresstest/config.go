package stresstest

import (
	"fmt"
	"log/slog"
	"time"
)

// Default configuration values applied by the getters when the
// corresponding RunConfig field is zero.
const (
	DefaultQueryTimeout   = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultMaxRetries     = 3
	DefaultProgressEvery  = 100
)

// SelectionPolicy controls how a worker picks the next statement from the
// query source.
type SelectionPolicy string

const (
	// SelectSequential replays the source in order, wrapping to the start
	// when exhausted. Deterministic, so runs are reproducible.
	SelectSequential SelectionPolicy = "sequential"
	// SelectRandom picks a uniformly random statement per iteration.
	SelectRandom SelectionPolicy = "random"
)

// StopMode determines when a run ends. Exactly one mode is active per run,
// chosen when the config is built; the runner branches on it once at start.
type StopMode interface {
	fmt.Stringer
	validate() error
}

// Duration stops all workers at a shared wall-clock deadline measured from
// the moment the workers are spawned.
func Duration(d time.Duration) StopMode {
	return durationMode{d: d}
}

// QueryCount stops each worker independently once it has executed the given
// number of statements.
func QueryCount(perWorker int) StopMode {
	return countMode{n: perWorker}
}

type durationMode struct {
	d time.Duration
}

func (m durationMode) String() string {
	return fmt.Sprintf("duration(%s)", m.d)
}

func (m durationMode) validate() error {
	if m.d <= 0 {
		return &ConfigError{Reason: "stop duration must be greater than 0"}
	}
	return nil
}

type countMode struct {
	n int
}

func (m countMode) String() string {
	return fmt.Sprintf("count(%d)", m.n)
}

func (m countMode) validate() error {
	if m.n <= 0 {
		return &ConfigError{Reason: "per-worker query count must be greater than 0"}
	}
	return nil
}

// RunConfig describes one stress run. It is immutable once the run starts
// and shared read-only by all workers.
type RunConfig struct {
	// Workers is the number of concurrent workers; the run acquires exactly
	// one dedicated connection per worker.
	Workers int

	// Stop is the stop condition, built with Duration or QueryCount.
	Stop StopMode

	// Selection picks the statement selection policy. Empty means
	// SelectSequential.
	Selection SelectionPolicy

	// QueryTimeout bounds a single execution attempt. Zero means
	// DefaultQueryTimeout.
	QueryTimeout time.Duration

	// ConnectTimeout bounds a single connection attempt. Zero means
	// DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// MaxRetries is the number of additional attempts after a failed
	// execution or connection attempt. Zero retries nothing.
	MaxRetries int

	// RetryClassifier decides whether a failed attempt is retried. Nil
	// retries everything except cancelled attempts.
	RetryClassifier func(error) bool

	// Observer receives per-query callbacks during the run. Nil disables
	// observation.
	Observer Observer

	// Logger receives run lifecycle and progress logs. Nil means
	// slog.Default().
	Logger *slog.Logger

	// ProgressEvery logs a worker progress line every N executed queries.
	// Zero means DefaultProgressEvery; negative disables progress logging.
	ProgressEvery int
}

// DefaultRunConfig returns a config with the stock timeouts and retry
// budget. Workers and Stop must still be set by the caller.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Selection:      SelectSequential,
		QueryTimeout:   DefaultQueryTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		MaxRetries:     DefaultMaxRetries,
		ProgressEvery:  DefaultProgressEvery,
	}
}

// Validate checks the configuration before a run starts.
func (c *RunConfig) Validate() error {
	if c.Workers <= 0 {
		return &ConfigError{Reason: "workers must be greater than 0"}
	}
	if c.Workers > 1000 {
		return &ConfigError{Reason: "workers cannot exceed 1000"}
	}
	if c.Stop == nil {
		return &ConfigError{Reason: "a stop mode is required (Duration or QueryCount)"}
	}
	if err := c.Stop.validate(); err != nil {
		return err
	}
	if c.MaxRetries < 0 {
		return &ConfigError{Reason: "max retries cannot be negative"}
	}
	if c.QueryTimeout < 0 {
		return &ConfigError{Reason: "query timeout cannot be negative"}
	}
	if c.ConnectTimeout < 0 {
		return &ConfigError{Reason: "connect timeout cannot be negative"}
	}
	switch c.GetSelection() {
	case SelectSequential, SelectRandom:
	default:
		return &ConfigError{Reason: fmt.Sprintf("unknown selection policy %q", c.Selection)}
	}
	return nil
}

// GetQueryTimeout returns the per-attempt execution timeout.
func (c *RunConfig) GetQueryTimeout() time.Duration {
	if c.QueryTimeout == 0 {
		return DefaultQueryTimeout
	}
	return c.QueryTimeout
}

// GetConnectTimeout returns the per-attempt connection timeout.
func (c *RunConfig) GetConnectTimeout() time.Duration {
	if c.ConnectTimeout == 0 {
		return DefaultConnectTimeout
	}
	return c.ConnectTimeout
}

// GetSelection returns the effective selection policy.
func (c *RunConfig) GetSelection() SelectionPolicy {
	if c.Selection == "" {
		return SelectSequential
	}
	return c.Selection
}

// GetProgressEvery returns the progress logging interval, 0 when disabled.
func (c *RunConfig) GetProgressEvery() int {
	if c.ProgressEvery == 0 {
		return DefaultProgressEvery
	}
	if c.ProgressEvery < 0 {
		return 0
	}
	return c.ProgressEvery
}

func (c *RunConfig) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *RunConfig) observer() Observer {
	if c.Observer == nil {
		return nopObserver{}
	}
	return c.Observer
}

func (c *RunConfig) retryClassifier() func(error) bool {
	if c.RetryClassifier == nil {
		return defaultRetryClassifier
	}
	return c.RetryClassifier
}
