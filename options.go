package modelfetch

import (
	"time"
)

// Defaults for the engine's configuration surface.
const (
	// DefaultConcurrency is the default number of parallel download workers.
	DefaultConcurrency = 4

	// MaxConcurrency is the maximum allowed number of parallel workers.
	MaxConcurrency = 16

	// DefaultChunkSize is the default number of bytes per network read.
	DefaultChunkSize = 1024 * 1024

	// DefaultMaxAttempts is the default bounded attempt count per file.
	DefaultMaxAttempts = 3

	// DefaultCheckpointInterval is the default minimum time between two
	// persisted status snapshots during a transfer.
	DefaultCheckpointInterval = 10 * time.Second
)

// Retry backoff constants for failed download attempts.
const (
	// InitialBackoff is the backoff duration before the first reattempt.
	InitialBackoff = 1 * time.Second

	// MaxBackoff is the maximum backoff duration between reattempts.
	MaxBackoff = 30 * time.Second
)

// EngineOption configures an Engine at construction.
type EngineOption func(*engineConfig)

// engineConfig holds injected collaborators for Engine construction.
type engineConfig struct {
	// httpClient is used for all transfer and hub requests.
	httpClient HTTPClient

	// logger receives diagnostic log messages.
	logger Logger

	// clock supplies the current time for checkpoint cadence.
	clock func() time.Time
}

// WithHTTPClient sets a custom HTTP client for transfers.
// Useful for testing with mock servers or customizing timeouts.
// If not set, a transport tuned for large downloads is used.
func WithHTTPClient(client HTTPClient) EngineOption {
	return func(c *engineConfig) {
		c.httpClient = client
	}
}

// WithLogger sets a logger for diagnostic output.
// If not set, logging is disabled.
func WithLogger(logger Logger) EngineOption {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithClock sets the time source used for checkpoint throttling.
// If not set, time.Now is used. Intended for tests.
func WithClock(clock func() time.Time) EngineOption {
	return func(c *engineConfig) {
		c.clock = clock
	}
}

// RunOption configures a single Run invocation.
type RunOption func(*runConfig)

// runConfig holds per-run settings, seeded from the engine's Config.
type runConfig struct {
	// concurrency is the worker pool size for this run.
	concurrency int

	// maxAttempts is the bounded attempt count per file.
	maxAttempts int

	// skipVerify disables hash verification for this run.
	skipVerify bool

	// progressFn is called with progress updates during the run.
	progressFn func(FileProgress)
}

// WithConcurrency sets the worker pool size for a run.
// Values are clamped to the range [1, MaxConcurrency].
func WithConcurrency(n int) RunOption {
	return func(c *runConfig) {
		if n < 1 {
			n = 1
		}
		if n > MaxConcurrency {
			n = MaxConcurrency
		}
		c.concurrency = n
	}
}

// WithMaxAttempts sets the bounded attempt count per file for a run.
// Values below 1 are clamped to 1.
func WithMaxAttempts(n int) RunOption {
	return func(c *runConfig) {
		if n < 1 {
			n = 1
		}
		c.maxAttempts = n
	}
}

// WithSkipVerify disables hash verification for a run. Files are then
// trusted as soon as their byte stream ends.
func WithSkipVerify() RunOption {
	return func(c *runConfig) {
		c.skipVerify = true
	}
}

// WithProgress sets a callback invoked with a copy of a file's progress
// whenever it changes. The callback is invoked from download worker
// goroutines and must be thread-safe.
func WithProgress(fn func(FileProgress)) RunOption {
	return func(c *runConfig) {
		c.progressFn = fn
	}
}
