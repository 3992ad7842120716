// Package flake exposes configuration options for the Detector via a
// functional options API.
package flake

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ===== Options Pattern =====
type Option func(*Detector)

// WithWorkers sets the default number of concurrent workers per query.
func WithWorkers(n int) Option {
	return func(c *Detector) { c.workers = n }
}

// WithDuration sets how long each query is probed.
func WithDuration(d time.Duration) Option {
	return func(c *Detector) { c.duration = d }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Detector) { c.timeout = d }
}

// WithInterval sets the pause between two probes of the same worker.
func WithInterval(d time.Duration) Option {
	return func(c *Detector) { c.interval = d }
}

// WithParallelQueries runs all queries of an endpoint at the same time
// instead of one after another.
func WithParallelQueries(enabled bool) Option {
	return func(c *Detector) { c.parallelQueries = enabled }
}

// WithParallelEndpoints tests all endpoints at the same time.
func WithParallelEndpoints(enabled bool) Option {
	return func(c *Detector) { c.parallelEndpoints = enabled }
}

// WithMaxWorkers caps the number of workers that may be active at once
// across the whole run. Runs exceeding it are rejected up front.
func WithMaxWorkers(n int) Option {
	return func(c *Detector) { c.maxWorkers = n }
}

// WithTransport replaces the HTTP transport (useful in tests).
func WithTransport(t Transport) Option {
	return func(c *Detector) { c.transport = t }
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Detector) { c.transport = NewHTTPTransport(client) }
}

// WithObserver registers a callback invoked once per finished endpoint.
func WithObserver(fn func(EndpointReport)) Option {
	return func(c *Detector) { c.observer = fn }
}

func WithLogLevel(level LogLevel) Option {
	return func(c *Detector) { c.logLevel = level }
}

// enable/disable internal logs
func WithInternalLogs(enabled bool) Option {
	return func(c *Detector) { c.enableInternalLogs = enabled }
}

// WithLogger allows injecting a custom zap logger (useful in tests).
func WithLogger(l *zap.Logger) Option {
	return func(c *Detector) {
		c.logger = l
		c.loggerExplicit = true
	}
}

// LogConsole turns the stdout sink on or off. On by default.
func LogConsole(enabled bool) Option {
	return func(c *Detector) { c.logConsoleOpt = &enabled }
}

// LogFile adds a file sink. May be repeated.
func LogFile(path string) Option {
	return func(c *Detector) { c.logFilesOpt = append(c.logFilesOpt, path) }
}

// DisableLogs discards all log output.
func DisableLogs() Option {
	return func(c *Detector) { c.logDisableOpt = true }
}
