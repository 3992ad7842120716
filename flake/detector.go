// Package flake implements the high-level Detector public API.
package flake

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultQueries are the CometBFT RPC routes probed when none are configured.
var DefaultQueries = []string{"health", "status", "abci_info", "net_info", "genesis"}

type Detector struct {
	transport         Transport
	workers           int
	duration          time.Duration
	timeout           time.Duration
	interval          time.Duration
	parallelQueries   bool
	parallelEndpoints bool
	maxWorkers        int
	observer          func(EndpointReport)
	logLevel          LogLevel

	enableInternalLogs bool
	logger             *zap.Logger
	loggerExplicit     bool // set by WithLogger

	// logging configuration accumulated by options
	logConsoleOpt *bool
	logFilesOpt   []string
	logDisableOpt bool
}

// ===== Constructor =====
func New(opts ...Option) *Detector {
	c := &Detector{
		transport:  NewHTTPTransport(nil),
		workers:    10,
		duration:   60 * time.Second,
		timeout:    5 * time.Second,
		interval:   100 * time.Millisecond,
		maxWorkers: 1000,
		logLevel:   LogInfo,
		logger:     nil, // build after applying options
	}
	for _, opt := range opts {
		opt(c)
	}
	// Build logger after options applied unless explicitly provided
	if !c.loggerExplicit {
		c.logger = c.buildLoggerFromConfig()
	}
	// Safety fallback
	if c.logger == nil {
		c.logger = defaultConsoleLogger()
	}
	return c
}

func defaultConsoleLogger() *zap.Logger {
	l, err := zap.NewProduction(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func (c *Detector) buildLoggerFromConfig() *zap.Logger {
	if c.logDisableOpt {
		return zap.NewNop()
	}

	// Determine console default: true unless explicitly set to false
	console := true
	if c.logConsoleOpt != nil {
		console = *c.logConsoleOpt
	}

	var paths []string
	seen := map[string]struct{}{}
	if console {
		paths = append(paths, "stdout")
		seen["stdout"] = struct{}{}
	}
	for _, f := range c.logFilesOpt {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		paths = append(paths, f)
	}

	if len(paths) == 0 {
		// No outputs selected: default to console
		return defaultConsoleLogger()
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = paths
	if c.logLevel == LogDebug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// Logger returns the logger the detector writes to.
func (c *Detector) Logger() *zap.Logger { return c.logger }

// Sync flushes buffered log entries.
func (c *Detector) Sync() error { return c.logger.Sync() }

// ===== Public API =====

// Run probes every endpoint with every query and returns one report per
// endpoint, in input order. It returns only once all workers have exited.
// Configuration problems are reported before any request is sent; probe
// failures never abort the run. Cancelling ctx stops workers at their next
// loop iteration and the partial results are still reported.
func (c *Detector) Run(ctx context.Context, endpoints []string, queries []Query) ([]EndpointReport, error) {
	if err := c.validate(endpoints, queries); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	c.ilog("Run %s: %d endpoints, %d queries", runID, len(endpoints), len(queries))

	reports := make([]EndpointReport, len(endpoints))
	if c.parallelEndpoints {
		var wg sync.WaitGroup
		for i, ep := range endpoints {
			wg.Add(1)
			go func(i int, ep string) {
				defer wg.Done()
				reports[i] = c.testEndpoint(ctx, runID, ep, queries)
			}(i, ep)
		}
		wg.Wait()
	} else {
		for i, ep := range endpoints {
			reports[i] = c.testEndpoint(ctx, runID, ep, queries)
		}
	}
	return reports, nil
}

// PlanFor resolves the workload of q against the detector defaults.
func (c *Detector) PlanFor(q Query) Plan {
	p := Plan{Workers: c.workers, Duration: c.duration, Timeout: c.timeout, Interval: c.interval}
	if q.Workers > 0 {
		p.Workers = q.Workers
	}
	if q.Duration > 0 {
		p.Duration = q.Duration
	}
	if q.Timeout > 0 {
		p.Timeout = q.Timeout
	}
	return p
}

// ===== Endpoint Coordinator =====

func (c *Detector) testEndpoint(ctx context.Context, runID, endpoint string, queries []Query) EndpointReport {
	started := time.Now()
	c.ilog("Testing endpoint %s", endpoint)

	results := make([]QueryResult, len(queries))
	latencies := make([]*LatencyRecorder, len(queries))
	if c.parallelQueries {
		var wg sync.WaitGroup
		for i, q := range queries {
			wg.Add(1)
			go func(i int, q Query) {
				defer wg.Done()
				results[i], latencies[i] = c.testQuery(ctx, endpoint, q)
			}(i, q)
		}
		wg.Wait()
	} else {
		for i, q := range queries {
			results[i], latencies[i] = c.testQuery(ctx, endpoint, q)
		}
	}

	merged := NewLatencyRecorder()
	for _, l := range latencies {
		merged.Merge(l)
	}

	report := AssembleReport(endpoint, results, time.Since(started))
	report.Latency = merged.Summary()
	report.RunID = runID
	report.StartedAt = started
	c.logReport(report)
	if c.observer != nil {
		c.observer(report)
	}
	return report
}

func (c *Detector) testQuery(ctx context.Context, endpoint string, q Query) (QueryResult, *LatencyRecorder) {
	plan := c.PlanFor(q)
	c.ilog("Testing query %s on %s with %d workers for %v", q.Name, endpoint, plan.Workers, plan.Duration)

	r := &Runner{Transport: c.transport, ilog: c.ilog}
	if c.logLevel == LogDebug {
		r.OnOutcome = func(o Outcome) { c.logOutcome(endpoint, q.Name, o) }
	}
	m := r.Run(ctx, endpoint, q, plan)
	res := m.Result()
	c.logQuery(endpoint, res)
	return res, m.Latencies()
}

// ===== Validation =====

func (c *Detector) validate(endpoints []string, queries []Query) error {
	if len(endpoints) == 0 {
		return configErrorf("endpoints", "at least one endpoint is required")
	}
	for _, ep := range endpoints {
		if strings.TrimSpace(ep) == "" {
			return configErrorf("endpoints", "blank endpoint")
		}
		u, err := url.Parse(ep)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return configErrorf("endpoints", "%q is not an absolute URL", ep)
		}
	}
	if len(queries) == 0 {
		return configErrorf("queries", "at least one query is required")
	}
	if c.transport == nil {
		return configErrorf("transport", "no transport configured")
	}
	if c.maxWorkers <= 0 {
		return configErrorf("max_workers", "must be positive, got %d", c.maxWorkers)
	}
	if c.interval < 0 {
		return configErrorf("interval", "must not be negative, got %v", c.interval)
	}

	perEndpoint := 0
	for _, q := range queries {
		if strings.TrimSpace(q.Name) == "" {
			return configErrorf("queries", "blank query name")
		}
		p := c.PlanFor(q)
		if p.Workers < 0 {
			return configErrorf("workers", "query %s: must not be negative, got %d", q.Name, p.Workers)
		}
		if p.Duration <= 0 {
			return configErrorf("duration", "query %s: must be positive, got %v", q.Name, p.Duration)
		}
		if p.Timeout <= 0 {
			return configErrorf("timeout", "query %s: must be positive, got %v", q.Name, p.Timeout)
		}
		if c.parallelQueries {
			perEndpoint += p.Workers
		} else if p.Workers > perEndpoint {
			perEndpoint = p.Workers
		}
	}

	active := perEndpoint
	if c.parallelEndpoints {
		active *= len(endpoints)
	}
	if active > c.maxWorkers {
		return configErrorf("workers", "%d concurrent workers exceed the cap of %d", active, c.maxWorkers)
	}
	return nil
}

// ===== Logging =====

func (c *Detector) logQuery(endpoint string, res QueryResult) {
	fields := []zap.Field{
		zap.String("endpoint", endpoint),
		zap.String("query", res.Query),
		zap.Uint64("success", res.SuccessCount),
		zap.Uint64("failure", res.FailureCount),
		zap.Float64("failure_rate", res.FailureRate),
		zap.Float64("flakiness_score", res.FlakinessScore),
	}
	if res.Latency != nil {
		fields = append(fields, zap.Float64("p99_ms", res.Latency.P99))
	}

	switch c.logLevel {
	case LogNone:
		return
	case LogError:
		if res.FailureCount > 0 {
			c.logger.Error("Query FAILING", fields...)
		}
	case LogInfo:
		if res.Status == StatusHealthy {
			c.logger.Info("Query tested", fields...)
		} else {
			c.logger.Warn("Query FLAKY", append(fields, zap.String("status", string(res.Status)))...)
		}
	case LogDebug:
		c.logger.Debug("Query tested", append(fields, zap.Any("failures", res.Failures))...)
	}
}

func (c *Detector) logReport(report EndpointReport) {
	if c.logLevel < LogInfo {
		return
	}
	c.logger.Info("Endpoint tested",
		zap.String("run_id", report.RunID),
		zap.String("endpoint", report.Endpoint),
		zap.Uint64("total_requests", report.TotalRequests),
		zap.Float64("failure_rate", report.OverallFailureRate),
		zap.Float64("flakiness_score", report.FlakinessScore),
		zap.String("status", string(report.Status)))
}

func (c *Detector) logOutcome(endpoint, query string, o Outcome) {
	errMsg := ""
	if o.Err != nil {
		errMsg = o.Err.Error()
	}
	c.logger.Debug("Probe",
		zap.String("endpoint", endpoint),
		zap.String("query", query),
		zap.Stringer("kind", o.Kind),
		zap.Int("status_code", o.StatusCode),
		zap.Duration("latency", o.Latency),
		zap.String("error", errMsg))
}

// ===== Internal Logging Helper =====
func (c *Detector) ilog(format string, args ...interface{}) {
	if c.enableInternalLogs {
		c.logger.Info(fmt.Sprintf("[INTERNAL] "+format, args...))
	}
}
