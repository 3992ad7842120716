// Package flake defines core types for the flakiness detector.
package flake

import "time"

type LogLevel int

const (
	LogNone  LogLevel = iota // no logs
	LogError                 // only failing queries
	LogInfo                  // every finished query
	LogDebug                 // every probe
)

// Query is one capability probed on every endpoint, e.g. "health" or "block?height=1".
type Query struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	// Path defaults to Name when empty.
	Path string `json:"path,omitempty" yaml:"path,omitempty" toml:"path"`

	// Per-query overrides; zero means "use the detector default".
	Workers  int           `json:"workers,omitempty" yaml:"workers,omitempty" toml:"workers"`
	Duration time.Duration `json:"duration,omitempty" yaml:"-" toml:"-"`
	Timeout  time.Duration `json:"timeout,omitempty" yaml:"-" toml:"-"`
}

func (q Query) path() string {
	if q.Path != "" {
		return q.Path
	}
	return q.Name
}

// Plan is the resolved workload for one (endpoint, query) pair.
type Plan struct {
	Workers  int
	Duration time.Duration
	Timeout  time.Duration
	Interval time.Duration
}

type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureTimeout
	FailureConnection
	FailureStatus
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTimeout:
		return "timeout"
	case FailureConnection:
		return "connection"
	case FailureStatus:
		return "status"
	}
	return "unknown"
}

// Outcome represents the result of a single probe
type Outcome struct {
	Kind       FailureKind
	StatusCode int
	Latency    time.Duration
	Err        error
}

func (o Outcome) Success() bool { return o.Kind == FailureNone }

// LatencySummary holds latency figures in milliseconds.
type LatencySummary struct {
	P50 float64 `json:"p50_latency_ms"`
	P95 float64 `json:"p95_latency_ms"`
	P99 float64 `json:"p99_latency_ms"`
	Avg float64 `json:"avg_latency_ms"`
	Min float64 `json:"min_latency_ms"`
	Max float64 `json:"max_latency_ms"`
}

type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusFlaky    Status = "flaky"
	StatusCritical Status = "critical"
)

// QueryResult is the frozen outcome of one query's run against one endpoint.
// Latency is nil when no probe succeeded.
type QueryResult struct {
	Query          string            `json:"query"`
	SuccessCount   uint64            `json:"success_count"`
	FailureCount   uint64            `json:"failure_count"`
	TotalRequests  uint64            `json:"total_requests"`
	FailureRate    float64           `json:"failure_rate"`
	Failures       map[string]uint64 `json:"failures,omitempty"`
	StatusCodes    map[int]uint64    `json:"status_codes,omitempty"`
	Latency        *LatencySummary   `json:"latency"`
	FlakinessScore float64           `json:"flakiness_score"`
	Status         Status            `json:"status"`
}

// P99 returns the p99 latency in milliseconds, or nil if undefined.
func (r QueryResult) P99() *float64 {
	if r.Latency == nil {
		return nil
	}
	v := r.Latency.P99
	return &v
}

// EndpointReport aggregates every QueryResult for one endpoint.
type EndpointReport struct {
	RunID              string   `json:"run_id,omitempty"`
	Endpoint           string   `json:"endpoint"`
	OverallSuccessRate float64  `json:"overall_success_rate"`
	OverallFailureRate float64  `json:"overall_failure_rate"`
	P99LatencyMs       *float64 `json:"p99_latency_ms"`
	// Latency is the merged distribution of every successful probe across
	// all queries. It is informational; scoring uses P99LatencyMs.
	Latency          *LatencySummary `json:"latency"`
	FlakinessScore   float64         `json:"flakiness_score"`
	Status           Status          `json:"status"`
	TotalRequests    uint64          `json:"total_requests"`
	TestDurationSecs float64         `json:"test_duration_secs"`
	StartedAt        time.Time       `json:"started_at"`
	Queries          []QueryResult   `json:"queries"`
}
