package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/amartya2002/flake-detector/flake"
)

func sampleReport() flake.EndpointReport {
	return flake.EndpointReport{
		Endpoint:           "http://node:26657",
		OverallSuccessRate: 0.95,
		OverallFailureRate: 0.05,
		FlakinessScore:     18.5,
		Status:             flake.StatusDegraded,
		TotalRequests:      2000,
		Queries: []flake.QueryResult{
			{Query: "health", SuccessCount: 990, FailureCount: 10, TotalRequests: 1000, FailureRate: 0.01,
				Latency: &flake.LatencySummary{P50: 12.3, P95: 40.1, P99: 88.8}},
			{Query: "genesis", FailureCount: 1000, TotalRequests: 1000, FailureRate: 1},
		},
	}
}

func TestNewWithoutTerminalIsPlain(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)
	p.Summary([]flake.EndpointReport{sampleReport()})

	assert.NotContains(t, buf.String(), "\033[")
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	NewPlain(&buf).Summary([]flake.EndpointReport{sampleReport()})

	out := buf.String()
	assert.Contains(t, out, "FLAKINESS DETECTION SUMMARY")
	assert.Contains(t, out, "🟡 http://node:26657 - Flakiness Score: 18.5/100")
	assert.Contains(t, out, "Success Rate: 95.0% | Total Requests: 2000")
}

func TestEndpointBreakdown(t *testing.T) {
	var buf bytes.Buffer
	NewPlain(&buf).Endpoint(sampleReport())

	out := buf.String()
	assert.Contains(t, out, "Query: health")
	assert.Contains(t, out, "✓ Success: 990 | ✗ Failure: 10 | Rate: 1.0%")
	assert.Contains(t, out, "Latency: p50=12.3ms p95=40.1ms p99=88.8ms")
	assert.Contains(t, out, "Latency: n/a (no successful probes)")
}

func TestSettings(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlain(&buf)
	p.Banner("v0.1.0")
	p.Settings(Settings{Endpoints: 2, Duration: time.Minute, Queries: []string{"health", "status"}, Concurrency: 10, Timeout: 5 * time.Second})

	out := buf.String()
	assert.Contains(t, out, "RPC FLAKE DETECTOR v0.1.0")
	assert.Contains(t, out, "Queries: health, status")
	assert.Contains(t, out, "Test Duration: 1m0s")
}

func TestEmoji(t *testing.T) {
	assert.Equal(t, "🟢", Emoji(flake.StatusHealthy))
	assert.Equal(t, "🟡", Emoji(flake.StatusDegraded))
	assert.Equal(t, "🟠", Emoji(flake.StatusFlaky))
	assert.Equal(t, "🔴", Emoji(flake.StatusCritical))
}
