package flake

import "math"

const (
	failureWeight      = 0.7
	latencyWeight      = 0.3
	latencyThresholdMs = 1000.0
)

// Score maps a failure rate in [0,1] and a p99 latency in milliseconds to a
// flakiness score in [0,100]. Any p99 at or above one second counts as
// maximally severe. Out-of-range inputs are clamped.
func Score(failureRate, p99Ms float64) float64 {
	failureRate = clamp(failureRate, 0, 1)
	if math.IsNaN(p99Ms) || p99Ms < 0 {
		p99Ms = 0
	}
	severity := math.Min(p99Ms/latencyThresholdMs, 1.0)
	return math.Min((failureRate*failureWeight+severity*latencyWeight)*100.0, 100.0)
}

// ScoreResult is Score with an optional p99. A nil p99 means no probe
// succeeded and is scored as the worst latency.
func ScoreResult(failureRate float64, p99Ms *float64) float64 {
	if p99Ms == nil {
		return Score(failureRate, latencyThresholdMs)
	}
	return Score(failureRate, *p99Ms)
}

// Grade buckets a score into a status.
func Grade(score float64) Status {
	switch {
	case score < 10:
		return StatusHealthy
	case score < 30:
		return StatusDegraded
	case score < 60:
		return StatusFlaky
	default:
		return StatusCritical
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
