package flake

import (
	"time"

	"github.com/codahale/hdrhistogram"
)

const (
	minTrackableMicros = 1
	maxTrackableMicros = int64(60 * time.Second / time.Microsecond)
	significantFigures = 3
)

// LatencyRecorder keeps a bounded-memory latency distribution for one
// (endpoint, query) pair. Values are stored in microseconds with three
// significant figures between 1µs and 60s; larger samples are clamped to 60s.
//
// LatencyRecorder does no locking of its own. The query runner funnels every
// sample through a single aggregator goroutine; other callers must serialise
// writes themselves.
type LatencyRecorder struct {
	h *hdrhistogram.Histogram
	// exact extremes in micros; quantiles are clamped into [min, max]
	min, max int64
}

func NewLatencyRecorder() *LatencyRecorder {
	return &LatencyRecorder{h: hdrhistogram.New(minTrackableMicros, maxTrackableMicros, significantFigures)}
}

func (r *LatencyRecorder) Record(d time.Duration) {
	us := d.Microseconds()
	if us < 0 {
		us = 0
	}
	if us > maxTrackableMicros {
		us = maxTrackableMicros
	}
	if r.h.TotalCount() == 0 || us < r.min {
		r.min = us
	}
	if us > r.max {
		r.max = us
	}
	// cannot fail: the value is within the trackable range
	_ = r.h.RecordValue(us)
}

func (r *LatencyRecorder) Count() int64 { return r.h.TotalCount() }

// Quantile returns the latency at q in [0,1]. ok is false when nothing was recorded.
func (r *LatencyRecorder) Quantile(q float64) (d time.Duration, ok bool) {
	if r.h.TotalCount() == 0 {
		return 0, false
	}
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}
	return time.Duration(r.valueAt(q*100)) * time.Microsecond, true
}

// valueAt reads the histogram at percentile p. With few samples the
// histogram answers low percentiles with its first bucket, which may lie
// below anything recorded.
func (r *LatencyRecorder) valueAt(p float64) int64 {
	v := r.h.ValueAtQuantile(p)
	if v < r.min {
		return r.min
	}
	if v > r.max {
		return r.max
	}
	return v
}

// Merge folds other's samples into r.
func (r *LatencyRecorder) Merge(other *LatencyRecorder) {
	if other == nil || other.h.TotalCount() == 0 {
		return
	}
	if r.h.TotalCount() == 0 || other.min < r.min {
		r.min = other.min
	}
	if other.max > r.max {
		r.max = other.max
	}
	r.h.Merge(other.h)
}

// Summary converts the distribution to milliseconds. It returns nil when empty.
func (r *LatencyRecorder) Summary() *LatencySummary {
	if r.h.TotalCount() == 0 {
		return nil
	}
	return &LatencySummary{
		P50: microsToMillis(r.valueAt(50)),
		P95: microsToMillis(r.valueAt(95)),
		P99: microsToMillis(r.valueAt(99)),
		Avg: r.h.Mean() / 1000.0,
		Min: microsToMillis(r.min),
		Max: microsToMillis(r.max),
	}
}

func microsToMillis(us int64) float64 { return float64(us) / 1000.0 }
