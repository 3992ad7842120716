package flake

// QueryMetrics accumulates outcomes for one (endpoint, query) pair while its
// workers run. It is written by exactly one goroutine (the runner's
// aggregator) and only read once the run is over.
type QueryMetrics struct {
	query     string
	success   uint64
	failures  map[FailureKind]uint64
	codes     map[int]uint64
	latencies *LatencyRecorder
}

func NewQueryMetrics(query string) *QueryMetrics {
	return &QueryMetrics{
		query:     query,
		failures:  make(map[FailureKind]uint64),
		codes:     make(map[int]uint64),
		latencies: NewLatencyRecorder(),
	}
}

// Observe folds one outcome into the aggregate. Only successful probes feed
// the latency distribution.
func (m *QueryMetrics) Observe(o Outcome) {
	if o.StatusCode != 0 {
		m.codes[o.StatusCode]++
	}
	if o.Success() {
		m.success++
		m.latencies.Record(o.Latency)
		return
	}
	m.failures[o.Kind]++
}

func (m *QueryMetrics) Successes() uint64 { return m.success }

func (m *QueryMetrics) Failures() uint64 {
	var n uint64
	for _, c := range m.failures {
		n += c
	}
	return n
}

func (m *QueryMetrics) Total() uint64 { return m.success + m.Failures() }

func (m *QueryMetrics) Latencies() *LatencyRecorder { return m.latencies }

// Result freezes the aggregate into a scored QueryResult.
func (m *QueryMetrics) Result() QueryResult {
	failed := m.Failures()
	total := m.success + failed

	res := QueryResult{
		Query:         m.query,
		SuccessCount:  m.success,
		FailureCount:  failed,
		TotalRequests: total,
		FailureRate:   rate(failed, total),
		Latency:       m.latencies.Summary(),
	}
	if len(m.failures) > 0 {
		res.Failures = make(map[string]uint64, len(m.failures))
		for k, c := range m.failures {
			res.Failures[k.String()] = c
		}
	}
	if len(m.codes) > 0 {
		res.StatusCodes = make(map[int]uint64, len(m.codes))
		for code, c := range m.codes {
			res.StatusCodes[code] = c
		}
	}
	res.FlakinessScore = ScoreResult(res.FailureRate, res.P99())
	res.Status = Grade(res.FlakinessScore)
	return res
}

// rate is part/total, or 0 when total is 0.
func rate(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
