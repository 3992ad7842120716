package flake

import "time"

// AssembleReport merges per-query results into an endpoint-level report.
//
// The endpoint failure rate is weighted by request count, and the endpoint
// p99 is the worst per-query p99. The endpoint score is computed from those
// two figures, not averaged from per-query scores.
func AssembleReport(endpoint string, results []QueryResult, elapsed time.Duration) EndpointReport {
	var total, failed uint64
	var worst *float64
	for _, r := range results {
		total += r.TotalRequests
		failed += r.FailureCount
		if p := r.P99(); p != nil && (worst == nil || *p > *worst) {
			worst = p
		}
	}

	failureRate := rate(failed, total)
	score := ScoreResult(failureRate, worst)

	queries := make([]QueryResult, len(results))
	copy(queries, results)

	return EndpointReport{
		Endpoint:           endpoint,
		OverallSuccessRate: 1 - failureRate,
		OverallFailureRate: failureRate,
		P99LatencyMs:       worst,
		FlakinessScore:     score,
		Status:             Grade(score),
		TotalRequests:      total,
		TestDurationSecs:   elapsed.Seconds(),
		Queries:            queries,
	}
}
