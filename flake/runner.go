package flake

import (
	"context"
	"sync"
	"time"
)

// ===== Query Runner =====

// Runner drives the concurrent workers for one (endpoint, query) pair.
type Runner struct {
	Transport Transport
	// OnOutcome, when set, sees every outcome. It runs on the aggregator
	// goroutine, never concurrently with itself.
	OnOutcome func(Outcome)

	ilog func(format string, args ...interface{})
}

// Run starts plan.Workers workers that probe endpoint/query until
// plan.Duration has elapsed, then returns the frozen metrics. A worker checks
// the deadline (and ctx) only at the top of its loop, so an in-flight probe is
// always allowed to finish or time out.
func (r *Runner) Run(ctx context.Context, endpoint string, q Query, plan Plan) *QueryMetrics {
	m := NewQueryMetrics(q.Name)
	if plan.Workers <= 0 {
		return m
	}

	url := QueryURL(endpoint, q.path())
	deadline := time.Now().Add(plan.Duration)

	outcomes := make(chan Outcome, plan.Workers)
	aggregated := make(chan struct{})
	go func() {
		defer close(aggregated)
		for o := range outcomes {
			m.Observe(o)
			if r.OnOutcome != nil {
				r.OnOutcome(o)
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < plan.Workers; i++ {
		wg.Add(1)
		go r.worker(ctx, i, url, plan, deadline, outcomes, &wg)
	}
	wg.Wait()
	close(outcomes)
	<-aggregated
	return m
}

func (r *Runner) worker(ctx context.Context, id int, url string, plan Plan, deadline time.Time, out chan<- Outcome, wg *sync.WaitGroup) {
	defer wg.Done()
	probes := 0
	for time.Now().Before(deadline) && ctx.Err() == nil {
		out <- Probe(ctx, r.Transport, url, plan.Timeout)
		probes++
		if !pause(ctx, plan.Interval) {
			break
		}
	}
	r.logf("Worker %d for %s exited after %d probes", id, url, probes)
}

// pause sleeps for d. It returns false if ctx was cancelled first.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (r *Runner) logf(format string, args ...interface{}) {
	if r.ilog != nil {
		r.ilog(format, args...)
	}
}
