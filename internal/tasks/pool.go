package tasks

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

const (
	defaultWorkers = 5
	maxWorkers     = 10
)

// PoolOpts configures a rate limited worker pool.
type PoolOpts struct {
	Workers   int     // Concurrent workers, clamped to 1..10 (default: 5)
	RateLimit float64 // Jobs started per second, 0 for unlimited
}

func (o PoolOpts) workers() int {
	switch {
	case o.Workers <= 0:
		return defaultWorkers
	case o.Workers > maxWorkers:
		return maxWorkers
	default:
		return o.Workers
	}
}

type poolJob[J any] struct {
	index int
	job   J
}

type poolResult[R any] struct {
	index  int
	result R
}

// runPool runs fn for every job on a bounded set of workers and returns the results in job order.
//
// done is called from the calling goroutine once per finished job, in completion order, with the number of jobs
// finished so far. Jobs not started before ctx is cancelled are left as zero values.
func runPool[J, R any](ctx context.Context, jobs []J, opts PoolOpts, fn func(context.Context, J) R, done func(completed int, r R)) []R {
	results := make([]R, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	limiter := rate.NewLimiter(limit, 1)

	queue := make(chan poolJob[J], len(jobs))
	out := make(chan poolResult[R], len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < min(opts.workers(), len(jobs)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				select {
				case <-ctx.Done():
					return
				default:
				}
				out <- poolResult[R]{index: j.index, result: fn(ctx, j.job)}
			}
		}()
	}

	go func() {
		defer close(queue)
		for i, job := range jobs {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			queue <- poolJob[J]{index: i, job: job}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	completed := 0
	for r := range out {
		completed++
		results[r.index] = r.result
		if done != nil {
			done(completed, r.result)
		}
	}
	return results
}
