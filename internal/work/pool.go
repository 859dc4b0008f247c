package work

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// DefaultTimeout bounds a single job when the pool is built without one.
const DefaultTimeout = 30 * time.Second

// Pool bounds the number of CPU-heavy jobs running at once and gives each
// job its own deadline. Callers block in Run until a slot frees up or
// their context ends.
type Pool struct {
	sem     *semaphore.Weighted
	size    int
	timeout time.Duration
	log     zerolog.Logger

	active    atomic.Int64
	waiting   atomic.Int64
	completed atomic.Uint64
	failed    atomic.Uint64
	timedOut  atomic.Uint64
}

// Stats is a point-in-time view of pool activity.
type Stats struct {
	Size      int    `json:"size"`
	Active    int64  `json:"active"`
	Waiting   int64  `json:"waiting"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	TimedOut  uint64 `json:"timed_out"`
}

// NewPool creates a pool running at most size jobs concurrently.
func NewPool(size int, timeout time.Duration, log zerolog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(size)),
		size:    size,
		timeout: timeout,
		log:     log.With().Str("component", "work_pool").Logger(),
	}
}

// Run executes job once a slot is free. The job's context carries the
// pool deadline in addition to ctx. A panic inside job is returned as an
// error.
func (p *Pool) Run(ctx context.Context, name string, job func(ctx context.Context) error) (err error) {
	p.waiting.Add(1)
	acquireErr := p.sem.Acquire(ctx, 1)
	p.waiting.Add(-1)
	if acquireErr != nil {
		return fmt.Errorf("waiting for worker slot for %s: %w", name, acquireErr)
	}
	defer p.sem.Release(1)

	p.active.Add(1)
	defer p.active.Add(-1)

	jobCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", name, r)
		}

		switch {
		case err == nil:
			p.completed.Add(1)
			p.log.Debug().Str("job", name).Dur("duration", time.Since(start)).Msg("Job completed")
		case jobCtx.Err() == context.DeadlineExceeded:
			p.timedOut.Add(1)
			p.log.Error().Str("job", name).Dur("timeout", p.timeout).Msg("Job timed out")
		default:
			p.failed.Add(1)
			p.log.Debug().Err(err).Str("job", name).Msg("Job failed")
		}
	}()

	return job(jobCtx)
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Size:      p.size,
		Active:    p.active.Load(),
		Waiting:   p.waiting.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		TimedOut:  p.timedOut.Load(),
	}
}
