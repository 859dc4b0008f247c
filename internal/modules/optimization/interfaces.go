package optimization

import "context"

// JobRunner runs a CPU-bound job, typically on a bounded worker pool.
type JobRunner interface {
	Run(ctx context.Context, name string, job func(ctx context.Context) error) error
}

// inlineRunner runs jobs on the calling goroutine.
type inlineRunner struct{}

func (inlineRunner) Run(ctx context.Context, _ string, job func(ctx context.Context) error) error {
	return job(ctx)
}
