package work

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunSuccess(t *testing.T) {
	pool := NewPool(2, time.Second, zerolog.Nop())

	ran := false
	err := pool.Run(context.Background(), "ok", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	stats := pool.Stats()
	assert.Equal(t, uint64(1), stats.Completed)
	assert.Equal(t, int64(0), stats.Active)
	assert.Equal(t, 2, stats.Size)
}

func TestPool_RunFailureIsCounted(t *testing.T) {
	pool := NewPool(1, time.Second, zerolog.Nop())
	boom := errors.New("boom")

	err := pool.Run(context.Background(), "fail", func(ctx context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(1), pool.Stats().Failed)
}

func TestPool_RecoversPanic(t *testing.T) {
	pool := NewPool(1, time.Second, zerolog.Nop())

	err := pool.Run(context.Background(), "panic", func(ctx context.Context) error {
		panic("bad input")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad input")
	assert.Equal(t, uint64(1), pool.Stats().Failed)

	// The slot must have been released.
	require.NoError(t, pool.Run(context.Background(), "after", func(ctx context.Context) error { return nil }))
}

func TestPool_Timeout(t *testing.T) {
	pool := NewPool(1, 20*time.Millisecond, zerolog.Nop())

	err := pool.Run(context.Background(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, uint64(1), pool.Stats().TimedOut)
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const size = 2
	pool := NewPool(size, time.Second, zerolog.Nop())

	var mu sync.Mutex
	current, peak := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Run(context.Background(), "job", func(ctx context.Context) error {
				mu.Lock()
				current++
				if current > peak {
					peak = current
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				current--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, size)
	assert.Equal(t, uint64(8), pool.Stats().Completed)
}

func TestPool_CancelledWhileWaiting(t *testing.T) {
	pool := NewPool(1, time.Second, zerolog.Nop())

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Run(context.Background(), "holder", func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pool.Run(ctx, "waiter", func(ctx context.Context) error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
	close(release)
}
