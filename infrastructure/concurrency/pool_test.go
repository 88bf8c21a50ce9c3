package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPool(t *testing.T) {
	t.Run("RunsSubmittedTasks", func(t *testing.T) {
		pool := NewPool(PoolConfig{Workers: 2, QueueSize: 8}, zap.NewNop())

		var wg sync.WaitGroup
		var ran atomic.Int32
		for i := 0; i < 5; i++ {
			wg.Add(1)
			require.NoError(t, pool.Execute("task", func(context.Context) {
				defer wg.Done()
				ran.Add(1)
			}))
		}
		wg.Wait()
		assert.Equal(t, int32(5), ran.Load())
		require.NoError(t, pool.Stop(context.Background()))
	})

	t.Run("FullQueueRejects", func(t *testing.T) {
		pool := NewPool(PoolConfig{Workers: 1, QueueSize: 1}, zap.NewNop())
		release := make(chan struct{})
		started := make(chan struct{})

		require.NoError(t, pool.Execute("busy", func(context.Context) {
			close(started)
			<-release
		}))
		<-started
		require.NoError(t, pool.Execute("queued", func(context.Context) {}))

		assert.ErrorIs(t, pool.Execute("overflow", func(context.Context) {}), ErrQueueFull)

		close(release)
		require.NoError(t, pool.Stop(context.Background()))
	})

	t.Run("RejectsAfterStop", func(t *testing.T) {
		pool := NewPool(PoolConfig{Workers: 1, QueueSize: 1}, zap.NewNop())
		pool.Start()
		require.NoError(t, pool.Stop(context.Background()))
		require.NoError(t, pool.Stop(context.Background()))

		assert.ErrorIs(t, pool.Execute("late", func(context.Context) {}), ErrPoolStopped)
	})

	t.Run("SurvivesPanics", func(t *testing.T) {
		pool := NewPool(PoolConfig{Workers: 1, QueueSize: 4}, zap.NewNop())
		done := make(chan struct{})

		require.NoError(t, pool.Execute("panics", func(context.Context) { panic("boom") }))
		require.NoError(t, pool.Execute("after", func(context.Context) { close(done) }))

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("worker did not recover from panic")
		}
		require.NoError(t, pool.Stop(context.Background()))
	})

	t.Run("StopDeadlineCancelsRunningTasks", func(t *testing.T) {
		pool := NewPool(PoolConfig{Workers: 1, QueueSize: 1}, zap.NewNop())
		started := make(chan struct{})
		cancelled := make(chan struct{})

		require.NoError(t, pool.Execute("long", func(ctx context.Context) {
			close(started)
			<-ctx.Done()
			close(cancelled)
		}))
		<-started

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, pool.Stop(ctx), context.DeadlineExceeded)

		select {
		case <-cancelled:
		default:
			t.Fatal("running task was not cancelled")
		}
	})
}

func TestOptimalWorkerCount(t *testing.T) {
	t.Run("Lambda", func(t *testing.T) {
		t.Setenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE", "2048")
		assert.Equal(t, 4, OptimalWorkerCount(EnvironmentLambda))

		t.Setenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE", "512")
		assert.Equal(t, 2, OptimalWorkerCount(EnvironmentLambda))
	})

	t.Run("LocalIsBounded", func(t *testing.T) {
		n := OptimalWorkerCount(EnvironmentLocal)
		assert.Greater(t, n, 0)
		assert.LessOrEqual(t, n, 16)
	})
}
