// Package concurrency provides the bounded worker pool that runs background work.
//
// The pool sizes itself for the runtime it finds. A Lambda gets a handful of
// workers scaled by its memory allocation; anything else gets a multiple of
// the CPU count. Submissions never block the caller: a full queue is an error
// the caller can surface or retry later.
package concurrency

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when no queue slot is free.
	ErrQueueFull = errors.New("worker pool queue is full")
	// ErrPoolStopped is returned for submissions after Stop.
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// RuntimeEnvironment represents the deployment environment
type RuntimeEnvironment string

const (
	EnvironmentLambda RuntimeEnvironment = "lambda"
	EnvironmentLocal  RuntimeEnvironment = "local"
)

// DetectEnvironment reports whether the process runs inside a Lambda.
func DetectEnvironment() RuntimeEnvironment {
	if _, ok := os.LookupEnv("AWS_LAMBDA_FUNCTION_NAME"); ok {
		return EnvironmentLambda
	}
	return EnvironmentLocal
}

// OptimalWorkerCount returns the default worker count for env.
func OptimalWorkerCount(env RuntimeEnvironment) int {
	if env == EnvironmentLambda {
		memoryMB, err := strconv.Atoi(os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE"))
		if err != nil {
			memoryMB = 512
		}
		switch {
		case memoryMB < 1024:
			return 2
		case memoryMB < 1769:
			return 3
		default:
			return 4
		}
	}

	// Pipelines shell out to ffmpeg and wait on remote services.
	workers := runtime.NumCPU() * 2
	if workers > 16 {
		return 16
	}
	return workers
}

// PoolConfig contains configuration for the worker pool
type PoolConfig struct {
	Workers   int
	QueueSize int
}

// Task represents a unit of work to be executed
type Task struct {
	ID      string
	Execute func(ctx context.Context)
}

// Pool is a fixed set of workers draining a buffered queue.
type Pool struct {
	workers int
	queue   chan Task
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	running bool
	stopped bool
}

// NewPool creates a pool. Zero config fields take environment defaults.
func NewPool(config PoolConfig, logger *zap.Logger) *Pool {
	if config.Workers <= 0 {
		config.Workers = OptimalWorkerCount(DetectEnvironment())
	}
	if config.QueueSize <= 0 {
		config.QueueSize = config.Workers * 16
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers: config.Workers,
		queue:   make(chan Task, config.QueueSize),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running || p.stopped {
		return
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.running = true
	p.logger.Info("worker pool started", zap.Int("workers", p.workers), zap.Int("queue_capacity", cap(p.queue)))
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(id, task)
	}
}

// run executes one task. A panicking task is logged and the worker carries on.
func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker recovered from panic",
				zap.Int("worker", id),
				zap.String("task_id", task.ID),
				zap.Any("panic", r),
			)
		}
	}()
	task.Execute(p.ctx)
}

// Submit enqueues task without blocking. Workers start on first use.
func (p *Pool) Submit(task Task) error {
	p.Start()

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Execute adapts Submit to a plain function.
func (p *Pool) Execute(id string, fn func(ctx context.Context)) error {
	return p.Submit(Task{ID: id, Execute: fn})
}

// Stop refuses new work and waits for queued tasks to finish. When ctx
// expires first, the context handed to running tasks is cancelled and Stop
// waits for them to return.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// Stats reports queue occupancy.
func (p *Pool) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return map[string]interface{}{
		"workers":        p.workers,
		"queue_size":     len(p.queue),
		"queue_capacity": cap(p.queue),
		"running":        p.running && !p.stopped,
	}
}
