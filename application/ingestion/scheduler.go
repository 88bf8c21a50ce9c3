package ingestion

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	"github.com/dharun-sukumar/Audio-Rag/domain/events"
	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"
	"github.com/dharun-sukumar/Audio-Rag/pkg/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Scheduler hands a pending memory to background processing. Submit never
// waits for the pipeline.
type Scheduler interface {
	Submit(ctx context.Context, memoryID, userID uuid.UUID) error
}

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, id uuid.UUID) error
}

// Executor runs fn on a background worker.
type Executor interface {
	Execute(id string, fn func(ctx context.Context)) error
}

// PoolScheduler runs pipelines on a local worker pool.
//
// At most one run per memory id executes in this process: duplicate
// submissions of a queued id are dropped and concurrent executions of the same
// id collapse into one through a singleflight group. Across processes the
// status store's claim is the guard.
type PoolScheduler struct {
	runner   Runner
	executor Executor
	metrics  *observability.Collector
	logger   *zap.Logger

	group  singleflight.Group
	mu     sync.Mutex
	queued map[uuid.UUID]struct{}
}

// NewPoolScheduler creates a scheduler on top of executor.
func NewPoolScheduler(runner Runner, executor Executor, metrics *observability.Collector, logger *zap.Logger) *PoolScheduler {
	return &PoolScheduler{
		runner:   runner,
		executor: executor,
		metrics:  metrics,
		logger:   logger,
		queued:   make(map[uuid.UUID]struct{}),
	}
}

// Submit queues memoryID. A memory already waiting in the queue is not queued twice.
func (s *PoolScheduler) Submit(_ context.Context, memoryID, _ uuid.UUID) error {
	s.mu.Lock()
	if _, ok := s.queued[memoryID]; ok {
		s.mu.Unlock()
		s.metrics.RecordSchedulerEvent("duplicate")
		return nil
	}
	s.queued[memoryID] = struct{}{}
	s.mu.Unlock()

	err := s.executor.Execute(memoryID.String(), func(ctx context.Context) {
		s.dequeue(memoryID)
		s.execute(ctx, memoryID)
	})
	if err != nil {
		s.dequeue(memoryID)
		s.metrics.RecordSchedulerEvent("rejected")
		s.logger.Warn("could not schedule ingestion", zap.String("memory_id", memoryID.String()), zap.Error(err))
		return appErrors.NewInternalError("ingestion queue unavailable").WithCause(err)
	}

	s.metrics.RecordSchedulerEvent("queued")
	return nil
}

func (s *PoolScheduler) dequeue(id uuid.UUID) {
	s.mu.Lock()
	delete(s.queued, id)
	s.mu.Unlock()
}

func (s *PoolScheduler) execute(ctx context.Context, id uuid.UUID) {
	_, _, shared := s.group.Do(id.String(), func() (interface{}, error) {
		err := s.runner.Run(ctx, id)
		logRunResult(s.logger, id, err)
		return nil, err
	})
	if shared {
		s.logger.Debug("ingestion run shared with another caller", zap.String("memory_id", id.String()))
	}
}

// Queued reports how many memories wait for a worker.
func (s *PoolScheduler) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queued)
}

// logRunResult logs a finished run at the level its outcome deserves.
func logRunResult(logger *zap.Logger, id uuid.UUID, err error) {
	fields := []zap.Field{zap.String("memory_id", id.String())}
	var stageErr *memory.StageError

	switch {
	case err == nil:
	case errors.Is(err, memory.ErrAlreadyInFlight), errors.Is(err, memory.ErrTerminal):
		logger.Debug("ingestion skipped", append(fields, zap.Error(err))...)
	case errors.Is(err, ErrMemoryGone):
		logger.Info("ingestion skipped, memory deleted", fields...)
	case errors.As(err, &stageErr):
		// Already recorded on the memory row.
	default:
		logger.Error("ingestion run failed", append(fields, zap.Error(err))...)
	}
}

// EventScheduler publishes an ingestion request for a remote worker.
type EventScheduler struct {
	publisher ports.EventPublisher
	metrics   *observability.Collector
	logger    *zap.Logger
}

// NewEventScheduler creates a scheduler that hands work to the event bus.
func NewEventScheduler(publisher ports.EventPublisher, metrics *observability.Collector, logger *zap.Logger) *EventScheduler {
	return &EventScheduler{publisher: publisher, metrics: metrics, logger: logger}
}

func (s *EventScheduler) Submit(ctx context.Context, memoryID, userID uuid.UUID) error {
	event := events.NewMemoryIngestionRequested(memoryID, userID, time.Now().UTC())
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.metrics.RecordSchedulerEvent("rejected")
		s.logger.Error("failed to publish ingestion request", zap.String("memory_id", memoryID.String()), zap.Error(err))
		return appErrors.NewExternalError("event bus", err)
	}
	s.metrics.RecordSchedulerEvent("published")
	return nil
}

// Worker runs ingestion requests delivered by the event bus.
type Worker struct {
	runner Runner
	logger *zap.Logger
}

// NewWorker creates a worker around runner.
func NewWorker(runner Runner, logger *zap.Logger) *Worker {
	return &Worker{runner: runner, logger: logger}
}

// Handle runs the pipeline synchronously. Only infrastructure failures are
// returned so the event source retries them; claim conflicts, deletions and
// recorded stage failures are final. A memory held by a dead worker is
// released by the Sweeper once its lease expires, not by redelivery.
func (w *Worker) Handle(ctx context.Context, req events.MemoryIngestionRequested) error {
	err := w.runner.Run(ctx, req.MemoryID)
	logRunResult(w.logger, req.MemoryID, err)

	var stageErr *memory.StageError
	switch {
	case err == nil,
		errors.Is(err, memory.ErrAlreadyInFlight),
		errors.Is(err, memory.ErrTerminal),
		errors.Is(err, ErrMemoryGone),
		errors.As(err, &stageErr):
		return nil
	default:
		return err
	}
}
