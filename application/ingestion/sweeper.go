package ingestion

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"

	"go.uber.org/zap"
)

// SweeperConfig controls the pending recovery loop.
type SweeperConfig struct {
	Interval  time.Duration
	MinAge    time.Duration
	BatchSize int
	// Lease is how long a claimed run may stay processing before its
	// worker is presumed dead.
	Lease time.Duration
	// MaxRuns fails a memory instead of requeueing it once this many runs
	// have been claimed.
	MaxRuns int64
}

// leaseMargin is added to the summed stage timeouts to form the default lease.
const leaseMargin = 5 * time.Minute

// DefaultSweeperConfig checks every minute for memories pending over five
// minutes and for runs that outlived every stage timeout.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:  time.Minute,
		MinAge:    5 * time.Minute,
		BatchSize: 50,
		Lease:     DefaultTimeouts().Total() + leaseMargin,
		MaxRuns:   3,
	}
}

// LeaseFor returns the processing lease for runs bounded by t.
func LeaseFor(t Timeouts) time.Duration {
	return t.Total() + leaseMargin
}

// Sweeper resubmits memories that stayed pending, which happens when the
// process holding their queued run exits before a worker picks them up.
// It also releases processing runs whose lease expired, which happens when
// the worker died after claiming.
type Sweeper struct {
	memories  ports.MemoryRepository
	statuses  ports.ProcessingStatusStore
	scheduler Scheduler
	config    SweeperConfig
	logger    *zap.Logger
	now       func() time.Time

	started  atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}
	stopped  chan struct{}
}

// NewSweeper creates a sweeper. Zero config fields take defaults.
func NewSweeper(memories ports.MemoryRepository, statuses ports.ProcessingStatusStore, scheduler Scheduler, config SweeperConfig, logger *zap.Logger) *Sweeper {
	def := DefaultSweeperConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.MinAge <= 0 {
		config.MinAge = def.MinAge
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.Lease <= 0 {
		config.Lease = def.Lease
	}
	if config.MaxRuns <= 0 {
		config.MaxRuns = def.MaxRuns
	}
	return &Sweeper{
		memories:  memories,
		statuses:  statuses,
		scheduler: scheduler,
		config:    config,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		stopChan:  make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// Start runs the loop in the background until ctx ends or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.logger.Info("starting pending sweeper",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("min_age", s.config.MinAge),
		zap.Duration("lease", s.config.Lease),
	)
	go s.loop(ctx)
}

// Stop ends the loop and waits for the current sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	if s.started.Load() {
		<-s.stopped
	}
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.stopped)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("pending sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce releases expired runs, then resubmits them together with one
// batch of stale pending memories. It returns how many were submitted.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.statuses.ExpireClaims(ctx, now.Add(-s.config.Lease), s.config.MaxRuns, s.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("expire processing claims: %w", err)
	}

	submitted := 0
	for _, c := range expired {
		if c.Failed {
			s.logger.Warn("abandoned memory failed after repeated expired runs",
				zap.String("memory_id", c.MemoryID.String()), zap.Int64("run", c.Run))
			continue
		}
		s.logger.Warn("requeued memory with expired run",
			zap.String("memory_id", c.MemoryID.String()), zap.Int64("run", c.Run))
		if err := s.scheduler.Submit(ctx, c.MemoryID, c.UserID); err != nil {
			s.logger.Warn("failed to resubmit requeued memory", zap.String("memory_id", c.MemoryID.String()), zap.Error(err))
			continue
		}
		submitted++
	}

	stale, err := s.memories.ListPendingBefore(ctx, now.Add(-s.config.MinAge), s.config.BatchSize)
	if err != nil {
		return submitted, fmt.Errorf("list pending memories: %w", err)
	}

	for _, m := range stale {
		if err := s.scheduler.Submit(ctx, m.ID, m.UserID); err != nil {
			s.logger.Warn("failed to resubmit pending memory", zap.String("memory_id", m.ID.String()), zap.Error(err))
			continue
		}
		submitted++
	}
	if submitted > 0 {
		s.logger.Info("resubmitted stale pending memories", zap.Int("count", submitted))
	}
	return submitted, nil
}
