package ingestion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/domain/events"
	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/persistence/sqlstore/sqlstoretest"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// manualExecutor holds submitted work until the test releases it.
type manualExecutor struct {
	mu    sync.Mutex
	tasks []func(context.Context)
	err   error
}

func (e *manualExecutor) Execute(_ string, fn func(context.Context)) error {
	if e.err != nil {
		return e.err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, fn)
	return nil
}

func (e *manualExecutor) runAll(ctx context.Context) {
	e.mu.Lock()
	tasks := e.tasks
	e.tasks = nil
	e.mu.Unlock()

	var wg sync.WaitGroup
	for _, fn := range tasks {
		wg.Add(1)
		go func(fn func(context.Context)) {
			defer wg.Done()
			fn(ctx)
		}(fn)
	}
	wg.Wait()
}

// countingRunner blocks every run until release is closed.
type countingRunner struct {
	runs    atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
}

func (r *countingRunner) Run(context.Context, uuid.UUID) error {
	r.runs.Add(1)
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	return r.err
}

func TestPoolScheduler(t *testing.T) {
	ctx := context.Background()

	t.Run("DropsDuplicateQueuedSubmissions", func(t *testing.T) {
		runner := &countingRunner{}
		executor := &manualExecutor{}
		s := NewPoolScheduler(runner, executor, nil, zap.NewNop())
		id := uuid.New()

		require.NoError(t, s.Submit(ctx, id, uuid.New()))
		require.NoError(t, s.Submit(ctx, id, uuid.New()))
		assert.Equal(t, 1, s.Queued())

		executor.runAll(ctx)
		assert.Equal(t, int32(1), runner.runs.Load())
		assert.Zero(t, s.Queued())
	})

	t.Run("ConcurrentExecutionsOfOneIDCollapse", func(t *testing.T) {
		runner := &countingRunner{started: make(chan struct{}, 2), release: make(chan struct{})}
		s := NewPoolScheduler(runner, &manualExecutor{}, nil, zap.NewNop())
		id := uuid.New()

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.execute(ctx, id)
		}()
		<-runner.started

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.execute(ctx, id)
		}()

		// Give the second caller time to join the in-flight call.
		time.Sleep(20 * time.Millisecond)
		close(runner.release)
		wg.Wait()

		assert.Equal(t, int32(1), runner.runs.Load())
	})

	t.Run("DistinctIDsRunIndependently", func(t *testing.T) {
		runner := &countingRunner{}
		executor := &manualExecutor{}
		s := NewPoolScheduler(runner, executor, nil, zap.NewNop())

		for i := 0; i < 3; i++ {
			require.NoError(t, s.Submit(ctx, uuid.New(), uuid.New()))
		}
		executor.runAll(ctx)
		assert.Equal(t, int32(3), runner.runs.Load())
	})

	t.Run("FullQueueIsReported", func(t *testing.T) {
		s := NewPoolScheduler(&countingRunner{}, &manualExecutor{err: errors.New("queue full")}, nil, zap.NewNop())
		id := uuid.New()

		err := s.Submit(ctx, id, uuid.New())
		require.Error(t, err)
		assert.True(t, appErrors.IsInternal(err))
		assert.Zero(t, s.Queued(), "a rejected submission must not block a later one")
	})
}

func TestEventScheduler(t *testing.T) {
	publisher := &fakePublisher{}
	s := NewEventScheduler(publisher, nil, zap.NewNop())
	memoryID, userID := uuid.New(), uuid.New()

	require.NoError(t, s.Submit(context.Background(), memoryID, userID))
	require.Len(t, publisher.events, 1)

	req, ok := publisher.events[0].(events.MemoryIngestionRequested)
	require.True(t, ok)
	assert.Equal(t, memoryID, req.MemoryID)
	assert.Equal(t, userID, req.UserID)
}

func TestWorkerHandle(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "Success"},
		{name: "InFlight", err: memory.ErrAlreadyInFlight},
		{name: "Terminal", err: memory.ErrTerminal},
		{name: "Deleted", err: ErrMemoryGone},
		{name: "RecordedStageFailure", err: &memory.StageError{Stage: memory.StageIndex, Err: errors.New("boom")}},
		{name: "Infrastructure", err: errors.New("database is locked"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWorker(&countingRunner{err: tt.err}, zap.NewNop())
			err := w.Handle(context.Background(), events.NewMemoryIngestionRequested(uuid.New(), uuid.New(), time.Now()))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

// recordingScheduler remembers submitted ids.
type recordingScheduler struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (s *recordingScheduler) Submit(_ context.Context, id, _ uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, id)
	return nil
}

func TestSweeper(t *testing.T) {
	ctx := context.Background()
	store := sqlstoretest.New(t)
	memories := store.Memories()

	created := time.Now().UTC().Add(-time.Hour)
	stale := memory.New(uuid.New(), memory.MediaTypeText, "text/plain", "a", memory.Metadata{}, created)
	require.NoError(t, memories.Create(ctx, stale))

	claimed := memory.New(uuid.New(), memory.MediaTypeText, "text/plain", "b", memory.Metadata{}, created)
	require.NoError(t, memories.Create(ctx, claimed))
	_, err := store.Statuses().Claim(ctx, claimed.ID)
	require.NoError(t, err)

	scheduler := &recordingScheduler{}
	sweeper := NewSweeper(memories, store.Statuses(), scheduler, SweeperConfig{MinAge: time.Minute, Lease: time.Hour}, zap.NewNop())
	sweeper.now = func() time.Time { return time.Now().UTC().Add(10 * time.Minute) }

	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uuid.UUID{stale.ID}, scheduler.ids)

	t.Run("StopWithoutStart", func(t *testing.T) {
		NewSweeper(memories, store.Statuses(), scheduler, SweeperConfig{}, zap.NewNop()).Stop()
	})
}

func TestSweeperExpiredRuns(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*recordingScheduler, *Sweeper, func(*testing.T) *memory.Memory, func(uuid.UUID) *memory.Memory) {
		store := sqlstoretest.New(t)
		memories := store.Memories()
		scheduler := &recordingScheduler{}
		sweeper := NewSweeper(memories, store.Statuses(), scheduler, SweeperConfig{
			MinAge:  time.Hour,
			Lease:   30 * time.Minute,
			MaxRuns: 2,
		}, zap.NewNop())
		sweeper.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }

		claim := func(t *testing.T) *memory.Memory {
			m := memory.New(uuid.New(), memory.MediaTypeAudio, "audio/mpeg", "a", memory.Metadata{}, time.Now().UTC())
			require.NoError(t, memories.Create(ctx, m))
			_, err := store.Statuses().Claim(ctx, m.ID)
			require.NoError(t, err)
			return m
		}
		reload := func(id uuid.UUID) *memory.Memory {
			m, err := memories.GetByID(ctx, id)
			require.NoError(t, err)
			return m
		}
		return scheduler, sweeper, claim, reload
	}

	t.Run("RequeuesAndResubmits", func(t *testing.T) {
		scheduler, sweeper, claim, reload := setup(t)
		m := claim(t)

		n, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []uuid.UUID{m.ID}, scheduler.ids)
		assert.Equal(t, memory.StatusPending, reload(m.ID).Status)
	})

	t.Run("FailsAfterMaxRuns", func(t *testing.T) {
		scheduler, sweeper, claim, reload := setup(t)
		m := claim(t)

		_, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
		_, err = sweeper.statuses.Claim(ctx, m.ID)
		require.NoError(t, err)

		n, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, []uuid.UUID{m.ID}, scheduler.ids)

		got := reload(m.ID)
		assert.Equal(t, memory.StatusFailed, got.Status)
		assert.Contains(t, got.ErrorMessage, "processing abandoned")
	})

	t.Run("LiveRunIsKept", func(t *testing.T) {
		scheduler, sweeper, claim, reload := setup(t)
		sweeper.now = func() time.Time { return time.Now().UTC() }
		m := claim(t)

		n, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Empty(t, scheduler.ids)
		assert.Equal(t, memory.StatusProcessing, reload(m.ID).Status)
	})

	t.Run("LateWriterOfReleasedRunIsStale", func(t *testing.T) {
		_, sweeper, claim, reload := setup(t)
		m := claim(t)

		_, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)

		err = sweeper.statuses.Complete(ctx, m.ID, 1)
		assert.ErrorIs(t, err, memory.ErrStaleRun)
		assert.Equal(t, memory.StatusPending, reload(m.ID).Status)
	})
}
