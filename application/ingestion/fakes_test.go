package ingestion

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	"github.com/dharun-sukumar/Audio-Rag/domain/events"
	"github.com/dharun-sukumar/Audio-Rag/domain/memory"

	"github.com/google/uuid"
)

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (s *memStorage) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found: " + key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStorage) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

type fakeExtractor struct {
	err   error
	empty bool
}

func (e *fakeExtractor) ExtractAudio(_ context.Context, video io.Reader, audio io.Writer) error {
	if e.err != nil {
		return e.err
	}
	data, err := io.ReadAll(video)
	if err != nil || e.empty {
		return err
	}
	_, err = audio.Write(append([]byte("mp3:"), data...))
	return err
}

type fakeTranscriber struct {
	words  []ports.Word
	err    error
	block  bool
	during func()
}

func (t *fakeTranscriber) Transcribe(ctx context.Context, audio io.Reader) (*ports.Transcript, error) {
	if t.during != nil {
		t.during()
	}
	if t.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if t.err != nil {
		return nil, t.err
	}
	if _, err := io.Copy(io.Discard, audio); err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(t.words))
	for _, w := range t.words {
		texts = append(texts, w.Text)
	}
	return &ports.Transcript{Text: strings.Join(texts, " "), Words: t.words}, nil
}

type fakeIndexer struct {
	mu      sync.Mutex
	indexed map[uuid.UUID][]ports.Chunk
	owners  map[uuid.UUID]uuid.UUID
	before  func(memoryID uuid.UUID)
	after   func(memoryID uuid.UUID)
	err     error
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{
		indexed: map[uuid.UUID][]ports.Chunk{},
		owners:  map[uuid.UUID]uuid.UUID{},
	}
}

func (i *fakeIndexer) IndexMemory(_ context.Context, userID, memoryID uuid.UUID, chunks []ports.Chunk) error {
	if i.before != nil {
		i.before(memoryID)
	}
	if i.err != nil {
		return i.err
	}
	i.mu.Lock()
	i.indexed[memoryID] = chunks
	i.owners[memoryID] = userID
	i.mu.Unlock()
	if i.after != nil {
		i.after(memoryID)
	}
	return nil
}

func (i *fakeIndexer) DeleteMemory(_ context.Context, userID, memoryID uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if owner, ok := i.owners[memoryID]; ok && owner != userID {
		return nil
	}
	delete(i.indexed, memoryID)
	delete(i.owners, memoryID)
	return nil
}

func (i *fakeIndexer) ReassignOwner(_ context.Context, from, to uuid.UUID, memoryIDs []uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, id := range memoryIDs {
		if owner, ok := i.owners[id]; ok && owner == from {
			i.owners[id] = to
		}
	}
	return nil
}

func (i *fakeIndexer) owner(id uuid.UUID) uuid.UUID {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.owners[id]
}

func (i *fakeIndexer) chunks(id uuid.UUID) []ports.Chunk {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.indexed[id]
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (p *fakePublisher) Publish(_ context.Context, e events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) PublishBatch(ctx context.Context, es []events.DomainEvent) error {
	for _, e := range es {
		_ = p.Publish(ctx, e)
	}
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.GetEventType())
	}
	return out
}

// recordingStatus wraps a status store and logs every status it writes.
type recordingStatus struct {
	ports.ProcessingStatusStore
	mu       sync.Mutex
	statuses []memory.Status
}

func (r *recordingStatus) record(s memory.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recordingStatus) Claim(ctx context.Context, id uuid.UUID) (int64, error) {
	run, err := r.ProcessingStatusStore.Claim(ctx, id)
	if err == nil {
		r.record(memory.StatusProcessing)
	}
	return run, err
}

func (r *recordingStatus) Complete(ctx context.Context, id uuid.UUID, run int64) error {
	err := r.ProcessingStatusStore.Complete(ctx, id, run)
	if err == nil {
		r.record(memory.StatusCompleted)
	}
	return err
}

func (r *recordingStatus) Fail(ctx context.Context, id uuid.UUID, run int64, stage memory.Stage, msg string) error {
	err := r.ProcessingStatusStore.Fail(ctx, id, run, stage, msg)
	if err == nil {
		r.record(memory.StatusFailed)
	}
	return err
}

func (r *recordingStatus) sequence() []memory.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]memory.Status{memory.StatusPending}, r.statuses...)
}
