// Package ingestion drives uploaded memories through extraction,
// transcription and indexing.
//
// A run starts by claiming the memory in the status store, which moves it
// from pending to processing and hands out a run number. Every later status
// write carries that number, so a run that lost its claim cannot overwrite
// the outcome of a newer one. Stages execute strictly in order; the first
// failure marks the memory failed with the stage name and stops the run.
// Artifacts written by earlier stages are kept.
package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	"github.com/dharun-sukumar/Audio-Rag/domain/events"
	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"
	"github.com/dharun-sukumar/Audio-Rag/pkg/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxTextBytes caps how much of a text upload is read for indexing.
const maxTextBytes = 10 << 20

// ErrMemoryGone is returned when the memory was deleted before or during a run.
var ErrMemoryGone = errors.New("memory no longer exists")

// Timeouts bound each stage. A stage that runs out of time fails.
type Timeouts struct {
	Extract    time.Duration
	Transcribe time.Duration
	Index      time.Duration
}

// DefaultTimeouts matches the limits of the external services.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Extract:    5 * time.Minute,
		Transcribe: 15 * time.Minute,
		Index:      2 * time.Minute,
	}
}

// Total is the longest a run can take.
func (t Timeouts) Total() time.Duration {
	return t.Extract + t.Transcribe + t.Index
}

func (t Timeouts) For(stage memory.Stage) time.Duration {
	switch stage {
	case memory.StageExtract:
		return t.Extract
	case memory.StageTranscribe:
		return t.Transcribe
	case memory.StageIndex:
		return t.Index
	default:
		return 0
	}
}

// Dependencies are the collaborators of a Pipeline. Tracer, Metrics and
// Publisher may be nil.
type Dependencies struct {
	Memories    ports.MemoryRepository
	Status      ports.ProcessingStatusStore
	Storage     ports.ObjectStorage
	Extractor   ports.AudioExtractor
	Transcriber ports.Transcriber
	Indexer     ports.VectorIndexer
	Publisher   ports.EventPublisher
	Tracer      *observability.Tracer
	Metrics     *observability.Collector
	Logger      *zap.Logger
}

// Pipeline executes ingestion runs.
type Pipeline struct {
	deps     Dependencies
	timeouts Timeouts
	now      func() time.Time
}

// NewPipeline creates a pipeline. Zero timeouts take DefaultTimeouts.
func NewPipeline(deps Dependencies, timeouts Timeouts) *Pipeline {
	def := DefaultTimeouts()
	if timeouts.Extract <= 0 {
		timeouts.Extract = def.Extract
	}
	if timeouts.Transcribe <= 0 {
		timeouts.Transcribe = def.Transcribe
	}
	if timeouts.Index <= 0 {
		timeouts.Index = def.Index
	}
	return &Pipeline{
		deps:     deps,
		timeouts: timeouts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// run is the mutable state of one execution.
type run struct {
	memory     *memory.Memory
	seq        int64
	transcript *ports.Transcript
	chunks     int
	// indexedAs is the owner whose scope received the chunks.
	indexedAs uuid.UUID
	logger    *zap.Logger
}

// Run processes the memory identified by id.
//
// It returns memory.ErrAlreadyInFlight or memory.ErrTerminal when the memory
// cannot be claimed, ErrMemoryGone when it was deleted, and a
// *memory.StageError when a stage failed. The stage error has already been
// recorded on the memory when Run returns it.
func (p *Pipeline) Run(ctx context.Context, id uuid.UUID) error {
	logger := p.deps.Logger.With(zap.String("memory_id", id.String()))

	m, err := p.deps.Memories.GetByID(ctx, id)
	if err != nil {
		if appErrors.IsNotFound(err) {
			return ErrMemoryGone
		}
		return fmt.Errorf("load memory: %w", err)
	}

	seq, err := p.deps.Status.Claim(ctx, id)
	if err != nil {
		if appErrors.IsNotFound(err) {
			return ErrMemoryGone
		}
		return err
	}

	p.deps.Metrics.PipelineStarted()
	defer p.deps.Metrics.PipelineFinished()

	ctx, end := p.deps.Tracer.StartSubsegment(ctx, "ingestion.run")
	p.deps.Tracer.AddAnnotation(ctx, "memory_id", id.String())
	p.deps.Tracer.AddAnnotation(ctx, "media_type", string(m.MediaType))

	r := &run{
		memory: m,
		seq:    seq,
		logger: logger.With(zap.Int64("run", seq), zap.String("media_type", string(m.MediaType))),
	}
	r.logger.Info("ingestion started")

	err = p.execute(ctx, r)
	end(err)
	return err
}

func (p *Pipeline) execute(ctx context.Context, r *run) error {
	for _, stage := range r.memory.Stages() {
		if err := p.runStage(ctx, r, stage); err != nil {
			if errors.Is(err, ErrMemoryGone) {
				r.logger.Info("memory deleted during ingestion", zap.String("stage", string(stage)))
				p.deps.Metrics.RecordPipelineRun("deleted")
				return ErrMemoryGone
			}
			return p.fail(ctx, r, stage, err)
		}
	}
	return p.complete(ctx, r)
}

func (p *Pipeline) runStage(ctx context.Context, r *run, stage memory.Stage) error {
	timeout := p.timeouts.For(stage)
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stageCtx, end := p.deps.Tracer.StartSubsegment(stageCtx, "ingestion."+string(stage))
	start := time.Now()

	var err error
	switch stage {
	case memory.StageExtract:
		err = p.extract(stageCtx, r)
	case memory.StageTranscribe:
		err = p.transcribe(stageCtx, r)
	case memory.StageIndex:
		err = p.index(stageCtx, r)
	default:
		err = fmt.Errorf("unknown stage %q", stage)
	}

	if err != nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", timeout, err)
	}

	end(err)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	p.deps.Metrics.RecordStage(string(stage), outcome, time.Since(start))
	r.logger.Debug("stage finished",
		zap.String("stage", string(stage)),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	return err
}

func (p *Pipeline) extract(ctx context.Context, r *run) error {
	source, err := p.deps.Storage.Get(ctx, r.memory.SourceKey)
	if err != nil {
		return fmt.Errorf("fetch source: %w", err)
	}
	defer source.Close()

	audio, err := os.CreateTemp("", "memory-audio-*.mp3")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		audio.Close()
		os.Remove(audio.Name())
	}()

	if err := p.deps.Extractor.ExtractAudio(ctx, source, audio); err != nil {
		return err
	}

	size, err := audio.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("measure audio: %w", err)
	}
	if size == 0 {
		return errors.New("extracted audio is empty")
	}
	if _, err := audio.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind audio: %w", err)
	}

	key := memory.DerivedKey(r.memory, memory.ArtifactAudio, ".mp3")
	if err := p.deps.Storage.Put(ctx, key, audio, size, "audio/mpeg"); err != nil {
		return fmt.Errorf("store audio: %w", err)
	}
	if err := p.saveArtifact(ctx, r, memory.ArtifactAudio, key); err != nil {
		return fmt.Errorf("record audio key: %w", err)
	}
	r.memory.AudioKey = key
	return nil
}

func (p *Pipeline) transcribe(ctx context.Context, r *run) error {
	key := r.memory.SourceKey
	if r.memory.MediaType == memory.MediaTypeVideo {
		key = r.memory.AudioKey
	}
	if key == "" {
		return errors.New("no audio to transcribe")
	}

	audio, err := p.deps.Storage.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("fetch audio: %w", err)
	}
	defer audio.Close()

	transcript, err := p.deps.Transcriber.Transcribe(ctx, audio)
	if err != nil {
		return err
	}

	body, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	transcriptKey := memory.DerivedKey(r.memory, memory.ArtifactTranscript, ".json")
	if err := p.deps.Storage.Put(ctx, transcriptKey, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return fmt.Errorf("store transcript: %w", err)
	}
	if err := p.saveArtifact(ctx, r, memory.ArtifactTranscript, transcriptKey); err != nil {
		return fmt.Errorf("record transcript key: %w", err)
	}

	r.memory.TranscriptKey = transcriptKey
	r.transcript = transcript
	return nil
}

// saveArtifact records key on the memory. When the memory is gone the object
// just written under key has no owner left and is removed.
func (p *Pipeline) saveArtifact(ctx context.Context, r *run, kind memory.ArtifactKind, key string) error {
	err := p.deps.Status.SaveArtifact(ctx, r.memory.ID, r.seq, kind, key)
	if err == nil || !appErrors.IsNotFound(err) {
		return err
	}
	if delErr := p.deps.Storage.Delete(context.WithoutCancel(ctx), key); delErr != nil {
		r.logger.Warn("failed to remove artifact of deleted memory", zap.String("key", key), zap.Error(delErr))
	}
	return ErrMemoryGone
}

// owner re-reads who owns the memory. A guest merge may move it while a
// run is in progress.
func (p *Pipeline) owner(ctx context.Context, r *run) (uuid.UUID, error) {
	m, err := p.deps.Memories.GetByID(ctx, r.memory.ID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			return uuid.Nil, ErrMemoryGone
		}
		return uuid.Nil, fmt.Errorf("load memory owner: %w", err)
	}
	if m.UserID != r.memory.UserID {
		r.logger.Info("memory changed owner during ingestion",
			zap.String("from_user", r.memory.UserID.String()),
			zap.String("to_user", m.UserID.String()),
		)
		r.memory.UserID = m.UserID
	}
	return m.UserID, nil
}

func (p *Pipeline) index(ctx context.Context, r *run) error {
	var chunks []ports.Chunk
	if header, ok := headerChunk(r.memory); ok {
		chunks = append(chunks, header)
	}

	switch r.memory.MediaType {
	case memory.MediaTypeText:
		body, err := p.readText(ctx, r.memory.SourceKey)
		if err != nil {
			return err
		}
		parts, err := SplitText(body)
		if err != nil {
			return fmt.Errorf("split text: %w", err)
		}
		chunks = append(chunks, parts...)
	default:
		chunks = append(chunks, ChunkTranscript(r.transcript, WordsPerChunk)...)
	}

	if len(chunks) == 0 {
		r.logger.Info("nothing to index")
		return nil
	}

	owner, err := p.owner(ctx, r)
	if err != nil {
		return err
	}
	if err := p.deps.Indexer.IndexMemory(ctx, owner, r.memory.ID, chunks); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}
	r.indexedAs = owner
	r.chunks = len(chunks)
	return nil
}

func (p *Pipeline) readText(ctx context.Context, key string) (string, error) {
	rc, err := p.deps.Storage.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("fetch text: %w", err)
	}
	defer rc.Close()

	body, err := io.ReadAll(io.LimitReader(rc, maxTextBytes))
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return string(bytes.ToValidUTF8(body, []byte("�"))), nil
}

// complete records success unless the memory was deleted while running.
// Chunks indexed under an owner the memory no longer has are moved to the
// current owner first; a merge committing after this check moves them itself.
func (p *Pipeline) complete(ctx context.Context, r *run) error {
	ctx = context.WithoutCancel(ctx)

	owner, err := p.owner(ctx, r)
	if errors.Is(err, ErrMemoryGone) {
		r.logger.Info("memory deleted during ingestion, dropping result")
		p.dropIndexed(ctx, r)
		p.deps.Metrics.RecordPipelineRun("deleted")
		return ErrMemoryGone
	}
	if err != nil {
		return err
	}

	if r.chunks > 0 && r.indexedAs != owner {
		if err := p.deps.Indexer.ReassignOwner(ctx, r.indexedAs, owner, []uuid.UUID{r.memory.ID}); err != nil {
			return p.fail(ctx, r, memory.StageIndex, fmt.Errorf("move chunks to new owner: %w", err))
		}
		r.indexedAs = owner
	}

	if err := p.deps.Status.Complete(ctx, r.memory.ID, r.seq); err != nil {
		if appErrors.IsNotFound(err) {
			p.dropIndexed(ctx, r)
			p.deps.Metrics.RecordPipelineRun("deleted")
			return ErrMemoryGone
		}
		r.logger.Error("failed to record completion", zap.Error(err))
		return err
	}

	p.deps.Metrics.RecordPipelineRun("completed")
	r.logger.Info("ingestion completed", zap.Int("chunks", r.chunks))
	p.publish(ctx, r, events.NewMemoryProcessed(r.memory.ID, r.memory.UserID, r.seq, r.chunks, p.now()))
	return nil
}

// dropIndexed removes chunks added after the memory's own cleanup ran.
func (p *Pipeline) dropIndexed(ctx context.Context, r *run) {
	if r.chunks == 0 {
		return
	}
	if err := p.deps.Indexer.DeleteMemory(ctx, r.indexedAs, r.memory.ID); err != nil {
		r.logger.Warn("failed to remove chunks of deleted memory", zap.Error(err))
	}
}

// fail records the stage failure. The write uses a context detached from
// cancellation so a timed out or shut down run still leaves its outcome.
func (p *Pipeline) fail(ctx context.Context, r *run, stage memory.Stage, cause error) error {
	stageErr := &memory.StageError{Stage: stage, Err: cause}
	ctx = context.WithoutCancel(ctx)

	r.logger.Warn("ingestion stage failed", zap.String("stage", string(stage)), zap.Error(cause))
	p.deps.Metrics.RecordPipelineRun("failed")

	if err := p.deps.Status.Fail(ctx, r.memory.ID, r.seq, stage, stageErr.Error()); err != nil {
		switch {
		case appErrors.IsNotFound(err):
			return ErrMemoryGone
		case errors.Is(err, memory.ErrStaleRun):
			r.logger.Warn("failure not recorded, run is stale")
		default:
			r.logger.Error("failed to record stage failure", zap.Error(err))
		}
		return stageErr
	}

	p.publish(ctx, r, events.NewMemoryProcessingFailed(r.memory.ID, r.memory.UserID, r.seq, string(stage), p.now()))
	return stageErr
}

func (p *Pipeline) publish(ctx context.Context, r *run, event events.DomainEvent) {
	if p.deps.Publisher == nil {
		return
	}
	if err := p.deps.Publisher.Publish(ctx, event); err != nil {
		r.logger.Warn("failed to publish event", zap.String("event_type", event.GetEventType()), zap.Error(err))
	}
}
