package ports

import (
	"context"
	"io"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/domain/events"
	"github.com/dharun-sukumar/Audio-Rag/domain/identity"

	"github.com/google/uuid"
)

// TokenVerifier validates a bearer credential and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (identity.Claims, error)
}

// ObjectStorage stores opaque blobs by key.
type ObjectStorage interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// URLSigner is implemented by object stores that can hand out time limited
// download links.
type URLSigner interface {
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// AudioExtractor writes the audio track of a video to audio as MP3.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, video io.Reader, audio io.Writer) error
}

// Word is one transcribed word. Times are in milliseconds.
type Word struct {
	Text       string  `json:"text"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Confidence float64 `json:"confidence,omitempty"`
	Speaker    string  `json:"speaker,omitempty"`
}

// Utterance is a speaker labelled span of a transcript.
type Utterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Start   int64  `json:"start"`
	End     int64  `json:"end"`
}

// Transcript is the output of a Transcriber.
type Transcript struct {
	ID         string      `json:"id,omitempty"`
	Text       string      `json:"text"`
	Words      []Word      `json:"words"`
	Utterances []Utterance `json:"utterances,omitempty"`
}

// Transcriber turns speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader) (*Transcript, error)
}

// Chunk is one piece of text handed to the search index. Start and End are
// seconds into the recording when the chunk came from a transcript.
type Chunk struct {
	Text  string
	Start *float64
	End   *float64
}

// VectorIndexer is the search sink. Documents are scoped to their owner.
type VectorIndexer interface {
	IndexMemory(ctx context.Context, userID, memoryID uuid.UUID, chunks []Chunk) error
	DeleteMemory(ctx context.Context, userID, memoryID uuid.UUID) error

	// ReassignOwner moves the documents of memoryIDs from one owner's scope to another's.
	ReassignOwner(ctx context.Context, from, to uuid.UUID, memoryIDs []uuid.UUID) error
}

// SearchHit is one chunk returned by a similarity search.
type SearchHit struct {
	MemoryID   uuid.UUID
	Text       string
	Similarity float32
	Start      *float64
	End        *float64
}

// MemorySearcher runs similarity searches over one user's indexed memories.
type MemorySearcher interface {
	Search(ctx context.Context, userID uuid.UUID, query string, limit int) ([]SearchHit, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// LanguageModel answers a prompt under a system instruction.
type LanguageModel interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}
