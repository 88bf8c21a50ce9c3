package ports

import (
	"context"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/domain/conversation"
	"github.com/dharun-sukumar/Audio-Rag/domain/identity"
	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	"github.com/dharun-sukumar/Audio-Rag/domain/tag"
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"

	"github.com/google/uuid"
)

// Repositories return pkg/errors NOT_FOUND for missing rows and CONFLICT
// for unique constraint violations.

// UserRepository persists user records.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
	GetByExternalUID(ctx context.Context, uid string) (*identity.User, error)
	GetByEmail(ctx context.Context, email string) (*identity.User, error)
	GetByGuestID(ctx context.Context, guestID string) (*identity.User, error)

	// Create inserts a user; a duplicate email, external uid or guest id is a CONFLICT.
	Create(ctx context.Context, user *identity.User) error

	// AttachExternalUID links a token subject to an existing account.
	AttachExternalUID(ctx context.Context, id uuid.UUID, uid, name, picture string) error

	TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error
}

// MemoryRepository persists memory records and their tag associations.
type MemoryRepository interface {
	// Create inserts the memory and associations for m.TagIDs.
	Create(ctx context.Context, m *memory.Memory) error

	// GetByID loads a memory regardless of owner.
	GetByID(ctx context.Context, id uuid.UUID) (*memory.Memory, error)

	// GetForUser loads a memory owned by userID; other owners look like NOT_FOUND.
	GetForUser(ctx context.Context, userID, id uuid.UUID) (*memory.Memory, error)

	List(ctx context.Context, userID uuid.UUID, filter memory.ListFilter, page common.PaginationParams) ([]*memory.Memory, int64, error)

	// ListCreatedBetween returns the owner's memories created in [from, to),
	// without tags.
	ListCreatedBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*memory.Memory, error)

	// UpdateMetadata writes user editable fields only. Status and artifact
	// columns belong to the ProcessingStatusStore.
	UpdateMetadata(ctx context.Context, m *memory.Memory) error

	Delete(ctx context.Context, userID, id uuid.UUID) error

	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	AddTag(ctx context.Context, memoryID, tagID uuid.UUID) error
	RemoveTag(ctx context.Context, memoryID, tagID uuid.UUID) error
	ReplaceTags(ctx context.Context, memoryID uuid.UUID, tagIDs []uuid.UUID) error

	// ListPendingBefore returns memories still pending that were last
	// updated before cutoff, oldest first. Tag ids are not loaded.
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*memory.Memory, error)
}

// ProcessingStatusStore owns the status, error and artifact columns of a
// memory. Every write after Claim is conditional on the run number it
// returned, so a stale writer can never overwrite a newer or terminal state.
type ProcessingStatusStore interface {
	// Claim moves a pending memory to processing and returns the new run number.
	Claim(ctx context.Context, id uuid.UUID) (int64, error)

	SaveArtifact(ctx context.Context, id uuid.UUID, run int64, kind memory.ArtifactKind, key string) error

	Complete(ctx context.Context, id uuid.UUID, run int64) error

	Fail(ctx context.Context, id uuid.UUID, run int64, stage memory.Stage, message string) error

	// Reset moves a failed memory back to pending for resubmission.
	Reset(ctx context.Context, id uuid.UUID) error

	// ExpireClaims releases processing runs claimed before cutoff, whose
	// worker is presumed dead. A run numbered maxRuns or higher is failed,
	// earlier ones go back to pending. At most limit memories are released.
	ExpireClaims(ctx context.Context, cutoff time.Time, maxRuns int64, limit int) ([]ExpiredClaim, error)
}

// ExpiredClaim describes a memory released by ExpireClaims.
type ExpiredClaim struct {
	MemoryID uuid.UUID
	UserID   uuid.UUID
	Run      int64
	// Failed is set when the memory was failed instead of requeued.
	Failed bool
}

// TagRepository persists tags. (user_id, name) is unique.
type TagRepository interface {
	Create(ctx context.Context, t *tag.Tag) error
	GetForUser(ctx context.Context, userID, id uuid.UUID) (*tag.Tag, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*tag.Tag, error)
	Update(ctx context.Context, t *tag.Tag) error
	Delete(ctx context.Context, userID, id uuid.UUID) error

	// CountOwned returns how many of ids belong to userID.
	CountOwned(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error)
}

// ConversationRepository persists conversations and their messages.
type ConversationRepository interface {
	// Create inserts a conversation with its initial messages. When limit is
	// positive the owner's existing count is checked in the same transaction
	// and conversation.ErrLimitReached is returned once it reaches limit.
	Create(ctx context.Context, c *conversation.Conversation, msgs []*conversation.Message, limit int) error

	GetForUser(ctx context.Context, userID, id uuid.UUID) (*conversation.Conversation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page common.PaginationParams) ([]*conversation.Conversation, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	ListCreatedBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*conversation.Conversation, error)
	UpdateTitle(ctx context.Context, userID, id uuid.UUID, title string) error
	Delete(ctx context.Context, userID, id uuid.UUID) error

	// AddMessage appends a message and bumps the conversation's updated_at.
	AddMessage(ctx context.Context, userID uuid.UUID, msg *conversation.Message) error
	ListMessages(ctx context.Context, userID, conversationID uuid.UUID, page common.PaginationParams) ([]*conversation.Message, error)
}

// MergeStore runs the guest merge protocol inside one serializable transaction.
type MergeStore interface {
	InMergeTransaction(ctx context.Context, fn func(tx MergeTx) error) error

	// IsRetryable reports whether err is a serialization or lock conflict
	// that may succeed if the transaction is run again.
	IsRetryable(err error) bool
}

// MergeTx exposes the row operations of a merge. All calls share one transaction.
type MergeTx interface {
	// LockGuest re-reads the user holding guestID with a locking read.
	// It returns NOT_FOUND when no row carries the id.
	LockGuest(ctx context.Context, guestID string) (*identity.User, error)

	LockUser(ctx context.Context, id uuid.UUID) (*identity.User, error)

	ReassignConversations(ctx context.Context, from, to uuid.UUID) (int64, error)

	// ReassignMemories moves memory ownership and returns the moved ids.
	ReassignMemories(ctx context.Context, from, to uuid.UUID) ([]uuid.UUID, error)

	ListTags(ctx context.Context, userID uuid.UUID) ([]*tag.Tag, error)
	FindTagByName(ctx context.Context, userID uuid.UUID, name string) (*tag.Tag, error)

	// RepointMemoryTags moves associations from one tag to another, skipping
	// memories already associated with the destination.
	RepointMemoryTags(ctx context.Context, from, to uuid.UUID) (int64, error)

	DeleteTag(ctx context.Context, id uuid.UUID) error
	TransferTag(ctx context.Context, id, to uuid.UUID) error

	ClearGuestIdentity(ctx context.Context, userID uuid.UUID) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
}
