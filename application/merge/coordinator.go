// Package merge folds a guest account into an authenticated account.
package merge

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	"github.com/dharun-sukumar/Audio-Rag/domain/events"
	"github.com/dharun-sukumar/Audio-Rag/domain/tag"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"
	"github.com/dharun-sukumar/Audio-Rag/pkg/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outcome is the result of a merge that did not fail.
type Outcome string

const (
	MergeSucceeded     Outcome = "merged"
	MergeAlreadyMerged Outcome = "already_merged"
)

const (
	msgDenied = "access denied"
	msgFailed = "failed to merge account data"
)

// errNothingToMerge rolls back a transaction that found nothing to do.
var errNothingToMerge = errors.New("nothing to merge")

// Config tunes the retry loop.
type Config struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

// DefaultConfig returns three attempts with a 50ms base backoff.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseBackoff: 50 * time.Millisecond}
}

// Result summarizes what a merge moved.
type Result struct {
	Outcome       Outcome
	GuestUserID   uuid.UUID
	Conversations int64
	MemoryIDs     []uuid.UUID
	TagsMoved     int
	TagsMerged    int
}

// Coordinator runs the merge protocol.
type Coordinator struct {
	store     ports.MergeStore
	indexer   ports.VectorIndexer
	publisher ports.EventPublisher
	metrics   *observability.Collector
	logger    *zap.Logger
	config    Config
	sleep     func(context.Context, time.Duration) error
}

// NewCoordinator creates a coordinator. indexer, publisher and metrics may be nil.
func NewCoordinator(
	store ports.MergeStore,
	indexer ports.VectorIndexer,
	publisher ports.EventPublisher,
	metrics *observability.Collector,
	logger *zap.Logger,
	config Config,
) *Coordinator {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if config.BaseBackoff <= 0 {
		config.BaseBackoff = DefaultConfig().BaseBackoff
	}
	return &Coordinator{
		store:     store,
		indexer:   indexer,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		config:    config,
		sleep:     sleepContext,
	}
}

// Merge moves everything the guest owns to targetUserID and removes the guest.
//
// Calling Merge again for a guest that is gone or already cleared succeeds
// with MergeAlreadyMerged. A guest id that belongs to an authenticated account
// is rejected with FORBIDDEN and nothing is written. Every other failure is
// logged and returned as a generic INTERNAL error.
func (c *Coordinator) Merge(ctx context.Context, guestID string, targetUserID uuid.UUID) (Outcome, error) {
	logger := c.logger.With(zap.String("guest_id", guestID), zap.String("target_user_id", targetUserID.String()))

	var (
		result *Result
		err    error
	)
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		result, err = c.attempt(ctx, guestID, targetUserID)
		if err == nil || !c.store.IsRetryable(err) || attempt == c.config.MaxAttempts {
			break
		}

		c.metrics.RecordMergeRetry()
		logger.Warn("merge transaction conflicted, retrying", zap.Int("attempt", attempt), zap.Error(err))
		if sleepErr := c.sleep(ctx, c.backoff(attempt)); sleepErr != nil {
			err = sleepErr
			break
		}
	}

	if err != nil {
		if appErrors.IsForbidden(err) {
			c.metrics.RecordMerge("rejected")
			logger.Warn("merge rejected", zap.Error(err))
			return "", appErrors.NewForbiddenError(msgDenied)
		}
		c.metrics.RecordMerge("failed")
		logger.Error("merge failed", zap.Error(err))
		return "", appErrors.NewInternalError(msgFailed).WithCause(err)
	}

	c.metrics.RecordMerge(string(result.Outcome))
	if result.Outcome == MergeAlreadyMerged {
		logger.Info("guest already merged")
		return result.Outcome, nil
	}

	logger.Info("merged guest account",
		zap.String("guest_user_id", result.GuestUserID.String()),
		zap.Int64("conversations", result.Conversations),
		zap.Int("memories", len(result.MemoryIDs)),
		zap.Int("tags_moved", result.TagsMoved),
		zap.Int("tags_merged", result.TagsMerged),
	)
	c.afterCommit(ctx, targetUserID, result, logger)
	return result.Outcome, nil
}

func (c *Coordinator) attempt(ctx context.Context, guestID string, targetUserID uuid.UUID) (*Result, error) {
	var result *Result
	err := c.store.InMergeTransaction(ctx, func(tx ports.MergeTx) error {
		r, err := c.run(ctx, tx, guestID, targetUserID)
		if err != nil {
			return err
		}
		result = r
		if r.Outcome == MergeAlreadyMerged {
			return errNothingToMerge
		}
		return nil
	})
	if errors.Is(err, errNothingToMerge) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// run executes the protocol inside tx. Guards run before the first write.
func (c *Coordinator) run(ctx context.Context, tx ports.MergeTx, guestID string, targetUserID uuid.UUID) (*Result, error) {
	noop := &Result{Outcome: MergeAlreadyMerged}

	if guestID == "" {
		return noop, nil
	}

	guest, err := tx.LockGuest(ctx, guestID)
	switch {
	case appErrors.IsNotFound(err):
		return noop, nil
	case err != nil:
		return nil, err
	}

	if guest.ID == targetUserID {
		return noop, nil
	}
	if guest.IsAuthenticated() {
		return nil, appErrors.NewForbiddenError("guest id belongs to an authenticated account")
	}

	target, err := tx.LockUser(ctx, targetUserID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			return nil, appErrors.NewForbiddenError("merge target does not exist")
		}
		return nil, err
	}
	if !target.IsAuthenticated() {
		return nil, appErrors.NewForbiddenError("merge target is a guest account")
	}

	result := &Result{Outcome: MergeSucceeded, GuestUserID: guest.ID}

	if result.Conversations, err = tx.ReassignConversations(ctx, guest.ID, target.ID); err != nil {
		return nil, err
	}
	if result.MemoryIDs, err = tx.ReassignMemories(ctx, guest.ID, target.ID); err != nil {
		return nil, err
	}
	if err := c.mergeTags(ctx, tx, guest.ID, target.ID, result); err != nil {
		return nil, err
	}

	if err := tx.ClearGuestIdentity(ctx, target.ID); err != nil {
		return nil, err
	}
	if err := tx.DeleteUser(ctx, guest.ID); err != nil {
		return nil, err
	}
	return result, nil
}

// mergeTags moves guest tags to the target. When the target already owns a tag
// with the same name its tag survives, color included.
func (c *Coordinator) mergeTags(ctx context.Context, tx ports.MergeTx, guestUserID, targetID uuid.UUID, result *Result) error {
	guestTags, err := tx.ListTags(ctx, guestUserID)
	if err != nil {
		return err
	}

	for _, gt := range guestTags {
		existing, err := tx.FindTagByName(ctx, targetID, tag.NormalizeName(gt.Name))
		switch {
		case appErrors.IsNotFound(err):
			if err := tx.TransferTag(ctx, gt.ID, targetID); err != nil {
				return err
			}
			result.TagsMoved++
		case err != nil:
			return err
		default:
			if _, err := tx.RepointMemoryTags(ctx, gt.ID, existing.ID); err != nil {
				return err
			}
			if err := tx.DeleteTag(ctx, gt.ID); err != nil {
				return err
			}
			result.TagsMerged++
		}
	}
	return nil
}

// afterCommit moves index documents and publishes the merge event. Failures
// are logged; the relational merge has already committed.
func (c *Coordinator) afterCommit(ctx context.Context, targetUserID uuid.UUID, result *Result, logger *zap.Logger) {
	if c.indexer != nil && len(result.MemoryIDs) > 0 {
		if err := c.indexer.ReassignOwner(ctx, result.GuestUserID, targetUserID, result.MemoryIDs); err != nil {
			logger.Error("failed to reassign index documents", zap.Error(err))
		}
	}

	if c.publisher != nil {
		event := events.NewAccountMerged(
			targetUserID,
			result.GuestUserID,
			result.Conversations,
			int64(len(result.MemoryIDs)),
			result.TagsMoved,
			result.TagsMerged,
			time.Now().UTC(),
		)
		if err := c.publisher.Publish(ctx, event); err != nil {
			logger.Warn("failed to publish account merged event", zap.Error(err))
		}
	}
}

func (c *Coordinator) backoff(attempt int) time.Duration {
	d := c.config.BaseBackoff << (attempt - 1)
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
