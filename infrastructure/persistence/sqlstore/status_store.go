package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatusStore implements ports.ProcessingStatusStore with single row
// compare-and-set updates on the memories table.
type StatusStore struct {
	db *gorm.DB
}

// Claim also stamps claimed_at, which starts the run's lease.
func (s *StatusStore) Claim(ctx context.Context, id uuid.UUID) (int64, error) {
	var run int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&memoryRecord{}).
			Where("id = ? AND status = ?", id, string(memory.StatusPending)).
			Updates(map[string]interface{}{
				"status":        string(memory.StatusProcessing),
				"run_seq":       gorm.Expr("run_seq + 1"),
				"error_message": "",
				"failed_stage":  "",
				"claimed_at":    now,
				"updated_at":    now,
			})
		if res.Error != nil {
			return res.Error
		}

		var rec memoryRecord
		if err := tx.Select("status", "run_seq").Where("id = ?", id).Take(&rec).Error; err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return claimError(memory.Status(rec.Status))
		}
		run = rec.RunSeq
		return nil
	})
	if err != nil {
		return 0, translate("claim memory", "memory", err)
	}
	return run, nil
}

func claimError(current memory.Status) error {
	switch {
	case current == memory.StatusProcessing:
		return memory.ErrAlreadyInFlight
	case current.IsTerminal():
		return memory.ErrTerminal
	default:
		return fmt.Errorf("cannot claim memory in status %q", current)
	}
}

// runScoped returns an update limited to the current processing run.
func (s *StatusStore) runScoped(ctx context.Context, id uuid.UUID, run int64) *gorm.DB {
	return s.db.WithContext(ctx).Model(&memoryRecord{}).
		Where("id = ? AND status = ? AND run_seq = ?", id, string(memory.StatusProcessing), run)
}

func (s *StatusStore) applyRunScoped(ctx context.Context, op string, id uuid.UUID, run int64, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC()

	res := s.runScoped(ctx, id, run).Updates(updates)
	if res.Error != nil {
		return translate(op, "memory", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&memoryRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return translate(op, "memory", err)
	}
	if count == 0 {
		return appErrors.NewNotFoundError("memory")
	}
	return memory.ErrStaleRun
}

func (s *StatusStore) SaveArtifact(ctx context.Context, id uuid.UUID, run int64, kind memory.ArtifactKind, key string) error {
	var column string
	switch kind {
	case memory.ArtifactAudio:
		column = "audio_key"
	case memory.ArtifactTranscript:
		column = "transcript_key"
	default:
		return fmt.Errorf("unknown artifact kind %q", kind)
	}
	return s.applyRunScoped(ctx, "save artifact", id, run, map[string]interface{}{column: key})
}

func (s *StatusStore) Complete(ctx context.Context, id uuid.UUID, run int64) error {
	return s.applyRunScoped(ctx, "complete memory", id, run, map[string]interface{}{
		"status": string(memory.StatusCompleted),
	})
}

func (s *StatusStore) Fail(ctx context.Context, id uuid.UUID, run int64, stage memory.Stage, message string) error {
	return s.applyRunScoped(ctx, "fail memory", id, run, map[string]interface{}{
		"status":        string(memory.StatusFailed),
		"failed_stage":  string(stage),
		"error_message": message,
	})
}

func (s *StatusStore) Reset(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&memoryRecord{}).
			Where("id = ? AND status = ?", id, string(memory.StatusFailed)).
			Updates(map[string]interface{}{
				"status":     string(memory.StatusPending),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		var rec memoryRecord
		if err := tx.Select("status").Where("id = ?", id).Take(&rec).Error; err != nil {
			return err
		}
		return appErrors.NewConflictError(fmt.Sprintf("memory is %s and cannot be reprocessed", rec.Status))
	})
	return translate("reset memory", "memory", err)
}

func (s *StatusStore) ExpireClaims(ctx context.Context, cutoff time.Time, maxRuns int64, limit int) ([]ports.ExpiredClaim, error) {
	var recs []memoryRecord
	err := s.db.WithContext(ctx).
		Select("id", "user_id", "run_seq").
		Where("status = ? AND (claimed_at IS NULL OR claimed_at < ?)", string(memory.StatusProcessing), cutoff).
		Order("claimed_at ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, translate("list expired claims", "memory", err)
	}

	var out []ports.ExpiredClaim
	for _, rec := range recs {
		claim := ports.ExpiredClaim{MemoryID: rec.ID, UserID: rec.UserID, Run: rec.RunSeq, Failed: rec.RunSeq >= maxRuns}
		updates := map[string]interface{}{
			"status":     string(memory.StatusPending),
			"claimed_at": nil,
			"updated_at": time.Now().UTC(),
		}
		if claim.Failed {
			updates["status"] = string(memory.StatusFailed)
			updates["error_message"] = fmt.Sprintf("processing abandoned: run %d did not finish in time", rec.RunSeq)
		}

		// The run may have finished or been released since the select.
		res := s.runScoped(ctx, rec.ID, rec.RunSeq).Updates(updates)
		if res.Error != nil {
			return out, translate("expire claim", "memory", res.Error)
		}
		if res.RowsAffected > 0 {
			out = append(out, claim)
		}
	}
	return out, nil
}
