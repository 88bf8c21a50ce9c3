package memory

import (
	"errors"
	"fmt"
)

// Status is the processing state of a memory.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ParseStatus parses a stored or user supplied status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// IsTerminal reports whether no pipeline transition may leave this state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether the pipeline may move from s to next.
// failed -> pending is the resubmission path; completed is final.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	case StatusFailed:
		return next == StatusPending
	case StatusCompleted:
		return false
	default:
		return false
	}
}

// Stage is one ordered step of the ingestion pipeline.
type Stage string

const (
	StageExtract    Stage = "extract"
	StageTranscribe Stage = "transcribe"
	StageIndex      Stage = "index"
)

// StagesFor returns the applicable stages for a media type, in execution order.
func StagesFor(mt MediaType) []Stage {
	switch mt {
	case MediaTypeVideo:
		return []Stage{StageExtract, StageTranscribe, StageIndex}
	case MediaTypeAudio:
		return []Stage{StageTranscribe, StageIndex}
	case MediaTypeText:
		return []Stage{StageIndex}
	default:
		return nil
	}
}

// ArtifactKind names a storage artifact column on a memory.
type ArtifactKind string

const (
	ArtifactAudio      ArtifactKind = "audio"
	ArtifactTranscript ArtifactKind = "transcript"
)

// StageError records which stage of a pipeline run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

var (
	// ErrAlreadyInFlight means another run holds the memory.
	ErrAlreadyInFlight = errors.New("memory is already being processed")
	// ErrTerminal means the memory reached completed or failed and cannot be claimed.
	ErrTerminal = errors.New("memory is in a terminal state")
	// ErrStaleRun means a write came from a run that no longer owns the memory.
	ErrStaleRun = errors.New("processing run is no longer current")
)
