package queries

import (
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
)

// CalendarDayQuery loads what the user created on one YYYY-MM-DD day.
type CalendarDayQuery struct {
	UserID uuid.UUID
	Date   string
}

// Validate validates the CalendarDayQuery
func (q CalendarDayQuery) Validate() error {
	if q.UserID == uuid.Nil {
		return appErrors.NewValidationError("user id is required")
	}
	if q.Date == "" {
		return appErrors.NewValidationError("date is required")
	}
	return nil
}

// CalendarRangeQuery loads the non-empty days between StartDate and EndDate.
type CalendarRangeQuery struct {
	UserID    uuid.UUID
	StartDate string
	EndDate   string
}

// Validate validates the CalendarRangeQuery
func (q CalendarRangeQuery) Validate() error {
	if q.UserID == uuid.Nil {
		return appErrors.NewValidationError("user id is required")
	}
	if q.StartDate == "" || q.EndDate == "" {
		return appErrors.NewValidationError("start_date and end_date are required")
	}
	return nil
}
