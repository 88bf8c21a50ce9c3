package handlers

import (
	"net/http"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/queries"
	querybus "github.com/dharun-sukumar/Audio-Rag/application/queries/bus"
	"github.com/dharun-sukumar/Audio-Rag/application/services"
	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CalendarRangeRequest selects the days of a range view.
type CalendarRangeRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// CalendarRecordingResponse is a memory as listed on a calendar day.
type CalendarRecordingResponse struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	MediaType     string    `json:"media_type"`
	Status        string    `json:"status"`
	HasTranscript bool      `json:"has_transcript"`
	CreatedAt     time.Time `json:"created_at"`
}

func newCalendarRecordingResponse(m *memory.Memory) CalendarRecordingResponse {
	return CalendarRecordingResponse{
		ID:            m.ID,
		Title:         m.Title,
		MediaType:     string(m.MediaType),
		Status:        string(m.Status),
		HasTranscript: m.TranscriptKey != "",
		CreatedAt:     m.CreatedAt,
	}
}

// CalendarDayResponse is the wire form of one calendar day.
type CalendarDayResponse struct {
	Date          string                      `json:"date"`
	Conversations []ConversationResponse      `json:"conversations"`
	Recordings    []CalendarRecordingResponse `json:"recordings"`
	TotalCount    int                         `json:"total_count"`
}

func newCalendarDayResponse(d *services.CalendarDay) CalendarDayResponse {
	return CalendarDayResponse{
		Date:          d.Date,
		Conversations: mapSlice(d.Conversations, newConversationResponse),
		Recordings:    mapSlice(d.Memories, newCalendarRecordingResponse),
		TotalCount:    d.Total(),
	}
}

// CalendarHandler serves calendar views
type CalendarHandler struct {
	base
}

// NewCalendarHandler creates a new calendar handler
func NewCalendarHandler(queryBus *querybus.QueryBus, errs *appErrors.ErrorHandler, logger *zap.Logger) *CalendarHandler {
	return &CalendarHandler{base: newBase(nil, queryBus, errs, logger)}
}

// Day handles GET /calendar/date/{date}
func (h *CalendarHandler) Day(w http.ResponseWriter, r *http.Request) {
	day, ok := h.day(w, r)
	if !ok {
		return
	}
	common.RespondJSON(w, http.StatusOK, newCalendarDayResponse(day))
}

// Conversations handles GET /calendar/conversations/{date}
func (h *CalendarHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	day, ok := h.day(w, r)
	if !ok {
		return
	}
	common.RespondJSON(w, http.StatusOK, itemsResponse[ConversationResponse]{
		Items: mapSlice(day.Conversations, newConversationResponse),
	})
}

// Recordings handles GET /calendar/recordings/{date}
func (h *CalendarHandler) Recordings(w http.ResponseWriter, r *http.Request) {
	day, ok := h.day(w, r)
	if !ok {
		return
	}
	common.RespondJSON(w, http.StatusOK, itemsResponse[CalendarRecordingResponse]{
		Items: mapSlice(day.Memories, newCalendarRecordingResponse),
	})
}

// Range handles POST /calendar/date-range. The answer maps each day that
// has items to its content.
func (h *CalendarHandler) Range(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	var req CalendarRangeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.CalendarRangeQuery{
		UserID:    caller.UserID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	days := result.([]*services.CalendarDay)
	out := make(map[string]CalendarDayResponse, len(days))
	for _, d := range days {
		out[d.Date] = newCalendarDayResponse(d)
	}
	common.RespondJSON(w, http.StatusOK, out)
}

func (h *CalendarHandler) day(w http.ResponseWriter, r *http.Request) (*services.CalendarDay, bool) {
	caller, err := h.caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return nil, false
	}

	result, err := h.queryBus.Ask(r.Context(), queries.CalendarDayQuery{
		UserID: caller.UserID,
		Date:   chi.URLParam(r, "date"),
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return nil, false
	}
	return result.(*services.CalendarDay), true
}
