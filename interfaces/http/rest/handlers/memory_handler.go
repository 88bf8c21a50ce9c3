package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/commands"
	"github.com/dharun-sukumar/Audio-Rag/application/commands/bus"
	"github.com/dharun-sukumar/Audio-Rag/application/queries"
	querybus "github.com/dharun-sukumar/Audio-Rag/application/queries/bus"
	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"
	"github.com/dharun-sukumar/Audio-Rag/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// multipartMemory is how much of a multipart form is held in memory
// before spilling to temporary files.
const multipartMemory = 32 << 20

// MemoryHandler handles memory-related HTTP requests
type MemoryHandler struct {
	base
	maxUpload int64
}

// NewMemoryHandler creates a new memory handler. maxUpload bounds the
// request body of an upload.
func NewMemoryHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errs *appErrors.ErrorHandler,
	maxUpload int64,
	logger *zap.Logger,
) *MemoryHandler {
	return &MemoryHandler{base: newBase(commandBus, queryBus, errs, logger), maxUpload: maxUpload}
}

// CreateTextMemoryRequest is a note typed directly into the client.
type CreateTextMemoryRequest struct {
	Content string `json:"content" validate:"required"`
	memory.Metadata
}

// Upload handles POST /memories. The form carries the file under "file"
// and optional JSON metadata under "metadata".
func (h *MemoryHandler) Upload(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.errs.HandleStatus(w, r, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		h.errs.Handle(w, r, appErrors.NewValidationError("invalid multipart form").WithCause(err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errs.Handle(w, r, appErrors.NewValidationError("file is required"))
		return
	}
	defer file.Close()

	var meta memory.Metadata
	if raw := strings.TrimSpace(r.FormValue("metadata")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			h.errs.Handle(w, r, appErrors.NewValidationError("metadata must be a JSON object").WithCause(err))
			return
		}
	}

	var created memory.Memory
	err = h.commandBus.Send(r.Context(), commands.UploadMemoryCommand{
		MemoryID:    uuid.New(),
		UserID:      caller.UserID,
		Filename:    header.Filename,
		ContentType: uploadContentType(header.Header.Get("Content-Type"), header.Filename),
		Size:        header.Size,
		Body:        file,
		Metadata:    meta,
		Created:     &created,
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, newMemoryResponse(&created))
}

// CreateText handles POST /memories/text
func (h *MemoryHandler) CreateText(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	var req CreateTextMemoryRequest
	if err := h.decode(w, r, &req); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	var created memory.Memory
	err = h.commandBus.Send(r.Context(), commands.UploadMemoryCommand{
		MemoryID:    uuid.New(),
		UserID:      caller.UserID,
		Filename:    "note.txt",
		ContentType: "text/plain",
		Size:        int64(len(req.Content)),
		Body:        strings.NewReader(req.Content),
		Metadata:    req.Metadata,
		Created:     &created,
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, newMemoryResponse(&created))
}

// List handles GET /memories
func (h *MemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.ListMemoriesQuery{
		UserID:     caller.UserID,
		Filter:     filter,
		Pagination: common.ExtractPaginationParams(r),
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	page := result.(*queries.ListMemoriesResult)
	items := mapSlice(page.Memories, newMemoryResponse)
	common.RespondJSON(w, http.StatusOK, common.NewPaginatedResult(items, page.Pagination, page.Total))
}

// Get handles GET /memories/{memoryID}
func (h *MemoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, memoryID, ok := h.target(w, r)
	if !ok {
		return
	}
	h.respondMemory(w, r, http.StatusOK, caller.UserID, memoryID)
}

// Update handles PATCH /memories/{memoryID}
func (h *MemoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, memoryID, ok := h.target(w, r)
	if !ok {
		return
	}

	var update memory.Update
	if err := h.decode(w, r, &update); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	err := h.commandBus.Send(r.Context(), commands.UpdateMemoryCommand{
		MemoryID: memoryID,
		UserID:   caller.UserID,
		Update:   update,
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	h.respondMemory(w, r, http.StatusOK, caller.UserID, memoryID)
}

// Delete handles DELETE /memories/{memoryID}
func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, memoryID, ok := h.target(w, r)
	if !ok {
		return
	}

	err := h.commandBus.Send(r.Context(), commands.DeleteMemoryCommand{MemoryID: memoryID, UserID: caller.UserID})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// Reprocess handles POST /memories/{memoryID}/reprocess
func (h *MemoryHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	caller, memoryID, ok := h.target(w, r)
	if !ok {
		return
	}

	var reset memory.Memory
	err := h.commandBus.Send(r.Context(), commands.ReprocessMemoryCommand{MemoryID: memoryID, UserID: caller.UserID, Reset: &reset})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusAccepted, newMemoryResponse(&reset))
}

// AttachTag handles POST /memories/{memoryID}/tags/{tagID}
func (h *MemoryHandler) AttachTag(w http.ResponseWriter, r *http.Request) {
	caller, memoryID, ok := h.target(w, r)
	if !ok {
		return
	}
	tagID, err := pathID(r, "tagID")
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	err = h.commandBus.Send(r.Context(), commands.AttachTagCommand{MemoryID: memoryID, TagID: tagID, UserID: caller.UserID})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	h.respondMemory(w, r, http.StatusOK, caller.UserID, memoryID)
}

// DetachTag handles DELETE /memories/{memoryID}/tags/{tagID}
func (h *MemoryHandler) DetachTag(w http.ResponseWriter, r *http.Request) {
	caller, memoryID, ok := h.target(w, r)
	if !ok {
		return
	}
	tagID, err := pathID(r, "tagID")
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	err = h.commandBus.Send(r.Context(), commands.DetachTagCommand{MemoryID: memoryID, TagID: tagID, UserID: caller.UserID})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// target resolves the caller and the memory id of the URL. It writes the
// error response itself when either is missing.
func (h *MemoryHandler) target(w http.ResponseWriter, r *http.Request) (common.Caller, uuid.UUID, bool) {
	caller, err := h.caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return common.Caller{}, uuid.Nil, false
	}
	memoryID, err := pathID(r, "memoryID")
	if err != nil {
		h.errs.Handle(w, r, err)
		return common.Caller{}, uuid.Nil, false
	}
	return caller, memoryID, true
}

func (h *MemoryHandler) respondMemory(w http.ResponseWriter, r *http.Request, status int, userID, memoryID uuid.UUID) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetMemoryQuery{UserID: userID, MemoryID: memoryID})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, status, newMemoryResponse(result.(*memory.Memory)))
}

// uploadContentType prefers the part's declared type and falls back to
// the file extension when the client sent none.
func uploadContentType(declared, filename string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if byExt := mime.TypeByExtension(filepath.Ext(filename)); byExt != "" {
		return byExt
	}
	return declared
}

func parseListFilter(r *http.Request) (memory.ListFilter, error) {
	q := r.URL.Query()
	filter := memory.ListFilter{
		Topic:  strings.TrimSpace(q.Get("topic")),
		Search: strings.TrimSpace(q.Get("search")),
	}

	if raw := q.Get("media_type"); raw != "" {
		mt, err := memory.ParseMediaType(raw)
		if err != nil {
			return filter, appErrors.NewValidationError(err.Error())
		}
		filter.MediaType = mt
	}
	if raw := q.Get("status"); raw != "" {
		st, err := memory.ParseStatus(raw)
		if err != nil {
			return filter, appErrors.NewValidationError(err.Error())
		}
		filter.Status = st
	}

	mood, err := queryInt(r, "mood")
	if err != nil {
		return filter, err
	}
	filter.Mood = mood

	if raw := q.Get("tag_ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := uuid.Parse(strings.TrimSpace(part))
			if err != nil {
				return filter, appErrors.NewValidationError("tag_ids must be comma separated ids")
			}
			filter.TagIDs = append(filter.TagIDs, id)
		}
	}

	if filter.StartDate, err = queryDate(q.Get("start_date"), "start_date"); err != nil {
		return filter, err
	}
	if filter.EndDate, err = queryDate(q.Get("end_date"), "end_date"); err != nil {
		return filter, err
	}
	return filter, nil
}

// queryDate accepts RFC 3339 timestamps or plain dates.
func queryDate(raw, name string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, appErrors.NewValidationError(name + " must be a date")
}
