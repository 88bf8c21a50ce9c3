package handlers

import (
	"net/http"

	"github.com/dharun-sukumar/Audio-Rag/application/commands"
	"github.com/dharun-sukumar/Audio-Rag/application/commands/bus"
	"github.com/dharun-sukumar/Audio-Rag/application/queries"
	querybus "github.com/dharun-sukumar/Audio-Rag/application/queries/bus"
	"github.com/dharun-sukumar/Audio-Rag/application/services"
	"github.com/dharun-sukumar/Audio-Rag/domain/tag"
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TagHandler handles tag-related HTTP requests
type TagHandler struct {
	base
}

// NewTagHandler creates a new tag handler
func NewTagHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errs *appErrors.ErrorHandler,
	logger *zap.Logger,
) *TagHandler {
	return &TagHandler{base: newBase(commandBus, queryBus, errs, logger)}
}

// List handles GET /tags
func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.ListTagsQuery{UserID: caller.UserID})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, itemsResponse[TagResponse]{
		Items: mapSlice(result.([]*tag.Tag), newTagResponse),
	})
}

// Get handles GET /tags/{tagID}
func (h *TagHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	tagID, err := pathID(r, "tagID")
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	h.respondTag(w, r, http.StatusOK, caller.UserID, tagID)
}

// Create handles POST /tags. A name the caller already uses is a 409.
func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	var in services.TagInput
	if err := h.decode(w, r, &in); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	tagID := uuid.New()
	if err := h.commandBus.Send(r.Context(), commands.CreateTagCommand{TagID: tagID, UserID: caller.UserID, Input: in}); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	h.respondTag(w, r, http.StatusCreated, caller.UserID, tagID)
}

// Update handles PATCH /tags/{tagID}
func (h *TagHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	tagID, err := pathID(r, "tagID")
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	var update services.TagUpdate
	if err := h.decode(w, r, &update); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	if err := h.commandBus.Send(r.Context(), commands.UpdateTagCommand{TagID: tagID, UserID: caller.UserID, Update: update}); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	h.respondTag(w, r, http.StatusOK, caller.UserID, tagID)
}

// Delete handles DELETE /tags/{tagID}
func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	tagID, err := pathID(r, "tagID")
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	if err := h.commandBus.Send(r.Context(), commands.DeleteTagCommand{TagID: tagID, UserID: caller.UserID}); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

func (h *TagHandler) respondTag(w http.ResponseWriter, r *http.Request, status int, userID, tagID uuid.UUID) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetTagQuery{UserID: userID, TagID: tagID})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, status, newTagResponse(result.(*tag.Tag)))
}
