package handlers

import (
	"net/http"

	"github.com/dharun-sukumar/Audio-Rag/application/queries"
	querybus "github.com/dharun-sukumar/Audio-Rag/application/queries/bus"
	"github.com/dharun-sukumar/Audio-Rag/application/services"
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"go.uber.org/zap"
)

// AskRequest is a question about the caller's memories.
type AskRequest struct {
	Query string `json:"query"`
}

// AskResponse is the model's answer with the chunks it was given.
type AskResponse struct {
	Answer  string              `json:"answer"`
	Sources []SearchHitResponse `json:"sources"`
}

// AskHandler answers questions from memories
type AskHandler struct {
	base
}

// NewAskHandler creates a new ask handler
func NewAskHandler(queryBus *querybus.QueryBus, errs *appErrors.ErrorHandler, logger *zap.Logger) *AskHandler {
	return &AskHandler{base: newBase(nil, queryBus, errs, logger)}
}

// Ask handles POST /ask
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	var req AskRequest
	if err := h.decode(w, r, &req); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.AskQuery{UserID: caller.UserID, Question: req.Query})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	answer := result.(*services.Answer)
	common.RespondJSON(w, http.StatusOK, AskResponse{
		Answer:  answer.Answer,
		Sources: mapSlice(answer.Sources, newSearchHitResponse),
	})
}
