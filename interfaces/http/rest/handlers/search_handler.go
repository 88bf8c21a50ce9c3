package handlers

import (
	"net/http"
	"strings"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	"github.com/dharun-sukumar/Audio-Rag/application/queries"
	querybus "github.com/dharun-sukumar/Audio-Rag/application/queries/bus"
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"go.uber.org/zap"
)

const defaultSearchLimit = 10

// SearchHandler handles search requests
type SearchHandler struct {
	base
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(queryBus *querybus.QueryBus, errs *appErrors.ErrorHandler, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{base: newBase(nil, queryBus, errs, logger)}
}

// Search handles GET /search?q=&limit=
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	limit := defaultSearchLimit
	if v, err := queryInt(r, "limit"); err != nil {
		h.errs.Handle(w, r, err)
		return
	} else if v != nil {
		limit = *v
	}

	result, err := h.queryBus.Ask(r.Context(), queries.SearchMemoriesQuery{
		UserID: caller.UserID,
		Text:   strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:  limit,
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, itemsResponse[SearchHitResponse]{
		Items: mapSlice(result.([]ports.SearchHit), newSearchHitResponse),
	})
}
