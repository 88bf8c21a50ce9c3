package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	"github.com/dharun-sukumar/Audio-Rag/application/queries"
	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MediaURLResponse points at a playable file. Signed links expire; stream
// links need the caller's credentials.
type MediaURLResponse struct {
	URL    string `json:"url"`
	Signed bool   `json:"signed"`
}

// TextResponse is the content of a text memory.
type TextResponse struct {
	Content string `json:"content"`
}

// AudioURL handles GET /memories/{memoryID}/audio-url
func (h *MemoryHandler) AudioURL(w http.ResponseWriter, r *http.Request) {
	h.mediaURL(w, r, memory.MediaTypeAudio)
}

// VideoURL handles GET /memories/{memoryID}/video-url
func (h *MemoryHandler) VideoURL(w http.ResponseWriter, r *http.Request) {
	h.mediaURL(w, r, memory.MediaTypeVideo)
}

// mediaURL answers with a signed link when the store can sign one and with
// the stream endpoint otherwise.
func (h *MemoryHandler) mediaURL(w http.ResponseWriter, r *http.Request, kind memory.MediaType) {
	caller, memoryID, ok := h.target(w, r)
	if !ok {
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetMediaURLQuery{UserID: caller.UserID, MemoryID: memoryID, Kind: kind})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	if url := result.(*queries.MediaURLResult).URL; url != "" {
		common.RespondJSON(w, http.StatusOK, MediaURLResponse{URL: url, Signed: true})
		return
	}
	stream := strings.TrimSuffix(r.URL.Path, string(kind)+"-url") + "media/" + string(kind)
	common.RespondJSON(w, http.StatusOK, MediaURLResponse{URL: stream})
}

// StreamMedia handles GET /memories/{memoryID}/media/{kind}
func (h *MemoryHandler) StreamMedia(w http.ResponseWriter, r *http.Request) {
	caller, memoryID, ok := h.target(w, r)
	if !ok {
		return
	}
	kind := memory.MediaType(chi.URLParam(r, "kind"))

	result, err := h.queryBus.Ask(r.Context(), queries.OpenMediaQuery{UserID: caller.UserID, MemoryID: memoryID, Kind: kind})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	media := result.(*queries.MediaContent)
	defer media.Body.Close()

	if media.ContentType != "" {
		w.Header().Set("Content-Type", media.ContentType)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, media.Body); err != nil {
		h.logger.Warn("media stream interrupted", zap.String("memory_id", memoryID.String()), zap.Error(err))
	}
}

// Text handles GET /memories/{memoryID}/text
func (h *MemoryHandler) Text(w http.ResponseWriter, r *http.Request) {
	caller, memoryID, ok := h.target(w, r)
	if !ok {
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetMemoryTextQuery{UserID: caller.UserID, MemoryID: memoryID})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, TextResponse{Content: result.(string)})
}

// Transcript handles GET /memories/{memoryID}/transcript
func (h *MemoryHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	caller, memoryID, ok := h.target(w, r)
	if !ok {
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetTranscriptQuery{UserID: caller.UserID, MemoryID: memoryID})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result.(*ports.Transcript))
}
