package handlers

import (
	"net/http"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/commands"
	"github.com/dharun-sukumar/Audio-Rag/application/commands/bus"
	"github.com/dharun-sukumar/Audio-Rag/application/queries"
	querybus "github.com/dharun-sukumar/Audio-Rag/application/queries/bus"
	"github.com/dharun-sukumar/Audio-Rag/application/services"
	"github.com/dharun-sukumar/Audio-Rag/domain/conversation"
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConversationHandler handles conversation and message requests
type ConversationHandler struct {
	base
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errs *appErrors.ErrorHandler,
	logger *zap.Logger,
) *ConversationHandler {
	return &ConversationHandler{base: newBase(commandBus, queryBus, errs, logger)}
}

// RenameConversationRequest carries a new title.
type RenameConversationRequest struct {
	Title string `json:"title"`
}

// Create handles POST /conversations. Guests past their limit get a 403.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	var in services.ConversationInput
	if r.ContentLength != 0 {
		if err := h.decode(w, r, &in); err != nil {
			h.errs.Handle(w, r, err)
			return
		}
	}

	conversationID := uuid.New()
	err = h.commandBus.Send(r.Context(), commands.CreateConversationCommand{
		ConversationID: conversationID,
		Caller:         caller,
		Input:          in,
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	h.respondConversation(w, r, http.StatusCreated, caller.UserID, conversationID)
}

// List handles GET /conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.ListConversationsQuery{
		UserID:     caller.UserID,
		Pagination: common.ExtractPaginationParams(r),
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, itemsResponse[ConversationResponse]{
		Items: mapSlice(result.([]*conversation.Conversation), newConversationResponse),
	})
}

// Get handles GET /conversations/{conversationID}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, conversationID, ok := h.target(w, r)
	if !ok {
		return
	}
	h.respondConversation(w, r, http.StatusOK, caller.UserID, conversationID)
}

// Rename handles PATCH /conversations/{conversationID}
func (h *ConversationHandler) Rename(w http.ResponseWriter, r *http.Request) {
	caller, conversationID, ok := h.target(w, r)
	if !ok {
		return
	}

	var req RenameConversationRequest
	if err := h.decode(w, r, &req); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	err := h.commandBus.Send(r.Context(), commands.RenameConversationCommand{
		ConversationID: conversationID,
		UserID:         caller.UserID,
		Title:          req.Title,
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	h.respondConversation(w, r, http.StatusOK, caller.UserID, conversationID)
}

// Delete handles DELETE /conversations/{conversationID}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, conversationID, ok := h.target(w, r)
	if !ok {
		return
	}

	err := h.commandBus.Send(r.Context(), commands.DeleteConversationCommand{
		ConversationID: conversationID,
		UserID:         caller.UserID,
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// AddMessage handles POST /conversations/{conversationID}/messages
func (h *ConversationHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	caller, conversationID, ok := h.target(w, r)
	if !ok {
		return
	}

	var in services.MessageInput
	if err := h.decode(w, r, &in); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	messageID := uuid.New()
	err := h.commandBus.Send(r.Context(), commands.AddMessageCommand{
		MessageID:      messageID,
		ConversationID: conversationID,
		UserID:         caller.UserID,
		Input:          in,
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	// Messages have no single-item query.
	common.RespondJSON(w, http.StatusCreated, MessageResponse{
		ID:             messageID,
		ConversationID: conversationID,
		Role:           in.Role,
		Content:        in.Content,
		CreatedAt:      time.Now().UTC(),
	})
}

// Messages handles GET /conversations/{conversationID}/messages
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	caller, conversationID, ok := h.target(w, r)
	if !ok {
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.ListMessagesQuery{
		UserID:         caller.UserID,
		ConversationID: conversationID,
		Pagination:     common.ExtractPaginationParams(r),
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, itemsResponse[MessageResponse]{
		Items: mapSlice(result.([]*conversation.Message), newMessageResponse),
	})
}

func (h *ConversationHandler) target(w http.ResponseWriter, r *http.Request) (common.Caller, uuid.UUID, bool) {
	caller, err := h.caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return common.Caller{}, uuid.Nil, false
	}
	conversationID, err := pathID(r, "conversationID")
	if err != nil {
		h.errs.Handle(w, r, err)
		return common.Caller{}, uuid.Nil, false
	}
	return caller, conversationID, true
}

func (h *ConversationHandler) respondConversation(w http.ResponseWriter, r *http.Request, status int, userID, conversationID uuid.UUID) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetConversationQuery{UserID: userID, ConversationID: conversationID})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, status, newConversationResponse(result.(*conversation.Conversation)))
}
