package handlers

import (
	"net/http"

	"github.com/dharun-sukumar/Audio-Rag/application/commands"
	"github.com/dharun-sukumar/Audio-Rag/application/commands/bus"
	"github.com/dharun-sukumar/Audio-Rag/application/merge"
	"github.com/dharun-sukumar/Audio-Rag/application/queries"
	querybus "github.com/dharun-sukumar/Audio-Rag/application/queries/bus"
	"github.com/dharun-sukumar/Audio-Rag/domain/identity"
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"
	"github.com/dharun-sukumar/Audio-Rag/pkg/utils"

	"go.uber.org/zap"
)

// AuthHandler serves the caller's account endpoints.
type AuthHandler struct {
	base
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errs *appErrors.ErrorHandler,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{base: newBase(commandBus, queryBus, errs, logger)}
}

// MergeGuestRequest names the guest identity to fold into the caller.
type MergeGuestRequest struct {
	GuestID string `json:"guest_id" validate:"required,max=128"`
}

// MergeGuest handles POST /auth/merge-guest. Failures never reveal why a
// merge was refused or which step broke.
func (h *AuthHandler) MergeGuest(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	var req MergeGuestRequest
	if err := h.decode(w, r, &req); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	var outcome merge.Outcome
	err = h.commandBus.Send(r.Context(), commands.MergeGuestCommand{
		GuestID:      req.GuestID,
		TargetUserID: caller.UserID,
		Outcome:      &outcome,
	})
	switch {
	case err == nil && outcome == merge.MergeAlreadyMerged:
		common.RespondJSON(w, http.StatusOK, common.StatusResponse{Status: "success", Message: "Guest user not found or already merged"})
	case err == nil:
		common.RespondJSON(w, http.StatusOK, common.StatusResponse{Status: "success", Message: "Merged successfully"})
	case appErrors.IsValidation(err):
		h.errs.Handle(w, r, err)
	case appErrors.IsForbidden(err):
		h.errs.HandleStatus(w, r, http.StatusForbidden, "Access denied")
	default:
		h.errs.HandleStatus(w, r, http.StatusInternalServerError, "Failed to merge account data")
	}
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetUserQuery{UserID: caller.UserID})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, newUserResponse(result.(*identity.User)))
}
