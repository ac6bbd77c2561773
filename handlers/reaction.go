package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chorushq/chorus/middleware"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/services"
)

// ReactionHandler serves emoji reaction toggles.
type ReactionHandler struct {
	reactions *services.ReactionService
}

func NewReactionHandler(reactions *services.ReactionService) *ReactionHandler {
	return &ReactionHandler{reactions: reactions}
}

// Toggle adds the caller's reaction, or removes it when already present.
// It replies with the message's full reaction groups after the flip.
func (h *ReactionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req models.ToggleReactionRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	groups, err := h.reactions.Toggle(r.Context(),
		chi.URLParam(r, "channelId"), chi.URLParam(r, "messageId"),
		middleware.UserID(r.Context()), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, groups)
}
