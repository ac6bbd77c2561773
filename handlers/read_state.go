package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chorushq/chorus/middleware"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/services"
)

// ReadStateHandler serves per-channel read markers and unread counters.
type ReadStateHandler struct {
	readStates *services.ReadStateService
}

func NewReadStateHandler(readStates *services.ReadStateService) *ReadStateHandler {
	return &ReadStateHandler{readStates: readStates}
}

func (h *ReadStateHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req models.MarkReadRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	if err := h.readStates.MarkRead(r.Context(), chi.URLParam(r, "channelId"), middleware.UserID(r.Context()), &req); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "marked read"})
}

func (h *ReadStateHandler) UnreadCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.readStates.UnreadCounts(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, counts)
}

func (h *ReadStateHandler) MarkServerRead(w http.ResponseWriter, r *http.Request) {
	if err := h.readStates.MarkServerRead(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context())); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "server marked read"})
}
