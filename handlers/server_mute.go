package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chorushq/chorus/middleware"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/services"
)

// ServerMuteHandler serves per-user notification muting of servers.
type ServerMuteHandler struct {
	mutes *services.ServerMuteService
}

func NewServerMuteHandler(mutes *services.ServerMuteService) *ServerMuteHandler {
	return &ServerMuteHandler{mutes: mutes}
}

func (h *ServerMuteHandler) Mute(w http.ResponseWriter, r *http.Request) {
	var req models.MuteServerRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	mute, err := h.mutes.Mute(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context()), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, mute)
}

func (h *ServerMuteHandler) Unmute(w http.ResponseWriter, r *http.Request) {
	if err := h.mutes.Unmute(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context())); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "server unmuted"})
}

func (h *ServerMuteHandler) List(w http.ResponseWriter, r *http.Request) {
	ids, err := h.mutes.MutedServerIDs(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, ids)
}
