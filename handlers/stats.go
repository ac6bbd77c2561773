package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chorushq/chorus/middleware"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/services"
)

// StatsHandler serves the per-server aggregate counters.
type StatsHandler struct {
	servers *services.ServerService
}

func NewStatsHandler(servers *services.ServerService) *StatsHandler {
	return &StatsHandler{servers: servers}
}

func (h *StatsHandler) ServerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.servers.Stats(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, stats)
}
