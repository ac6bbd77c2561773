package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/services"
)

// AdminHandler serves the platform admin surface: SFU instance fleet
// management, server/user listings and metrics history. Every route behind it
// is gated by the platform admin middleware.
type AdminHandler struct {
	admin   *services.SFUAdminService
	history *services.MetricsHistoryService
}

func NewAdminHandler(admin *services.SFUAdminService, history *services.MetricsHistoryService) *AdminHandler {
	return &AdminHandler{admin: admin, history: history}
}

func (h *AdminHandler) ListInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := h.admin.ListInstances(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, instances)
}

func (h *AdminHandler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSFUInstanceRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	instance, err := h.admin.CreateInstance(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, instance)
}

func (h *AdminHandler) UpdateInstance(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateSFUInstanceRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	instance, err := h.admin.UpdateInstance(r.Context(), chi.URLParam(r, "instanceId"), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, instance)
}

// DeleteInstance moves the instance's servers to the instance named by the
// migrate_to query parameter before removing it.
func (h *AdminHandler) DeleteInstance(w http.ResponseWriter, r *http.Request) {
	err := h.admin.DeleteInstance(r.Context(),
		chi.URLParam(r, "instanceId"), r.URL.Query().Get("migrate_to"))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "instance deleted"})
}

func (h *AdminHandler) MigrateServer(w http.ResponseWriter, r *http.Request) {
	var req models.MigrateServerRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	if err := h.admin.MigrateServer(r.Context(), chi.URLParam(r, "serverId"), &req); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "server migrated"})
}

func (h *AdminHandler) LiveMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.admin.LiveMetrics(r.Context(), chi.URLParam(r, "instanceId"))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, metrics)
}

func (h *AdminHandler) MetricsHistory(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.history.Recent(r.Context(),
		chi.URLParam(r, "instanceId"), r.URL.Query().Get("period"))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, snapshots)
}

func (h *AdminHandler) MetricsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.history.Summary(r.Context(),
		chi.URLParam(r, "instanceId"), r.URL.Query().Get("period"))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, summary)
}

func (h *AdminHandler) ListServers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	servers, err := h.admin.ListServers(r.Context(), limit, offset)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, servers)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	users, err := h.admin.ListUsers(r.Context(), limit, offset)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, users)
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
