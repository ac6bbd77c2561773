package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chorushq/chorus/middleware"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/services"
)

// ServerHandler serves server lifecycle and the sidebar ordering.
type ServerHandler struct {
	servers *services.ServerService
	uploads *services.UploadService
}

func NewServerHandler(servers *services.ServerService, uploads *services.UploadService) *ServerHandler {
	return &ServerHandler{servers: servers, uploads: uploads}
}

func (h *ServerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateServerRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	server, err := h.servers.Create(r.Context(), middleware.UserID(r.Context()), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, server)
}

func (h *ServerHandler) List(w http.ResponseWriter, r *http.Request) {
	servers, err := h.servers.ListForUser(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, servers)
}

func (h *ServerHandler) Get(w http.ResponseWriter, r *http.Request) {
	server, err := h.servers.Get(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, server)
}

func (h *ServerHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateServerRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	server, err := h.servers.Update(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context()), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, server)
}

// UploadIcon accepts a multipart form with an "icon" image file.
func (h *ServerHandler) UploadIcon(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("icon")
	if err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "missing icon file")
		return
	}
	defer file.Close()

	url, err := h.uploads.SaveAvatar(file, header)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	server, err := h.servers.UpdateIcon(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context()), url)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, server)
}

func (h *ServerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.servers.Delete(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context())); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "server deleted"})
}

func (h *ServerHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req models.ReorderServersRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	if err := h.servers.Reorder(r.Context(), middleware.UserID(r.Context()), &req); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "order updated"})
}
