package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chorushq/chorus/middleware"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/services"
)

// ChannelHandler serves channel management.
type ChannelHandler struct {
	channels *services.ChannelService
}

func NewChannelHandler(channels *services.ChannelService) *ChannelHandler {
	return &ChannelHandler{channels: channels}
}

func (h *ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateChannelRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	channel, err := h.channels.Create(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context()), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, channel)
}

func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channels.ListByServer(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, channels)
}

func (h *ChannelHandler) Get(w http.ResponseWriter, r *http.Request) {
	channel, err := h.channels.Get(r.Context(), chi.URLParam(r, "channelId"), middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, channel)
}

func (h *ChannelHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateChannelRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	channel, err := h.channels.Update(r.Context(), chi.URLParam(r, "channelId"), middleware.UserID(r.Context()), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, channel)
}

func (h *ChannelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.channels.Delete(r.Context(), chi.URLParam(r, "channelId"), middleware.UserID(r.Context())); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "channel deleted"})
}

func (h *ChannelHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req models.ReorderChannelsRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	if err := h.channels.Reorder(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context()), &req); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "order updated"})
}
