package handlers

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/chorushq/chorus/middleware"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/services"
)

// DMHandler serves direct message conversations. Routes mirror the channel
// message surface, but authorization is participant based rather than
// permission based.
type DMHandler struct {
	dms     *services.DMService
	uploads *services.DMUploadService
}

func NewDMHandler(dms *services.DMService, uploads *services.DMUploadService) *DMHandler {
	return &DMHandler{dms: dms, uploads: uploads}
}

// OpenChannel returns the conversation with the given user, creating it on
// first contact.
func (h *DMHandler) OpenChannel(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDMChannelRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	channel, err := h.dms.OpenChannel(r.Context(), middleware.UserID(r.Context()), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, channel)
}

func (h *DMHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.dms.ListChannels(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, channels)
}

// CreateMessage accepts either a JSON body or a multipart form, the same
// shape as the channel message endpoint.
func (h *DMHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDMMessageRequest
	var attachments []models.DMAttachment

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			pkg.ErrorWithMessage(w, http.StatusBadRequest, "malformed multipart form")
			return
		}
		req.Content = r.FormValue("content")
		if v := r.FormValue("reply_to_id"); v != "" {
			req.ReplyToID = &v
		}

		files := r.MultipartForm.File["files"]
		if len(files) > maxFilesPerMessage {
			pkg.ErrorWithMessage(w, http.StatusBadRequest, "too many files")
			return
		}
		req.HasFiles = len(files) > 0
		if err := pkg.Validate(&req); err != nil {
			pkg.Error(w, err)
			return
		}
		for _, header := range files {
			attachment, err := h.saveOne(header)
			if err != nil {
				pkg.Error(w, err)
				return
			}
			attachments = append(attachments, *attachment)
		}
	} else {
		if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
			pkg.Error(w, err)
			return
		}
	}

	message, err := h.dms.CreateMessage(r.Context(), chi.URLParam(r, "channelId"), middleware.UserID(r.Context()), &req, attachments)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, message)
}

func (h *DMHandler) saveOne(header *multipart.FileHeader) (*models.DMAttachment, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return h.uploads.SaveAttachment(file, header)
}

func (h *DMHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, err := h.dms.ListMessages(r.Context(),
		chi.URLParam(r, "channelId"), middleware.UserID(r.Context()),
		r.URL.Query().Get("before"), limit)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, page)
}

func (h *DMHandler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateDMMessageRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	message, err := h.dms.UpdateMessage(r.Context(),
		chi.URLParam(r, "channelId"), chi.URLParam(r, "messageId"),
		middleware.UserID(r.Context()), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, message)
}

func (h *DMHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	err := h.dms.DeleteMessage(r.Context(),
		chi.URLParam(r, "channelId"), chi.URLParam(r, "messageId"),
		middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "message deleted"})
}

func (h *DMHandler) ToggleReaction(w http.ResponseWriter, r *http.Request) {
	var req models.ToggleDMReactionRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	groups, err := h.dms.ToggleReaction(r.Context(),
		chi.URLParam(r, "channelId"), chi.URLParam(r, "messageId"),
		middleware.UserID(r.Context()), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, groups)
}

func (h *DMHandler) PinMessage(w http.ResponseWriter, r *http.Request) {
	err := h.dms.PinMessage(r.Context(),
		chi.URLParam(r, "channelId"), chi.URLParam(r, "messageId"),
		middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "message pinned"})
}

func (h *DMHandler) UnpinMessage(w http.ResponseWriter, r *http.Request) {
	err := h.dms.UnpinMessage(r.Context(),
		chi.URLParam(r, "channelId"), chi.URLParam(r, "messageId"),
		middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "message unpinned"})
}

func (h *DMHandler) ListPinnedMessages(w http.ResponseWriter, r *http.Request) {
	pins, err := h.dms.ListPinnedMessages(r.Context(), chi.URLParam(r, "channelId"), middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, pins)
}
