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

// Multipart message uploads: at most this many files per message, and this
// much form memory before spilling to disk.
const (
	maxFilesPerMessage = 10
	multipartMemory    = 32 << 20
)

// MessageHandler serves channel message history and writes.
type MessageHandler struct {
	messages *services.MessageService
	uploads  *services.UploadService
}

func NewMessageHandler(messages *services.MessageService, uploads *services.UploadService) *MessageHandler {
	return &MessageHandler{messages: messages, uploads: uploads}
}

// Create accepts either a JSON body or a multipart form with a "content"
// field and up to maxFilesPerMessage "files" parts.
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMessageRequest
	var attachments []models.Attachment

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

	message, err := h.messages.Create(r.Context(), chi.URLParam(r, "channelId"), middleware.UserID(r.Context()), &req, attachments)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, message)
}

func (h *MessageHandler) saveOne(header *multipart.FileHeader) (*models.Attachment, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return h.uploads.SaveAttachment(file, header)
}

// List pages backwards through history via the "before" message ID cursor.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, err := h.messages.List(r.Context(),
		chi.URLParam(r, "channelId"), middleware.UserID(r.Context()),
		r.URL.Query().Get("before"), limit)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, page)
}

func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	message, err := h.messages.Get(r.Context(),
		chi.URLParam(r, "channelId"), chi.URLParam(r, "messageId"),
		middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, message)
}

func (h *MessageHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateMessageRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	message, err := h.messages.Update(r.Context(),
		chi.URLParam(r, "channelId"), chi.URLParam(r, "messageId"),
		middleware.UserID(r.Context()), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, message)
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.messages.Delete(r.Context(),
		chi.URLParam(r, "channelId"), chi.URLParam(r, "messageId"),
		middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "message deleted"})
}
