package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/chorushq/chorus/middleware"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/services"
)

// SearchHandler serves full text message search.
type SearchHandler struct {
	search *services.SearchService
}

func NewSearchHandler(search *services.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// Server searches the server's channels. An optional channel_id query
// parameter narrows the search to one channel.
func (h *SearchHandler) Server(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	result, err := h.search.SearchServer(r.Context(),
		chi.URLParam(r, "serverId"), q.Get("channel_id"),
		middleware.UserID(r.Context()), q.Get("q"), limit, offset)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, result)
}

func (h *SearchHandler) DM(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	result, err := h.search.SearchDM(r.Context(),
		chi.URLParam(r, "channelId"),
		middleware.UserID(r.Context()), q.Get("q"), limit, offset)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, result)
}
