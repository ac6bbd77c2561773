package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chorushq/chorus/middleware"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/services"
)

// CategoryHandler serves sidebar category management.
type CategoryHandler struct {
	categories *services.CategoryService
}

func NewCategoryHandler(categories *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCategoryRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	category, err := h.categories.Create(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context()), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, category)
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.ListByServer(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, categories)
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateCategoryRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	category, err := h.categories.Update(r.Context(), chi.URLParam(r, "categoryId"), middleware.UserID(r.Context()), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, category)
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.categories.Delete(r.Context(), chi.URLParam(r, "categoryId"), middleware.UserID(r.Context())); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "category deleted"})
}

func (h *CategoryHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req models.ReorderCategoriesRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	if err := h.categories.Reorder(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context()), &req); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "order updated"})
}
