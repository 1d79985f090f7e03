package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"candil-egov/internal/apperr"
	"candil-egov/internal/constants"
	"candil-egov/internal/models"
	"candil-egov/internal/store"
	"candil-egov/internal/utils"
)

type CategoryHandler struct {
	Categories  *store.Store[models.Category]
	Books       *store.Store[models.Book]
	AuditLogger utils.Logger
}

// CategoryWithCount decorates a category with how many books sit in it, for
// the browse screen.
type CategoryWithCount struct {
	models.Category
	BooksCount int64 `json:"books_count"`
}

type categoryRequest struct {
	Name string `json:"name"`
}

// GET /categories
func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page := store.PageFromRequest(r)
	cats, total, err := h.Categories.List(ctx, bson.M{}, page, bson.D{{Key: "name", Value: 1}})
	if err != nil {
		utils.JSONError(w, "Failed to fetch categories", http.StatusInternalServerError)
		return
	}

	out := make([]CategoryWithCount, len(cats))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, cat := range cats {
		i, cat := i, cat
		g.Go(func() error {
			n, err := h.Books.Count(gctx, bson.M{"category_id": cat.ID.Hex()})
			if err != nil {
				return err
			}
			out[i] = CategoryWithCount{Category: cat, BooksCount: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		utils.JSONError(w, "Failed to count books", http.StatusInternalServerError)
		return
	}

	utils.JSONPage(w, http.StatusOK, out, page.Number, page.Size, total)
}

// GET /categories/{id}
func (h *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := primitive.ObjectIDFromHex(idStr)
	if err != nil {
		utils.JSONError(w, "Invalid category ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cat, err := h.Categories.Get(ctx, id)
	if err != nil {
		utils.JSONError(w, "Category not found", http.StatusNotFound)
		return
	}

	n, err := h.Books.Count(ctx, bson.M{"category_id": idStr})
	if err != nil {
		utils.JSONError(w, "Failed to count books", http.StatusInternalServerError)
		return
	}

	utils.JSON(w, http.StatusOK, CategoryWithCount{Category: cat, BooksCount: n})
}

// GET /categories/{id}/books
func (h *CategoryHandler) ListCategoryBooks(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := primitive.ObjectIDFromHex(idStr)
	if err != nil {
		utils.JSONError(w, "Invalid category ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Categories.Get(ctx, id); err != nil {
		utils.JSONError(w, "Category not found", http.StatusNotFound)
		return
	}

	page := store.PageFromRequest(r)
	books, total, err := h.Books.List(ctx, bson.M{"category_id": idStr}, page, bson.D{{Key: "title", Value: 1}})
	if err != nil {
		utils.JSONError(w, "Failed to fetch books", http.StatusInternalServerError)
		return
	}

	utils.JSONPage(w, http.StatusOK, books, page.Number, page.Size, total)
}

// POST /categories
func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		utils.JSONError(w, "Name is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slug := utils.MakeSlug(req.Name)
	if _, err := h.Categories.FindOne(ctx, bson.M{"slug": slug}); err == nil {
		utils.JSONError(w, "Category already exists", http.StatusConflict)
		return
	}

	now := time.Now()
	cat := models.Category{
		ID:        primitive.NewObjectID(),
		Name:      req.Name,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := h.Categories.Insert(ctx, cat); err != nil {
		utils.JSONError(w, "Insert failed", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(ctx, models.CategoryEntity, constants.Create, cat)

	utils.JSON(w, http.StatusCreated, cat)
}

// PUT /categories/{id}
func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, "Invalid category ID", http.StatusBadRequest)
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		utils.JSONError(w, "Name is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	update := bson.M{
		"name":       req.Name,
		"slug":       utils.MakeSlug(req.Name),
		"updated_at": time.Now(),
	}
	if err := h.Categories.Update(ctx, id, update); err != nil {
		if apperr.IsNotFound(err) {
			utils.JSONError(w, "Category not found", http.StatusNotFound)
			return
		}
		utils.JSONError(w, "Update failed", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(ctx, models.CategoryEntity, constants.Update, update)

	utils.JSON(w, http.StatusOK, map[string]string{"message": "Category updated"})
}

// DELETE /categories/{id}
func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := primitive.ObjectIDFromHex(idStr)
	if err != nil {
		utils.JSONError(w, "Invalid category ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	inUse, err := h.Books.Count(ctx, bson.M{"category_id": idStr})
	if err != nil {
		utils.JSONError(w, "Failed to check books", http.StatusInternalServerError)
		return
	}
	if inUse > 0 {
		utils.JSONError(w, "Category still has books", http.StatusConflict)
		return
	}

	if err := h.Categories.Delete(ctx, id); err != nil {
		if apperr.IsNotFound(err) {
			utils.JSONError(w, "Category not found", http.StatusNotFound)
			return
		}
		utils.JSONError(w, "Delete failed", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(ctx, models.CategoryEntity, constants.Delete, idStr)

	w.WriteHeader(http.StatusNoContent)
}
