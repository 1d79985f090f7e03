package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"candil-egov/internal/apperr"
	"candil-egov/internal/constants"
	"candil-egov/internal/models"
	"candil-egov/internal/store"
	"candil-egov/internal/utils"
)

type AuthorHandler struct {
	Authors     *store.Store[models.Author]
	Books       *store.Store[models.Book]
	AuditLogger utils.Logger
}

// GET /authors
func (h *AuthorHandler) ListAuthors(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page := store.PageFromRequest(r)
	authors, total, err := h.Authors.List(ctx, bson.M{}, page, bson.D{{Key: "name", Value: 1}})
	if err != nil {
		utils.JSONError(w, "Failed to fetch authors", http.StatusInternalServerError)
		return
	}

	utils.JSONPage(w, http.StatusOK, authors, page.Number, page.Size, total)
}

// GET /authors/{id}
func (h *AuthorHandler) GetAuthor(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, "Invalid author ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	author, err := h.Authors.Get(ctx, id)
	if err != nil {
		utils.JSONError(w, "Author not found", http.StatusNotFound)
		return
	}

	utils.JSON(w, http.StatusOK, author)
}

// POST /authors
func (h *AuthorHandler) CreateAuthor(w http.ResponseWriter, r *http.Request) {
	var author models.Author
	if err := json.NewDecoder(r.Body).Decode(&author); err != nil {
		utils.JSONError(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	if author.Name == "" {
		utils.JSONError(w, "Name is required", http.StatusBadRequest)
		return
	}

	now := time.Now()
	author.ID = primitive.NewObjectID()
	author.CreatedAt = now
	author.UpdatedAt = now

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := h.Authors.Insert(ctx, author); err != nil {
		utils.JSONError(w, "Insert failed", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(ctx, models.AuthorEntity, constants.Create, author)

	utils.JSON(w, http.StatusCreated, author)
}

// PUT /authors/{id}
func (h *AuthorHandler) UpdateAuthor(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, "Invalid author ID", http.StatusBadRequest)
		return
	}

	var updateData bson.M
	if err := json.NewDecoder(r.Body).Decode(&updateData); err != nil {
		utils.JSONError(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	delete(updateData, "_id")
	delete(updateData, "id")
	delete(updateData, "created_at")
	if len(updateData) == 0 {
		utils.JSONError(w, "No update fields provided", http.StatusBadRequest)
		return
	}
	updateData["updated_at"] = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.Authors.Update(ctx, id, updateData); err != nil {
		if apperr.IsNotFound(err) {
			utils.JSONError(w, "Author not found", http.StatusNotFound)
			return
		}
		utils.JSONError(w, "Update failed", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(ctx, models.AuthorEntity, constants.Update, updateData)

	utils.JSON(w, http.StatusOK, map[string]string{"message": "Author updated"})
}

// DELETE /authors/{id}
func (h *AuthorHandler) DeleteAuthor(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := primitive.ObjectIDFromHex(idStr)
	if err != nil {
		utils.JSONError(w, "Invalid author ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	inUse, err := h.Books.Count(ctx, bson.M{"author_id": idStr})
	if err != nil {
		utils.JSONError(w, "Failed to check books", http.StatusInternalServerError)
		return
	}
	if inUse > 0 {
		utils.JSONError(w, "Author still has books", http.StatusConflict)
		return
	}

	if err := h.Authors.Delete(ctx, id); err != nil {
		if apperr.IsNotFound(err) {
			utils.JSONError(w, "Author not found", http.StatusNotFound)
			return
		}
		utils.JSONError(w, "Delete failed", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(ctx, models.AuthorEntity, constants.Delete, idStr)

	w.WriteHeader(http.StatusNoContent)
}
