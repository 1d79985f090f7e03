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

type PublisherHandler struct {
	Publishers  *store.Store[models.Publisher]
	Books       *store.Store[models.Book]
	AuditLogger utils.Logger
}

// GET /publishers
func (h *PublisherHandler) ListPublishers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page := store.PageFromRequest(r)
	publishers, total, err := h.Publishers.List(ctx, bson.M{}, page, bson.D{{Key: "name", Value: 1}})
	if err != nil {
		utils.JSONError(w, "Failed to fetch publishers", http.StatusInternalServerError)
		return
	}

	utils.JSONPage(w, http.StatusOK, publishers, page.Number, page.Size, total)
}

// GET /publishers/{id}
func (h *PublisherHandler) GetPublisher(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, "Invalid publisher ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	publisher, err := h.Publishers.Get(ctx, id)
	if err != nil {
		utils.JSONError(w, "Publisher not found", http.StatusNotFound)
		return
	}

	utils.JSON(w, http.StatusOK, publisher)
}

// POST /publishers
func (h *PublisherHandler) CreatePublisher(w http.ResponseWriter, r *http.Request) {
	var publisher models.Publisher
	if err := json.NewDecoder(r.Body).Decode(&publisher); err != nil {
		utils.JSONError(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	if publisher.Name == "" {
		utils.JSONError(w, "Name is required", http.StatusBadRequest)
		return
	}

	now := time.Now()
	publisher.ID = primitive.NewObjectID()
	publisher.CreatedAt = now
	publisher.UpdatedAt = now

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := h.Publishers.Insert(ctx, publisher); err != nil {
		utils.JSONError(w, "Insert failed", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(ctx, models.PublisherEntity, constants.Create, publisher)

	utils.JSON(w, http.StatusCreated, publisher)
}

// PUT /publishers/{id}
func (h *PublisherHandler) UpdatePublisher(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, "Invalid publisher ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Name string `json:"name"`
		City string `json:"city"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	if req.Name == "" && req.City == "" {
		utils.JSONError(w, "No update fields provided", http.StatusBadRequest)
		return
	}

	update := bson.M{"updated_at": time.Now()}
	if req.Name != "" {
		update["name"] = req.Name
	}
	if req.City != "" {
		update["city"] = req.City
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.Publishers.Update(ctx, id, update); err != nil {
		if apperr.IsNotFound(err) {
			utils.JSONError(w, "Publisher not found", http.StatusNotFound)
			return
		}
		utils.JSONError(w, "Update failed", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(ctx, models.PublisherEntity, constants.Update, update)

	utils.JSON(w, http.StatusOK, map[string]string{"message": "Publisher updated"})
}

// DELETE /publishers/{id}
func (h *PublisherHandler) DeletePublisher(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := primitive.ObjectIDFromHex(idStr)
	if err != nil {
		utils.JSONError(w, "Invalid publisher ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	inUse, err := h.Books.Count(ctx, bson.M{"publisher_id": idStr})
	if err != nil {
		utils.JSONError(w, "Failed to check books", http.StatusInternalServerError)
		return
	}
	if inUse > 0 {
		utils.JSONError(w, "Publisher still has books", http.StatusConflict)
		return
	}

	if err := h.Publishers.Delete(ctx, id); err != nil {
		if apperr.IsNotFound(err) {
			utils.JSONError(w, "Publisher not found", http.StatusNotFound)
			return
		}
		utils.JSONError(w, "Delete failed", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(ctx, models.PublisherEntity, constants.Delete, idStr)

	w.WriteHeader(http.StatusNoContent)
}
