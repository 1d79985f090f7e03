package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
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

type UserHandler struct {
	Users       *store.Store[models.User]
	Preferences *store.Store[models.Preferences]
	Progress    *store.Store[models.Progress]
	Books       *store.Store[models.Book]
	AuditLogger utils.Logger
}

// GET /me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(utils.UserIDFromContext(r.Context()))
	if err != nil {
		utils.JSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.Users.Get(r.Context(), id)
	if err != nil {
		utils.JSONError(w, "User not found", http.StatusNotFound)
		return
	}

	utils.JSON(w, http.StatusOK, user)
}

// GET /me/preferences
func (h *UserHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	callerID := utils.UserIDFromContext(r.Context())

	prefs, err := h.Preferences.FindOne(r.Context(), bson.M{"user_id": callerID})
	if err != nil {
		if apperr.IsNotFound(err) {
			utils.JSON(w, http.StatusOK, models.DefaultPreferences(callerID))
			return
		}
		utils.JSONError(w, "Failed to fetch preferences", http.StatusInternalServerError)
		return
	}

	utils.JSON(w, http.StatusOK, prefs)
}

// PUT /me/preferences
func (h *UserHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	callerID := utils.UserIDFromContext(r.Context())

	var req struct {
		ReaderTheme   string  `json:"reader_theme"`
		FontScale     float64 `json:"font_scale"`
		PlaybackSpeed float64 `json:"playback_speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	fields := bson.M{
		"user_id":    callerID,
		"updated_at": time.Now(),
	}
	if req.ReaderTheme != "" {
		if !models.IsValidReaderTheme(req.ReaderTheme) {
			utils.JSONError(w, "Invalid reader theme", http.StatusBadRequest)
			return
		}
		fields["reader_theme"] = req.ReaderTheme
	}
	if req.FontScale != 0 {
		if req.FontScale < 0.5 || req.FontScale > 3 {
			utils.JSONError(w, "Font scale out of range", http.StatusBadRequest)
			return
		}
		fields["font_scale"] = req.FontScale
	}
	if req.PlaybackSpeed != 0 {
		if req.PlaybackSpeed < 0.5 || req.PlaybackSpeed > 3 {
			utils.JSONError(w, "Playback speed out of range", http.StatusBadRequest)
			return
		}
		fields["playback_speed"] = req.PlaybackSpeed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.Preferences.Upsert(ctx, bson.M{"user_id": callerID}, fields); err != nil {
		utils.JSONError(w, "Failed to save preferences", http.StatusInternalServerError)
		return
	}

	prefs, err := h.Preferences.FindOne(ctx, bson.M{"user_id": callerID})
	if err != nil {
		utils.JSONError(w, "Failed to fetch preferences", http.StatusInternalServerError)
		return
	}

	utils.JSON(w, http.StatusOK, prefs)
}

// GET /me/progress/{bookID}
func (h *UserHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	bookID := mux.Vars(r)["bookID"]
	if _, err := primitive.ObjectIDFromHex(bookID); err != nil {
		utils.JSONError(w, "Invalid book ID", http.StatusBadRequest)
		return
	}

	callerID := utils.UserIDFromContext(r.Context())
	progress, err := h.Progress.FindOne(r.Context(), bson.M{
		"user_id": callerID,
		"book_id": bookID,
	})
	if err != nil {
		utils.JSONError(w, "No progress recorded", http.StatusNotFound)
		return
	}

	utils.JSON(w, http.StatusOK, progress)
}

// PUT /me/progress/{bookID}
func (h *UserHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	bookID := mux.Vars(r)["bookID"]
	bookOID, err := primitive.ObjectIDFromHex(bookID)
	if err != nil {
		utils.JSONError(w, "Invalid book ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Page            int     `json:"page"`
		PositionSeconds float64 `json:"position_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	if req.Page < 0 || req.PositionSeconds < 0 {
		utils.JSONError(w, "Progress cannot be negative", http.StatusBadRequest)
		return
	}

	if _, err := h.Books.Get(r.Context(), bookOID); err != nil {
		utils.JSONError(w, "Book not found", http.StatusNotFound)
		return
	}

	callerID := utils.UserIDFromContext(r.Context())
	err = h.Progress.Upsert(r.Context(),
		bson.M{"user_id": callerID, "book_id": bookID},
		bson.M{
			"user_id":          callerID,
			"book_id":          bookID,
			"page":             req.Page,
			"position_seconds": req.PositionSeconds,
			"updated_at":       time.Now(),
		},
	)
	if err != nil {
		utils.JSONError(w, "Failed to save progress", http.StatusInternalServerError)
		return
	}

	utils.JSON(w, http.StatusOK, map[string]string{"message": "Progress saved"})
}

// GET /users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	filter := bson.M{}
	if role := r.URL.Query().Get("role"); role != "" {
		if !models.IsValidRole(role) {
			utils.JSONError(w, "Invalid role", http.StatusBadRequest)
			return
		}
		filter["role"] = role
	}
	if activeStr := r.URL.Query().Get("active"); activeStr != "" {
		active, err := strconv.ParseBool(activeStr)
		if err != nil {
			utils.JSONError(w, "Invalid active filter", http.StatusBadRequest)
			return
		}
		filter["active"] = active
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page := store.PageFromRequest(r)
	users, total, err := h.Users.List(ctx, filter, page, bson.D{{Key: "created_at", Value: -1}})
	if err != nil {
		utils.JSONError(w, "Failed to fetch users", http.StatusInternalServerError)
		return
	}

	utils.JSONPage(w, http.StatusOK, users, page.Number, page.Size, total)
}

// PATCH /users/{id}/deactivate
func (h *UserHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false, "User deactivated")
}

// PATCH /users/{id}/activate
func (h *UserHandler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true, "User activated")
}

func (h *UserHandler) setActive(w http.ResponseWriter, r *http.Request, active bool, message string) {
	idStr := mux.Vars(r)["id"]
	id, err := primitive.ObjectIDFromHex(idStr)
	if err != nil {
		utils.JSONError(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = h.Users.Update(ctx, id, bson.M{
		"active":     active,
		"updated_at": time.Now(),
	})
	if err != nil {
		if apperr.IsNotFound(err) {
			utils.JSONError(w, "User not found", http.StatusNotFound)
			return
		}
		utils.JSONError(w, "Update failed", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(r.Context(), models.UserEntity, constants.Update, bson.M{
		"user_id": idStr,
		"active":  active,
	})

	utils.JSON(w, http.StatusOK, map[string]string{"message": message})
}
