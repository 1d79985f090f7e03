package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"candil-egov/internal/apperr"
	"candil-egov/internal/constants"
	"candil-egov/internal/media"
	"candil-egov/internal/models"
	"candil-egov/internal/store"
	"candil-egov/internal/utils"
)

type MediaHandler struct {
	Assets         *store.Store[models.Asset]
	Books          *store.Store[models.Book]
	Files          *media.Store
	AuditLogger    utils.Logger
	MaxUploadBytes int64
}

// bookAssetField maps an asset kind to the book field that references it.
func bookAssetField(kind models.AssetKind) string {
	switch kind {
	case models.AssetCover:
		return "cover_asset_id"
	case models.AssetPDF:
		return "pdf_asset_id"
	default:
		return "audio_asset_id"
	}
}

// POST /books/{id}/assets
func (h *MediaHandler) UploadAsset(w http.ResponseWriter, r *http.Request) {
	bookID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, "Invalid book ID", http.StatusBadRequest)
		return
	}

	book, err := h.Books.Get(r.Context(), bookID)
	if err != nil {
		utils.JSONError(w, "Book not found", http.StatusNotFound)
		return
	}

	// Slack over the configured cap covers multipart framing; the media
	// store enforces the exact limit on the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.JSONError(w, "Upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		utils.JSONError(w, "Invalid multipart payload", http.StatusBadRequest)
		return
	}

	kind := models.AssetKind(r.FormValue("kind"))
	if !models.IsValidAssetKind(string(kind)) {
		utils.JSONError(w, "Invalid asset kind", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.JSONError(w, "File is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !models.KindAcceptsContentType(kind, contentType) {
		utils.JSONError(w, "Content type not allowed for this kind", http.StatusUnsupportedMediaType)
		return
	}

	key := uuid.NewString()
	size, err := h.Files.Save(key, file)
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeInvalid {
			utils.JSONError(w, "File exceeds maximum upload size", http.StatusRequestEntityTooLarge)
			return
		}
		utils.JSONError(w, "Failed to store file", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	asset := models.Asset{
		ID:          primitive.NewObjectID(),
		Key:         key,
		Kind:        kind,
		ContentType: contentType,
		Size:        size,
		Filename:    header.Filename,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := h.Assets.Insert(r.Context(), asset); err != nil {
		h.Files.Remove(key)
		utils.JSONError(w, "Failed to record asset", http.StatusInternalServerError)
		return
	}

	h.replaceOld(r, book, kind)

	field := bookAssetField(kind)
	err = h.Books.Update(r.Context(), bookID, bson.M{
		field:        asset.ID.Hex(),
		"updated_at": now,
	})
	if err != nil {
		utils.JSONError(w, "Failed to attach asset", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(r.Context(), models.AssetEntity, constants.Upload, bson.M{
		"book_id":  bookID.Hex(),
		"asset_id": asset.ID.Hex(),
		"kind":     kind,
	})

	utils.JSON(w, http.StatusCreated, asset)
}

// replaceOld drops the previous asset of the same kind, if any. Failures
// here only leak a stale file, never fail the upload.
func (h *MediaHandler) replaceOld(r *http.Request, book models.Book, kind models.AssetKind) {
	var oldRef string
	switch kind {
	case models.AssetCover:
		oldRef = book.CoverAssetID
	case models.AssetPDF:
		oldRef = book.PDFAssetID
	default:
		oldRef = book.AudioAssetID
	}
	if oldRef == "" {
		return
	}

	oldID, err := primitive.ObjectIDFromHex(oldRef)
	if err != nil {
		return
	}
	if old, err := h.Assets.Get(r.Context(), oldID); err == nil {
		h.Files.Remove(old.Key)
		h.Assets.Delete(r.Context(), oldID)
	}
}

// GET /assets/{id}
func (h *MediaHandler) StreamAsset(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, "Invalid asset ID", http.StatusBadRequest)
		return
	}

	asset, err := h.Assets.Get(r.Context(), id)
	if err != nil {
		utils.JSONError(w, "Asset not found", http.StatusNotFound)
		return
	}

	f, info, err := h.Files.Open(asset.Key)
	if err != nil {
		utils.JSONError(w, "Asset file not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	// ServeContent handles Range requests, which the audio player relies on
	// for seeking.
	w.Header().Set("Content-Type", asset.ContentType)
	http.ServeContent(w, r, asset.Filename, info.ModTime(), f)
}

// DELETE /assets/{id}
func (h *MediaHandler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := primitive.ObjectIDFromHex(idStr)
	if err != nil {
		utils.JSONError(w, "Invalid asset ID", http.StatusBadRequest)
		return
	}

	asset, err := h.Assets.Get(r.Context(), id)
	if err != nil {
		utils.JSONError(w, "Asset not found", http.StatusNotFound)
		return
	}

	h.Files.Remove(asset.Key)

	if err := h.Assets.Delete(r.Context(), id); err != nil {
		utils.JSONError(w, "Delete failed", http.StatusInternalServerError)
		return
	}

	field := bookAssetField(asset.Kind)
	h.Books.Collection().UpdateMany(r.Context(),
		bson.M{field: idStr},
		bson.M{
			"$unset": bson.M{field: ""},
			"$set":   bson.M{"updated_at": time.Now()},
		},
	)

	h.AuditLogger.Log(r.Context(), models.AssetEntity, constants.Delete, idStr)

	w.WriteHeader(http.StatusNoContent)
}
