package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/moraes/isbn"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"candil-egov/internal/apperr"
	"candil-egov/internal/constants"
	"candil-egov/internal/models"
	"candil-egov/internal/store"
	"candil-egov/internal/utils"
)

type BookHandler struct {
	Books       *store.Store[models.Book]
	Authors     *store.Store[models.Author]
	Publishers  *store.Store[models.Publisher]
	Categories  *store.Store[models.Category]
	Borrows     *store.Store[models.Borrow]
	AuditLogger utils.Logger
}

// BookDetail is a catalog entry with its references resolved. Dangling
// references come back as null rather than failing the request.
type BookDetail struct {
	models.Book
	Author    *models.Author    `json:"author,omitempty"`
	Publisher *models.Publisher `json:"publisher,omitempty"`
	Category  *models.Category  `json:"category,omitempty"`
}

// GET /books
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filter := bson.M{}
	for _, key := range []string{"category_id", "author_id", "publisher_id", "language"} {
		if val := r.URL.Query().Get(key); val != "" {
			filter[key] = val
		}
	}

	page := store.PageFromRequest(r)
	books, total, err := h.Books.List(ctx, filter, page, bson.D{{Key: "title", Value: 1}})
	if err != nil {
		utils.JSONError(w, "Failed to fetch books", http.StatusInternalServerError)
		return
	}

	utils.JSONPage(w, http.StatusOK, books, page.Number, page.Size, total)
}

// GET /books/search?q=
func (h *BookHandler) SearchBooks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		utils.JSONError(w, "Query parameter q is required", http.StatusBadRequest)
		return
	}

	// A closed browser tab should not leave the text query running.
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filter := bson.M{"$text": bson.M{"$search": query}}
	page := store.PageFromRequest(r)

	books, total, err := h.Books.List(ctx, filter, page, nil)
	if err != nil {
		utils.JSONError(w, "Failed to search books", http.StatusInternalServerError)
		return
	}

	utils.JSONPage(w, http.StatusOK, books, page.Number, page.Size, total)
}

// GET /books/{id}
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, "Invalid book ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	book, err := h.Books.Get(ctx, id)
	if err != nil {
		utils.JSONError(w, "Book not found", http.StatusNotFound)
		return
	}

	utils.JSON(w, http.StatusOK, h.resolveRefs(ctx, book))
}

// POST /books
func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var book models.Book
	if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
		utils.JSONError(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	if book.Title == "" {
		utils.JSONError(w, "Title is required", http.StatusBadRequest)
		return
	}
	if book.ISBN != "" && !isbn.Validate(models.NormalizeISBN(book.ISBN)) {
		utils.JSONError(w, "Invalid ISBN", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.checkRefs(ctx, book); err != nil {
		utils.WriteError(w, err)
		return
	}

	now := time.Now()
	book.ID = primitive.NewObjectID()
	book.CreatedAt = now
	book.UpdatedAt = now

	if _, err := h.Books.Insert(ctx, book); err != nil {
		utils.JSONError(w, "Insert failed", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(ctx, models.BookEntity, constants.Create, book)

	utils.JSON(w, http.StatusCreated, book)
}

// PUT /books/{id}
func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, "Invalid book ID", http.StatusBadRequest)
		return
	}

	var updateData map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updateData); err != nil {
		utils.JSONError(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	delete(updateData, "_id")
	delete(updateData, "id")
	delete(updateData, "created_at")
	if len(updateData) == 0 {
		utils.JSONError(w, "No update fields provided", http.StatusBadRequest)
		return
	}

	if raw, ok := updateData["isbn"]; ok {
		code, ok := raw.(string)
		if !ok || (code != "" && !isbn.Validate(models.NormalizeISBN(code))) {
			utils.JSONError(w, "Invalid ISBN", http.StatusBadRequest)
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	refs := models.Book{}
	if v, ok := updateData["author_id"].(string); ok {
		refs.AuthorID = v
	}
	if v, ok := updateData["publisher_id"].(string); ok {
		refs.PublisherID = v
	}
	if v, ok := updateData["category_id"].(string); ok {
		refs.CategoryID = v
	}
	if err := h.checkRefs(ctx, refs); err != nil {
		utils.WriteError(w, err)
		return
	}

	updateData["updated_at"] = time.Now()

	if err := h.Books.Update(ctx, id, bson.M(updateData)); err != nil {
		if apperr.IsNotFound(err) {
			utils.JSONError(w, "Book not found", http.StatusNotFound)
			return
		}
		utils.JSONError(w, "Update failed", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(ctx, models.BookEntity, constants.Update, updateData)

	utils.JSON(w, http.StatusOK, map[string]string{"message": "Book updated"})
}

// DELETE /books/{id}
func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := primitive.ObjectIDFromHex(idStr)
	if err != nil {
		utils.JSONError(w, "Invalid book ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	active, err := h.Borrows.Count(ctx, bson.M{
		"book_id": idStr,
		"status":  models.BorrowActive,
	})
	if err != nil {
		utils.JSONError(w, "Failed to check borrows", http.StatusInternalServerError)
		return
	}
	if active > 0 {
		utils.JSONError(w, "Book has active borrows", http.StatusConflict)
		return
	}

	// TODO: also remove the book's asset records and media files.
	if err := h.Books.Delete(ctx, id); err != nil {
		if apperr.IsNotFound(err) {
			utils.JSONError(w, "Book not found", http.StatusNotFound)
			return
		}
		utils.JSONError(w, "Delete failed", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(ctx, models.BookEntity, constants.Delete, idStr)

	w.WriteHeader(http.StatusNoContent)
}

// resolveRefs looks up the referenced author, publisher and category in
// parallel. Look-up failures leave the reference unresolved.
func (h *BookHandler) resolveRefs(ctx context.Context, book models.Book) BookDetail {
	detail := BookDetail{Book: book}
	g, gctx := errgroup.WithContext(ctx)

	if book.AuthorID != "" {
		g.Go(func() error {
			if oid, err := primitive.ObjectIDFromHex(book.AuthorID); err == nil {
				if a, err := h.Authors.Get(gctx, oid); err == nil {
					detail.Author = &a
				}
			}
			return nil
		})
	}
	if book.PublisherID != "" {
		g.Go(func() error {
			if oid, err := primitive.ObjectIDFromHex(book.PublisherID); err == nil {
				if p, err := h.Publishers.Get(gctx, oid); err == nil {
					detail.Publisher = &p
				}
			}
			return nil
		})
	}
	if book.CategoryID != "" {
		g.Go(func() error {
			if oid, err := primitive.ObjectIDFromHex(book.CategoryID); err == nil {
				if c, err := h.Categories.Get(gctx, oid); err == nil {
					detail.Category = &c
				}
			}
			return nil
		})
	}

	g.Wait()
	return detail
}

// checkRefs verifies that every reference set on the book points at an
// existing document.
func (h *BookHandler) checkRefs(ctx context.Context, book models.Book) error {
	g, gctx := errgroup.WithContext(ctx)

	check := func(field, hex string, exists func(context.Context, primitive.ObjectID) error) {
		if hex == "" {
			return
		}
		g.Go(func() error {
			oid, err := primitive.ObjectIDFromHex(hex)
			if err != nil {
				return apperr.New(apperr.CodeInvalid, "Invalid "+field)
			}
			if err := exists(gctx, oid); err != nil {
				if apperr.IsNotFound(err) {
					return apperr.New(apperr.CodeInvalid, "Unknown "+field)
				}
				return err
			}
			return nil
		})
	}

	check("author_id", book.AuthorID, func(ctx context.Context, id primitive.ObjectID) error {
		_, err := h.Authors.Get(ctx, id)
		return err
	})
	check("publisher_id", book.PublisherID, func(ctx context.Context, id primitive.ObjectID) error {
		_, err := h.Publishers.Get(ctx, id)
		return err
	})
	check("category_id", book.CategoryID, func(ctx context.Context, id primitive.ObjectID) error {
		_, err := h.Categories.Get(ctx, id)
		return err
	})

	return g.Wait()
}
