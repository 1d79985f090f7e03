package handlers

import (
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

type BorrowHandler struct {
	Users       *store.Store[models.User]
	Books       *store.Store[models.Book]
	Borrows     *store.Store[models.Borrow]
	AuditLogger utils.Logger
	Config      struct {
		BorrowDays       int
		MaxActiveBorrows int
	}
}

type BorrowRequest struct {
	BookID string `json:"book_id"`
}

// BorrowView is a borrow with the book title attached so history screens
// need no second round trip.
type BorrowView struct {
	models.Borrow
	BookTitle string `json:"book_title,omitempty"`
}

// POST /borrows
func (h *BorrowHandler) BorrowBook(w http.ResponseWriter, r *http.Request) {
	var req BorrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, "Invalid input", http.StatusBadRequest)
		return
	}

	callerID := utils.UserIDFromContext(r.Context())
	userOID, err := primitive.ObjectIDFromHex(callerID)
	if err != nil {
		utils.JSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.Users.Get(r.Context(), userOID)
	if err != nil {
		utils.JSONError(w, "User not found", http.StatusNotFound)
		return
	}
	if !user.Active {
		utils.JSONError(w, "Account is deactivated", http.StatusForbidden)
		return
	}

	bookOID, err := primitive.ObjectIDFromHex(req.BookID)
	if err != nil {
		utils.JSONError(w, "Invalid book ID", http.StatusBadRequest)
		return
	}
	if _, err := h.Books.Get(r.Context(), bookOID); err != nil {
		utils.JSONError(w, "Book not found", http.StatusNotFound)
		return
	}

	active, err := h.Borrows.Count(r.Context(), bson.M{
		"user_id": callerID,
		"status":  models.BorrowActive,
	})
	if err != nil {
		utils.JSONError(w, "Failed to check borrows", http.StatusInternalServerError)
		return
	}
	if int(active) >= h.Config.MaxActiveBorrows {
		utils.JSONError(w, "Borrow limit reached", http.StatusConflict)
		return
	}

	already, err := h.Borrows.Count(r.Context(), bson.M{
		"user_id": callerID,
		"book_id": req.BookID,
		"status":  models.BorrowActive,
	})
	if err != nil {
		utils.JSONError(w, "Failed to check borrows", http.StatusInternalServerError)
		return
	}
	if already > 0 {
		utils.JSONError(w, "Book already borrowed", http.StatusConflict)
		return
	}

	days := h.Config.BorrowDays
	if days <= 0 {
		days = 7
	}
	now := time.Now()
	borrow := models.Borrow{
		ID:         primitive.NewObjectID(),
		UserID:     callerID,
		BookID:     req.BookID,
		BorrowDate: now,
		DueDate:    now.AddDate(0, 0, days),
		Status:     models.BorrowActive,
	}

	if _, err := h.Borrows.Insert(r.Context(), borrow); err != nil {
		utils.JSONError(w, "Failed to record borrow", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(r.Context(), models.BorrowEntity, constants.Borrow, borrow)

	utils.JSON(w, http.StatusCreated, borrow)
}

// POST /borrows/{id}/return
func (h *BorrowHandler) ReturnBook(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, "Invalid borrow ID", http.StatusBadRequest)
		return
	}

	borrow, err := h.Borrows.Get(r.Context(), id)
	if err != nil {
		utils.JSONError(w, "Borrow not found", http.StatusNotFound)
		return
	}
	if borrow.Status != models.BorrowActive {
		utils.JSONError(w, "Borrow already returned", http.StatusConflict)
		return
	}

	callerID := utils.UserIDFromContext(r.Context())
	role := utils.RoleFromContext(r.Context())
	if borrow.UserID != callerID && role != string(models.RoleAdmin) {
		utils.JSONError(w, "Not your borrow", http.StatusForbidden)
		return
	}

	now := time.Now()
	err = h.Borrows.Update(r.Context(), id, bson.M{
		"status":        models.BorrowReturned,
		"return_date":   now,
		"auto_returned": false,
	})
	if err != nil {
		utils.JSONError(w, "Failed to record return", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(r.Context(), models.BorrowEntity, constants.Return, borrow.ID.Hex())

	borrow.Status = models.BorrowReturned
	borrow.ReturnDate = &now
	utils.JSON(w, http.StatusOK, borrow)
}

// GET /me/borrows
func (h *BorrowHandler) MyBorrows(w http.ResponseWriter, r *http.Request) {
	callerID := utils.UserIDFromContext(r.Context())
	if callerID == "" {
		utils.JSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	filter := bson.M{"user_id": callerID}
	if status := r.URL.Query().Get("status"); status != "" {
		if !models.IsValidBorrowStatus(status) {
			utils.JSONError(w, "Invalid status", http.StatusBadRequest)
			return
		}
		filter["status"] = status
	}

	page := store.PageFromRequest(r)
	borrows, total, err := h.Borrows.List(r.Context(), filter, page, bson.D{{Key: "borrow_date", Value: -1}})
	if err != nil {
		utils.JSONError(w, "Failed to fetch borrows", http.StatusInternalServerError)
		return
	}

	views, err := h.attachTitles(r, borrows)
	if err != nil {
		utils.JSONError(w, "Failed to resolve books", http.StatusInternalServerError)
		return
	}

	utils.JSONPage(w, http.StatusOK, views, page.Number, page.Size, total)
}

// GET /borrows/active?book_id=
// The reading screens ask this before opening a book: does the caller
// currently hold it?
func (h *BorrowHandler) ActiveBorrow(w http.ResponseWriter, r *http.Request) {
	callerID := utils.UserIDFromContext(r.Context())
	if callerID == "" {
		utils.JSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	bookID := r.URL.Query().Get("book_id")
	if bookID == "" {
		utils.JSONError(w, "book_id is required", http.StatusBadRequest)
		return
	}
	if _, err := primitive.ObjectIDFromHex(bookID); err != nil {
		utils.JSONError(w, "Invalid book ID", http.StatusBadRequest)
		return
	}

	borrow, err := h.Borrows.FindOne(r.Context(), bson.M{
		"user_id": callerID,
		"book_id": bookID,
		"status":  models.BorrowActive,
	})
	if err != nil {
		if apperr.IsNotFound(err) {
			utils.JSONError(w, "No active borrow for this book", http.StatusNotFound)
			return
		}
		utils.JSONError(w, "Failed to fetch borrow", http.StatusInternalServerError)
		return
	}

	borrow.Overdue = borrow.IsOverdue(time.Now())
	utils.JSON(w, http.StatusOK, borrow)
}

// GET /borrows/overdue
func (h *BorrowHandler) OverdueBorrows(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	filter := bson.M{
		"status":   models.BorrowActive,
		"due_date": bson.M{"$lt": now},
	}

	page := store.PageFromRequest(r)
	borrows, total, err := h.Borrows.List(r.Context(), filter, page, bson.D{{Key: "due_date", Value: 1}})
	if err != nil {
		utils.JSONError(w, "Failed to fetch overdue borrows", http.StatusInternalServerError)
		return
	}

	for i := range borrows {
		borrows[i].Overdue = true
	}

	utils.JSONPage(w, http.StatusOK, borrows, page.Number, page.Size, total)
}

// attachTitles computes overdue flags and fills in book titles with bounded
// parallel look-ups. A deleted book leaves the title empty.
func (h *BorrowHandler) attachTitles(r *http.Request, borrows []models.Borrow) ([]BorrowView, error) {
	now := time.Now()
	views := make([]BorrowView, len(borrows))

	g, gctx := errgroup.WithContext(r.Context())
	g.SetLimit(4)
	for i, b := range borrows {
		b.Overdue = b.IsOverdue(now)
		views[i] = BorrowView{Borrow: b}

		oid, err := primitive.ObjectIDFromHex(b.BookID)
		if err != nil {
			continue
		}
		i := i
		g.Go(func() error {
			if book, err := h.Books.Get(gctx, oid); err == nil {
				views[i].BookTitle = book.Title
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}
