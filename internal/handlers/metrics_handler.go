package handlers

import (
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"candil-egov/internal/models"
	"candil-egov/internal/store"
	"candil-egov/internal/utils"
)

type MetricsHandler struct {
	Books      *store.Store[models.Book]
	Users      *store.Store[models.User]
	Borrows    *store.Store[models.Borrow]
	Categories *store.Store[models.Category]
}

// GET /admin/metrics
func (h MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	now := time.Now()
	todayStart := now.Truncate(24 * time.Hour)

	totalBooks, _ := h.Books.Count(ctx, bson.M{})
	totalCategories, _ := h.Categories.Count(ctx, bson.M{})
	activeUsers, _ := h.Users.Count(ctx, bson.M{"active": true})

	borrowsToday, _ := h.Borrows.Count(ctx, bson.M{
		"borrow_date": bson.M{"$gte": todayStart},
	})
	activeBorrows, _ := h.Borrows.Count(ctx, bson.M{
		"status": models.BorrowActive,
	})
	overdueCount, _ := h.Borrows.Count(ctx, bson.M{
		"status":   models.BorrowActive,
		"due_date": bson.M{"$lt": now},
	})
	autoReturned, _ := h.Borrows.Count(ctx, bson.M{
		"auto_returned": true,
	})

	utils.JSON(w, http.StatusOK, map[string]interface{}{
		"total_books":      totalBooks,
		"total_categories": totalCategories,
		"active_users":     activeUsers,
		"borrows_today":    borrowsToday,
		"active_borrows":   activeBorrows,
		"overdue_count":    overdueCount,
		"auto_returned":    autoReturned,
	})
}
