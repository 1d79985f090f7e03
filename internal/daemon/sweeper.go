package daemon

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"candil-egov/internal/constants"
	"candil-egov/internal/models"
	"candil-egov/internal/store"
	"candil-egov/internal/utils"
)

// OverdueSweeper walks ACTIVE borrows whose due date has passed and
// retires them as auto-returned. Write pace is throttled through the
// limiter so a large backlog does not hammer the database.
type OverdueSweeper struct {
	Borrows     *store.Store[models.Borrow]
	AuditLogger utils.Logger
	Limiter     ratelimit.Limiter
	Interval    time.Duration
	Log         *zap.Logger
}

func (s *OverdueSweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepOnce(ctx)
			if err != nil {
				s.Log.Warn("overdue sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.Log.Info("overdue borrows auto-returned", zap.Int("count", n))
			}
		}
	}
}

// SweepOnce processes one batch of overdue borrows and returns how many
// were auto-returned. A backlog larger than the batch is picked up on the
// following passes.
func (s *OverdueSweeper) SweepOnce(ctx context.Context) (int, error) {
	now := time.Now()
	overdue, _, err := s.Borrows.List(ctx, bson.M{
		"status":   models.BorrowActive,
		"due_date": bson.M{"$lt": now},
	}, store.Page{Number: 1, Size: store.MaxPageSize}, bson.D{{Key: "due_date", Value: 1}})
	if err != nil {
		return 0, err
	}

	returned := 0
	for _, borrow := range overdue {
		if s.Limiter != nil {
			s.Limiter.Take()
		}
		err := s.Borrows.Update(ctx, borrow.ID, bson.M{
			"status":        models.BorrowReturned,
			"return_date":   now,
			"auto_returned": true,
		})
		if err != nil {
			return returned, err
		}
		s.AuditLogger.Log(ctx, models.BorrowEntity, constants.AutoReturn, bson.M{
			"borrow_id": borrow.ID.Hex(),
			"user_id":   borrow.UserID,
			"book_id":   borrow.BookID,
		})
		utils.AppendToNotificationLog(ctx, borrow.UserID, borrow.BookID)
		returned++
	}
	return returned, nil
}
