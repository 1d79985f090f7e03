package daemon

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"candil-egov/internal/models"
	"candil-egov/internal/utils"
)

// LogExporter periodically ships unexported audit entries to the log
// stream and marks them exported so each entry leaves exactly once.
type LogExporter struct {
	Coll     *mongo.Collection
	Interval time.Duration
	Log      *zap.Logger
}

func (l *LogExporter) Run(ctx context.Context) {
	interval := l.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := l.ExportOnce(ctx); err != nil {
				l.Log.Warn("audit export failed", zap.Error(err))
			} else if n > 0 {
				l.Log.Info("audit entries exported", zap.Int("count", n))
			}
		}
	}
}

// ExportOnce drains the current backlog of unexported entries and returns
// how many were shipped.
func (l *LogExporter) ExportOnce(ctx context.Context) (int, error) {
	cursor, err := l.Coll.Find(ctx, bson.M{"exported": false})
	if err != nil {
		return 0, errors.Wrap(err, "query audit backlog")
	}

	var logs []models.AuditLog
	if err := cursor.All(ctx, &logs); err != nil {
		return 0, errors.Wrap(err, "decode audit backlog")
	}
	if len(logs) == 0 {
		return 0, nil
	}

	if err := utils.ExportAuditLogs(l.Log, logs); err != nil {
		return 0, errors.Wrap(err, "export audit entries")
	}

	ids := make([]primitive.ObjectID, 0, len(logs))
	for _, entry := range logs {
		ids = append(ids, entry.ID)
	}
	_, err = l.Coll.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"exported": true}},
	)
	if err != nil {
		return 0, errors.Wrap(err, "mark entries exported")
	}
	return len(logs), nil
}
