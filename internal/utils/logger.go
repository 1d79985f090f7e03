package utils

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"candil-egov/internal/models"
)

// Logger writes the domain audit trail to the audit_logs collection. The
// performer is taken from the request context when the middleware put one
// there; daemon writes show up as "system".
type Logger struct {
	Collection *mongo.Collection
}

func (l Logger) Log(ctx context.Context, entity, action string, data any) error {
	performedBy := UserIDFromContext(ctx)
	if performedBy == "" {
		performedBy = "system"
	}
	log := models.AuditLog{
		Timestamp:   time.Now(),
		Entity:      entity,
		Action:      action,
		PerformedBy: performedBy,
		Data:        data,
		Exported:    false,
	}
	_, err := l.Collection.InsertOne(ctx, log)
	return err
}
