package utils

import (
	"go.uber.org/zap"

	"candil-egov/internal/models"
)

// ExportAuditLogs ships a batch of audit entries to the operational log
// stream. A real deployment would point this at the e-government archive
// endpoint instead.
func ExportAuditLogs(logger *zap.Logger, logs []models.AuditLog) error {
	for _, entry := range logs {
		logger.Info("audit export",
			zap.Time("timestamp", entry.Timestamp),
			zap.String("entity", entry.Entity),
			zap.String("action", entry.Action),
			zap.String("performed_by", entry.PerformedBy),
			zap.String("id", entry.ID.Hex()),
		)
	}
	return nil
}
