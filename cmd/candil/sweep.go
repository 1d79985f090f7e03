package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"candil-egov/configs"
	"candil-egov/internal/daemon"
	"candil-egov/internal/db"
	"candil-egov/internal/models"
	"candil-egov/internal/store"
	"candil-egov/internal/utils"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one overdue sweep pass and exit",
	Long: `Auto-returns every borrow whose due date has passed, the same pass the
server runs on its sweep interval. Useful from cron or for catching up
after downtime.`,
	RunE: runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg := configs.LoadConfig()
	ctx := cmd.Context()

	if err := db.Connect(ctx, cfg.MongoURI, logger); err != nil {
		return err
	}
	defer func() { _ = db.Disconnect(context.Background()) }()

	sweeper := &daemon.OverdueSweeper{
		Borrows:     store.New[models.Borrow](db.GetCollection(cfg.DBName, "borrows")),
		AuditLogger: utils.Logger{Collection: db.GetCollection(cfg.DBName, "audit_logs")},
		Limiter:     ratelimit.New(10),
		Log:         logger,
	}

	n, err := sweeper.SweepOnce(ctx)
	if err != nil {
		return err
	}
	logger.Info("sweep finished", zap.Int("auto_returned", n))
	return nil
}
