package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"candil-egov/configs"
	"candil-egov/internal/daemon"
	"candil-egov/internal/db"
	"candil-egov/internal/handlers"
	"candil-egov/internal/media"
	"candil-egov/internal/middleware"
	"candil-egov/internal/models"
	"candil-egov/internal/store"
	"candil-egov/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background jobs",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := configs.LoadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.Connect(ctx, cfg.MongoURI, logger); err != nil {
		return err
	}
	defer func() { _ = db.Disconnect(context.Background()) }()

	if err := db.EnsureIndexes(ctx, cfg.DBName); err != nil {
		return err
	}
	utils.InitJwtSecret(cfg.JWTSecret)

	files, err := media.NewStore(cfg.MediaDir, cfg.MaxUploadBytes)
	if err != nil {
		return err
	}

	books := store.New[models.Book](db.GetCollection(cfg.DBName, "books"))
	authors := store.New[models.Author](db.GetCollection(cfg.DBName, "authors"))
	publishers := store.New[models.Publisher](db.GetCollection(cfg.DBName, "publishers"))
	categories := store.New[models.Category](db.GetCollection(cfg.DBName, "categories"))
	users := store.New[models.User](db.GetCollection(cfg.DBName, "users"))
	borrows := store.New[models.Borrow](db.GetCollection(cfg.DBName, "borrows"))
	assets := store.New[models.Asset](db.GetCollection(cfg.DBName, "assets"))
	preferences := store.New[models.Preferences](db.GetCollection(cfg.DBName, "preferences"))
	progress := store.New[models.Progress](db.GetCollection(cfg.DBName, "progress"))

	auditCol := db.GetCollection(cfg.DBName, "audit_logs")
	auditLogger := utils.Logger{Collection: auditCol}

	authHandler := &handlers.AuthHandler{
		Users:       users,
		AuditLogger: auditLogger,
		TokenTTL:    time.Duration(cfg.JWTTTLHours) * time.Hour,
	}

	bookHandler := &handlers.BookHandler{
		Books:       books,
		Authors:     authors,
		Publishers:  publishers,
		Categories:  categories,
		Borrows:     borrows,
		AuditLogger: auditLogger,
	}

	categoryHandler := &handlers.CategoryHandler{
		Categories:  categories,
		Books:       books,
		AuditLogger: auditLogger,
	}

	authorHandler := &handlers.AuthorHandler{
		Authors:     authors,
		Books:       books,
		AuditLogger: auditLogger,
	}

	publisherHandler := &handlers.PublisherHandler{
		Publishers:  publishers,
		Books:       books,
		AuditLogger: auditLogger,
	}

	borrowHandler := &handlers.BorrowHandler{
		Users:       users,
		Books:       books,
		Borrows:     borrows,
		AuditLogger: auditLogger,
		Config: struct {
			BorrowDays       int
			MaxActiveBorrows int
		}{BorrowDays: cfg.BorrowDays, MaxActiveBorrows: cfg.MaxActiveBorrows},
	}

	mediaHandler := &handlers.MediaHandler{
		Assets:         assets,
		Books:          books,
		Files:          files,
		AuditLogger:    auditLogger,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	userHandler := &handlers.UserHandler{
		Users:       users,
		Preferences: preferences,
		Progress:    progress,
		Books:       books,
		AuditLogger: auditLogger,
	}

	metricsHandler := handlers.MetricsHandler{
		Books:      books,
		Users:      users,
		Borrows:    borrows,
		Categories: categories,
	}

	r := mux.NewRouter()
	r.Use(middleware.JSONMiddleware)
	r.Use(middleware.RequestLogger(logger))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	loginLimiter := middleware.NewIPRateLimiter(
		rate.Every(time.Minute/time.Duration(cfg.LoginRatePerMin)),
		cfg.LoginBurst,
	)
	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	r.Handle("/auth/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login))).Methods("POST")

	// Catalog browsing is open to everyone.
	r.HandleFunc("/books", bookHandler.ListBooks).Methods("GET")
	r.HandleFunc("/books/search", bookHandler.SearchBooks).Methods("GET")
	r.HandleFunc("/books/{id}", bookHandler.GetBook).Methods("GET")
	r.HandleFunc("/categories", categoryHandler.ListCategories).Methods("GET")
	r.HandleFunc("/categories/{id}", categoryHandler.GetCategory).Methods("GET")
	r.HandleFunc("/categories/{id}/books", categoryHandler.ListCategoryBooks).Methods("GET")
	r.HandleFunc("/authors", authorHandler.ListAuthors).Methods("GET")
	r.HandleFunc("/authors/{id}", authorHandler.GetAuthor).Methods("GET")
	r.HandleFunc("/publishers", publisherHandler.ListPublishers).Methods("GET")
	r.HandleFunc("/publishers/{id}", publisherHandler.GetPublisher).Methods("GET")

	// Asset bytes are addressed by unguessable ids; writes stay admin-only.
	r.HandleFunc("/assets/{id}", mediaHandler.StreamAsset).Methods("GET")

	// Everything a signed-in reader does.
	authed := r.PathPrefix("/").Subrouter()
	authed.Use(middleware.JWTAuthMiddleware)
	authed.HandleFunc("/me", userHandler.Me).Methods("GET")
	authed.HandleFunc("/me/preferences", userHandler.GetPreferences).Methods("GET")
	authed.HandleFunc("/me/preferences", userHandler.UpdatePreferences).Methods("PUT")
	authed.HandleFunc("/me/progress/{bookID}", userHandler.GetProgress).Methods("GET")
	authed.HandleFunc("/me/progress/{bookID}", userHandler.UpdateProgress).Methods("PUT")
	authed.HandleFunc("/me/borrows", borrowHandler.MyBorrows).Methods("GET")
	authed.HandleFunc("/borrows", borrowHandler.BorrowBook).Methods("POST")
	authed.HandleFunc("/borrows/active", borrowHandler.ActiveBorrow).Methods("GET")
	authed.HandleFunc("/borrows/{id}/return", borrowHandler.ReturnBook).Methods("POST")

	// Administration.
	admin := r.PathPrefix("/").Subrouter()
	admin.Use(middleware.JWTAuthMiddleware, middleware.RequireAdmin)
	admin.HandleFunc("/books", bookHandler.CreateBook).Methods("POST")
	admin.HandleFunc("/books/{id}", bookHandler.UpdateBook).Methods("PUT")
	admin.HandleFunc("/books/{id}", bookHandler.DeleteBook).Methods("DELETE")
	admin.HandleFunc("/books/{id}/assets", mediaHandler.UploadAsset).Methods("POST")
	admin.HandleFunc("/assets/{id}", mediaHandler.DeleteAsset).Methods("DELETE")
	admin.HandleFunc("/categories", categoryHandler.CreateCategory).Methods("POST")
	admin.HandleFunc("/categories/{id}", categoryHandler.UpdateCategory).Methods("PUT")
	admin.HandleFunc("/categories/{id}", categoryHandler.DeleteCategory).Methods("DELETE")
	admin.HandleFunc("/authors", authorHandler.CreateAuthor).Methods("POST")
	admin.HandleFunc("/authors/{id}", authorHandler.UpdateAuthor).Methods("PUT")
	admin.HandleFunc("/authors/{id}", authorHandler.DeleteAuthor).Methods("DELETE")
	admin.HandleFunc("/publishers", publisherHandler.CreatePublisher).Methods("POST")
	admin.HandleFunc("/publishers/{id}", publisherHandler.UpdatePublisher).Methods("PUT")
	admin.HandleFunc("/publishers/{id}", publisherHandler.DeletePublisher).Methods("DELETE")
	admin.HandleFunc("/borrows/overdue", borrowHandler.OverdueBorrows).Methods("GET")
	admin.HandleFunc("/users", userHandler.ListUsers).Methods("GET")
	admin.HandleFunc("/users/{id}/deactivate", userHandler.DeactivateUser).Methods("PATCH")
	admin.HandleFunc("/users/{id}/activate", userHandler.ActivateUser).Methods("PATCH")
	admin.HandleFunc("/admin/metrics", metricsHandler.GetMetrics).Methods("GET")

	sweeper := &daemon.OverdueSweeper{
		Borrows:     borrows,
		AuditLogger: auditLogger,
		Limiter:     ratelimit.New(10),
		Interval:    cfg.SweepInterval,
		Log:         logger,
	}
	go sweeper.Run(ctx)

	exporter := &daemon.LogExporter{
		Coll:     auditCol,
		Interval: cfg.AuditExportInterval,
		Log:      logger,
	}
	go exporter.Run(ctx)

	server := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	logger.Info("shutting down gracefully")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "graceful shutdown failed")
	}
	logger.Info("server stopped")
	return nil
}
