package main

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"candil-egov/configs"
	"candil-egov/internal/apperr"
	"candil-egov/internal/db"
	"candil-egov/internal/models"
	"candil-egov/internal/store"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative maintenance commands",
}

var (
	adminEmail    string
	adminName     string
	adminPassword string
)

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an admin account, or promote the user if the email exists",
	RunE:  runAdminCreate,
}

func init() {
	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "Admin email address")
	adminCreateCmd.Flags().StringVar(&adminName, "name", "Administrator", "Display name")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "Password, at least 8 characters")
	_ = adminCreateCmd.MarkFlagRequired("email")
	_ = adminCreateCmd.MarkFlagRequired("password")

	adminCmd.AddCommand(adminCreateCmd)
}

func runAdminCreate(cmd *cobra.Command, args []string) error {
	if len(adminPassword) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	cfg := configs.LoadConfig()
	ctx := cmd.Context()

	if err := db.Connect(ctx, cfg.MongoURI, logger); err != nil {
		return err
	}
	defer func() { _ = db.Disconnect(context.Background()) }()

	users := store.New[models.User](db.GetCollection(cfg.DBName, "users"))
	email := strings.ToLower(strings.TrimSpace(adminEmail))

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}

	existing, err := users.FindOne(ctx, bson.M{"email": email})
	if err == nil {
		err := users.Update(ctx, existing.ID, bson.M{
			"role":          models.RoleAdmin,
			"password_hash": string(hash),
			"active":        true,
			"updated_at":    time.Now(),
		})
		if err != nil {
			return err
		}
		logger.Info("existing user promoted to admin", zap.String("email", email))
		return nil
	}
	if !apperr.IsNotFound(err) {
		return err
	}

	now := time.Now()
	id, err := users.Insert(ctx, models.User{
		Email:        email,
		Name:         adminName,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return err
	}
	logger.Info("admin account created", zap.String("email", email), zap.String("id", id.Hex()))
	return nil
}
