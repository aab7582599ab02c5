package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/qa-dashboard/backend/internal/apperror"
	"github.com/qa-dashboard/backend/internal/models"
	"github.com/qa-dashboard/backend/pkg/utils"
)

// EnsureAdmin creates the default admin account unless a user with that email exists.
func EnsureAdmin(ctx context.Context, store Store, username, email, password string, logger *zap.Logger) error {
	_, err := store.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !apperror.IsNotFound(err) {
		return fmt.Errorf("lookup admin: %w", err)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := &models.User{Username: username, Email: email, Password: hash, Role: models.RoleAdmin}
	if err := store.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	logger.Info("default admin created", zap.String("email", email), zap.Int64("user_id", admin.ID))
	return nil
}
