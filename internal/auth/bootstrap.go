package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/riverside-fc/backend/internal/models"
	"github.com/riverside-fc/backend/pkg/utils"
)

// EnsureAdmin creates the bootstrap admin when it does not exist yet.
// An empty email or password does nothing.
func EnsureAdmin(ctx context.Context, repo *Repository, email, password, fullName string, logger *zap.Logger) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := repo.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("lookup bootstrap admin: %w", err)
	}
	hash, err := utils.HashAdminPassword(password)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}
	admin, err := repo.Create(ctx, email, hash, fullName)
	if err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	logger.Info("bootstrap admin created", zap.String("admin_id", admin.ID.String()))
	return nil
}
