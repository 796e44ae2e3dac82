package repositories

import (
	"context"

	"github.com/vidtube/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)

	// UpdateRefreshToken overwrites only the persisted refresh token for the
	// user. An empty token clears it (logout).
	UpdateRefreshToken(ctx context.Context, userID, refreshToken string) error

	// UpdatePassword overwrites only the stored password hash.
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}
