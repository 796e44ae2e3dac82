package repositories

import (
	"context"

	"github.com/vidtube/backend/internal/models"
)

// LikeRepository defines data access for the like relation.
type LikeRepository interface {
	// Toggle flips the like for the given (user, target, kind) key. It
	// reports whether the like now exists. The store's uniqueness
	// constraint guarantees at most one row per key even under
	// concurrent toggles.
	Toggle(ctx context.Context, like models.Like) (added bool, err error)

	// ListLikedVideos returns the user's video likes hydrated with the
	// video record and its owner.
	ListLikedVideos(ctx context.Context, userID string) ([]models.LikedVideo, error)
}
