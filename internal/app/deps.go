package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/storage"
)

const rateLimiterEntryTTL = 10 * time.Minute

func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, error) {
	media, err := storage.NewS3MediaStore(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("configure media store: %w", err)
	}

	tokens := auth.NewTokenManager(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	subscriptions := repositories.NewPostgresSubscriptionRepository(pool)

	return handlers.Dependencies{
		Users:         repositories.NewPostgresUserRepository(pool),
		Tokens:        tokens,
		Media:         media,
		Likes:         repositories.NewPostgresLikeRepository(pool),
		Videos:        repositories.NewPostgresVideoRepository(pool),
		Tweets:        repositories.NewPostgresTweetRepository(pool),
		Comments:      repositories.NewPostgresCommentRepository(pool),
		Playlists:     repositories.NewPostgresPlaylistRepository(pool),
		Subscriptions: subscriptions,
		Stats:         subscriptions,
		AuthLimiter:   middleware.NewIPRateLimiter(cfg.AuthRateLimit, time.Minute, cfg.AuthRateBurst, rateLimiterEntryTTL),
	}, nil
}
