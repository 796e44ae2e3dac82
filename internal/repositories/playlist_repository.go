package repositories

import (
	"context"

	"github.com/vidtube/backend/internal/models"
)

// PlaylistRepository exposes data access for user playlists.
type PlaylistRepository interface {
	Create(ctx context.Context, playlist models.Playlist) error
	FindByID(ctx context.Context, id string) (models.Playlist, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Playlist, error)
	AddVideo(ctx context.Context, playlistID, videoID string) error
	RemoveVideo(ctx context.Context, playlistID, videoID string) error
	Delete(ctx context.Context, id string) error
}

// SubscriptionRepository defines data access for channel subscriptions.
type SubscriptionRepository interface {
	// Toggle flips the subscription and reports whether it now exists.
	Toggle(ctx context.Context, sub models.Subscription) (subscribed bool, err error)
	ListSubscribers(ctx context.Context, channelID string) ([]models.PublicUser, error)
	ListChannels(ctx context.Context, subscriberID string) ([]models.PublicUser, error)
}

// StatsRepository aggregates dashboard figures for a channel.
type StatsRepository interface {
	ChannelStats(ctx context.Context, channelID string) (models.ChannelStats, error)
}
