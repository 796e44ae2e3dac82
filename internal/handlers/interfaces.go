package handlers

import (
	"context"
	"io"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/models"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	UpdateRefreshToken(ctx context.Context, userID, refreshToken string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// TokenIssuer signs and verifies the access/refresh token pair.
type TokenIssuer interface {
	Issue(user models.User) (models.TokenPair, error)
	VerifyAccess(token string) (*auth.AccessClaims, error)
	VerifyRefresh(token string) (userID string, err error)
}

// MediaStore persists uploaded media and returns its public location.
type MediaStore interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) (string, error)
}

// LikeStore captures persistence for the like toggle workflows.
type LikeStore interface {
	Toggle(ctx context.Context, like models.Like) (added bool, err error)
	ListLikedVideos(ctx context.Context, userID string) ([]models.LikedVideo, error)
}

// VideoStore captures persistence for video workflows.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Video, error)
	Update(ctx context.Context, video models.Video) error
	Delete(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) error
	TogglePublish(ctx context.Context, id string) (published bool, err error)
}

// TweetStore captures persistence for tweet workflows.
type TweetStore interface {
	Create(ctx context.Context, tweet models.Tweet) error
	FindByID(ctx context.Context, id string) (models.Tweet, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Tweet, error)
	Update(ctx context.Context, tweet models.Tweet) error
	Delete(ctx context.Context, id string) error
}

// CommentStore captures persistence for comment workflows.
type CommentStore interface {
	Create(ctx context.Context, comment models.Comment) error
	FindByID(ctx context.Context, id string) (models.Comment, error)
	ListByVideo(ctx context.Context, videoID string) ([]models.Comment, error)
	Update(ctx context.Context, comment models.Comment) error
	Delete(ctx context.Context, id string) error
}

// PlaylistStore captures persistence for playlist workflows.
type PlaylistStore interface {
	Create(ctx context.Context, playlist models.Playlist) error
	FindByID(ctx context.Context, id string) (models.Playlist, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Playlist, error)
	AddVideo(ctx context.Context, playlistID, videoID string) error
	RemoveVideo(ctx context.Context, playlistID, videoID string) error
	Delete(ctx context.Context, id string) error
}

// SubscriptionStore captures persistence for subscription workflows.
type SubscriptionStore interface {
	Toggle(ctx context.Context, sub models.Subscription) (subscribed bool, err error)
	ListSubscribers(ctx context.Context, channelID string) ([]models.PublicUser, error)
	ListChannels(ctx context.Context, subscriberID string) ([]models.PublicUser, error)
}

// StatsProvider aggregates dashboard figures for a channel.
type StatsProvider interface {
	ChannelStats(ctx context.Context, channelID string) (models.ChannelStats, error)
}
