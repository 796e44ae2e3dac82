package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
)

// SubscriptionHandler implements channel subscription endpoints.
type SubscriptionHandler struct {
	Subscriptions SubscriptionStore
	NowFunc       func() time.Time
}

// Toggle handles POST /api/v1/subscriptions/toggle/{channelId}.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	channelID := r.PathValue("channelId")
	if err := uuid.Validate(channelID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid channel id")
		return
	}

	if channelID == user.ID {
		respondError(ctx, w, http.StatusBadRequest, "cannot subscribe to your own channel")
		return
	}

	subscribed, err := h.Subscriptions.Toggle(ctx, models.Subscription{
		SubscriberID: user.ID,
		ChannelID:    channelID,
		CreatedAt:    h.now(),
	})
	if err != nil {
		logger.Error("subscription toggle failed", "error", err, "userId", user.ID, "channelId", channelID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to toggle subscription")
		return
	}

	message := "unsubscribed"
	if subscribed {
		message = "subscribed"
	}

	respondJSON(ctx, w, http.StatusOK, message, map[string]bool{"subscribed": subscribed})
}

// Subscribers handles GET /api/v1/subscriptions/subscribers/{channelId}.
func (h SubscriptionHandler) Subscribers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	channelID := r.PathValue("channelId")
	if err := uuid.Validate(channelID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid channel id")
		return
	}

	subscribers, err := h.Subscriptions.ListSubscribers(ctx, channelID)
	if err != nil {
		logger.Error("subscriber list failed", "error", err, "channelId", channelID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list subscribers")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "channel subscribers", subscribers)
}

// Channels handles GET /api/v1/subscriptions/channels/{userId}.
func (h SubscriptionHandler) Channels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := r.PathValue("userId")
	if err := uuid.Validate(userID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid user id")
		return
	}

	channels, err := h.Subscriptions.ListChannels(ctx, userID)
	if err != nil {
		logger.Error("subscribed channel list failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list subscribed channels")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "subscribed channels", channels)
}

func (h SubscriptionHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
