package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// TweetHandler implements channel tweet endpoints.
type TweetHandler struct {
	Tweets  TweetStore
	NowFunc func() time.Time
}

// Create handles POST /api/v1/tweets.
func (h TweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req tweetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		respondError(ctx, w, http.StatusBadRequest, "content is required")
		return
	}

	now := h.now()
	tweet := models.Tweet{
		ID:        uuid.NewString(),
		OwnerID:   user.ID,
		Content:   req.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Tweets.Create(ctx, tweet); err != nil {
		logger.Error("tweet insert failed", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create tweet")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, "tweet created", tweet)
}

// ListByUser handles GET /api/v1/tweets/user/{userId}.
func (h TweetHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := r.PathValue("userId")
	if err := uuid.Validate(userID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid user id")
		return
	}

	tweets, err := h.Tweets.ListByOwner(ctx, userID)
	if err != nil {
		logger.Error("tweet list failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list tweets")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "user tweets", tweets)
}

// Update handles PATCH /api/v1/tweets/{tweetId}.
func (h TweetHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	tweet, ok := h.ownedTweet(w, r)
	if !ok {
		return
	}

	var req tweetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		respondError(ctx, w, http.StatusBadRequest, "content is required")
		return
	}

	tweet.Content = req.Content
	if err := h.Tweets.Update(ctx, tweet); err != nil {
		logger.Error("tweet update failed", "error", err, "tweetId", tweet.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update tweet")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "tweet updated", tweet)
}

// Delete handles DELETE /api/v1/tweets/{tweetId}.
func (h TweetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	tweet, ok := h.ownedTweet(w, r)
	if !ok {
		return
	}

	if err := h.Tweets.Delete(ctx, tweet.ID); err != nil {
		logger.Error("tweet delete failed", "error", err, "tweetId", tweet.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to delete tweet")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "tweet deleted", nil)
}

func (h TweetHandler) ownedTweet(w http.ResponseWriter, r *http.Request) (models.Tweet, bool) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return models.Tweet{}, false
	}

	tweetID := r.PathValue("tweetId")
	if err := uuid.Validate(tweetID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid tweet id")
		return models.Tweet{}, false
	}

	tweet, err := h.Tweets.FindByID(ctx, tweetID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "tweet not found")
			return models.Tweet{}, false
		}
		logger.Error("tweet lookup failed", "error", err, "tweetId", tweetID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load tweet")
		return models.Tweet{}, false
	}

	if tweet.OwnerID != user.ID {
		respondError(ctx, w, http.StatusForbidden, "only the owner may modify this tweet")
		return models.Tweet{}, false
	}

	return tweet, true
}

func (h TweetHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type tweetRequest struct {
	Content string `json:"content"`
}
