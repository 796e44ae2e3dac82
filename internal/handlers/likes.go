package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
)

// LikeHandler implements the like toggle endpoints.
type LikeHandler struct {
	Likes   LikeStore
	NowFunc func() time.Time
}

// ToggleVideo handles POST /api/v1/likes/toggle/video/{videoId}.
func (h LikeHandler) ToggleVideo(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, r.PathValue("videoId"), models.LikeTargetVideo)
}

// ToggleComment handles POST /api/v1/likes/toggle/comment/{commentId}.
func (h LikeHandler) ToggleComment(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, r.PathValue("commentId"), models.LikeTargetComment)
}

// ToggleTweet handles POST /api/v1/likes/toggle/tweet/{tweetId}.
func (h LikeHandler) ToggleTweet(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, r.PathValue("tweetId"), models.LikeTargetTweet)
}

// toggle flips the like for the caller on the given target. Both outcomes
// return 200: the operation is a symmetric toggle, not create-vs-update.
func (h LikeHandler) toggle(w http.ResponseWriter, r *http.Request, targetID string, target models.LikeTarget) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := uuid.Validate(targetID); err != nil {
		logger.Warn("like toggle invalid target id", "targetId", targetID, "targetKind", target)
		respondError(ctx, w, http.StatusBadRequest, fmt.Sprintf("invalid %s id", target))
		return
	}

	like := models.Like{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TargetID:  targetID,
		Target:    target,
		CreatedAt: h.now(),
	}

	added, err := h.Likes.Toggle(ctx, like)
	if err != nil {
		logger.Error("like toggle failed", "error", err, "userId", user.ID, "targetId", targetID, "targetKind", target)
		respondError(ctx, w, http.StatusInternalServerError, "failed to toggle like")
		return
	}

	result := toggleResult{Liked: added}
	message := "removed"
	if added {
		result.Like = &like
		message = "added"
	}

	respondJSON(ctx, w, http.StatusOK, message, result)
}

// LikedVideos handles GET /api/v1/likes/videos.
func (h LikeHandler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	liked, err := h.Likes.ListLikedVideos(ctx, user.ID)
	if err != nil {
		logger.Error("list liked videos failed", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list liked videos")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "liked videos", liked)
}

func (h LikeHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type toggleResult struct {
	Liked bool         `json:"liked"`
	Like  *models.Like `json:"like,omitempty"`
}
