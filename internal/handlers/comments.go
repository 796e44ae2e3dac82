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

// CommentHandler implements video comment endpoints.
type CommentHandler struct {
	Comments CommentStore
	NowFunc  func() time.Time
}

// Add handles POST /api/v1/comments/video/{videoId}.
func (h CommentHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	videoID := r.PathValue("videoId")
	if err := uuid.Validate(videoID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid video id")
		return
	}

	var req commentRequest
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
	comment := models.Comment{
		ID:        uuid.NewString(),
		VideoID:   videoID,
		OwnerID:   user.ID,
		Content:   req.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Comments.Create(ctx, comment); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "video not found")
			return
		}
		logger.Error("comment insert failed", "error", err, "videoId", videoID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to add comment")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, "comment added", comment)
}

// ListByVideo handles GET /api/v1/comments/video/{videoId}.
func (h CommentHandler) ListByVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	videoID := r.PathValue("videoId")
	if err := uuid.Validate(videoID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid video id")
		return
	}

	comments, err := h.Comments.ListByVideo(ctx, videoID)
	if err != nil {
		logger.Error("comment list failed", "error", err, "videoId", videoID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list comments")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "video comments", comments)
}

// Update handles PATCH /api/v1/comments/{commentId}.
func (h CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	comment, ok := h.ownedComment(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		respondError(ctx, w, http.StatusBadRequest, "content is required")
		return
	}

	comment.Content = req.Content
	if err := h.Comments.Update(ctx, comment); err != nil {
		logger.Error("comment update failed", "error", err, "commentId", comment.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update comment")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "comment updated", comment)
}

// Delete handles DELETE /api/v1/comments/{commentId}.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	comment, ok := h.ownedComment(w, r)
	if !ok {
		return
	}

	if err := h.Comments.Delete(ctx, comment.ID); err != nil {
		logger.Error("comment delete failed", "error", err, "commentId", comment.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to delete comment")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "comment deleted", nil)
}

func (h CommentHandler) ownedComment(w http.ResponseWriter, r *http.Request) (models.Comment, bool) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return models.Comment{}, false
	}

	commentID := r.PathValue("commentId")
	if err := uuid.Validate(commentID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid comment id")
		return models.Comment{}, false
	}

	comment, err := h.Comments.FindByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "comment not found")
			return models.Comment{}, false
		}
		logger.Error("comment lookup failed", "error", err, "commentId", commentID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load comment")
		return models.Comment{}, false
	}

	if comment.OwnerID != user.ID {
		respondError(ctx, w, http.StatusForbidden, "only the owner may modify this comment")
		return models.Comment{}, false
	}

	return comment, true
}

func (h CommentHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type commentRequest struct {
	Content string `json:"content"`
}
