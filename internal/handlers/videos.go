package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

const maxVideoFormMemory = 64 << 20

// VideoHandler implements video publishing and retrieval endpoints.
type VideoHandler struct {
	Videos  VideoStore
	Media   MediaStore
	NowFunc func() time.Time
}

// Publish handles POST /api/v1/videos multipart requests.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := r.ParseMultipartForm(maxVideoFormMemory); err != nil {
		logger.Warn("invalid video form", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" {
		respondError(ctx, w, http.StatusBadRequest, "title is required")
		return
	}

	var duration int64
	if raw := strings.TrimSpace(r.FormValue("durationSeconds")); raw != "" {
		var err error
		duration, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || duration < 0 {
			respondError(ctx, w, http.StatusBadRequest, "durationSeconds must be a non-negative integer")
			return
		}
	}

	videoFile, videoHeader, err := r.FormFile("video")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "video file is required")
		return
	}
	defer videoFile.Close()

	thumbFile, thumbHeader, err := r.FormFile("thumbnail")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "thumbnail file is required")
		return
	}
	defer thumbFile.Close()

	videoID := uuid.NewString()

	uploadCtx, span := logging.StartSpan(ctx, "videos.upload_media")
	videoURL, err := h.Media.Save(uploadCtx,
		fmt.Sprintf("videos/%s/source%s", videoID, path.Ext(videoHeader.Filename)),
		videoHeader.Header.Get("Content-Type"), videoFile)
	if err != nil {
		span.End()
		logger.Error("video upload failed", "error", err, "videoId", videoID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store video file")
		return
	}

	thumbURL, err := h.Media.Save(uploadCtx,
		fmt.Sprintf("videos/%s/thumbnail%s", videoID, path.Ext(thumbHeader.Filename)),
		thumbHeader.Header.Get("Content-Type"), thumbFile)
	span.End()
	if err != nil {
		logger.Error("thumbnail upload failed", "error", err, "videoId", videoID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store thumbnail")
		return
	}

	video := models.Video{
		ID:           videoID,
		OwnerID:      user.ID,
		Title:        title,
		Description:  description,
		VideoURL:     videoURL,
		ThumbnailURL: thumbURL,
		Duration:     duration,
		Published:    true,
		CreatedAt:    h.now(),
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		logger.Error("video insert failed", "error", err, "videoId", videoID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to publish video")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, "video published", video)
}

// Get handles GET /api/v1/videos/{videoId} and counts the view.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	videoID := r.PathValue("videoId")
	if err := uuid.Validate(videoID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid video id")
		return
	}

	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "video not found")
			return
		}
		logger.Error("video lookup failed", "error", err, "videoId", videoID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load video")
		return
	}

	if err := h.Videos.IncrementViews(ctx, videoID); err != nil {
		logger.Warn("view count update failed", "error", err, "videoId", videoID)
	} else {
		video.Views++
	}

	respondJSON(ctx, w, http.StatusOK, "video", video)
}

// ListByChannel handles GET /api/v1/videos/channel/{userId}.
func (h VideoHandler) ListByChannel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	channelID := r.PathValue("userId")
	if err := uuid.Validate(channelID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid user id")
		return
	}

	videos, err := h.Videos.ListByOwner(ctx, channelID)
	if err != nil {
		logger.Error("channel videos lookup failed", "error", err, "channelId", channelID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list videos")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "channel videos", videos)
}

// Update handles PATCH /api/v1/videos/{videoId}.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	video, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxVideoFormMemory); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	if title := strings.TrimSpace(r.FormValue("title")); title != "" {
		video.Title = title
	}
	if description := strings.TrimSpace(r.FormValue("description")); description != "" {
		video.Description = description
	}

	if thumbFile, thumbHeader, err := r.FormFile("thumbnail"); err == nil {
		defer thumbFile.Close()
		thumbURL, err := h.Media.Save(ctx,
			fmt.Sprintf("videos/%s/thumbnail%s", video.ID, path.Ext(thumbHeader.Filename)),
			thumbHeader.Header.Get("Content-Type"), thumbFile)
		if err != nil {
			logger.Error("thumbnail upload failed", "error", err, "videoId", video.ID)
			respondError(ctx, w, http.StatusInternalServerError, "failed to store thumbnail")
			return
		}
		video.ThumbnailURL = thumbURL
	}

	if err := h.Videos.Update(ctx, video); err != nil {
		logger.Error("video update failed", "error", err, "videoId", video.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update video")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "video updated", video)
}

// Delete handles DELETE /api/v1/videos/{videoId}.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	video, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	if err := h.Videos.Delete(ctx, video.ID); err != nil {
		logger.Error("video delete failed", "error", err, "videoId", video.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to delete video")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "video deleted", nil)
}

// TogglePublish handles POST /api/v1/videos/{videoId}/publish.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	video, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	published, err := h.Videos.TogglePublish(ctx, video.ID)
	if err != nil {
		logger.Error("publish toggle failed", "error", err, "videoId", video.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to toggle publish status")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "publish status updated", map[string]bool{"published": published})
}

// ownedVideo loads the addressed video and verifies the caller owns it.
// It writes the error response itself when the check fails.
func (h VideoHandler) ownedVideo(w http.ResponseWriter, r *http.Request) (models.Video, bool) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return models.Video{}, false
	}

	videoID := r.PathValue("videoId")
	if err := uuid.Validate(videoID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid video id")
		return models.Video{}, false
	}

	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "video not found")
			return models.Video{}, false
		}
		logger.Error("video lookup failed", "error", err, "videoId", videoID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load video")
		return models.Video{}, false
	}

	if video.OwnerID != user.ID {
		respondError(ctx, w, http.StatusForbidden, "only the owner may modify this video")
		return models.Video{}, false
	}

	return video, true
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
