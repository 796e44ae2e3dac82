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

// PlaylistHandler implements playlist curation endpoints.
type PlaylistHandler struct {
	Playlists PlaylistStore
	NowFunc   func() time.Time
}

// Create handles POST /api/v1/playlists.
func (h PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(ctx, w, http.StatusBadRequest, "name is required")
		return
	}

	now := h.now()
	playlist := models.Playlist{
		ID:          uuid.NewString(),
		OwnerID:     user.ID,
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.Playlists.Create(ctx, playlist); err != nil {
		logger.Error("playlist insert failed", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create playlist")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, "playlist created", playlist)
}

// Get handles GET /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	playlistID := r.PathValue("playlistId")
	if err := uuid.Validate(playlistID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid playlist id")
		return
	}

	playlist, err := h.Playlists.FindByID(ctx, playlistID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "playlist not found")
			return
		}
		logger.Error("playlist lookup failed", "error", err, "playlistId", playlistID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load playlist")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "playlist", playlist)
}

// ListByUser handles GET /api/v1/playlists/user/{userId}.
func (h PlaylistHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := r.PathValue("userId")
	if err := uuid.Validate(userID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid user id")
		return
	}

	playlists, err := h.Playlists.ListByOwner(ctx, userID)
	if err != nil {
		logger.Error("playlist list failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list playlists")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "user playlists", playlists)
}

// AddVideo handles POST /api/v1/playlists/{playlistId}/videos/{videoId}.
func (h PlaylistHandler) AddVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	playlist, videoID, ok := h.ownedPlaylistAndVideo(w, r)
	if !ok {
		return
	}

	if err := h.Playlists.AddVideo(ctx, playlist.ID, videoID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrConflict):
			respondError(ctx, w, http.StatusConflict, "video already in playlist")
		case errors.Is(err, repositories.ErrNotFound):
			respondError(ctx, w, http.StatusNotFound, "video not found")
		default:
			logger.Error("playlist add video failed", "error", err, "playlistId", playlist.ID, "videoId", videoID)
			respondError(ctx, w, http.StatusInternalServerError, "failed to add video to playlist")
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, "video added to playlist", nil)
}

// RemoveVideo handles DELETE /api/v1/playlists/{playlistId}/videos/{videoId}.
func (h PlaylistHandler) RemoveVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	playlist, videoID, ok := h.ownedPlaylistAndVideo(w, r)
	if !ok {
		return
	}

	if err := h.Playlists.RemoveVideo(ctx, playlist.ID, videoID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "video not in playlist")
			return
		}
		logger.Error("playlist remove video failed", "error", err, "playlistId", playlist.ID, "videoId", videoID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to remove video from playlist")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "video removed from playlist", nil)
}

// Delete handles DELETE /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	playlist, ok := h.ownedPlaylist(w, r)
	if !ok {
		return
	}

	if err := h.Playlists.Delete(ctx, playlist.ID); err != nil {
		logger.Error("playlist delete failed", "error", err, "playlistId", playlist.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to delete playlist")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "playlist deleted", nil)
}

func (h PlaylistHandler) ownedPlaylist(w http.ResponseWriter, r *http.Request) (models.Playlist, bool) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return models.Playlist{}, false
	}

	playlistID := r.PathValue("playlistId")
	if err := uuid.Validate(playlistID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid playlist id")
		return models.Playlist{}, false
	}

	playlist, err := h.Playlists.FindByID(ctx, playlistID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "playlist not found")
			return models.Playlist{}, false
		}
		logger.Error("playlist lookup failed", "error", err, "playlistId", playlistID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load playlist")
		return models.Playlist{}, false
	}

	if playlist.OwnerID != user.ID {
		respondError(ctx, w, http.StatusForbidden, "only the owner may modify this playlist")
		return models.Playlist{}, false
	}

	return playlist, true
}

func (h PlaylistHandler) ownedPlaylistAndVideo(w http.ResponseWriter, r *http.Request) (models.Playlist, string, bool) {
	playlist, ok := h.ownedPlaylist(w, r)
	if !ok {
		return models.Playlist{}, "", false
	}

	videoID := r.PathValue("videoId")
	if err := uuid.Validate(videoID); err != nil {
		respondError(r.Context(), w, http.StatusBadRequest, "invalid video id")
		return models.Playlist{}, "", false
	}

	return playlist, videoID, true
}

func (h PlaylistHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type playlistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
