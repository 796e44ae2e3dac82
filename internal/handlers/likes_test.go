package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/models"
)

type inMemoryLikeStore struct {
	likes map[string]models.Like
}

func newInMemoryLikeStore() *inMemoryLikeStore {
	return &inMemoryLikeStore{likes: make(map[string]models.Like)}
}

func likeKey(like models.Like) string {
	return fmt.Sprintf("%s|%s|%s", like.UserID, like.TargetID, like.Target)
}

func (s *inMemoryLikeStore) Toggle(_ context.Context, like models.Like) (bool, error) {
	key := likeKey(like)
	if _, ok := s.likes[key]; ok {
		delete(s.likes, key)
		return false, nil
	}
	s.likes[key] = like
	return true, nil
}

func (s *inMemoryLikeStore) ListLikedVideos(_ context.Context, userID string) ([]models.LikedVideo, error) {
	var out []models.LikedVideo
	for _, like := range s.likes {
		if like.UserID == userID && like.Target == models.LikeTargetVideo {
			out = append(out, models.LikedVideo{Like: like})
		}
	}
	return out, nil
}

type stubLikeStore struct {
	toggleErr error
	listErr   error
}

func (s *stubLikeStore) Toggle(context.Context, models.Like) (bool, error) {
	return false, s.toggleErr
}

func (s *stubLikeStore) ListLikedVideos(context.Context, string) ([]models.LikedVideo, error) {
	return nil, s.listErr
}

func authedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	user := models.User{ID: "user-1", Username: "alice"}
	return req.WithContext(auth.WithUser(req.Context(), user))
}

func toggleVideoRequest(t *testing.T, handler LikeHandler, videoID string) *httptest.ResponseRecorder {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/likes/toggle/video/{videoId}", handler.ToggleVideo)

	req := authedRequest(http.MethodPost, "/api/v1/likes/toggle/video/"+videoID)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestLikeHandlerToggleIsSymmetric(t *testing.T) {
	store := newInMemoryLikeStore()
	handler := LikeHandler{Likes: store}
	videoID := uuid.NewString()

	rec := toggleVideoRequest(t, handler, videoID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var result toggleResult
	envelope := decodeEnvelope(t, rec.Body, &result)
	if !result.Liked || result.Like == nil {
		t.Fatalf("expected first toggle to add a like, got %+v", result)
	}
	if envelope.Message != "added" {
		t.Fatalf("expected message %q got %q", "added", envelope.Message)
	}
	if result.Like.TargetID != videoID || result.Like.Target != models.LikeTargetVideo {
		t.Fatalf("unexpected like payload: %+v", result.Like)
	}
	if len(store.likes) != 1 {
		t.Fatalf("expected one stored like, got %d", len(store.likes))
	}

	rec = toggleVideoRequest(t, handler, videoID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	result = toggleResult{}
	envelope = decodeEnvelope(t, rec.Body, &result)
	if result.Liked || result.Like != nil {
		t.Fatalf("expected second toggle to remove the like, got %+v", result)
	}
	if envelope.Message != "removed" {
		t.Fatalf("expected message %q got %q", "removed", envelope.Message)
	}
	if len(store.likes) != 0 {
		t.Fatalf("expected like to be removed, got %d", len(store.likes))
	}

	rec = toggleVideoRequest(t, handler, videoID)
	result = toggleResult{}
	decodeEnvelope(t, rec.Body, &result)
	if !result.Liked {
		t.Fatalf("expected third toggle to add the like again")
	}
}

func TestLikeHandlerToggleInvalidID(t *testing.T) {
	handler := LikeHandler{Likes: newInMemoryLikeStore()}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/likes/toggle/video/{videoId}", handler.ToggleVideo)
	mux.HandleFunc("POST /api/v1/likes/toggle/comment/{commentId}", handler.ToggleComment)
	mux.HandleFunc("POST /api/v1/likes/toggle/tweet/{tweetId}", handler.ToggleTweet)

	cases := []struct {
		name        string
		path        string
		wantMessage string
	}{
		{"video", "/api/v1/likes/toggle/video/not-a-uuid", "invalid video id"},
		{"comment", "/api/v1/likes/toggle/comment/not-a-uuid", "invalid comment id"},
		{"tweet", "/api/v1/likes/toggle/tweet/not-a-uuid", "invalid tweet id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := authedRequest(http.MethodPost, tc.path)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
			}

			envelope := decodeEnvelope(t, rec.Body, nil)
			if envelope.Message != tc.wantMessage {
				t.Fatalf("expected message %q got %q", tc.wantMessage, envelope.Message)
			}
		})
	}
}

func TestLikeHandlerToggleFailures(t *testing.T) {
	videoID := uuid.NewString()

	t.Run("unauthenticated", func(t *testing.T) {
		handler := LikeHandler{Likes: newInMemoryLikeStore()}
		mux := http.NewServeMux()
		mux.HandleFunc("POST /api/v1/likes/toggle/video/{videoId}", handler.ToggleVideo)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/likes/toggle/video/"+videoID, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
		}
	})

	t.Run("storeError", func(t *testing.T) {
		handler := LikeHandler{Likes: &stubLikeStore{toggleErr: errors.New("db down")}}
		rec := toggleVideoRequest(t, handler, videoID)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d got %d", http.StatusInternalServerError, rec.Code)
		}
	})
}

func TestLikeHandlerLikedVideos(t *testing.T) {
	store := newInMemoryLikeStore()
	videoID := uuid.NewString()
	store.likes["user-1|"+videoID+"|video"] = models.Like{ID: uuid.NewString(), UserID: "user-1", TargetID: videoID, Target: models.LikeTargetVideo}
	handler := LikeHandler{Likes: store}

	req := authedRequest(http.MethodGet, "/api/v1/likes/videos")
	rec := httptest.NewRecorder()
	handler.LikedVideos(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var liked []models.LikedVideo
	decodeEnvelope(t, rec.Body, &liked)
	if len(liked) != 1 || liked[0].Like.TargetID != videoID {
		t.Fatalf("unexpected liked videos payload: %+v", liked)
	}
}

func TestLikeHandlerLikedVideosFailures(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/likes/videos", nil)
	rec := httptest.NewRecorder()
	LikeHandler{Likes: newInMemoryLikeStore()}.LikedVideos(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}

	rec = httptest.NewRecorder()
	LikeHandler{Likes: &stubLikeStore{listErr: errors.New("db down")}}.LikedVideos(rec, authedRequest(http.MethodGet, "/api/v1/likes/videos"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d got %d", http.StatusInternalServerError, rec.Code)
	}
}
