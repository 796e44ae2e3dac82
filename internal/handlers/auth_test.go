package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

type inMemoryUserStore struct {
	users   map[string]models.User
	findErr error
}

func newInMemoryUserStore() *inMemoryUserStore {
	return &inMemoryUserStore{users: make(map[string]models.User)}
}

func (s *inMemoryUserStore) Create(_ context.Context, user models.User) error {
	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *inMemoryUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	if s.findErr != nil {
		return models.User{}, s.findErr
	}
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *inMemoryUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	for _, user := range s.users {
		if user.Email == strings.ToLower(email) {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *inMemoryUserStore) FindByUsername(_ context.Context, username string) (models.User, error) {
	for _, user := range s.users {
		if user.Username == strings.ToLower(username) {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *inMemoryUserStore) UpdateRefreshToken(_ context.Context, userID, refreshToken string) error {
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.RefreshToken = refreshToken
	s.users[userID] = user
	return nil
}

func (s *inMemoryUserStore) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.Password = passwordHash
	s.users[userID] = user
	return nil
}

// fakeTokenIssuer hands out sequence-numbered opaque tokens so rotation is
// observable without real signing.
type fakeTokenIssuer struct {
	issued     int
	issueErr   error
	verifyErr  error
	lastUserID string
}

func (f *fakeTokenIssuer) Issue(user models.User) (models.TokenPair, error) {
	if f.issueErr != nil {
		return models.TokenPair{}, f.issueErr
	}
	f.issued++
	f.lastUserID = user.ID
	now := time.Now().UTC()
	return models.TokenPair{
		AccessToken:      fmt.Sprintf("access:%s:%d", user.ID, f.issued),
		AccessExpiresAt:  now.Add(15 * time.Minute),
		RefreshToken:     fmt.Sprintf("refresh:%s:%d", user.ID, f.issued),
		RefreshExpiresAt: now.Add(24 * time.Hour),
	}, nil
}

func (f *fakeTokenIssuer) VerifyAccess(token string) (*auth.AccessClaims, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	parts := strings.Split(token, ":")
	if len(parts) != 3 || parts[0] != "access" {
		return nil, auth.ErrInvalidToken
	}
	claims := &auth.AccessClaims{}
	claims.Subject = parts[1]
	return claims, nil
}

func (f *fakeTokenIssuer) VerifyRefresh(token string) (string, error) {
	if f.verifyErr != nil {
		return "", f.verifyErr
	}
	parts := strings.Split(token, ":")
	if len(parts) != 3 || parts[0] != "refresh" {
		return "", auth.ErrInvalidToken
	}
	return parts[1], nil
}

type inMemoryMediaStore struct {
	saved map[string]string
	err   error
}

func newInMemoryMediaStore() *inMemoryMediaStore {
	return &inMemoryMediaStore{saved: make(map[string]string)}
}

func (s *inMemoryMediaStore) Save(_ context.Context, key, contentType string, r io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	s.saved[key] = contentType
	return "https://media.test/" + key, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

func registerForm(t *testing.T, fields map[string]string, withAvatar bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	if withAvatar {
		part, err := mw.CreateFormFile("avatar", "avatar.png")
		if err != nil {
			t.Fatalf("create avatar part: %v", err)
		}
		if _, err := part.Write([]byte("png-bytes")); err != nil {
			t.Fatalf("write avatar part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func decodeEnvelope(t *testing.T, body io.Reader, data any) apiResponse {
	t.Helper()
	var raw struct {
		StatusCode int             `json:"statusCode"`
		Data       json.RawMessage `json:"data"`
		Message    string          `json:"message"`
		Success    bool            `json:"success"`
		Errors     []string        `json:"errors"`
	}
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if data != nil && len(raw.Data) > 0 && string(raw.Data) != "null" {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("decode envelope data: %v", err)
		}
	}
	return apiResponse{StatusCode: raw.StatusCode, Message: raw.Message, Success: raw.Success, Errors: raw.Errors}
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(hashed)
}

func seedUser(t *testing.T, store *inMemoryUserStore, username, email, password string) models.User {
	t.Helper()
	hashed := hashPassword(t, password)
	user := models.User{
		ID:        "user-" + username,
		Username:  username,
		Email:     email,
		FullName:  "Test User",
		Password:  hashed,
		AvatarURL: "https://media.test/users/" + username + "/avatar.png",
	}
	store.users[user.ID] = user
	return user
}

func TestAuthHandlerRegister(t *testing.T) {
	store := newInMemoryUserStore()
	media := newInMemoryMediaStore()
	handler := AuthHandler{Users: store, Media: media}

	body, contentType := registerForm(t, map[string]string{
		"username": "Alice",
		"email":    "Alice@Example.com",
		"password": "password123",
		"fullName": "Alice Carter",
	}, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var created models.PublicUser
	envelope := decodeEnvelope(t, rec.Body, &created)
	if !envelope.Success {
		t.Fatalf("expected success envelope")
	}
	if created.Username != "alice" || created.Email != "alice@example.com" {
		t.Fatalf("expected normalized identity, got %+v", created)
	}
	if created.AvatarURL == "" {
		t.Fatalf("expected avatar url to be set")
	}

	stored, err := store.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("expected user to be stored: %v", err)
	}
	if stored.Password == "password123" || stored.Password == "" {
		t.Fatalf("expected password to be hashed")
	}
	if len(media.saved) != 1 {
		t.Fatalf("expected one media upload, got %d", len(media.saved))
	}
}

func TestAuthHandlerRegisterResponseOmitsCredentials(t *testing.T) {
	store := newInMemoryUserStore()
	handler := AuthHandler{Users: store, Media: newInMemoryMediaStore()}

	body, contentType := registerForm(t, map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "password123",
		"fullName": "Alice Carter",
	}, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}
	payload := rec.Body.String()
	if strings.Contains(payload, "password") || strings.Contains(payload, "Password") {
		t.Fatalf("response leaks password field: %s", payload)
	}
	if strings.Contains(payload, "refreshToken") {
		t.Fatalf("response leaks refresh token field: %s", payload)
	}
}

func TestAuthHandlerRegisterAcceptsAnyPasswordLength(t *testing.T) {
	store := newInMemoryUserStore()
	handler := AuthHandler{Users: store, Media: newInMemoryMediaStore()}

	body, contentType := registerForm(t, map[string]string{
		"username": "amy",
		"email":    "a@x.com",
		"password": "p1",
		"fullName": "Amy X",
	}, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	stored, err := store.FindByUsername(context.Background(), "amy")
	if err != nil {
		t.Fatalf("expected user to be stored: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("p1")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
}

func TestAuthHandlerRegisterFailures(t *testing.T) {
	valid := map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "password123",
		"fullName": "Alice Carter",
	}

	cases := []struct {
		name       string
		fields     map[string]string
		withAvatar bool
		prepare    func(*inMemoryUserStore)
		limiter    RateLimiter
		wantStatus int
	}{
		{"missingFields", map[string]string{"username": "alice"}, true, nil, nil, http.StatusBadRequest},
		{"invalidEmail", map[string]string{"username": "alice", "email": "not-an-email", "password": "password123", "fullName": "Alice"}, true, nil, nil, http.StatusBadRequest},
		{"missingAvatar", valid, false, nil, nil, http.StatusBadRequest},
		{"duplicateUsername", map[string]string{"username": "ALICE", "email": "other@example.com", "password": "password123", "fullName": "Alice"}, true, func(s *inMemoryUserStore) {
			seedUser(t, s, "alice", "alice@example.com", "password123")
		}, nil, http.StatusConflict},
		{"duplicateEmail", map[string]string{"username": "other", "email": "alice@example.com", "password": "password123", "fullName": "Alice"}, true, func(s *inMemoryUserStore) {
			seedUser(t, s, "alice", "alice@example.com", "password123")
		}, nil, http.StatusConflict},
		{"rateLimited", valid, true, nil, denyLimiter{}, http.StatusTooManyRequests},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newInMemoryUserStore()
			if tc.prepare != nil {
				tc.prepare(store)
			}
			handler := AuthHandler{Users: store, Media: newInMemoryMediaStore(), Limiter: tc.limiter}

			body, contentType := registerForm(t, tc.fields, tc.withAvatar)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			handler.Register(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAuthHandlerLogin(t *testing.T) {
	store := newInMemoryUserStore()
	user := seedUser(t, store, "alice", "alice@example.com", "password123")
	tokens := &fakeTokenIssuer{}
	handler := AuthHandler{Users: store, Tokens: tokens}

	body := []byte(`{"email":"alice@example.com","password":"password123"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp loginResponse
	decodeEnvelope(t, rec.Body, &resp)
	if resp.User.ID != user.ID {
		t.Fatalf("expected user %q got %q", user.ID, resp.User.ID)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatalf("expected tokens in response")
	}

	stored, _ := store.FindByID(context.Background(), user.ID)
	if stored.RefreshToken != resp.RefreshToken {
		t.Fatalf("expected refresh token to be persisted")
	}

	cookies := rec.Result().Cookies()
	var gotAccess, gotRefresh bool
	for _, cookie := range cookies {
		switch cookie.Name {
		case accessTokenCookie:
			gotAccess = cookie.Value == resp.AccessToken && cookie.HttpOnly
		case refreshTokenCookie:
			gotRefresh = cookie.Value == resp.RefreshToken && cookie.HttpOnly
		}
	}
	if !gotAccess || !gotRefresh {
		t.Fatalf("expected auth cookies to be set, got %+v", cookies)
	}
}

func TestAuthHandlerLoginByUsername(t *testing.T) {
	store := newInMemoryUserStore()
	seedUser(t, store, "alice", "alice@example.com", "password123")
	handler := AuthHandler{Users: store, Tokens: &fakeTokenIssuer{}}

	body := []byte(`{"username":"Alice","password":"password123"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestAuthHandlerLoginFailures(t *testing.T) {
	store := newInMemoryUserStore()
	user := seedUser(t, store, "alice", "alice@example.com", "password123")

	cases := []struct {
		name       string
		body       []byte
		limiter    RateLimiter
		wantStatus int
	}{
		{"badJSON", []byte("{"), nil, http.StatusBadRequest},
		{"missingIdentifier", []byte(`{"password":"password123"}`), nil, http.StatusBadRequest},
		{"missingPassword", []byte(`{"email":"alice@example.com"}`), nil, http.StatusBadRequest},
		{"unknownUser", []byte(`{"email":"ghost@example.com","password":"password123"}`), nil, http.StatusNotFound},
		{"wrongPassword", []byte(`{"email":"alice@example.com","password":"wrong-password"}`), nil, http.StatusUnauthorized},
		{"rateLimited", []byte(`{"email":"alice@example.com","password":"password123"}`), denyLimiter{}, http.StatusTooManyRequests},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := AuthHandler{Users: store, Tokens: &fakeTokenIssuer{}, Limiter: tc.limiter}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(tc.body))
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}

	stored, _ := store.FindByID(context.Background(), user.ID)
	if stored.RefreshToken != "" {
		t.Fatalf("expected failed logins to leave no session, got %q", stored.RefreshToken)
	}
}

func TestAuthHandlerRefreshRotatesToken(t *testing.T) {
	store := newInMemoryUserStore()
	user := seedUser(t, store, "alice", "alice@example.com", "password123")
	tokens := &fakeTokenIssuer{}
	handler := AuthHandler{Users: store, Tokens: tokens}

	first, err := tokens.Issue(user)
	if err != nil {
		t.Fatalf("issue initial pair: %v", err)
	}
	if err := store.UpdateRefreshToken(context.Background(), user.ID, first.RefreshToken); err != nil {
		t.Fatalf("persist initial refresh token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: first.RefreshToken})
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var pair models.TokenPair
	decodeEnvelope(t, rec.Body, &pair)
	if pair.RefreshToken == "" || pair.RefreshToken == first.RefreshToken {
		t.Fatalf("expected a rotated refresh token")
	}

	stored, _ := store.FindByID(context.Background(), user.ID)
	if stored.RefreshToken != pair.RefreshToken {
		t.Fatalf("expected rotated token to be persisted")
	}

	// The superseded token must stop working.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: first.RefreshToken})
	rec = httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected superseded token to be rejected, got %d", rec.Code)
	}
}

func TestAuthHandlerRefreshFromBody(t *testing.T) {
	store := newInMemoryUserStore()
	user := seedUser(t, store, "alice", "alice@example.com", "password123")
	tokens := &fakeTokenIssuer{}
	handler := AuthHandler{Users: store, Tokens: tokens}

	pair, _ := tokens.Issue(user)
	store.users[user.ID] = func() models.User { u := store.users[user.ID]; u.RefreshToken = pair.RefreshToken; return u }()

	body := []byte(`{"refreshToken":"` + pair.RefreshToken + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestAuthHandlerRefreshFailures(t *testing.T) {
	store := newInMemoryUserStore()
	user := seedUser(t, store, "alice", "alice@example.com", "password123")
	tokens := &fakeTokenIssuer{}

	valid, _ := tokens.Issue(user)
	rotated, _ := tokens.Issue(user)
	_ = store.UpdateRefreshToken(context.Background(), user.ID, rotated.RefreshToken)

	cases := []struct {
		name    string
		cookie  string
		tokens  TokenIssuer
		limiter RateLimiter
	}{
		{"missingToken", "", tokens, nil},
		{"invalidToken", "garbage", tokens, nil},
		{"verifyError", valid.RefreshToken, &fakeTokenIssuer{verifyErr: errors.New("bad signature")}, nil},
		{"supersededToken", valid.RefreshToken, tokens, nil},
		{"unknownSubject", "refresh:ghost:1", tokens, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := AuthHandler{Users: store, Tokens: tc.tokens, Limiter: tc.limiter}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: tc.cookie})
			}
			rec := httptest.NewRecorder()

			handler.Refresh(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected status %d got %d: %s", http.StatusUnauthorized, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAuthHandlerRefreshStoreFailureIsServerError(t *testing.T) {
	store := newInMemoryUserStore()
	user := seedUser(t, store, "alice", "alice@example.com", "password123")
	tokens := &fakeTokenIssuer{}

	pair, _ := tokens.Issue(user)
	_ = store.UpdateRefreshToken(context.Background(), user.ID, pair.RefreshToken)
	store.findErr = errors.New("connection reset")

	handler := AuthHandler{Users: store, Tokens: tokens}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: pair.RefreshToken})
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d got %d: %s", http.StatusInternalServerError, rec.Code, rec.Body.String())
	}
}

func TestAuthHandlerLogout(t *testing.T) {
	store := newInMemoryUserStore()
	user := seedUser(t, store, "alice", "alice@example.com", "password123")
	_ = store.UpdateRefreshToken(context.Background(), user.ID, "refresh:user-alice:1")
	handler := AuthHandler{Users: store}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req = req.WithContext(auth.WithUser(req.Context(), user))
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	stored, _ := store.FindByID(context.Background(), user.ID)
	if stored.RefreshToken != "" {
		t.Fatalf("expected refresh token to be cleared")
	}

	var cleared bool
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == refreshTokenCookie && cookie.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("expected refresh cookie to be expired")
	}

	// Logging out twice is a no-op, not an error.
	rec = httptest.NewRecorder()
	handler.Logout(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected repeated logout to succeed, got %d", rec.Code)
	}
}

func TestAuthHandlerLogoutRequiresAuth(t *testing.T) {
	handler := AuthHandler{Users: newInMemoryUserStore()}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAuthHandlerChangePassword(t *testing.T) {
	store := newInMemoryUserStore()
	user := seedUser(t, store, "alice", "alice@example.com", "password123")
	handler := AuthHandler{Users: store}

	body := []byte(`{"oldPassword":"password123","newPassword":"brand-new-password"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/change-password", bytes.NewReader(body))
	req = req.WithContext(auth.WithUser(req.Context(), user))
	rec := httptest.NewRecorder()

	handler.ChangePassword(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	stored, _ := store.FindByID(context.Background(), user.ID)
	if stored.Password == user.Password {
		t.Fatalf("expected password hash to change")
	}
}

func TestAuthHandlerChangePasswordFailures(t *testing.T) {
	store := newInMemoryUserStore()
	user := seedUser(t, store, "alice", "alice@example.com", "password123")

	cases := []struct {
		name       string
		body       []byte
		authed     bool
		wantStatus int
	}{
		{"unauthenticated", []byte(`{"oldPassword":"password123","newPassword":"brand-new-password"}`), false, http.StatusUnauthorized},
		{"badJSON", []byte("{"), true, http.StatusBadRequest},
		{"missingFields", []byte(`{"oldPassword":"","newPassword":""}`), true, http.StatusBadRequest},
		{"wrongOldPassword", []byte(`{"oldPassword":"nope","newPassword":"brand-new-password"}`), true, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := AuthHandler{Users: store}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/change-password", bytes.NewReader(tc.body))
			if tc.authed {
				req = req.WithContext(auth.WithUser(req.Context(), user))
			}
			rec := httptest.NewRecorder()

			handler.ChangePassword(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAuthHandlerCurrentUser(t *testing.T) {
	user := models.User{ID: "user-1", Username: "alice", Email: "alice@example.com", Password: "hash", RefreshToken: "secret"}
	handler := AuthHandler{}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)
	req = req.WithContext(auth.WithUser(req.Context(), user))
	rec := httptest.NewRecorder()

	handler.CurrentUser(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	payload := rec.Body.String()

	var got models.PublicUser
	decodeEnvelope(t, strings.NewReader(payload), &got)
	if got.ID != user.ID || got.Username != user.Username {
		t.Fatalf("unexpected user payload: %+v", got)
	}
	if strings.Contains(payload, "secret") {
		t.Fatalf("response leaks refresh token")
	}
}
