package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"

	maxRegisterFormMemory = 32 << 20
)

// errTokenIssuance hides the underlying cause of a failed token pair
// issuance; callers only learn that the session could not be created.
var errTokenIssuance = errors.New("token issuance failed")

// AuthHandler implements registration, login, and the token lifecycle.
type AuthHandler struct {
	Users   UserStore
	Tokens  TokenIssuer
	Media   MediaStore
	Limiter RateLimiter
	NowFunc func() time.Time
}

// Register handles POST /api/v1/users/register multipart requests.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "register") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many registration attempts")
		return
	}

	if h.Users == nil || h.Media == nil {
		logger.Error("registration dependencies unavailable", "hasUsers", h.Users != nil, "hasMedia", h.Media != nil)
		respondError(ctx, w, http.StatusInternalServerError, "registration services unavailable")
		return
	}

	if err := r.ParseMultipartForm(maxRegisterFormMemory); err != nil {
		logger.Warn("invalid registration form", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	username := strings.ToLower(strings.TrimSpace(r.FormValue("username")))
	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	password := r.FormValue("password")
	fullName := strings.TrimSpace(r.FormValue("fullName"))

	if username == "" || email == "" || strings.TrimSpace(password) == "" || fullName == "" {
		logger.Warn("registration missing fields", "username", username, "email", email)
		respondError(ctx, w, http.StatusBadRequest, "username, email, password, and fullName are required")
		return
	}

	if _, err := mail.ParseAddress(email); err != nil {
		logger.Warn("registration invalid email", "email", email, "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid email address")
		return
	}

	avatar, avatarHeader, err := r.FormFile("avatar")
	if err != nil {
		logger.Warn("registration missing avatar", "username", username, "error", err)
		respondError(ctx, w, http.StatusBadRequest, "avatar image is required")
		return
	}
	defer avatar.Close()

	if taken, err := h.identityTaken(ctx, username, email); err != nil {
		logger.Error("registration lookup failed", "error", err, "username", username)
		respondError(ctx, w, http.StatusInternalServerError, "unable to verify existing accounts")
		return
	} else if taken {
		logger.Warn("registration conflict", "username", username, "email", email)
		respondError(ctx, w, http.StatusConflict, "username or email already in use")
		return
	}

	userID := uuid.NewString()

	uploadCtx, span := logging.StartSpan(ctx, "register.upload_media")
	avatarURL, err := h.saveMedia(uploadCtx, userID, "avatar", avatar, avatarHeader)
	if err != nil {
		span.End()
		logger.Error("registration avatar upload failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store avatar image")
		return
	}

	var coverURL string
	if cover, coverHeader, err := r.FormFile("coverImage"); err == nil {
		defer cover.Close()
		coverURL, err = h.saveMedia(uploadCtx, userID, "cover", cover, coverHeader)
		if err != nil {
			span.End()
			logger.Error("registration cover upload failed", "error", err, "userId", userID)
			respondError(ctx, w, http.StatusInternalServerError, "failed to store cover image")
			return
		}
	}
	span.End()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("registration failed to hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	now := h.now()
	user := models.User{
		ID:            userID,
		Username:      username,
		Email:         email,
		FullName:      fullName,
		Password:      string(hashed),
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("registration conflict on insert", "username", username)
			respondError(ctx, w, http.StatusConflict, "username or email already in use")
			return
		}
		logger.Error("registration failed to create user", "error", err, "username", username)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create account")
		return
	}

	created, err := h.Users.FindByID(ctx, userID)
	if err != nil {
		logger.Error("registered user missing after create", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "account creation could not be confirmed")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, "user registered", created.Public())
}

// Login handles POST /api/v1/users/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	if h.Users == nil || h.Tokens == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasTokens", h.Tokens != nil)
		respondError(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if req.Email == "" && req.Username == "" {
		logger.Warn("login missing identifier")
		respondError(ctx, w, http.StatusBadRequest, "username or email is required")
		return
	}
	if req.Password == "" {
		respondError(ctx, w, http.StatusBadRequest, "password is required")
		return
	}

	user, err := h.findByIdentifier(ctx, req.Email, req.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("login unknown user", "email", req.Email, "username", req.Username)
			respondError(ctx, w, http.StatusNotFound, "user does not exist")
			return
		}
		logger.Error("login user lookup failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to look up account")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	pair, err := h.issueTokenPair(ctx, user.ID)
	if err != nil {
		logger.Error("login failed to issue tokens", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	setAuthCookies(w, pair)
	respondJSON(ctx, w, http.StatusOK, "login successful", loginResponse{
		User:         user.Public(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Refresh handles POST /api/v1/users/refresh-token requests. The incoming
// token is accepted from the refresh cookie or the JSON body.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "refresh") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many refresh attempts")
		return
	}

	if h.Users == nil || h.Tokens == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasTokens", h.Tokens != nil)
		respondError(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	incoming := refreshTokenFromRequest(r)
	if incoming == "" {
		logger.Warn("refresh missing token")
		respondError(ctx, w, http.StatusUnauthorized, "refresh token is required")
		return
	}

	userID, err := h.Tokens.VerifyRefresh(incoming)
	if err != nil {
		logger.Warn("refresh token rejected", "error", err)
		respondError(ctx, w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	user, err := h.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("refresh subject not found", "userId", userID)
			respondError(ctx, w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		logger.Error("refresh user lookup failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "unable to look up account")
		return
	}

	// Only the most recently issued refresh token is honoured. A rotated-out
	// token failing here is how theft of an old token becomes visible.
	if user.RefreshToken == "" || user.RefreshToken != incoming {
		logger.Warn("refresh token superseded", "userId", userID)
		respondError(ctx, w, http.StatusUnauthorized, "refresh token is no longer valid")
		return
	}

	pair, err := h.issueTokenPair(ctx, user.ID)
	if err != nil {
		logger.Error("refresh failed to issue tokens", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to refresh session")
		return
	}

	setAuthCookies(w, pair)
	respondJSON(ctx, w, http.StatusOK, "session refreshed", pair)
}

// Logout handles POST /api/v1/users/logout requests. Calling it twice is
// harmless.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.Users.UpdateRefreshToken(ctx, user.ID, ""); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("logout failed to clear refresh token", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to log out")
		return
	}

	clearAuthCookies(w)
	respondJSON(ctx, w, http.StatusOK, "logged out", nil)
}

// ChangePassword handles POST /api/v1/users/change-password requests.
func (h AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid change password payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.OldPassword == "" || req.NewPassword == "" {
		respondError(ctx, w, http.StatusBadRequest, "oldPassword and newPassword are required")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		logger.Warn("change password mismatch", "userId", user.ID)
		respondError(ctx, w, http.StatusUnauthorized, "old password is incorrect")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("change password failed to hash", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	if err := h.Users.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
		logger.Error("change password failed to persist", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update password")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "password updated", nil)
}

// CurrentUser handles GET /api/v1/users/current-user requests.
func (h AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "current user", user.Public())
}

// issueTokenPair loads the user, mints a pair, and persists the refresh
// token. Every underlying failure is normalized to errTokenIssuance so the
// cause never leaks to callers.
func (h AuthHandler) issueTokenPair(ctx context.Context, userID string) (models.TokenPair, error) {
	user, err := h.Users.FindByID(ctx, userID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%w: load user: %v", errTokenIssuance, err)
	}

	pair, err := h.Tokens.Issue(user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%w: sign tokens: %v", errTokenIssuance, err)
	}

	if err := h.Users.UpdateRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return models.TokenPair{}, fmt.Errorf("%w: persist refresh token: %v", errTokenIssuance, err)
	}

	return pair, nil
}

func (h AuthHandler) identityTaken(ctx context.Context, username, email string) (bool, error) {
	if _, err := h.Users.FindByUsername(ctx, username); err == nil {
		return true, nil
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return false, err
	}

	if _, err := h.Users.FindByEmail(ctx, email); err == nil {
		return true, nil
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return false, err
	}

	return false, nil
}

func (h AuthHandler) findByIdentifier(ctx context.Context, email, username string) (models.User, error) {
	if email != "" {
		return h.Users.FindByEmail(ctx, email)
	}
	return h.Users.FindByUsername(ctx, username)
}

func (h AuthHandler) saveMedia(ctx context.Context, userID, kind string, file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := path.Ext(header.Filename)
	key := fmt.Sprintf("users/%s/%s%s", userID, kind, ext)
	return h.Media.Save(ctx, key, header.Header.Get("Content-Type"), file)
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func refreshTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		return strings.TrimSpace(req.RefreshToken)
	}
	return ""
}

func setAuthCookies(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
	})
}

func clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   true,
			MaxAge:   -1,
		})
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}
