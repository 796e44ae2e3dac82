package handlers

import (
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
)

// RequireAuth guards endpoints that need an authenticated caller. The access
// token is taken from the accessToken cookie or an Authorization bearer
// header; the resolved user is stored on the request context.
func RequireAuth(tokens TokenIssuer, users UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := logging.FromContext(ctx)

			token := accessTokenFromRequest(r)
			if token == "" {
				respondError(ctx, w, http.StatusUnauthorized, "authentication required")
				return
			}

			claims, err := tokens.VerifyAccess(token)
			if err != nil {
				logger.Warn("access token rejected", "error", err)
				respondError(ctx, w, http.StatusUnauthorized, "invalid access token")
				return
			}

			user, err := users.FindByID(ctx, claims.Subject)
			if err != nil {
				logger.Warn("access token subject not found", "userId", claims.Subject, "error", err)
				respondError(ctx, w, http.StatusUnauthorized, "invalid access token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUser(ctx, user)))
		})
	}
}

func accessTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(accessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
