package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
)

type contextKey int

const userIDKey contextKey = iota

// UserLookup resolves the token subject to a stored identity, so tokens for
// deleted accounts are rejected even while cryptographically valid.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (User, error)
}

// Middleware authenticates requests via the session cookie and puts the
// user id on the request context. A missing cookie is distinguished from a
// present-but-invalid token; both deny access.
func Middleware(tokens *TokenService, users UserLookup, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		claims, err := tokens.Validate(cookie.Value)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Could not validate token")
			return
		}

		user, err := users.GetByUsername(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				writeError(w, http.StatusUnauthorized, "User not found")
				return
			}
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the authenticated user id placed by Middleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}
