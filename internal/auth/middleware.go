package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"memberauth/internal/models"
	pkghttp "memberauth/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// MemberContextKey is the key for storing the authenticated member in context
	MemberContextKey contextKey = "member"

	// SessionContextKey is the key for storing the validated session in context
	SessionContextKey contextKey = "session"
)

// SessionValidator checks an opaque session token and extends its expiry.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*models.Member, *models.Session, error)
}

// SessionMiddleware validates the Bearer session token on each request. A
// valid token slides the session's expiry; anything else is a plain 401 with
// no detail about why.
func SessionMiddleware(validator SessionValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "missing or malformed authorization header")
				return
			}

			member, session, err := validator.Validate(r.Context(), token)
			if err != nil {
				if errors.Is(err, models.ErrSessionInvalid) || errors.Is(err, models.ErrNotFound) {
					pkghttp.WriteUnauthorized(w, "session is invalid or expired")
					return
				}
				pkghttp.WriteInternalError(w, "unable to validate session")
				return
			}

			ctx := context.WithValue(r.Context(), MemberContextKey, member)
			ctx = context.WithValue(ctx, SessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}

	return parts[1], true
}

// MemberFromContext returns the authenticated member, or nil when the request
// did not pass through SessionMiddleware.
func MemberFromContext(r *http.Request) *models.Member {
	member, _ := r.Context().Value(MemberContextKey).(*models.Member)
	return member
}

// SessionFromContext returns the validated session, or nil.
func SessionFromContext(r *http.Request) *models.Session {
	session, _ := r.Context().Value(SessionContextKey).(*models.Session)
	return session
}
