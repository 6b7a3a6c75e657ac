package middleware

import (
	"context"
	"net/http"
	"strings"
)

// UserIDHeader names the acting user. An authenticating proxy in front
// of the server is expected to set it.
const UserIDHeader = "X-User-ID"

type contextKey int

const userIDKey contextKey = iota

// Identity copies the acting user from the request header into the
// context. Requests without the header proceed anonymously.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(UserIDHeader)); id != "" {
			r = r.WithContext(WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// WithUserID returns ctx carrying the acting user's ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the acting user's ID, or "".
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if UserID(r.Context()) == "" {
			WriteError(w, http.StatusUnauthorized, ErrUnauthorized, "The "+UserIDHeader+" header is required")
			return
		}
		next(w, r)
	}
}
