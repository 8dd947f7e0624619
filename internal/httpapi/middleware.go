package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/fooddash/courierd/internal/session"
)

type contextKey string

const ctxSessionKey contextKey = "session"

// RequireSession authenticates local API requests: the driver UI must forward
// the same bearer credential the backend issued at login. On success the
// session is placed into request context.
func RequireSession(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				http.Error(w, `{"error":"missing or malformed Authorization header"}`, http.StatusUnauthorized)
				return
			}
			sess, err := store.Current()
			if err != nil || raw != sess.Token() {
				http.Error(w, `{"error":"not logged in"}`, http.StatusUnauthorized)
				return
			}
			if sess.Expired() {
				http.Error(w, `{"error":"credential expired"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// SessionFromCtx returns the authenticated session or nil.
func SessionFromCtx(ctx context.Context) *session.Session {
	s, _ := ctx.Value(ctxSessionKey).(*session.Session)
	return s
}

// WithSession returns a context carrying the given session.
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, ctxSessionKey, s)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
