package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// CookieName carries the session id.
const CookieName = "bl_session"

type userIDKey struct{}

// WithUserID returns ctx carrying an authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// CurrentUserID returns the authenticated user id, if any.
func CurrentUserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// IsAuthenticated reports whether ctx carries a user.
func IsAuthenticated(ctx context.Context) bool {
	_, ok := CurrentUserID(ctx)
	return ok
}

// Gate resolves the session cookie into a user id on the request context.
// It never rejects a request; RequireUser does that.
type Gate struct {
	sessions *SessionStore
	logger   *logging.Logger
}

func NewGate(sessions *SessionStore, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.Default()
	}
	return &Gate{sessions: sessions, logger: logger}
}

// CurrentUserID satisfies callers that take the gate as a dependency.
func (g *Gate) CurrentUserID(ctx context.Context) (string, bool) {
	return CurrentUserID(ctx)
}

// Middleware attaches the session's user to the request context.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(CookieName)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := g.sessions.Lookup(r.Context(), c.Value)
		if err != nil {
			if !errors.Is(err, ErrNoSession) {
				g.logger.Warn("session lookup failed", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// RequireUser rejects requests without an authenticated user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAuthenticated(r.Context()) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
