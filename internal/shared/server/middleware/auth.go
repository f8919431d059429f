package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"callcenter-backend/internal/shared/server/respond"
)

const sessionKey = "session"

// Session is the server-verified identity attached to a request.
type Session struct {
	AccountID   string
	SessionID   string
	Email       string
	Name        string
	PersonnelID string
	Manager     bool
}

// SessionVerifier resolves a bearer token into a live session. Implementations
// must consult server-side session state, not just the token signature.
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (Session, error)
}

// ErrNoSession is returned by verifiers for revoked, expired or unknown sessions.
var ErrNoSession = errors.New("no active session")

// Auth verifies bearer tokens when present. Requests without a token continue
// anonymously; route groups opt into RequireSession or RequireManager.
func Auth(verifier SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			c.Next()
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if token == "" || verifier == nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		sess, err := verifier.VerifySession(c.Request.Context(), token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "session is not active", nil)
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// RequireSession rejects requests without a verified session.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := SessionFromContext(c); !ok {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "login required", nil)
			return
		}
		c.Next()
	}
}

// RequireManager rejects requests whose session is not a manager's.
func RequireManager() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := SessionFromContext(c)
		if !ok {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "login required", nil)
			return
		}
		if !sess.Manager {
			respond.Error(c, http.StatusForbidden, "forbidden", "manager role required", nil)
			return
		}
		c.Next()
	}
}

// SessionFromContext returns the session stored by Auth.
func SessionFromContext(c *gin.Context) (Session, bool) {
	if c == nil {
		return Session{}, false
	}
	val, ok := c.Get(sessionKey)
	if !ok {
		return Session{}, false
	}
	sess, ok := val.(Session)
	return sess, ok
}

// AccountIDFromContext fetches the account ID of the verified session.
func AccountIDFromContext(c *gin.Context) string {
	sess, _ := SessionFromContext(c)
	return sess.AccountID
}

// WithSession stores sess on the gin context. Used by handlers that mint a
// session mid-request and by tests.
func WithSession(c *gin.Context, sess Session) {
	c.Set(sessionKey, sess)
}
