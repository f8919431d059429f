package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsMaxAge       = "600"
	corsAllowMethods = "GET,POST,PATCH,DELETE,OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization, X-Request-Id, X-Ingest-Token"
	corsExposeHeader = "X-Request-Id, Retry-After"
)

// originMatcher accepts exact origins and "scheme://*.domain" patterns for
// preview deployments of the dashboard.
type originMatcher struct {
	exact    map[string]struct{}
	suffixes []string
}

func newOriginMatcher(allowed []string) originMatcher {
	m := originMatcher{exact: make(map[string]struct{})}
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		if scheme, host, ok := strings.Cut(o, "://*."); ok && host != "" {
			m.suffixes = append(m.suffixes, scheme+"://|."+host)
			continue
		}
		m.exact[o] = struct{}{}
	}
	return m
}

func (m originMatcher) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, s := range m.suffixes {
		prefix, suffix, _ := strings.Cut(s, "|")
		rest, ok := strings.CutPrefix(origin, prefix)
		if ok && strings.HasSuffix(rest, suffix) && len(rest) > len(suffix) && !strings.ContainsAny(rest, "/:") {
			return true
		}
	}
	return false
}

// CORS echoes allowed origins with credentials and answers every preflight
// with 204. Disallowed origins get no CORS headers and the browser blocks
// them.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	m := newOriginMatcher(allowedOrigins)
	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); m.allows(origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Expose-Headers", corsExposeHeader)
			h.Set("Access-Control-Max-Age", corsMaxAge)
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
