package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowedHeaders  = "Authorization, Content-Type, X-Requested-With, X-Request-ID"
	allowedMethods  = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	preflightMaxAge = "600"
)

// New builds a CORS middleware from the configured origin allowlist. An empty
// list allows every origin; preflight requests are answered with 204 without
// reaching the handlers.
func New(allowedOrigins []string) gin.HandlerFunc {
	allowed := newOriginSet(allowedOrigins)

	return func(c *gin.Context) {
		header := c.Writer.Header()

		if origin := c.GetHeader("Origin"); origin != "" {
			if allowed.contains(origin) {
				header.Set("Access-Control-Allow-Origin", origin)
			}
		} else if allowed.open() {
			header.Set("Access-Control-Allow-Origin", "*")
		}

		header.Set("Vary", "Origin")
		header.Set("Access-Control-Allow-Credentials", "true")
		header.Set("Access-Control-Allow-Headers", allowedHeaders)
		header.Set("Access-Control-Allow-Methods", allowedMethods)
		header.Set("Access-Control-Max-Age", preflightMaxAge)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type originSet map[string]struct{}

func newOriginSet(origins []string) originSet {
	set := make(originSet, len(origins))
	for _, origin := range origins {
		set[normalizeOrigin(origin)] = struct{}{}
	}
	return set
}

// open reports whether every origin is accepted.
func (s originSet) open() bool {
	return len(s) == 0
}

func (s originSet) contains(origin string) bool {
	if s.open() {
		return true
	}
	_, ok := s[normalizeOrigin(origin)]
	return ok
}

func normalizeOrigin(origin string) string {
	return strings.TrimRight(origin, "/")
}
