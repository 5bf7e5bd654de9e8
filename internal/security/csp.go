package security

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// JSON responses never load anything
	apiPolicy = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"

	// the swagger UI bundle ships inline bootstrap code and styles
	docsPolicy = "default-src 'self'; " +
		"script-src 'self' 'unsafe-inline'; " +
		"style-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data:; " +
		"connect-src 'self'; " +
		"frame-ancestors 'none'; " +
		"base-uri 'self'"

	docsPrefix = "/swagger/"
)

// CSPMiddleware sets the Content-Security-Policy for API and docs routes.
// A non-empty reportURI also emits a report-only copy pointing at it.
func CSPMiddleware(reportURI string) gin.HandlerFunc {
	return func(c *gin.Context) {
		policy := buildCSPPolicy(c.Request.URL.Path)
		c.Header("Content-Security-Policy", policy)

		if reportURI != "" {
			c.Header("Content-Security-Policy-Report-Only", policy+"; report-uri "+reportURI)
		}

		c.Next()
	}
}

func buildCSPPolicy(path string) string {
	if strings.HasPrefix(path, docsPrefix) {
		return docsPolicy
	}
	return apiPolicy
}
