package security

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/ZanzyTHEbar/machine-health-o-meter/internal/errors"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MaxUserIDLength int           `json:"max_user_id_length" yaml:"max_user_id_length"`
	MaxBodyBytes    int64         `json:"max_body_bytes" yaml:"max_body_bytes"`
	AllowedOrigins  []string      `json:"allowed_origins" yaml:"allowed_origins"`
	RequestTimeout  time.Duration `json:"request_timeout" yaml:"request_timeout"`
	EnableHSTS      bool          `json:"enable_hsts" yaml:"enable_hsts"`
	CSPReportURI    string        `json:"csp_report_uri" yaml:"csp_report_uri"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxUserIDLength: 128,
		MaxBodyBytes:    1 << 20,
		AllowedOrigins:  []string{"http://localhost:3000", "http://localhost:8081", "http://localhost:19006"},
		RequestTimeout:  30 * time.Second,
	}
}

// SecurityMiddleware groups the request guards applied in front of the API
type SecurityMiddleware struct {
	config SecurityConfig
}

// NewSecurityMiddleware creates a new security middleware instance
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	defaults := DefaultSecurityConfig()
	if config.MaxUserIDLength <= 0 {
		config.MaxUserIDLength = defaults.MaxUserIDLength
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}
	return &SecurityMiddleware{config: config}
}

// Config returns the effective configuration
func (sm *SecurityMiddleware) Config() SecurityConfig {
	return sm.config
}

// SanitizeInput trims surrounding whitespace
func (sm *SecurityMiddleware) SanitizeInput(input string) string {
	return strings.TrimSpace(input)
}

// ValidateUserID checks a history owner identifier. It must be valid UTF-8,
// bounded in length and free of control characters and markup.
func (sm *SecurityMiddleware) ValidateUserID(user string) error {
	if user == "" {
		return fmt.Errorf("user is required")
	}

	if len(user) > sm.config.MaxUserIDLength {
		return fmt.Errorf("user exceeds maximum length of %d characters", sm.config.MaxUserIDLength)
	}

	if !utf8.ValidString(user) {
		return fmt.Errorf("user contains invalid UTF-8 encoding")
	}

	for _, r := range user {
		if unicode.IsControl(r) {
			return fmt.Errorf("user contains invalid characters")
		}
		if r == '<' || r == '>' {
			return fmt.Errorf("user contains suspicious patterns")
		}
	}

	return nil
}

// ValidateContentType rejects request bodies that are not JSON
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		c.Next()
		return
	}

	if c.Request.ContentLength == 0 {
		c.Next()
		return
	}

	contentType := strings.ToLower(c.GetHeader("Content-Type"))
	if !strings.HasPrefix(contentType, "application/json") {
		appErr := apperrors.NewAppError(
			errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("Unsupported content type"),
			apperrors.CategoryValidation,
			http.StatusUnsupportedMediaType,
		)
		appErr.RequestID = c.GetString("request_id")
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, appErr.Response())
		return
	}

	c.Next()
}

// LimitBody caps how much of a request body handlers may read
func (sm *SecurityMiddleware) LimitBody(c *gin.Context) {
	if c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, sm.config.MaxBodyBytes)
	}
	c.Next()
}

// RequestTimeout bounds the request context so store calls give up in time
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}

// CORS builds the cross-origin policy for the mobile and web clients.
// An empty list or a "*" entry allows every origin without credentials.
func (sm *SecurityMiddleware) CORS() gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}

	allowAll := len(sm.config.AllowedOrigins) == 0
	for _, origin := range sm.config.AllowedOrigins {
		if origin == "*" {
			allowAll = true
		}
	}

	if allowAll {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = sm.config.AllowedOrigins
		config.AllowCredentials = true
	}

	return cors.New(config)
}
