package security

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSecurityConfig(t *testing.T) {
	config := DefaultSecurityConfig()

	assert.Equal(t, 128, config.MaxUserIDLength)
	assert.Equal(t, int64(1<<20), config.MaxBodyBytes)
	assert.Contains(t, config.AllowedOrigins, "http://localhost:8081")
	assert.Equal(t, 30*time.Second, config.RequestTimeout)

	sm := NewSecurityMiddleware(SecurityConfig{})
	assert.Equal(t, config.MaxUserIDLength, sm.Config().MaxUserIDLength)
	assert.Equal(t, config.RequestTimeout, sm.Config().RequestTimeout)
}

func TestValidateUserID(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	tests := []struct {
		name     string
		input    string
		errorMsg string
	}{
		{name: "plain id", input: "alice"},
		{name: "email", input: "alice@example.com"},
		{name: "unicode name", input: "Zoë Müller"},
		{name: "empty", input: "", errorMsg: "user is required"},
		{name: "too long", input: strings.Repeat("a", 129), errorMsg: "exceeds maximum length"},
		{name: "null byte", input: "ali\x00ce", errorMsg: "invalid characters"},
		{name: "newline", input: "alice\nbob", errorMsg: "invalid characters"},
		{name: "invalid utf8", input: "ali\xff\xfece", errorMsg: "invalid UTF-8"},
		{name: "markup", input: "<script>alert(1)</script>", errorMsg: "suspicious patterns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sm.ValidateUserID(tt.input)
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())
	assert.Equal(t, "alice", sm.SanitizeInput("  alice \t"))
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	tests := []struct {
		name string
		hsts bool
	}{
		{name: "without hsts", hsts: false},
		{name: "with hsts", hsts: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(SecurityHeadersMiddleware(tt.hsts))
			router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
			assert.Equal(t, tt.hsts, w.Header().Get("Strict-Transport-Security") != "")
		})
	}
}

func TestCSPMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(CSPMiddleware("https://csp.example.com/report"))
	router.GET("/machines", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/swagger/*any", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/machines", nil))
	assert.Equal(t, apiPolicy, w.Header().Get("Content-Security-Policy"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy-Report-Only"), "report-uri https://csp.example.com/report")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Equal(t, docsPolicy, w.Header().Get("Content-Security-Policy"))
}

func TestValidateContentType(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	router := gin.New()
	router.Use(sm.ValidateContentType)
	router.POST("/machine-health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.DELETE("/machine-health", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		want        int
	}{
		{"json", http.MethodPost, "application/json", `{}`, http.StatusOK},
		{"json with charset", http.MethodPost, "application/json; charset=utf-8", `{}`, http.StatusOK},
		{"form", http.MethodPost, "application/x-www-form-urlencoded", "a=b", http.StatusUnsupportedMediaType},
		{"xml", http.MethodPost, "text/xml", "<a/>", http.StatusUnsupportedMediaType},
		{"empty body", http.MethodPost, "", "", http.StatusOK},
		{"delete ignored", http.MethodDelete, "text/plain", "x", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/machine-health", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnsupportedMediaType {
				assert.Contains(t, w.Body.String(), "Unsupported content type")
			}
		})
	}
}

func TestLimitBody(t *testing.T) {
	sm := NewSecurityMiddleware(SecurityConfig{MaxBodyBytes: 8})

	router := gin.New()
	router.Use(sm.LimitBody)
	router.POST("/", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("much too large")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRequestTimeout(t *testing.T) {
	sm := NewSecurityMiddleware(SecurityConfig{RequestTimeout: 20 * time.Millisecond})

	router := gin.New()
	router.Use(sm.RequestTimeout)
	router.GET("/", func(c *gin.Context) {
		select {
		case <-c.Request.Context().Done():
			assert.ErrorIs(t, c.Request.Context().Err(), context.DeadlineExceeded)
			c.Status(http.StatusGatewayTimeout)
		case <-time.After(time.Second):
			c.Status(http.StatusOK)
		}
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-Timeout"))
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		origin     string
		wantOrigin string
	}{
		{"listed origin", []string{"http://localhost:8081"}, "http://localhost:8081", "http://localhost:8081"},
		{"unlisted origin", []string{"http://localhost:8081"}, "http://evil.example", ""},
		{"wildcard", []string{"*"}, "http://anything.example", "*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewSecurityMiddleware(SecurityConfig{AllowedOrigins: tt.origins})
			router := gin.New()
			router.Use(sm.CORS())
			router.GET("/machines", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/machines", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	sm := NewSecurityMiddleware(SecurityConfig{AllowedOrigins: []string{"http://localhost:8081"}})
	router := gin.New()
	router.Use(sm.CORS())
	router.POST("/machine-health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/machine-health", nil)
	req.Header.Set("Origin", "http://localhost:8081")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}
