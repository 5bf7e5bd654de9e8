package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCompressionRouter(cm *CompressionMiddleware, body string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(cm.Handler())
	router.GET("/machine-health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"history": body})
	})
	router.GET("/metrics/prometheus", func(c *gin.Context) {
		c.String(http.StatusOK, body)
	})
	router.DELETE("/machine-health", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestCompression_LargeJSON(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	large := strings.Repeat("weldingRobot ", 500)
	router := newCompressionRouter(cm, large)

	req := httptest.NewRequest(http.MethodGet, "/machine-health", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.Contains(t, w.Header().Values("Vary"), "Accept-Encoding")

	reader, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	decoded, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), large)

	stats := cm.GetStats()
	assert.Equal(t, int64(1), stats["compressed_requests"])
	assert.Less(t, stats["compression_ratio"].(float64), 0.5)
}

func TestCompression_Skips(t *testing.T) {
	large := strings.Repeat("x", 4096)

	tests := []struct {
		name           string
		method         string
		path           string
		acceptEncoding string
		body           string
		wantStatus     int
	}{
		{"client without gzip", http.MethodGet, "/machine-health", "", large, http.StatusOK},
		{"small response", http.MethodGet, "/machine-health", "gzip", "tiny", http.StatusOK},
		{"excluded path", http.MethodGet, "/metrics/prometheus", "gzip", large, http.StatusOK},
		{"empty body", http.MethodDelete, "/machine-health", "gzip", large, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm := NewCompressionMiddleware(DefaultCompressionConfig())
			router := newCompressionRouter(cm, tt.body)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Empty(t, w.Header().Get("Content-Encoding"))
			if tt.wantStatus == http.StatusOK {
				assert.Contains(t, w.Body.String(), tt.body)
			}
		})
	}
}

func TestCompression_InvalidLevelFallsBack(t *testing.T) {
	config := DefaultCompressionConfig()
	config.CompressionLevel = 42
	cm := NewCompressionMiddleware(config)

	gz := cm.pool.Get().(*gzip.Writer)
	assert.NotNil(t, gz)
}

func TestCompressionStats(t *testing.T) {
	stats := NewCompressionStats()
	stats.RecordRequest(1000, 250, true)
	stats.RecordRequest(1000, 1000, false)

	got := stats.GetStats()
	assert.Equal(t, int64(2), got["total_requests"])
	assert.Equal(t, int64(1), got["compressed_requests"])
	assert.Equal(t, int64(1250), got["sent_bytes"])
	assert.InDelta(t, 0.625, got["compression_ratio"].(float64), 1e-9)
}
