package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name         string
		err          *AppError
		wantCategory ErrorCategory
		wantStatus   int
		wantMessage  string
	}{
		{
			name:         "invalid input",
			err:          NewInvalidInputError("machines is required"),
			wantCategory: CategoryValidation,
			wantStatus:   http.StatusBadRequest,
			wantMessage:  "[VALIDATION_ERROR] Invalid input format",
		},
		{
			name:         "not found",
			err:          NewNotFoundError("machine type", "forklift"),
			wantCategory: CategoryNotFound,
			wantStatus:   http.StatusNotFound,
			wantMessage:  "[NOT_FOUND] machine type not found",
		},
		{
			name:         "storage",
			err:          NewStorageError("append", fmt.Errorf("disk full")),
			wantCategory: CategoryStorage,
			wantStatus:   http.StatusServiceUnavailable,
			wantMessage:  "[STORAGE_ERROR] History storage unavailable",
		},
		{
			name:         "rate limit",
			err:          NewRateLimitError("60s"),
			wantCategory: CategoryRateLimit,
			wantStatus:   http.StatusTooManyRequests,
			wantMessage:  "[RATE_LIMIT_EXCEEDED] Rate limit exceeded",
		},
		{
			name:         "timeout",
			err:          NewTimeoutError("Request timeout", nil),
			wantCategory: CategoryTimeout,
			wantStatus:   http.StatusGatewayTimeout,
			wantMessage:  "[TIMEOUT_ERROR] Request timeout",
		},
		{
			name:         "internal",
			err:          NewInternalError("boom", nil),
			wantCategory: CategoryInternal,
			wantStatus:   http.StatusInternalServerError,
			wantMessage:  "[INTERNAL_ERROR] Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCategory, tt.err.Category)
			assert.Equal(t, tt.wantStatus, tt.err.HTTPStatus)
			assert.Equal(t, tt.wantMessage, tt.err.Error())
		})
	}
}

func TestAppError_Response(t *testing.T) {
	validation := NewInvalidInputError("machines is required")
	resp := validation.Response()
	assert.Equal(t, InvalidInputMessage, resp.Error)
	assert.Equal(t, "machines is required", resp.Details["validation_details"])

	internal := NewInternalError("sqlite exploded", fmt.Errorf("secret"))
	resp = internal.Response()
	assert.Equal(t, "Internal server error", resp.Error)
	assert.Empty(t, resp.Details)
	assert.Equal(t, "sqlite exploded", internal.Detail("internal_details"))
}

func TestToAppError(t *testing.T) {
	assert.Nil(t, ToAppError(nil))

	original := NewInvalidInputError("x")
	assert.Same(t, original, ToAppError(original))
	assert.Same(t, original, ToAppError(fmt.Errorf("wrapped: %w", original)))

	assert.Equal(t, CategoryTimeout, ToAppError(context.DeadlineExceeded).Category)
	assert.Equal(t, CategoryTimeout, ToAppError(context.Canceled).Category)
	assert.Equal(t, CategoryNetwork, ToAppError(fmt.Errorf("dial tcp: connection refused")).Category)
	assert.Equal(t, CategoryInternal, ToAppError(fmt.Errorf("something odd")).Category)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.True(t, IsRetryableError(NewStorageError("list", nil)))
	assert.True(t, IsRetryableError(fmt.Errorf("dial tcp: connection refused")))
	assert.False(t, IsRetryableError(NewInvalidInputError("bad")))
	assert.False(t, IsRetryableError(NewNotFoundError("machine type", "x")))
}

func TestGetRetryDelay(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, GetRetryDelay(NewNetworkError("down", nil), 1))
	assert.Greater(t, GetRetryDelay(NewRateLimitError("1s"), 2), GetRetryDelay(NewStorageError("x", nil), 2))
}

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/fail", func(c *gin.Context) {
		_ = c.Error(NewInvalidInputError("user is required"))
	})
	router.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, InvalidInputMessage, body.Error)
	assert.Equal(t, CategoryValidation, body.Category)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecoveryHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RecoveryHandler())
	router.GET("/panic", func(c *gin.Context) {
		panic("unexpected")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
}
