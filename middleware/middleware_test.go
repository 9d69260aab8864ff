package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cart-recovery-service/middleware"
	awspkg "cart-recovery-service/pkg/aws"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/fail", func(c *gin.Context) { c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"}) })
	return r
}

func do(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(middleware.AuthMiddleware(), middleware.AdminOnly())

	w := do(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/ping", map[string]string{"X-User-ID": "42", "X-User-Role": "user"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodGet, "/ping", map[string]string{"X-User-ID": "42", "X-User-Role": "admin"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limiter := middleware.NewRateLimiter(ctx, middleware.PerMinute(1), 2, time.Minute)
	r := newRouter(middleware.RateLimitMiddleware(limiter))

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/ping", nil).Code)
}

func TestCORSMiddleware(t *testing.T) {
	r := newRouter(middleware.CORSMiddleware([]string{"https://painel.example/"}))

	w := do(r, http.MethodGet, "/ping", map[string]string{"Origin": "https://painel.example"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://painel.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(r, http.MethodGet, "/ping", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	w := do(newRouter(middleware.SecurityHeaders()), http.MethodGet, "/ping", nil)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestRequestLogger_LevelFollowsStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newRouter(middleware.RequestID(), middleware.RequestLogger(zap.New(core)))

	w := do(r, http.MethodGet, "/ping", map[string]string{middleware.RequestIDHeader: "rid-1"})
	assert.Equal(t, "rid-1", w.Header().Get(middleware.RequestIDHeader))
	do(r, http.MethodGet, "/fail", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, "rid-1", entries[0].ContextMap()["request_id"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.NotEmpty(t, entries[1].ContextMap()["request_id"])
}

type recordingMetrics struct {
	mu     sync.Mutex
	counts []string
}

func (m *recordingMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = append(m.counts, name)
	return nil
}
func (m *recordingMetrics) RecordLatency(_ context.Context, _ string, _ time.Duration, _ map[string]string) error {
	return nil
}
func (m *recordingMetrics) IsEnabled() bool { return true }

func TestMetricsMiddleware_RecordsErrors(t *testing.T) {
	rec := &recordingMetrics{}
	r := newRouter(middleware.MetricsMiddleware(rec, "cart-recovery-service"))

	do(r, http.MethodGet, "/fail", nil)

	assert.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.counts) == 3
	}, time.Second, 10*time.Millisecond)
	rec.mu.Lock()
	assert.ElementsMatch(t, []string{awspkg.MetricHTTPRequests, awspkg.MetricHTTPErrors, awspkg.MetricHTTP5xx}, rec.counts)
	rec.mu.Unlock()
}

func TestRequestTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestTimeout(time.Second))
	var hasDeadline bool
	r.GET("/ping", func(c *gin.Context) {
		_, hasDeadline = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})
	do(r, http.MethodGet, "/ping", nil)
	assert.True(t, hasDeadline)
}
