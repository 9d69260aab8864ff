package controllers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cart-recovery-service/controllers"
	"cart-recovery-service/models"
	"cart-recovery-service/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockLogService struct {
	logs       []models.NotificationLog
	total      int64
	err        *services.ServiceError
	gotFilter  models.NotificationFilter
	gotSession string
	gotWindow  time.Duration
}

func (m *mockLogService) GetLogs(_ context.Context, f models.NotificationFilter) ([]models.NotificationLog, int64, *services.ServiceError) {
	m.gotFilter = f
	return m.logs, m.total, m.err
}
func (m *mockLogService) GetLog(_ context.Context, id int64) (*models.NotificationLog, *services.ServiceError) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.NotificationLog{ID: id}, nil
}

func (m *mockLogService) LatestForSession(_ context.Context, sessionID string) (*models.NotificationLog, *services.ServiceError) {
	m.gotSession = sessionID
	if m.err != nil {
		return nil, m.err
	}
	return &models.NotificationLog{ID: 5, SessionID: sessionID, Status: models.StatusSent}, nil
}
func (m *mockLogService) Summary(_ context.Context, window time.Duration) (*services.AlertSummary, *services.ServiceError) {
	m.gotWindow = window
	if m.err != nil {
		return nil, m.err
	}
	return &services.AlertSummary{Sent: 3, Failed: 1, Total: 4}, nil
}

func setupNotificationRouter(svc services.NotificationLogService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	c := controllers.NewNotificationController(svc, zap.NewNop())
	r.GET("/notifications/log", c.GetNotificationLogs)
	r.GET("/notifications/log/:id", c.GetNotificationLog)
	r.GET("/notifications/sessions/:session_id/latest", c.GetSessionLatest)
	r.GET("/notifications/summary", c.GetSummary)
	return r
}

func TestGetNotificationLogs_Pagination(t *testing.T) {
	svc := &mockLogService{logs: []models.NotificationLog{{ID: 1}}, total: 45}
	r := setupNotificationRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications/log?page=2&page_size=500&status=sent&session_id=s1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 2, svc.gotFilter.Page)
	assert.Equal(t, 100, svc.gotFilter.PageSize)
	assert.Equal(t, "sent", svc.gotFilter.Status)
	assert.Equal(t, "s1", svc.gotFilter.SessionID)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 45, resp["total"])
	assert.EqualValues(t, 1, resp["total_pages"])
}

func TestGetNotificationLogs_Defaults(t *testing.T) {
	svc := &mockLogService{total: 41}
	w := httptest.NewRecorder()
	setupNotificationRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications/log?page=abc", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1, svc.gotFilter.Page)
	assert.Equal(t, 20, svc.gotFilter.PageSize)
	assert.Contains(t, w.Body.String(), `"total_pages":3`)
}

func TestGetNotificationLogs_ServiceError(t *testing.T) {
	svc := &mockLogService{err: &services.ServiceError{StatusCode: http.StatusInternalServerError, Message: "internal server error"}}
	w := httptest.NewRecorder()
	setupNotificationRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications/log", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetNotificationLog(t *testing.T) {
	r := setupNotificationRouter(&mockLogService{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications/log/12", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":12`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications/log/x", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSessionLatest(t *testing.T) {
	svc := &mockLogService{}
	w := httptest.NewRecorder()
	setupNotificationRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications/sessions/-Nabc/latest", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "-Nabc", svc.gotSession)
	assert.Contains(t, w.Body.String(), `"status":"sent"`)

	svc.err = &services.ServiceError{StatusCode: http.StatusNotFound, Message: "no alert attempts for session"}
	w = httptest.NewRecorder()
	setupNotificationRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications/sessions/s2/latest", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSummary_Window(t *testing.T) {
	cases := []struct {
		query  string
		status int
		window time.Duration
	}{
		{"", http.StatusOK, 24 * time.Hour},
		{"?window=2h", http.StatusOK, 2 * time.Hour},
		{"?window=all", http.StatusOK, 0},
		{"?window=-1h", http.StatusBadRequest, 0},
		{"?window=soon", http.StatusBadRequest, 0},
	}
	for _, tc := range cases {
		svc := &mockLogService{}
		w := httptest.NewRecorder()
		setupNotificationRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications/summary"+tc.query, nil))
		assert.Equal(t, tc.status, w.Code, tc.query)
		assert.Equal(t, tc.window, svc.gotWindow, tc.query)
	}
}
