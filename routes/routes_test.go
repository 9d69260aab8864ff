package routes_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cart-recovery-service/controllers"
	"cart-recovery-service/models"
	"cart-recovery-service/repository"
	"cart-recovery-service/routes"
	"cart-recovery-service/sender"
	"cart-recovery-service/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type noopSender struct{}

func (noopSender) SendAlert(_ context.Context, _ *models.SlackMessage) (sender.SendResult, error) {
	return sender.SendResult{}, nil
}

type noopMarkers struct{}

func (noopMarkers) MarkAbandonedNotified(_ context.Context, _ string, _ time.Time) error { return nil }

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := services.NewSnapshotStore()
	monitor, err := services.NewMonitorService(services.MonitorConfig{}, services.MonitorDeps{
		Sender:  noopSender{},
		Markers: noopMarkers{},
		Store:   store,
	}, zap.NewNop())
	require.NoError(t, err)

	var repo repository.AlertLogRepository = emptyRepo{}
	r := gin.New()
	routes.RegisterRoutes(r, routes.Controllers{
		Monitor:       controllers.NewMonitorController(monitor, store),
		Dashboard:     controllers.NewDashboardController(services.NewDashboardService(store, 0, time.UTC, nil, zap.NewNop())),
		Notifications: controllers.NewNotificationController(services.NewNotificationLogService(repo, zap.NewNop()), zap.NewNop()),
	})
	return r
}

type emptyRepo struct{}

func (emptyRepo) Record(_ context.Context, _ *models.NotificationLog) error { return nil }
func (emptyRepo) List(_ context.Context, _ models.NotificationFilter) ([]models.NotificationLog, int64, error) {
	return nil, 0, nil
}
func (emptyRepo) Get(_ context.Context, _ int64) (*models.NotificationLog, error) {
	return nil, gorm.ErrRecordNotFound
}
func (emptyRepo) LatestForSession(_ context.Context, _ string) (*models.NotificationLog, error) {
	return nil, nil
}
func (emptyRepo) StatusCounts(_ context.Context, _ time.Time) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func TestRoutes(t *testing.T) {
	r := setupRouter(t)

	cases := []struct {
		path   string
		role   string
		status int
	}{
		{"/health", "", http.StatusOK},
		{"/metrics", "", http.StatusOK},
		{"/monitor/stats", "", http.StatusOK},
		{"/dashboard/overview", "", http.StatusOK},
		{"/dashboard/abandoned", "", http.StatusOK},
		{"/dashboard/products", "", http.StatusOK},
		{"/dashboard/regions", "", http.StatusOK},
		{"/dashboard/orders", "", http.StatusOK},
		{"/dashboard/live", "", http.StatusOK},
		{"/dashboard/live?period=nope", "", http.StatusBadRequest},
		{"/dashboard/chart?period=last7days&tab=paid", "", http.StatusOK},
		{"/dashboard/browsers", "", http.StatusOK},
		{"/dashboard/devices", "", http.StatusOK},
		{"/notifications/log", "", http.StatusUnauthorized},
		{"/notifications/log", "user", http.StatusForbidden},
		{"/notifications/log", "admin", http.StatusOK},
		{"/notifications/log/3", "admin", http.StatusNotFound},
		{"/notifications/sessions/s1/latest", "admin", http.StatusNotFound},
		{"/notifications/summary", "admin", http.StatusOK},
		{"/notifications/summary", "user", http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.role != "" {
			req.Header.Set("X-User-ID", "7")
			req.Header.Set("X-User-Role", tc.role)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, "%s as %q", tc.path, tc.role)
	}
}

func TestHealth(t *testing.T) {
	r := setupRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, routes.ServiceName, body["service"])
}
