package routes

import (
	"net/http"

	"cart-recovery-service/controllers"
	"cart-recovery-service/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const ServiceName = "cart-recovery-service"

type Controllers struct {
	Monitor       *controllers.MonitorController
	Dashboard     *controllers.DashboardController
	Notifications *controllers.NotificationController
}

func RegisterRoutes(router *gin.Engine, c Controllers) {
	// Public
	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "OK", "service": ServiceName})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/monitor/stats", c.Monitor.GetStats)

	dashboard := router.Group("/dashboard")
	{
		dashboard.GET("/overview", c.Dashboard.GetOverview)
		dashboard.GET("/abandoned", c.Dashboard.GetAbandonedCarts)
		dashboard.GET("/products", c.Dashboard.GetTopProducts)
		dashboard.GET("/regions", c.Dashboard.GetRegions)
		dashboard.GET("/orders", c.Dashboard.GetOrders)
		dashboard.GET("/live", c.Dashboard.GetLiveMetrics)
		dashboard.GET("/chart", c.Dashboard.GetTimeSeries)
		dashboard.GET("/browsers", c.Dashboard.GetBrowsers)
		dashboard.GET("/devices", c.Dashboard.GetDevices)
	}

	// Admin only
	admin := router.Group("/notifications", middleware.AuthMiddleware(), middleware.AdminOnly())
	{
		admin.GET("/log", c.Notifications.GetNotificationLogs)
		admin.GET("/log/:id", c.Notifications.GetNotificationLog)
		admin.GET("/sessions/:session_id/latest", c.Notifications.GetSessionLatest)
		admin.GET("/summary", c.Notifications.GetSummary)
	}
}
