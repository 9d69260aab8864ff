package controllers

import (
	"math"
	"net/http"
	"strconv"

	"cart-recovery-service/services"

	"github.com/gin-gonic/gin"
)

// DashboardController serves the read-only operator dashboard.
type DashboardController struct {
	dashboard services.DashboardService
}

func NewDashboardController(svc services.DashboardService) *DashboardController {
	return &DashboardController{dashboard: svc}
}

// GetOverview handles GET /dashboard/overview?period=&tab=
func (dc *DashboardController) GetOverview(ctx *gin.Context) {
	overview, svcErr := dc.dashboard.Overview(ctx.Request.Context(), ctx.DefaultQuery("period", services.PeriodToday), ctx.DefaultQuery("tab", services.TabOrders))
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, overview)
}

// GetAbandonedCarts handles GET /dashboard/abandoned
func (dc *DashboardController) GetAbandonedCarts(ctx *gin.Context) {
	carts, svcErr := dc.dashboard.AbandonedCarts(ctx.Request.Context())
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	abandoned := 0
	for _, c := range carts {
		if c.IsAbandoned {
			abandoned++
		}
	}
	ctx.JSON(http.StatusOK, gin.H{"data": carts, "total": len(carts), "abandoned": abandoned})
}

// GetTopProducts handles GET /dashboard/products?limit=
func (dc *DashboardController) GetTopProducts(ctx *gin.Context) {
	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l < 1 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = l
	}

	products, svcErr := dc.dashboard.TopProducts(ctx.Request.Context(), limit)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": products})
}

// GetRegions handles GET /dashboard/regions
func (dc *DashboardController) GetRegions(ctx *gin.Context) {
	regions, svcErr := dc.dashboard.Regions(ctx.Request.Context())
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": regions})
}

// GetOrders handles GET /dashboard/orders?page=&page_size=
func (dc *DashboardController) GetOrders(ctx *gin.Context) {
	page, pageSize := parsePaginationParams(ctx)

	orders, total, svcErr := dc.dashboard.Orders(ctx.Request.Context(), page, pageSize)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"data":        orders,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": int(math.Ceil(float64(total) / float64(pageSize))),
	})
}

// GetLiveMetrics handles GET /dashboard/live?period=
func (dc *DashboardController) GetLiveMetrics(ctx *gin.Context) {
	metrics, svcErr := dc.dashboard.LiveMetrics(ctx.Request.Context(), ctx.DefaultQuery("period", services.PeriodToday))
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, metrics)
}

// GetTimeSeries handles GET /dashboard/chart?period=&tab=
func (dc *DashboardController) GetTimeSeries(ctx *gin.Context) {
	series, svcErr := dc.dashboard.TimeSeries(ctx.Request.Context(), ctx.DefaultQuery("period", services.PeriodToday), ctx.DefaultQuery("tab", services.TabOrders))
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, series)
}

// GetBrowsers handles GET /dashboard/browsers
func (dc *DashboardController) GetBrowsers(ctx *gin.Context) {
	browsers, svcErr := dc.dashboard.Browsers(ctx.Request.Context())
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": browsers})
}

// GetDevices handles GET /dashboard/devices
func (dc *DashboardController) GetDevices(ctx *gin.Context) {
	devices, svcErr := dc.dashboard.Devices(ctx.Request.Context())
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, devices)
}
