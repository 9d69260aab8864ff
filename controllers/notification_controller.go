package controllers

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"cart-recovery-service/middleware"
	"cart-recovery-service/models"
	"cart-recovery-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NotificationController struct {
	notificationService services.NotificationLogService
	logger              *zap.Logger
}

func NewNotificationController(svc services.NotificationLogService, logger *zap.Logger) *NotificationController {
	return &NotificationController{notificationService: svc, logger: logger}
}

const (
	maxPageSize     = 100
	defaultPage     = 1
	defaultPageSize = 20
)

func parsePaginationParams(ctx *gin.Context) (int, int) {
	page := defaultPage
	pageSize := defaultPageSize

	if p, err := strconv.Atoi(ctx.DefaultQuery("page", "1")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(ctx.DefaultQuery("page_size", "20")); err == nil && l > 0 {
		pageSize = l
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}
	}
	return page, pageSize
}

// GetNotificationLogs handles GET /notifications/log
func (nc *NotificationController) GetNotificationLogs(ctx *gin.Context) {
	page, pageSize := parsePaginationParams(ctx)

	filter := models.NotificationFilter{
		SessionID: ctx.Query("session_id"),
		Status:    ctx.Query("status"),
		Channel:   ctx.Query("channel"),
		Page:      page,
		PageSize:  pageSize,
	}

	logs, total, svcErr := nc.notificationService.GetLogs(ctx.Request.Context(), filter)
	if svcErr != nil {
		if svcErr.StatusCode >= http.StatusInternalServerError {
			nc.logger.Error("failed to get notification logs", zap.String("requested_by", middleware.GetUserID(ctx)))
		}
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))

	ctx.JSON(http.StatusOK, gin.H{
		"data":        logs,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": totalPages,
	})
}

// GetNotificationLog handles GET /notifications/log/:id
func (nc *NotificationController) GetNotificationLog(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id < 1 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	log, svcErr := nc.notificationService.GetLog(ctx.Request.Context(), id)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, log)
}

// GetSessionLatest handles GET /notifications/sessions/:session_id/latest
func (nc *NotificationController) GetSessionLatest(ctx *gin.Context) {
	log, svcErr := nc.notificationService.LatestForSession(ctx.Request.Context(), ctx.Param("session_id"))
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, log)
}

// GetSummary handles GET /notifications/summary?window=24h. window=all counts
// the whole log.
func (nc *NotificationController) GetSummary(ctx *gin.Context) {
	var window time.Duration
	switch raw := ctx.DefaultQuery("window", "24h"); raw {
	case "all", "0":
	default:
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid window"})
			return
		}
		window = d
	}

	summary, svcErr := nc.notificationService.Summary(ctx.Request.Context(), window)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, summary)
}
