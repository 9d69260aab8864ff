package controllers

import (
	"net/http"

	"cart-recovery-service/services"

	"github.com/gin-gonic/gin"
)

type MonitorController struct {
	monitor services.MonitorService
	store   *services.SnapshotStore
}

func NewMonitorController(monitor services.MonitorService, store *services.SnapshotStore) *MonitorController {
	return &MonitorController{monitor: monitor, store: store}
}

// GetStats handles GET /monitor/stats
func (mc *MonitorController) GetStats(ctx *gin.Context) {
	stats := mc.monitor.Stats()
	snapshot, receivedAt := mc.store.Get()

	resp := gin.H{"stats": stats, "sessions": len(snapshot)}
	if !receivedAt.IsZero() {
		resp["snapshot_received_at"] = receivedAt
	}
	ctx.JSON(http.StatusOK, resp)
}
