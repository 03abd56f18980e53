package http

import (
	"net/http"

	"autouploader/domain/dto"
	"autouploader/usecase"

	"github.com/gin-gonic/gin"
)

type IMonitorHandler interface {
	StartWatching(ctx *gin.Context)
	StopWatching(ctx *gin.Context)
	ScanOnce(ctx *gin.Context)
	Status(ctx *gin.Context)
	Healthz(ctx *gin.Context)
}

type MonitorHandler struct {
	engine usecase.IEngine
}

func NewMonitorHandler(engine usecase.IEngine) IMonitorHandler {
	return &MonitorHandler{engine: engine}
}

// StartWatching handles POST /api/monitor/start
func (h *MonitorHandler) StartWatching(ctx *gin.Context) {
	var req dto.StartWatchingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "message": err.Error()})
		return
	}
	if err := h.engine.StartWatching(req.Folder); err != nil {
		respondError(ctx, "Failed to start monitoring", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": h.engine.Status()})
}

// StopWatching handles POST /api/monitor/stop
func (h *MonitorHandler) StopWatching(ctx *gin.Context) {
	h.engine.StopWatching()
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": h.engine.Status()})
}

// ScanOnce handles POST /api/monitor/scan
func (h *MonitorHandler) ScanOnce(ctx *gin.Context) {
	queued, err := h.engine.ScanOnce(ctx.Request.Context())
	if err != nil {
		respondError(ctx, "Failed to scan folder", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "queued": queued})
}

// Status handles GET /api/status
func (h *MonitorHandler) Status(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": h.engine.Status()})
}

// Healthz returns OK for health checks
func (h *MonitorHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}
