package http

import (
	"net/http"
	"strconv"

	"autouploader/domain/dto"
	"autouploader/usecase"

	"github.com/gin-gonic/gin"
)

type ITaskHandler interface {
	ListTasks(ctx *gin.Context)
	CancelTask(ctx *gin.Context)
	ClearCompleted(ctx *gin.Context)
	RecentUploads(ctx *gin.Context)
}

type TaskHandler struct {
	engine usecase.IEngine
}

func NewTaskHandler(engine usecase.IEngine) ITaskHandler {
	return &TaskHandler{engine: engine}
}

// ListTasks handles GET /api/tasks
func (h *TaskHandler) ListTasks(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": h.engine.ListTasks()})
}

// CancelTask handles POST /api/tasks/:taskId/cancel
func (h *TaskHandler) CancelTask(ctx *gin.Context) {
	taskID := ctx.Param("taskId")
	if taskID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Task ID is required"})
		return
	}

	switch result := h.engine.CancelTask(ctx.Request.Context(), taskID); result {
	case dto.CancelSucceeded:
		ctx.JSON(http.StatusOK, gin.H{"success": true, "result": result})
	case dto.CancelNotFound:
		ctx.JSON(http.StatusNotFound, gin.H{"success": false, "result": result, "error": "Task not found"})
	default:
		ctx.JSON(http.StatusConflict, gin.H{"success": false, "result": result, "error": "Task can no longer be cancelled"})
	}
}

// ClearCompleted handles POST /api/tasks/clear
func (h *TaskHandler) ClearCompleted(ctx *gin.Context) {
	removed := h.engine.ClearCompleted()
	ctx.JSON(http.StatusOK, gin.H{"success": true, "removed": removed})
}

// RecentUploads handles GET /api/uploads?limit=
func (h *TaskHandler) RecentUploads(ctx *gin.Context) {
	limit := 50
	if raw := ctx.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	uploads, err := h.engine.RecentUploads(ctx.Request.Context(), limit)
	if err != nil {
		respondError(ctx, "Failed to load upload history", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": uploads})
}
