package http

import (
	"net/http"

	"autouploader/domain/dto"
	"autouploader/domain/model"
	"autouploader/usecase"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

type ICredentialHandler interface {
	ListProjects(ctx *gin.Context)
	AddProject(ctx *gin.Context)
	SelectProject(ctx *gin.Context)
	ListChannels(ctx *gin.Context)
	SelectChannel(ctx *gin.Context)
}

type CredentialHandler struct {
	engine usecase.IEngine
}

func NewCredentialHandler(engine usecase.IEngine) ICredentialHandler {
	return &CredentialHandler{engine: engine}
}

// ListProjects handles GET /api/credentials
func (h *CredentialHandler) ListProjects(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": h.engine.ListCredentialProjects()})
}

// AddProject handles POST /api/credentials
func (h *CredentialHandler) AddProject(ctx *gin.Context) {
	var req dto.AddCredentialProjectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "message": err.Error()})
		return
	}

	material := model.CredentialMaterial{Name: req.Name, ClientSecret: []byte(req.ClientSecret)}
	if req.AccessToken != "" || req.RefreshToken != "" {
		material.Token = &oauth2.Token{AccessToken: req.AccessToken, RefreshToken: req.RefreshToken, TokenType: "Bearer"}
	}

	id, err := h.engine.AddCredentialProject(ctx.Request.Context(), material)
	if err != nil {
		respondError(ctx, "Failed to add credential project", err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"success": true, "id": id})
}

// SelectProject handles POST /api/credentials/select
func (h *CredentialHandler) SelectProject(ctx *gin.Context) {
	var req dto.SelectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "message": err.Error()})
		return
	}

	switch result := h.engine.SelectCredentialProject(ctx.Request.Context(), req.ID); result {
	case dto.SelectProjectSucceeded:
		ctx.JSON(http.StatusOK, gin.H{"success": true, "result": result})
	case dto.SelectProjectNeedsAuth:
		ctx.JSON(http.StatusConflict, gin.H{"success": false, "result": result, "error": "Project needs authentication"})
	default:
		ctx.JSON(http.StatusNotFound, gin.H{"success": false, "result": result, "error": "Unknown project"})
	}
}

// ListChannels handles GET /api/channels
func (h *CredentialHandler) ListChannels(ctx *gin.Context) {
	channels, err := h.engine.ListChannels(ctx.Request.Context())
	if err != nil {
		respondError(ctx, "Failed to list channels", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": channels})
}

// SelectChannel handles POST /api/channels/select
func (h *CredentialHandler) SelectChannel(ctx *gin.Context) {
	var req dto.SelectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "message": err.Error()})
		return
	}
	if err := h.engine.SelectChannel(req.ID); err != nil {
		respondError(ctx, "Failed to select channel", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
