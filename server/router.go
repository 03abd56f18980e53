package server

import (
	"time"

	httpHandler "autouploader/interfaces/http"
	"autouploader/interfaces/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func InitiateRouter(
	monitorHandler httpHandler.IMonitorHandler,
	taskHandler httpHandler.ITaskHandler,
	credentialHandler httpHandler.ICredentialHandler,
	events gin.HandlerFunc,
	secretKey string,
	allowedOrigins []string,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if len(allowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     allowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", monitorHandler.Healthz)

	api := router.Group("api")
	api.Use(middleware.Auth(secretKey))

	api.GET("/status", monitorHandler.Status)
	if events != nil {
		api.GET("/events", events)
	}
	monitor := api.Group("/monitor")
	{
		monitor.POST("/start", monitorHandler.StartWatching)
		monitor.POST("/stop", monitorHandler.StopWatching)
		monitor.POST("/scan", monitorHandler.ScanOnce)
	}

	tasks := api.Group("/tasks")
	{
		tasks.GET("", taskHandler.ListTasks)
		tasks.POST("/:taskId/cancel", taskHandler.CancelTask)
		tasks.POST("/clear", taskHandler.ClearCompleted)
	}
	api.GET("/uploads", taskHandler.RecentUploads)

	credentials := api.Group("/credentials")
	{
		credentials.GET("", credentialHandler.ListProjects)
		credentials.POST("", credentialHandler.AddProject)
		credentials.POST("/select", credentialHandler.SelectProject)
	}
	channels := api.Group("/channels")
	{
		channels.GET("", credentialHandler.ListChannels)
		channels.POST("/select", credentialHandler.SelectChannel)
	}

	return router
}
