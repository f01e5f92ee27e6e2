package api

import (
	"fftransform/config"
	"fftransform/task"
	"fftransform/transform"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(svc *transform.Service, tm *task.Manager, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), AccessLog(), Recovery())
	h := NewHandler(svc, tm, cfg)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Synchronous upload-transform-download.
	r.POST("/process", AuthMiddleware(cfg), h.handleProcess)

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg))
	{
		v1.POST("/validate", h.handleValidate)

		v1.POST("/tasks", h.handleCreateTask)
		v1.GET("/tasks", h.handleListTasks)
		v1.GET("/tasks/:taskId", h.handleGetTaskStatus)
		v1.PATCH("/tasks/:taskId/cancel", h.handleCancelTask)

		v1.GET("/files/:taskId", h.handleGetFile)
	}
	return r
}
