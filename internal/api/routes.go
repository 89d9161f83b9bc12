package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes builds the gin engine with all analysis endpoints attached.
func SetupRoutes(handler *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", handler.Health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/diagnose", handler.Diagnose)
		v1.POST("/correlate", handler.Correlate)
		v1.GET("/queue/health", handler.QueueHealth)
		v1.POST("/queue/retry-dead-letters", handler.RetryDeadLetters)
		v1.GET("/usage/anomalies", handler.UsageAnomalies)
		v1.POST("/issues/:id/resolve", handler.ResolveIssue)
		v1.GET("/patterns", handler.Patterns)
	}

	return r
}
