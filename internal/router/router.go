// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/offer-enricher/internal/metrics"
	"github.com/javajoker/offer-enricher/internal/middleware"
	"github.com/javajoker/offer-enricher/internal/pipeline"
	"github.com/javajoker/offer-enricher/internal/utils"
)

// StatusProvider reports the state of the running pipeline.
type StatusProvider interface {
	Status() pipeline.Status
}

// Initialize builds the ops engine: liveness, run status and Prometheus
// metrics from the pipeline's private registry.
func Initialize(status StatusProvider, reg *metrics.Registry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		st := status.Status()
		health := "healthy"
		if st.LastError != "" {
			health = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  health,
			"running": st.Running,
		})
	})

	r.GET("/status", func(c *gin.Context) {
		utils.SuccessResponse(c, status.Status())
	})

	r.GET("/metrics", gin.WrapH(reg.Handler()))

	r.NoRoute(func(c *gin.Context) {
		utils.NotFoundResponse(c, c.Request.URL.Path)
	})

	return r
}
