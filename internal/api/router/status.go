package router

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/issue-runner/internal/domain"
)

// PoolStatus is what the worker status server reports on
type PoolStatus interface {
	GetStats() domain.PoolStats
	IsHealthy() bool
}

// SetupStatusRouter returns the worker-service status router: /health
// answers 503 while the pool is unhealthy, /stats returns pool stats.
func SetupStatusRouter(pool PoolStatus, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		stats := pool.GetStats()
		body := gin.H{
			"status":         "healthy",
			"running":        stats.Running,
			"pool_size":      stats.PoolSize,
			"active_workers": stats.ActiveWorkers,
		}
		if !pool.IsHealthy() {
			body["status"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		c.JSON(http.StatusOK, body)
	})

	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, pool.GetStats())
	})

	return r
}
