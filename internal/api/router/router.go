package router

import (
	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/issue-runner/internal/api/handler"
)

// Options configures the router
type Options struct {
	// WebhookRateLimit is the sustained webhook request rate per second.
	// Zero disables limiting.
	WebhookRateLimit float64
	WebhookRateBurst int
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, opts Options) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	h := handler.NewHandler(deps)

	r.GET("/health", h.Health)

	webhooks := r.Group("/webhooks")
	webhooks.Use(RateLimitMiddleware(opts.WebhookRateLimit, opts.WebhookRateBurst))
	{
		// POST /webhooks/github - GitHub issues events
		webhooks.POST("/github", h.GitHubWebhook)
	}

	v1 := r.Group("/api/v1")
	{
		queue := v1.Group("/queue")
		{
			queue.GET("/stats", h.GetStats)
			queue.GET("/jobs", h.ListQueueJobs)
			queue.POST("/clean", h.CleanQueue)
			queue.POST("/obliterate", h.ObliterateQueue)
		}

		jobs := v1.Group("/jobs")
		{
			jobs.POST("", h.EnqueueJob)
			jobs.GET("/:job_id", h.GetJob)
			jobs.DELETE("/:job_id", h.DeleteJob)
		}

		// GET /api/v1/history - archived jobs
		v1.GET("/history", h.ListHistory)
		v1.GET("/history/:job_id", h.GetHistoryRecord)
	}

	return r
}
