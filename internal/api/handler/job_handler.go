package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/issue-runner/internal/api/dto"
	"github.com/cuongbtq/issue-runner/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// EnqueueJob handles POST /api/v1/jobs
// Enqueues a job directly, bypassing the webhook path
func (h *Handler) EnqueueJob(c *gin.Context) {
	var req dto.EnqueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		badRequest(c, "Invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		badRequest(c, "Job name must not be blank")
		return
	}

	delay, err := parseDuration(req.Delay)
	if err != nil {
		badRequest(c, "Invalid delay: "+err.Error())
		return
	}
	timeout, err := parseDuration(req.Timeout)
	if err != nil {
		badRequest(c, "Invalid timeout: "+err.Error())
		return
	}
	retryBase, err := parseDuration(req.RetryBaseDelay)
	if err != nil {
		badRequest(c, "Invalid retry_base_delay: "+err.Error())
		return
	}

	var payload any
	if len(req.Payload) > 0 {
		payload = req.Payload
	}

	job, err := h.queue.Enqueue(c.Request.Context(), name, payload, domain.EnqueueOptions{
		Priority:       req.Priority,
		Delay:          delay,
		MaxAttempts:    req.MaxAttempts,
		RetryBaseDelay: retryBase,
		Timeout:        timeout,
	})
	if err != nil {
		h.fail(c, "Failed to enqueue job", err)
		return
	}

	h.logger.Info("Job enqueued via API",
		slog.String("job_id", job.ID),
		slog.String("job_name", job.Name),
		slog.String("status", string(job.Status)),
	)

	c.JSON(http.StatusCreated, dto.NewJobDTO(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *Handler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.queue.GetJob(c.Request.Context(), jobID)
	if err != nil {
		h.fail(c, "Failed to get job", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// DeleteJob handles DELETE /api/v1/jobs/:job_id
func (h *Handler) DeleteJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if err := h.queue.RemoveJob(c.Request.Context(), jobID); err != nil {
		h.fail(c, "Failed to delete job", err)
		return
	}

	h.logger.Info("Job removed via API", slog.String("job_id", jobID))
	c.Status(http.StatusNoContent)
}

// ListQueueJobs handles GET /api/v1/queue/jobs?status=
func (h *Handler) ListQueueJobs(c *gin.Context) {
	var req dto.ListQueueJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "status is required")
		return
	}

	status := domain.Status(req.Status)
	if !status.Valid() {
		badRequest(c, "Unknown status: "+req.Status)
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	jobs, err := h.queue.ListJobs(c.Request.Context(), status, limit)
	if err != nil {
		h.fail(c, "Failed to list jobs", err)
		return
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{Jobs: dto.NewJobDTOs(jobs)})
}

// GetStats handles GET /api/v1/queue/stats
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.queue.GetStats(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to get queue stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// CleanQueue handles POST /api/v1/queue/clean
func (h *Handler) CleanQueue(c *gin.Context) {
	var req dto.CleanQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status must be completed or failed")
		return
	}

	olderThan, err := parseDuration(req.OlderThan)
	if err != nil {
		badRequest(c, "Invalid older_than: "+err.Error())
		return
	}

	var removed int
	if domain.Status(req.Status) == domain.StatusCompleted {
		removed, err = h.queue.CleanCompleted(c.Request.Context(), olderThan)
	} else {
		removed, err = h.queue.CleanFailed(c.Request.Context(), olderThan)
	}
	if err != nil {
		h.fail(c, "Failed to clean queue", err)
		return
	}

	c.JSON(http.StatusOK, dto.CleanQueueResponse{Status: req.Status, Removed: removed})
}

// ObliterateQueue handles POST /api/v1/queue/obliterate?confirm=true
func (h *Handler) ObliterateQueue(c *gin.Context) {
	if c.Query("confirm") != "true" {
		badRequest(c, "confirm=true is required")
		return
	}

	if err := h.queue.Obliterate(c.Request.Context()); err != nil {
		h.fail(c, "Failed to obliterate queue", err)
		return
	}

	h.logger.Warn("Queue obliterated via API", slog.String("ip", c.ClientIP()))
	c.Status(http.StatusNoContent)
}
