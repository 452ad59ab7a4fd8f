package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/issue-runner/internal/api/dto"
	"github.com/cuongbtq/issue-runner/internal/archive"
	"github.com/cuongbtq/issue-runner/internal/domain"
)

// GetHistoryRecord handles GET /api/v1/history/:job_id
func (h *Handler) GetHistoryRecord(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Job archive is disabled"})
		return
	}

	record, err := h.history.GetRecord(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		h.fail(c, "Failed to get archived job", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(record.Job()))
}

// ListHistory handles GET /api/v1/history
// Lists archived jobs, newest first, with cursor pagination
func (h *Handler) ListHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Job archive is disabled"})
		return
	}

	var req dto.ListHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "Invalid query parameters")
		return
	}

	if req.Status != "" && !domain.Status(req.Status).IsTerminal() {
		badRequest(c, "status must be completed or failed")
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := archive.DecodeCursor(req.Cursor)
	if err != nil {
		badRequest(c, "Invalid cursor")
		return
	}

	records, err := h.history.List(c.Request.Context(), archive.Filter{
		Name:     req.Name,
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.fail(c, "Failed to list job history", err)
		return
	}

	// The store returns one extra record when another page exists
	hasMore := len(records) > req.PageSize
	if hasMore {
		records = records[:req.PageSize]
	}

	jobs := make([]dto.JobDTO, len(records))
	for i, r := range records {
		jobs[i] = dto.NewJobDTO(r.Job())
	}

	resp := dto.ListJobsResponse{Jobs: jobs}
	if hasMore {
		last := records[len(records)-1]
		resp.NextCursor = archive.EncodeCursor(&archive.Cursor{FinishedAt: last.FinishedAt, JobID: last.JobID})
	}

	c.JSON(http.StatusOK, resp)
}
