package dto

import (
	"encoding/json"
	"time"

	"github.com/cuongbtq/issue-runner/internal/domain"
)

type EnqueueJobRequest struct {
	Name           string          `json:"name" binding:"required"`
	Payload        json.RawMessage `json:"payload"`
	Priority       int             `json:"priority"`
	Delay          string          `json:"delay"`
	MaxAttempts    int             `json:"max_attempts" binding:"gte=0"`
	RetryBaseDelay string          `json:"retry_base_delay"`
	Timeout        string          `json:"timeout"`
}

type ListQueueJobsRequest struct {
	Status string `form:"status" binding:"required"`
	Limit  int    `form:"limit"`
}

type CleanQueueRequest struct {
	Status    string `json:"status" binding:"required,oneof=completed failed"`
	OlderThan string `json:"older_than"`
}

type CleanQueueResponse struct {
	Status  string `json:"status"`
	Removed int    `json:"removed"`
}

type ListHistoryRequest struct {
	Name     string `form:"name"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type WebhookResponse struct {
	Status     string `json:"status"`
	DeliveryID string `json:"delivery_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type JobDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Status      string          `json:"status"`
	Priority    int             `json:"priority"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Timeout     string          `json:"timeout,omitempty"`
	RetryBase   string          `json:"retry_base_delay,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   string          `json:"created_at"`
	ReadyAt     string          `json:"ready_at,omitempty"`
	StartedAt   string          `json:"started_at,omitempty"`
	CompletedAt string          `json:"completed_at,omitempty"`
	FailedAt    string          `json:"failed_at,omitempty"`
}

// NewJobDTO converts a job into its API representation
func NewJobDTO(j *domain.Job) JobDTO {
	out := JobDTO{
		ID:          j.ID,
		Name:        j.Name,
		Status:      string(j.Status),
		Priority:    j.Priority,
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		Payload:     j.Payload,
		Result:      j.Result,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt.UTC().Format(time.RFC3339),
		ReadyAt:     formatTime(j.ReadyAt),
		StartedAt:   formatTime(j.StartedAt),
		CompletedAt: formatTime(j.CompletedAt),
		FailedAt:    formatTime(j.FailedAt),
	}
	if j.Timeout > 0 {
		out.Timeout = j.Timeout.String()
	}
	if j.RetryBaseDelay > 0 {
		out.RetryBase = j.RetryBaseDelay.String()
	}
	return out
}

// NewJobDTOs converts a slice of jobs
func NewJobDTOs(jobs []*domain.Job) []JobDTO {
	out := make([]JobDTO, len(jobs))
	for i, j := range jobs {
		out[i] = NewJobDTO(j)
	}
	return out
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
