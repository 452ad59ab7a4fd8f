package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/issue-runner/internal/api/dto"
	"github.com/cuongbtq/issue-runner/internal/archive"
	"github.com/cuongbtq/issue-runner/internal/domain"
	"github.com/cuongbtq/issue-runner/shared/rabbitmq"
)

// JobQueue is the administrative surface of queue.Queue
type JobQueue interface {
	Enqueue(ctx context.Context, name string, payload any, opts domain.EnqueueOptions) (*domain.Job, error)
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	ListJobs(ctx context.Context, status domain.Status, limit int) ([]*domain.Job, error)
	GetStats(ctx context.Context) (*domain.QueueStats, error)
	RemoveJob(ctx context.Context, id string) error
	CleanCompleted(ctx context.Context, olderThan time.Duration) (int, error)
	CleanFailed(ctx context.Context, olderThan time.Duration) (int, error)
	Obliterate(ctx context.Context) error
}

// EventPublisher forwards webhook deliveries to the broker
type EventPublisher interface {
	PublishWithRetry(ctx context.Context, msg rabbitmq.Message) error
}

// HistoryStore reads archived jobs
type HistoryStore interface {
	List(ctx context.Context, filter archive.Filter) ([]archive.Record, error)
	GetRecord(ctx context.Context, jobID string) (*archive.Record, error)
}

// HealthChecker is implemented by every infrastructure client
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Queue     JobQueue
	Publisher EventPublisher
	// History is nil when archiving is disabled.
	History HistoryStore
	Checks  map[string]HealthChecker
	Service string
}

// Handler serves the webhook, admin and history endpoints
type Handler struct {
	logger    *slog.Logger
	queue     JobQueue
	publisher EventPublisher
	history   HistoryStore
	checks    map[string]HealthChecker
	service   string
}

// NewHandler creates a new Handler instance
func NewHandler(deps *Dependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		queue:     deps.Queue,
		publisher: deps.Publisher,
		history:   deps.History,
		checks:    deps.Checks,
		service:   deps.Service,
	}
}

// statusFor maps queue errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrInvalidPayload), errors.Is(err, domain.ErrInvalidJob):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.String("error", err.Error()))
	} else {
		h.logger.Warn(msg, slog.String("error", err.Error()))
	}
	c.JSON(status, dto.ErrorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: msg})
}

// parseDuration accepts an empty string as zero
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.New("duration must not be negative")
	}
	return d, nil
}
