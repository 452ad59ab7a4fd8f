package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/issue-runner/internal/domain"
	"github.com/cuongbtq/issue-runner/internal/tasks"
)

// DeliverySource starts a consumer on a broker queue
type DeliverySource interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Enqueuer is the part of queue.Queue the consumer needs
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any, opts domain.EnqueueOptions) (*domain.Job, error)
}

// Config holds consumer configuration
type Config struct {
	Source   DeliverySource
	Queue    Enqueuer
	Logger   *slog.Logger
	Defaults domain.EnqueueOptions
	// RequeueDelay is waited before a message is handed back to the
	// broker because the job queue could not take it.
	RequeueDelay time.Duration
}

// Consumer turns issue events from RabbitMQ into queued jobs
type Consumer struct {
	source       DeliverySource
	queue        Enqueuer
	logger       *slog.Logger
	defaults     domain.EnqueueOptions
	requeueDelay time.Duration
	consumerTag  string
}

// NewConsumer creates a new consumer
func NewConsumer(cfg *Config) *Consumer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	delay := cfg.RequeueDelay
	if delay <= 0 {
		delay = time.Second
	}
	return &Consumer{
		source:       cfg.Source,
		queue:        cfg.Queue,
		logger:       logger,
		defaults:     cfg.Defaults,
		requeueDelay: delay,
		consumerTag:  "ingest-" + uuid.NewString(),
	}
}

// Run consumes until ctx is cancelled or the delivery channel closes
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.source.Consume(c.consumerTag)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Ingest consumer started", slog.String("consumer_tag", c.consumerTag))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Ingest consumer stopped - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("RabbitMQ delivery channel closed")
				return errors.New("delivery channel closed")
			}
			c.Handle(ctx, delivery)
		}
	}
}

// Handle processes one delivery and settles it. Malformed or invalid
// events are dropped; events the queue cannot take right now are
// requeued after a delay.
func (c *Consumer) Handle(ctx context.Context, delivery amqp.Delivery) {
	logger := c.logger.With(
		slog.String("message_id", delivery.MessageId),
		slog.Uint64("delivery_tag", delivery.DeliveryTag),
	)

	var event tasks.IssueEvent
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		logger.Error("Failed to parse message JSON",
			slog.String("error", err.Error()),
		)
		c.nack(logger, delivery, false)
		return
	}
	if event.DeliveryID == "" {
		event.DeliveryID = delivery.MessageId
	}

	assignment, err := tasks.Route(&event)
	switch {
	case errors.Is(err, tasks.ErrIgnoredEvent):
		logger.Debug("Ignoring issue event", slog.String("action", event.Action))
		c.ack(logger, delivery)
		return
	case err != nil:
		logger.Error("Invalid issue event", slog.String("error", err.Error()))
		c.nack(logger, delivery, false)
		return
	}

	opts := c.defaults
	opts.Priority = assignment.Options.Priority

	job, err := c.queue.Enqueue(ctx, assignment.JobName, assignment.Payload, opts)
	if err != nil {
		requeue := shouldRequeue(err)
		logger.Error("Failed to enqueue job",
			slog.String("job_name", assignment.JobName),
			slog.String("error", err.Error()),
			slog.Bool("requeue", requeue),
		)
		if requeue {
			c.wait(ctx)
		}
		c.nack(logger, delivery, requeue)
		return
	}

	logger.Info("Issue event enqueued",
		slog.String("job_id", job.ID),
		slog.String("job_name", job.Name),
		slog.String("repository", assignment.Payload.Repository),
		slog.Int("issue_number", assignment.Payload.IssueNumber),
		slog.Int("priority", job.Priority),
	)
	c.ack(logger, delivery)
}

// shouldRequeue reports whether the enqueue failure is transient
func shouldRequeue(err error) bool {
	if errors.Is(err, domain.ErrInvalidPayload) {
		return false
	}
	return errors.Is(err, domain.ErrQueueFull) || errors.Is(err, domain.ErrStoreUnavailable)
}

func (c *Consumer) wait(ctx context.Context) {
	timer := time.NewTimer(c.requeueDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (c *Consumer) ack(logger *slog.Logger, delivery amqp.Delivery) {
	if err := delivery.Ack(false); err != nil {
		logger.Error("Failed to ACK message", slog.String("error", err.Error()))
	}
}

func (c *Consumer) nack(logger *slog.Logger, delivery amqp.Delivery, requeue bool) {
	if err := delivery.Nack(false, requeue); err != nil {
		logger.Error("Failed to NACK message",
			slog.String("error", err.Error()),
			slog.Bool("requeue", requeue),
		)
	}
}
