package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/issue-runner/internal/api/dto"
	"github.com/cuongbtq/issue-runner/internal/tasks"
	"github.com/cuongbtq/issue-runner/shared/rabbitmq"
)

const (
	headerGitHubEvent    = "X-GitHub-Event"
	headerGitHubDelivery = "X-GitHub-Delivery"

	// GitHub caps webhook payloads at 25MB; issue events are far smaller.
	maxWebhookBody = 1 << 20
)

// GitHubWebhook handles POST /webhooks/github
// Accepts an issues event and forwards it to RabbitMQ for the worker service
func (h *Handler) GitHubWebhook(c *gin.Context) {
	eventType := c.GetHeader(headerGitHubEvent)
	deliveryID := c.GetHeader(headerGitHubDelivery)
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}

	logger := h.logger.With(
		slog.String("event", eventType),
		slog.String("delivery_id", deliveryID),
	)

	switch eventType {
	case "ping":
		c.JSON(http.StatusOK, dto.WebhookResponse{Status: "pong", DeliveryID: deliveryID})
		return
	case "issues":
	default:
		logger.Debug("Ignoring webhook event")
		c.JSON(http.StatusAccepted, dto.WebhookResponse{Status: "ignored", DeliveryID: deliveryID, Reason: "unsupported event"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		badRequest(c, "Failed to read request body")
		return
	}
	if len(body) > maxWebhookBody {
		c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "Payload too large"})
		return
	}

	var event tasks.IssueEvent
	if err := json.Unmarshal(body, &event); err != nil {
		logger.Warn("Invalid webhook payload", slog.String("error", err.Error()))
		badRequest(c, "Invalid JSON payload")
		return
	}

	if _, err := tasks.Route(&event); err != nil {
		if errors.Is(err, tasks.ErrIgnoredEvent) {
			c.JSON(http.StatusAccepted, dto.WebhookResponse{Status: "ignored", DeliveryID: deliveryID, Reason: "action " + event.Action})
			return
		}
		logger.Warn("Invalid issue event", slog.String("error", err.Error()))
		badRequest(c, err.Error())
		return
	}

	err = h.publisher.PublishWithRetry(c.Request.Context(), rabbitmq.Message{
		Body:        body,
		ContentType: "application/json",
		MessageID:   deliveryID,
	})
	if err != nil {
		logger.Error("Failed to publish issue event", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "Failed to accept event"})
		return
	}

	logger.Info("Issue event accepted",
		slog.String("repository", event.Repository.FullName),
		slog.Int("issue_number", event.Issue.Number),
		slog.String("action", event.Action),
	)
	c.JSON(http.StatusAccepted, dto.WebhookResponse{Status: "accepted", DeliveryID: deliveryID})
}
