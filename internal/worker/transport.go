package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/checkin-service/internal/domain"
)

// Transport delivers a single notification.
type Transport interface {
	Deliver(ctx context.Context, n domain.Notification) error
}

type webhookPayload struct {
	UserID  string          `json:"userId"`
	Title   string          `json:"title"`
	Message string          `json:"message"`
	Type    domain.Severity `json:"type"`
}

// HTTPTransport POSTs notifications to the notification collaborator.
type HTTPTransport struct {
	url     string
	timeout time.Duration
}

// NewHTTPTransport builds a webhook transport.
func NewHTTPTransport(url string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPTransport{url: url, timeout: timeout}
}

// Deliver posts {userId,title,message,type}. Any non-2xx response is an error.
func (t *HTTPTransport) Deliver(ctx context.Context, n domain.Notification) error {
	timeout := t.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	agent := fiber.Post(t.url).
		JSON(webhookPayload{UserID: n.UserID, Title: n.Title, Message: n.Message, Type: n.Type}).
		Timeout(timeout)
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("post notification: %w", errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		if len(body) > 256 {
			body = body[:256]
		}
		return fmt.Errorf("notification endpoint returned %d: %s", code, body)
	}
	return nil
}

// LogTransport only logs notifications. Used when no webhook is configured.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport builds a log-only transport.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

// Deliver logs the notification.
func (t *LogTransport) Deliver(_ context.Context, n domain.Notification) error {
	t.logger.Info("notification",
		zap.String("user_id", n.UserID),
		zap.String("title", n.Title),
		zap.String("type", string(n.Type)),
		zap.String("message", n.Message))
	return nil
}
