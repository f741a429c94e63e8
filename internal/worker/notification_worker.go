package worker

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/observability"
	"github.com/spec-kit/checkin-service/internal/queue"
	"github.com/spec-kit/checkin-service/internal/service"
)

// NotificationWorker drains the notification queue and delivers with bounded retries.
type NotificationWorker struct {
	queue       queue.Queue
	transport   Transport
	logger      *zap.Logger
	metrics     *observability.Metrics
	maxAttempts int
	backoff     time.Duration
	timeout     time.Duration
}

// NotificationWorkerConfig configures delivery.
type NotificationWorkerConfig struct {
	Queue       queue.Queue
	Transport   Transport
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration
}

// NewNotificationWorker builds the worker.
func NewNotificationWorker(cfg NotificationWorkerConfig) *NotificationWorker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &NotificationWorker{
		queue:       cfg.Queue,
		transport:   cfg.Transport,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		timeout:     cfg.Timeout,
	}
}

// Run consumes until ctx is cancelled.
func (w *NotificationWorker) Run(ctx context.Context) error {
	messages, err := w.queue.Consume(ctx)
	if err != nil {
		return err
	}
	w.logger.Info("notification worker started")
	for msg := range messages {
		w.handle(ctx, msg)
	}
	w.logger.Info("notification worker stopped")
	return nil
}

func (w *NotificationWorker) handle(ctx context.Context, msg queue.Message) {
	if msg.Type != service.NotificationMessageType {
		w.logger.Warn("skipping unknown queue message", zap.String("type", msg.Type))
		return
	}
	var n domain.Notification
	if err := json.Unmarshal(msg.Body, &n); err != nil {
		w.logger.Error("decode notification", zap.Error(err))
		w.metrics.RecordNotification("deliver", "malformed")
		return
	}
	w.deliver(ctx, n)
}

// deliver retries with exponential backoff. The last failure is logged and dropped.
func (w *NotificationWorker) deliver(ctx context.Context, n domain.Notification) bool {
	delay := w.backoff
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, w.timeout)
		err := w.transport.Deliver(attemptCtx, n)
		cancel()
		if err == nil {
			w.metrics.RecordNotification("deliver", "ok")
			return true
		}

		w.logger.Warn("notification delivery failed",
			zap.String("notification_id", n.ID),
			zap.String("user_id", n.UserID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == w.maxAttempts {
			break
		}
		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
			w.metrics.RecordNotification("deliver", "cancelled")
			return false
		}
	}
	w.logger.Error("notification dropped after retries",
		zap.String("notification_id", n.ID),
		zap.String("user_id", n.UserID),
		zap.Int("attempts", w.maxAttempts))
	w.metrics.RecordNotification("deliver", "failed")
	return false
}
