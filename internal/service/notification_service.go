package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/events"
	"github.com/spec-kit/checkin-service/internal/observability"
	"github.com/spec-kit/checkin-service/internal/queue"
)

// NotificationMessageType tags notification messages on the shared queue.
const NotificationMessageType = "notification"

const enqueueTimeout = 2 * time.Second

// NotificationService turns domain events into best-effort notifications. Nothing it
// does can fail the caller.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      queue.Queue
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Queue      queue.Queue
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		queue:      deps.Queue,
		metrics:    deps.Metrics,
		logger:     loggerOrNop(deps.Logger),
		now:        clockOrDefault(deps.Clock),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventClockIn, n.handleAttendance)
	n.dispatcher.Subscribe(events.EventClockOut, n.handleAttendance)
	n.dispatcher.Subscribe(events.EventVisitorCheckedIn, n.handleVisitor)
	n.dispatcher.Subscribe(events.EventVisitorCheckedOut, n.handleVisitor)
	n.dispatcher.Subscribe(events.EventSessionsRevoked, n.handleSessionsRevoked)
}

// Notify queues a notification for delivery and returns immediately. Failures are logged only.
func (n *NotificationService) Notify(ctx context.Context, userID, title, message string, severity domain.Severity) {
	if n.queue == nil || userID == "" {
		return
	}
	notification := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      severity,
		CreatedAt: n.now(),
	}
	body, err := json.Marshal(notification)
	if err != nil {
		n.logger.Error("encode notification", zap.Error(err))
		n.metrics.RecordNotification("enqueue", "error")
		return
	}

	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()
	if err := n.queue.Publish(enqueueCtx, queue.Message{Type: NotificationMessageType, Body: body}); err != nil {
		n.logger.Warn("notification dropped",
			zap.String("user_id", userID),
			zap.String("title", title),
			zap.Error(err))
		n.metrics.RecordNotification("enqueue", "error")
		return
	}
	n.metrics.RecordNotification("enqueue", "ok")
}

func (n *NotificationService) handleAttendance(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AttendancePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	switch event.Type {
	case events.EventClockIn:
		n.Notify(ctx, event.ActorID, "Clocked in",
			fmt.Sprintf("You clocked in at %s via %s.", payload.ClockInTime.Format(time.Kitchen), payload.Method),
			domain.SeveritySuccess)
	case events.EventClockOut:
		severity := domain.SeveritySuccess
		if payload.ManualFallback {
			severity = domain.SeverityWarning
		}
		n.Notify(ctx, event.ActorID, "Clocked out",
			fmt.Sprintf("You clocked out after %.2f hours.", payload.TotalHours),
			severity)
	}
	return nil
}

func (n *NotificationService) handleVisitor(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.VisitorPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if event.Type == events.EventVisitorCheckedIn {
		n.Notify(ctx, payload.HostEmployeeID, "Visitor arrived",
			fmt.Sprintf("%s has checked in to see you (%s).", payload.FullName, payload.Purpose),
			domain.SeverityInfo)
		return nil
	}
	n.Notify(ctx, payload.HostEmployeeID, "Visitor left",
		fmt.Sprintf("%s has checked out.", payload.FullName),
		domain.SeverityInfo)
	return nil
}

func (n *NotificationService) handleSessionsRevoked(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SessionsRevokedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.Notify(ctx, event.ActorID, "Signed out everywhere",
		fmt.Sprintf("%d active session(s) were revoked.", payload.Count),
		domain.SeverityWarning)
	return nil
}
