package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/checkin-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventClockIn           EventType = "clock_in"
	EventClockOut          EventType = "clock_out"
	EventVisitorCheckedIn  EventType = "visitor_checked_in"
	EventVisitorCheckedOut EventType = "visitor_checked_out"
	EventSessionsRevoked   EventType = "sessions_revoked"
)

// Event represents a domain event emitted by services after a committed change.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh id.
func New(eventType EventType, actorID string, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ActorID:   actorID,
		Timestamp: at,
		Payload:   payload,
	}
}

// AttendancePayload accompanies clock_in and clock_out.
type AttendancePayload struct {
	RecordID       string                  `json:"record_id"`
	Method         domain.AttendanceMethod `json:"method"`
	ClockInTime    time.Time               `json:"clock_in_time"`
	ClockOutTime   *time.Time              `json:"clock_out_time,omitempty"`
	TotalHours     float64                 `json:"total_hours,omitempty"`
	ManualFallback bool                    `json:"manual_fallback"`
}

// VisitorPayload accompanies visitor check-in and check-out.
type VisitorPayload struct {
	VisitorID      string `json:"visitor_id"`
	FullName       string `json:"full_name"`
	HostEmployeeID string `json:"host_employee_id"`
	Purpose        string `json:"purpose"`
}

// SessionsRevokedPayload accompanies bulk revocation.
type SessionsRevokedPayload struct {
	Count  int64  `json:"count"`
	Reason string `json:"reason"`
}
