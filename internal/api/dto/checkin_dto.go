package dto

import (
	"time"

	"github.com/spec-kit/checkin-service/internal/domain"
)

// QRDisplayResponse is what a kiosk renders as a QR code.
type QRDisplayResponse struct {
	Token     string              `json:"token"`
	Purpose   domain.TokenPurpose `json:"purpose"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// VisitorDetailsRequest identifies a visitor at the desk or on a visitor QR scan.
type VisitorDetailsRequest struct {
	FullName       string `json:"full_name" validate:"required,max=200"`
	Contact        string `json:"contact" validate:"required,max=200"`
	HostEmployeeID string `json:"host_employee_id" validate:"required,max=64"`
	Purpose        string `json:"purpose" validate:"required,max=500"`
}

// QRScanRequest redeems a kiosk token. Visitor is required for visitor tokens only.
type QRScanRequest struct {
	Token   string                 `json:"token" validate:"required,max=128"`
	Visitor *VisitorDetailsRequest `json:"visitor" validate:"omitempty"`
}

// ManualEntryRequest is the credential-checked manual fallback.
type ManualEntryRequest struct {
	UserID   string `json:"user_id" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
	Method   string `json:"method" validate:"omitempty,oneof=manual"`
}

// BiometricScanRequest carries an external reader result.
type BiometricScanRequest struct {
	Success  bool     `json:"success"`
	CardID   string   `json:"card_id" validate:"max=128"`
	Template string   `json:"template" validate:"max=8192"`
	Quality  *float64 `json:"quality" validate:"omitempty,gte=0,lte=100"`
}

// ReviewRequest closes out an HR review of a flagged record.
type ReviewRequest struct {
	Notes string `json:"notes" validate:"omitempty,max=1000"`
}

// VisitorCheckoutRequest closes a visit by id or contact.
type VisitorCheckoutRequest struct {
	VisitorID string `json:"visitor_id" validate:"omitempty,max=64"`
	Contact   string `json:"contact" validate:"omitempty,max=200"`
}

// TransitionResponse is the single terminal outcome of a scan or entry.
type TransitionResponse struct {
	Success      bool                    `json:"success"`
	Action       domain.Action           `json:"action"`
	RecordID     string                  `json:"record_id,omitempty"`
	ClockInTime  *time.Time              `json:"clock_in_time,omitempty"`
	ClockOutTime *time.Time              `json:"clock_out_time,omitempty"`
	TotalHours   *float64                `json:"total_hours,omitempty"`
	Status       domain.AttendanceStatus `json:"status,omitempty"`
	Visitor      *VisitorResponse        `json:"visitor,omitempty"`
}

// AttendanceRecordResponse is one attendance row with its derived status.
type AttendanceRecordResponse struct {
	ID               string                   `json:"id"`
	UserID           string                   `json:"user_id"`
	ClockInTime      time.Time                `json:"clock_in_time"`
	ClockOutTime     *time.Time               `json:"clock_out_time"`
	ClockInMethod    domain.AttendanceMethod  `json:"clock_in_method"`
	ClockOutMethod   *domain.AttendanceMethod `json:"clock_out_method"`
	TotalHours       *float64                 `json:"total_hours"`
	ManualFallback   bool                     `json:"manual_fallback"`
	FlaggedForReview bool                     `json:"flagged_for_review"`
	AuditNotes       *string                  `json:"audit_notes"`
	Status           domain.AttendanceStatus  `json:"status"`
}

// AttendanceStatusResponse reports the caller's current state.
type AttendanceStatusResponse struct {
	UserID    string                    `json:"user_id"`
	ClockedIn bool                      `json:"clocked_in"`
	Status    domain.AttendanceStatus   `json:"status"`
	Current   *AttendanceRecordResponse `json:"current"`
}

// VisitorResponse is a visitor record.
type VisitorResponse struct {
	ID             string               `json:"id"`
	FullName       string               `json:"full_name"`
	Contact        string               `json:"contact"`
	HostEmployeeID string               `json:"host_employee_id"`
	Purpose        string               `json:"purpose"`
	CheckInTime    time.Time            `json:"check_in_time"`
	CheckOutTime   *time.Time           `json:"check_out_time"`
	Status         domain.VisitorStatus `json:"status"`
}
