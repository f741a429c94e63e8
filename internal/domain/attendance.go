package domain

import "time"

// AttendanceMethod records how a clock event was captured.
type AttendanceMethod string

const (
	MethodQR        AttendanceMethod = "qr"
	MethodManual    AttendanceMethod = "manual"
	MethodBiometric AttendanceMethod = "biometric"
)

// AttendanceStatus is derived from clock times and the workday policy; it is never stored.
type AttendanceStatus string

const (
	AttendancePresent    AttendanceStatus = "present"
	AttendanceLate       AttendanceStatus = "late"
	AttendanceAbsent     AttendanceStatus = "absent"
	AttendanceEarlyOut   AttendanceStatus = "early_out"
	AttendanceIncomplete AttendanceStatus = "incomplete"
)

// AttendanceRecord is one clock-in/clock-out pair. Once ClockOutTime is set only the review fields change.
type AttendanceRecord struct {
	ID               string
	UserID           string
	ClockInTime      time.Time
	ClockOutTime     *time.Time
	Method           AttendanceMethod
	ClockOutMethod   *AttendanceMethod
	ManualFallback   bool
	FlaggedForReview bool
	AuditNotes       *string
	CreatedAt        time.Time
}

// Open reports whether the record has not been closed yet.
func (r *AttendanceRecord) Open() bool {
	return r.ClockOutTime == nil
}

// TotalHours returns the closed shift length in hours, or zero while open.
func (r *AttendanceRecord) TotalHours() float64 {
	if r.ClockOutTime == nil {
		return 0
	}
	return r.ClockOutTime.Sub(r.ClockInTime).Hours()
}
