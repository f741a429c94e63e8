package domain

import "time"

// VisitorStatus only ever moves CHECKED_IN -> CHECKED_OUT.
type VisitorStatus string

const (
	VisitorCheckedIn  VisitorStatus = "CHECKED_IN"
	VisitorCheckedOut VisitorStatus = "CHECKED_OUT"
)

// VisitorRecord tracks a single visit.
type VisitorRecord struct {
	ID             string
	FullName       string
	Contact        string
	HostEmployeeID string
	Purpose        string
	CheckInTime    time.Time
	CheckOutTime   *time.Time
	Status         VisitorStatus
}

// Active reports whether the visitor is still on site.
func (v *VisitorRecord) Active() bool {
	return v.Status == VisitorCheckedIn
}
