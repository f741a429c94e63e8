package domain

import "time"

// TokenPurpose tells the engine which transition family a kiosk token drives.
type TokenPurpose string

const (
	TokenPurposeAttendance TokenPurpose = "attendance"
	TokenPurposeVisitor    TokenPurpose = "visitor"
)

// Valid reports whether p is a known purpose.
func (p TokenPurpose) Valid() bool {
	return p == TokenPurposeAttendance || p == TokenPurposeVisitor
}

// QRToken is a short-lived, single-use token shown on a kiosk display.
type QRToken struct {
	Token      string
	Purpose    TokenPurpose
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Consumed   bool
	ConsumedAt *time.Time
}

// Expired reports whether the token is past its window at now.
func (t *QRToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
