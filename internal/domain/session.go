package domain

import "time"

// Session is a registry entry for one authenticated actor on one backend service.
type Session struct {
	ID           string
	UserID       string
	Service      string
	UserAgent    string
	IPAddress    string
	CreatedAt    time.Time
	LastActivity time.Time
}

// Stale reports whether the session has been idle longer than timeout at now.
func (s *Session) Stale(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) > timeout
}
