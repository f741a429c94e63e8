package dto

import "time"

// SessionResponse is one registry entry.
type SessionResponse struct {
	ID           string    `json:"id"`
	Service      string    `json:"service"`
	UserAgent    string    `json:"user_agent"`
	IPAddress    string    `json:"ip_address"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	IsCurrent    bool      `json:"is_current"`
}

// RevokeAllRequest optionally targets another user (HR/ADMIN only).
type RevokeAllRequest struct {
	UserID string `json:"user_id" validate:"omitempty,max=64"`
	Reason string `json:"reason" validate:"omitempty,max=200"`
}

// RevokeAllResponse reports how many sessions were removed.
type RevokeAllResponse struct {
	Revoked int64 `json:"revoked"`
}
