package dto

import (
	"time"

	"github.com/spec-kit/checkin-service/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

// LoginResponse carries the bearer token and the session it is bound to.
type LoginResponse struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresAt   time.Time        `json:"expires_at"`
	SessionID   string           `json:"session_id"`
	Employee    EmployeeResponse `json:"employee"`
}

// EmployeeResponse is the public view of an employee.
type EmployeeResponse struct {
	ID    string              `json:"id"`
	Name  string              `json:"name"`
	Email string              `json:"email"`
	Role  domain.EmployeeRole `json:"role"`
}
