package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spec-kit/checkin-service/internal/auth"
	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/repository"
	apperrors "github.com/spec-kit/checkin-service/pkg/util/errorutil"
)

// AuthService coordinates login and logout. Every issued token is bound to a registry session.
type AuthService struct {
	employees repository.EmployeeRepository
	sessions  *SessionService
	tokenMgr  *auth.TokenManager
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	Employees    repository.EmployeeRepository
	Sessions     *SessionService
	TokenManager *auth.TokenManager
}

// LoginInput carries credentials plus the client metadata recorded on the session.
type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Employee  *domain.Employee
	Session   *domain.Session
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		employees: deps.Employees,
		sessions:  deps.Sessions,
		tokenMgr:  deps.TokenManager,
	}
}

// Login authenticates an employee and opens a session.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	employee, err := s.employees.GetByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = auth.BurnCompare(in.Password)
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}
	if err := auth.ComparePassword(employee.PasswordHash, in.Password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !employee.Active {
		return nil, apperrors.NewUnauthorized("employee inactive")
	}

	session, err := s.sessions.Touch(ctx, TouchInput{
		UserID:    employee.ID,
		UserAgent: in.UserAgent,
		IPAddress: in.IPAddress,
	})
	if err != nil {
		return nil, err
	}
	token, exp, err := s.tokenMgr.GenerateToken(employee.ID, employee.Role, session.ID)
	if err != nil {
		_ = s.sessions.Revoke(ctx, session.ID)
		return nil, err
	}
	return &LoginResult{Employee: employee, Session: session, Token: token, ExpiresAt: exp}, nil
}

// Logout revokes the session the caller's token is bound to.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Revoke(ctx, sessionID)
}
