package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/events"
	"github.com/spec-kit/checkin-service/internal/repository"
	apperrors "github.com/spec-kit/checkin-service/pkg/util/errorutil"
)

// SessionService is the session registry facade.
type SessionService struct {
	repo        repository.SessionRepository
	dispatcher  events.Dispatcher
	serviceName string
	timeout     time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// SessionDependencies bundles collaborators for the session registry.
type SessionDependencies struct {
	Repo        repository.SessionRepository
	Dispatcher  events.Dispatcher
	ServiceName string
	Timeout     time.Duration
	Clock       func() time.Time
	Logger      *zap.Logger
}

// TouchInput identifies the caller of a touch. SessionID is optional.
type TouchInput struct {
	SessionID string
	UserID    string
	Service   string
	UserAgent string
	IPAddress string
}

// NewSessionService constructs the registry.
func NewSessionService(deps SessionDependencies) *SessionService {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	name := deps.ServiceName
	if name == "" {
		name = "checkin-service"
	}
	return &SessionService{
		repo:        deps.Repo,
		dispatcher:  deps.Dispatcher,
		serviceName: name,
		timeout:     timeout,
		now:         clockOrDefault(deps.Clock),
		logger:      loggerOrNop(deps.Logger),
	}
}

// Timeout returns the inactivity window.
func (s *SessionService) Timeout() time.Duration {
	return s.timeout
}

// Touch extends the caller's session when SessionID names a live session owned by
// UserID, and otherwise opens a new one with a random id.
func (s *SessionService) Touch(ctx context.Context, in TouchInput) (*domain.Session, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, validationError("user_id", "is required")
	}
	now := s.now()

	if in.SessionID != "" {
		existing, err := s.repo.Get(ctx, in.SessionID)
		switch {
		case err == nil && existing.UserID == in.UserID && !existing.Stale(now, s.timeout):
			last, err := s.repo.UpdateActivity(ctx, existing.ID, now)
			if err == nil {
				existing.LastActivity = last
				return existing, nil
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return nil, err
		}
	}

	service := in.Service
	if service == "" {
		service = s.serviceName
	}
	session := &domain.Session{
		ID:           uuid.NewString(),
		UserID:       in.UserID,
		Service:      service,
		UserAgent:    in.UserAgent,
		IPAddress:    in.IPAddress,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Validate returns the session if it is live and owned by userID, ErrSessionRevoked otherwise.
func (s *SessionService) Validate(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, ErrSessionRevoked
	}
	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrSessionRevoked
	}
	if session.Stale(s.now(), s.timeout) {
		if err := s.repo.Delete(ctx, sessionID); err != nil {
			s.logger.Warn("failed to drop stale session", zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil, ErrSessionRevoked
	}
	return session, nil
}

// Resume validates the session and records activity on it.
func (s *SessionService) Resume(ctx context.Context, sessionID, userID string) error {
	if _, err := s.Validate(ctx, sessionID, userID); err != nil {
		return err
	}
	if _, err := s.repo.UpdateActivity(ctx, sessionID, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionRevoked
		}
		return err
	}
	return nil
}

// Revoke removes one session. Unknown ids are a no-op.
func (s *SessionService) Revoke(ctx context.Context, sessionID string) error {
	return s.repo.Delete(ctx, sessionID)
}

// RevokeOwned removes a session on behalf of userID; privileged callers may revoke any session.
func (s *SessionService) RevokeOwned(ctx context.Context, userID, sessionID string, privileged bool) error {
	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if session.UserID != userID && !privileged {
		return apperrors.NewForbidden("session belongs to another user")
	}
	return s.repo.Delete(ctx, sessionID)
}

// RevokeAll removes every session of userID.
func (s *SessionService) RevokeAll(ctx context.Context, userID, reason string) (int64, error) {
	removed, err := s.repo.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("sessions revoked",
		zap.String("user_id", userID),
		zap.Int64("count", removed),
		zap.String("reason", reason))
	if removed > 0 && s.dispatcher != nil {
		err := s.dispatcher.Publish(context.WithoutCancel(ctx), events.New(
			events.EventSessionsRevoked, userID, s.now(),
			events.SessionsRevokedPayload{Count: removed, Reason: reason},
		))
		if err != nil {
			s.logger.Warn("publish event failed",
				zap.String("event", string(events.EventSessionsRevoked)),
				zap.Error(err))
		}
	}
	return removed, nil
}

// List returns userID's live sessions, most recently active first.
func (s *SessionService) List(ctx context.Context, userID string) ([]domain.Session, error) {
	sessions, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	live := make([]domain.Session, 0, len(sessions))
	for _, session := range sessions {
		if !session.Stale(now, s.timeout) {
			live = append(live, session)
		}
	}
	return live, nil
}

// PruneInactive removes sessions idle for longer than the timeout.
func (s *SessionService) PruneInactive(ctx context.Context) (int64, error) {
	return s.repo.DeleteInactiveBefore(ctx, s.now().Add(-s.timeout))
}
