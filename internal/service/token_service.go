package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/repository"
)

const tokenBytes = 32

// TokenService issues single-use kiosk tokens.
type TokenService struct {
	store  repository.Store
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// TokenDependencies bundles collaborators for the token service.
type TokenDependencies struct {
	Store  repository.Store
	TTL    time.Duration
	Clock  func() time.Time
	Logger *zap.Logger
}

// NewTokenService constructs the service.
func NewTokenService(deps TokenDependencies) *TokenService {
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &TokenService{
		store:  deps.Store,
		ttl:    ttl,
		now:    clockOrDefault(deps.Clock),
		logger: loggerOrNop(deps.Logger),
	}
}

// Issue creates and persists a token for purpose, valid for the configured window.
func (s *TokenService) Issue(ctx context.Context, purpose domain.TokenPurpose) (*domain.QRToken, error) {
	if !purpose.Valid() {
		return nil, validationError("purpose", "must be one of [attendance visitor]")
	}
	value, err := randomToken()
	if err != nil {
		return nil, err
	}
	issuedAt := s.now()
	token := &domain.QRToken{
		Token:     value,
		Purpose:   purpose,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(s.ttl),
	}
	if err := s.store.Tokens().Create(ctx, token); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}
	return token, nil
}

// PurgeExpired deletes tokens that expired more than retention ago.
func (s *TokenService) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	removed, err := s.store.Tokens().DeleteExpiredBefore(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Debug("purged expired qr tokens", zap.Int64("removed", removed))
	}
	return removed, nil
}

func randomToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func clockOrDefault(clock func() time.Time) func() time.Time {
	if clock != nil {
		return clock
	}
	return func() time.Time { return time.Now().UTC() }
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger != nil {
		return logger
	}
	return zap.NewNop()
}
