package repository

import (
	"context"
	"time"

	"github.com/spec-kit/checkin-service/internal/domain"
)

// TokenRepository persists kiosk QR tokens.
type TokenRepository interface {
	Create(ctx context.Context, token *domain.QRToken) error
	GetByToken(ctx context.Context, token string) (*domain.QRToken, error)
	// Consume flips consumed from false to true. It reports false when another caller got there first.
	Consume(ctx context.Context, token string, at time.Time) (bool, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type tokenRepository struct {
	db DBTX
}

func (r *tokenRepository) Create(ctx context.Context, token *domain.QRToken) error {
	const query = `
        INSERT INTO qr_tokens (token, purpose, issued_at, expires_at, consumed)
        VALUES ($1, $2, $3, $4, FALSE)`

	_, err := r.db.Exec(ctx, query, token.Token, token.Purpose, token.IssuedAt, token.ExpiresAt)
	return err
}

func (r *tokenRepository) GetByToken(ctx context.Context, token string) (*domain.QRToken, error) {
	const query = `
        SELECT token, purpose, issued_at, expires_at, consumed, consumed_at
        FROM qr_tokens WHERE token=$1`

	var t domain.QRToken
	if err := r.db.QueryRow(ctx, query, token).Scan(
		&t.Token,
		&t.Purpose,
		&t.IssuedAt,
		&t.ExpiresAt,
		&t.Consumed,
		&t.ConsumedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *tokenRepository) Consume(ctx context.Context, token string, at time.Time) (bool, error) {
	const query = `
        UPDATE qr_tokens SET consumed=TRUE, consumed_at=$2
        WHERE token=$1 AND consumed=FALSE`

	cmd, err := r.db.Exec(ctx, query, token, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *tokenRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM qr_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
