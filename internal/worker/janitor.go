package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/checkin-service/internal/observability"
)

// SessionPruner removes idle sessions.
type SessionPruner interface {
	PruneInactive(ctx context.Context) (int64, error)
}

// TokenPurger removes long-expired kiosk tokens.
type TokenPurger interface {
	PurgeExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// Janitor periodically prunes the session registry and the token table.
type Janitor struct {
	sessions  SessionPruner
	tokens    TokenPurger
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// JanitorConfig configures the sweep.
type JanitorConfig struct {
	Sessions       SessionPruner
	Tokens         TokenPurger
	Interval       time.Duration
	TokenRetention time.Duration
	Logger         *zap.Logger
	Metrics        *observability.Metrics
}

// SweepResult counts what one sweep removed.
type SweepResult struct {
	Sessions int64
	Tokens   int64
}

// NewJanitor builds a janitor.
func NewJanitor(cfg JanitorConfig) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.TokenRetention <= 0 {
		cfg.TokenRetention = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Janitor{
		sessions:  cfg.Sessions,
		tokens:    cfg.Tokens,
		interval:  cfg.Interval,
		retention: cfg.TokenRetention,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

// Run sweeps once, then on every tick until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("janitor started", zap.Duration("interval", j.interval))
	j.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("janitor stopped")
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Failures are logged and left for the next tick.
func (j *Janitor) Sweep(ctx context.Context) SweepResult {
	var result SweepResult

	if j.sessions != nil {
		removed, err := j.sessions.PruneInactive(ctx)
		if err != nil {
			j.logger.Warn("session sweep failed", zap.Error(err))
		} else {
			result.Sessions = removed
			j.metrics.RecordSweep("sessions", int(removed))
		}
	}

	if j.tokens != nil {
		removed, err := j.tokens.PurgeExpired(ctx, j.retention)
		if err != nil {
			j.logger.Warn("token sweep failed", zap.Error(err))
		} else {
			result.Tokens = removed
			j.metrics.RecordSweep("tokens", int(removed))
		}
	}

	if result.Sessions > 0 || result.Tokens > 0 {
		j.logger.Info("janitor sweep",
			zap.Int64("sessions_removed", result.Sessions),
			zap.Int64("tokens_removed", result.Tokens))
	}
	return result
}
