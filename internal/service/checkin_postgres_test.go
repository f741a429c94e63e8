//go:build integration

package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/checkin-service/internal/config"
	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/persistence"
	"github.com/spec-kit/checkin-service/internal/repository"
)

// Run with: CHECKIN_TEST_POSTGRES_DSN=postgres://... go test -tags integration ./internal/service/
func newPostgresFixture(t *testing.T) (*TokenService, *CheckinService, *persistence.Postgres, []string) {
	t.Helper()
	dsn := os.Getenv("CHECKIN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CHECKIN_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	logger := zap.NewNop()

	pg, err := persistence.NewPostgres(ctx, config.PostgresConfig{DSN: dsn, MaxConns: 16}, "checkin-service-test", logger)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pg.Close)
	if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ids := []string{uuid.NewString(), uuid.NewString()}
	for i, id := range ids {
		_, err := pg.Pool.Exec(ctx,
			`INSERT INTO employees (id, name, email, password_hash, role) VALUES ($1, $2, $3, 'x', 'EMPLOYEE')`,
			id, "Employee "+id[:8], id+"@example.com")
		if err != nil {
			t.Fatalf("seed employee %d: %v", i, err)
		}
	}
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = pg.Pool.Exec(ctx, `DELETE FROM attendance_records WHERE user_id = ANY($1::uuid[])`, ids)
		_, _ = pg.Pool.Exec(ctx, `DELETE FROM employees WHERE id = ANY($1::uuid[])`, ids)
	})

	store := repository.NewPostgresStore(pg.Pool)
	tokens := NewTokenService(TokenDependencies{Store: store})
	checkin := NewCheckinService(CheckinDependencies{Store: store, Policy: DefaultAttendancePolicy()})
	return tokens, checkin, pg, ids
}

func TestPostgresConcurrentScansOfSameToken(t *testing.T) {
	tokens, checkin, _, ids := newPostgresFixture(t)
	ctx := context.Background()
	token, err := tokens.Issue(ctx, domain.TokenPurposeAttendance)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			<-start
			_, errs[i] = checkin.Scan(ctx, token.Token, ActorContext{EmployeeID: id})
		}(i, id)
	}
	close(start)
	wg.Wait()

	successes, used := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrTokenAlreadyUsed):
			used++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || used != 1 {
		t.Fatalf("expected one success and one TokenAlreadyUsed, got %d/%d", successes, used)
	}
}

func TestPostgresConcurrentClockInsForSameActor(t *testing.T) {
	tokens, checkin, pg, ids := newPostgresFixture(t)
	ctx := context.Background()

	const attempts = 8
	issued := make([]string, attempts)
	for i := range issued {
		token, err := tokens.Issue(ctx, domain.TokenPurposeAttendance)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		issued[i] = token.Token
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		actions []domain.Action
	)
	start := make(chan struct{})
	for _, token := range issued {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			<-start
			outcome, err := checkin.Scan(ctx, token, ActorContext{EmployeeID: ids[0]})
			if err != nil {
				if !errors.Is(err, ErrRecordConflict) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			mu.Lock()
			actions = append(actions, outcome.Action)
			mu.Unlock()
		}(token)
	}
	close(start)
	wg.Wait()

	if len(actions) != 1 || actions[0] != domain.ActionClockIn {
		t.Fatalf("expected exactly one clock_in, got %v", actions)
	}
	var open int
	if err := pg.Pool.QueryRow(ctx,
		`SELECT count(*) FROM attendance_records WHERE user_id=$1 AND clock_out_time IS NULL`, ids[0]).Scan(&open); err != nil {
		t.Fatalf("count open records: %v", err)
	}
	if open != 1 {
		t.Fatalf("expected one open record, got %d", open)
	}
}

func TestPostgresOpenRecordIndexBackstop(t *testing.T) {
	_, _, pg, ids := newPostgresFixture(t)
	ctx := context.Background()
	store := repository.NewPostgresStore(pg.Pool)

	first := &domain.AttendanceRecord{ID: uuid.NewString(), UserID: ids[1], ClockInTime: time.Now().UTC(), Method: domain.MethodQR}
	if err := store.Attendance().Create(ctx, first); err != nil {
		t.Fatalf("first open record: %v", err)
	}
	// bypasses the advisory lock to hit the partial unique index directly
	second := &domain.AttendanceRecord{ID: uuid.NewString(), UserID: ids[1], ClockInTime: time.Now().UTC(), Method: domain.MethodManual}
	if err := store.Attendance().Create(ctx, second); !errors.Is(err, repository.ErrOpenRecordExists) {
		t.Fatalf("expected ErrOpenRecordExists, got %v", err)
	}
}
