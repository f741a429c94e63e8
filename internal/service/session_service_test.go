package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/checkin-service/internal/events"
	"github.com/spec-kit/checkin-service/internal/repository/memory"
)

func newSessionFixture(t *testing.T) (*SessionService, *testClock, *recordingDispatcher) {
	t.Helper()
	clock := newTestClock(time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC))
	dispatcher := newRecordingDispatcher()
	svc := NewSessionService(SessionDependencies{
		Repo:       memory.NewSessionRepository(),
		Dispatcher: dispatcher,
		Timeout:    30 * time.Minute,
		Clock:      clock.Now,
	})
	return svc, clock, dispatcher
}

func TestSessionRevokeAllEmptiesList(t *testing.T) {
	svc, clock, dispatcher := newSessionFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Touch(ctx, TouchInput{UserID: "u1", UserAgent: "test"}); err != nil {
			t.Fatalf("touch %d: %v", i, err)
		}
		clock.Advance(time.Second)
	}
	if _, err := svc.Touch(ctx, TouchInput{UserID: "u2"}); err != nil {
		t.Fatalf("touch other user: %v", err)
	}

	sessions, err := svc.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}

	removed, err := svc.RevokeAll(ctx, "u1", "test")
	if err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	sessions, err = svc.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if sessions == nil || len(sessions) != 0 {
		t.Fatalf("expected empty list, got %v", sessions)
	}
	others, _ := svc.List(ctx, "u2")
	if len(others) != 1 {
		t.Fatalf("other user's session affected")
	}
	if types := dispatcher.Types(); len(types) != 1 || types[0] != events.EventSessionsRevoked {
		t.Fatalf("expected sessions_revoked event, got %v", types)
	}
}

func TestSessionRevokeAllSurvivesPublishFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	svc := NewSessionService(SessionDependencies{
		Repo:       memory.NewSessionRepository(),
		Dispatcher: failingDispatcher{},
		Timeout:    30 * time.Minute,
		Logger:     zap.New(core),
	})
	ctx := context.Background()
	if _, err := svc.Touch(ctx, TouchInput{UserID: "u1"}); err != nil {
		t.Fatalf("touch: %v", err)
	}

	removed, err := svc.RevokeAll(ctx, "u1", "test")
	if err != nil || removed != 1 {
		t.Fatalf("revoke all: removed=%d err=%v", removed, err)
	}
	if n := logs.FilterMessage("publish event failed").Len(); n != 1 {
		t.Fatalf("expected one publish warning, got %d", n)
	}
}

func TestSessionRevokeIsIdempotent(t *testing.T) {
	svc, _, _ := newSessionFixture(t)
	ctx := context.Background()

	session, err := svc.Touch(ctx, TouchInput{UserID: "u1"})
	if err != nil {
		t.Fatalf("touch: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := svc.Revoke(ctx, session.ID); err != nil {
			t.Fatalf("revoke %d: %v", i, err)
		}
	}
	if err := svc.Revoke(ctx, "never-issued"); err != nil {
		t.Fatalf("revoke unknown: %v", err)
	}
	if err := svc.Resume(ctx, session.ID, "u1"); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected revoked session to fail the next check, got %v", err)
	}
}

func TestSessionTouchExtendsOrCreates(t *testing.T) {
	svc, clock, _ := newSessionFixture(t)
	ctx := context.Background()

	first, err := svc.Touch(ctx, TouchInput{UserID: "u1", Service: "hr-api"})
	if err != nil {
		t.Fatalf("touch: %v", err)
	}
	if first.Service != "hr-api" || first.ID == "" {
		t.Fatalf("unexpected session: %+v", first)
	}

	clock.Advance(10 * time.Minute)
	again, err := svc.Touch(ctx, TouchInput{SessionID: first.ID, UserID: "u1"})
	if err != nil {
		t.Fatalf("touch again: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("expected same session, got %s", again.ID)
	}
	if !again.LastActivity.Equal(clock.Now()) {
		t.Fatalf("last activity not extended: %v", again.LastActivity)
	}

	foreign, err := svc.Touch(ctx, TouchInput{SessionID: first.ID, UserID: "u2"})
	if err != nil {
		t.Fatalf("touch foreign: %v", err)
	}
	if foreign.ID == first.ID {
		t.Fatalf("another user's session was extended")
	}

	fresh, err := svc.Touch(ctx, TouchInput{SessionID: "unknown", UserID: "u1"})
	if err != nil {
		t.Fatalf("touch unknown: %v", err)
	}
	if fresh.ID == "unknown" || fresh.ID == first.ID {
		t.Fatalf("expected a newly minted id, got %s", fresh.ID)
	}

	if _, err := svc.Touch(ctx, TouchInput{}); err == nil {
		t.Fatalf("expected validation error without user")
	}
}

func TestSessionResumeRejectsWrongOwnerAndStale(t *testing.T) {
	svc, clock, _ := newSessionFixture(t)
	ctx := context.Background()
	session, err := svc.Touch(ctx, TouchInput{UserID: "u1"})
	if err != nil {
		t.Fatalf("touch: %v", err)
	}

	if err := svc.Resume(ctx, session.ID, "u2"); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked for wrong owner, got %v", err)
	}
	if err := svc.Resume(ctx, session.ID, "u1"); err != nil {
		t.Fatalf("resume: %v", err)
	}

	clock.Advance(31 * time.Minute)
	if err := svc.Resume(ctx, session.ID, "u1"); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected stale session to be rejected, got %v", err)
	}
}

func TestSessionPruneInactive(t *testing.T) {
	svc, clock, _ := newSessionFixture(t)
	ctx := context.Background()

	stale, _ := svc.Touch(ctx, TouchInput{UserID: "u1"})
	clock.Advance(2 * time.Minute)
	fresh, _ := svc.Touch(ctx, TouchInput{UserID: "u1"})
	clock.Advance(29 * time.Minute)

	removed, err := svc.PruneInactive(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned, got %d", removed)
	}
	if _, err := svc.Validate(ctx, stale.ID, "u1"); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("stale session survived: %v", err)
	}
	if _, err := svc.Validate(ctx, fresh.ID, "u1"); err != nil {
		t.Fatalf("fresh session pruned: %v", err)
	}
}

func TestSessionRevokeOwned(t *testing.T) {
	svc, _, _ := newSessionFixture(t)
	ctx := context.Background()
	session, _ := svc.Touch(ctx, TouchInput{UserID: "u1"})

	if err := svc.RevokeOwned(ctx, "u2", session.ID, false); err == nil {
		t.Fatalf("expected forbidden when revoking another user's session")
	}
	if err := svc.RevokeOwned(ctx, "admin", session.ID, true); err != nil {
		t.Fatalf("privileged revoke: %v", err)
	}
	if err := svc.RevokeOwned(ctx, "u1", session.ID, false); err != nil {
		t.Fatalf("revoke of already removed session should be a no-op: %v", err)
	}
}
