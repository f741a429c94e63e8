package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/events"
	"github.com/spec-kit/checkin-service/internal/repository/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
	inner  events.Dispatcher
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{inner: events.NewInMemoryDispatcher(nil)}
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	d.events = append(d.events, event)
	d.mu.Unlock()
	return d.inner.Publish(ctx, event)
}

func (d *recordingDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {
	d.inner.Subscribe(eventType, handler)
}

func (d *recordingDispatcher) Types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

type failingDispatcher struct{}

func (failingDispatcher) Publish(ctx context.Context, event events.Event) error {
	return errors.New("dispatcher unavailable")
}

func (failingDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

const (
	employeeID = "11111111-1111-1111-1111-111111111111"
	hostID     = "22222222-2222-2222-2222-222222222222"
	otherID    = "33333333-3333-3333-3333-333333333333"
	password   = "correct horse"
)

type fixture struct {
	store      *memory.Store
	clock      *testClock
	dispatcher *recordingDispatcher
	tokens     *TokenService
	checkin    *CheckinService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store := memory.NewStore()
	card := "CARD-1"
	store.SeedEmployee(domain.Employee{ID: employeeID, Name: "Ada", Email: "ada@example.com", PasswordHash: string(hash), Role: domain.RoleEmployee, CardID: &card, Active: true})
	store.SeedEmployee(domain.Employee{ID: hostID, Name: "Grace", Email: "grace@example.com", PasswordHash: string(hash), Role: domain.RoleEmployee, Active: true})
	store.SeedEmployee(domain.Employee{ID: otherID, Name: "Linus", Email: "linus@example.com", PasswordHash: string(hash), Role: domain.RoleEmployee, Active: true})

	clock := newTestClock(time.Date(2024, 5, 6, 8, 55, 0, 0, time.UTC))
	dispatcher := newRecordingDispatcher()
	return &fixture{
		store:      store,
		clock:      clock,
		dispatcher: dispatcher,
		tokens:     NewTokenService(TokenDependencies{Store: store, TTL: 30 * time.Second, Clock: clock.Now}),
		checkin: NewCheckinService(CheckinDependencies{
			Store:      store,
			Dispatcher: dispatcher,
			Policy:     DefaultAttendancePolicy(),
			Clock:      clock.Now,
		}),
	}
}

func (f *fixture) issue(t *testing.T, purpose domain.TokenPurpose) string {
	t.Helper()
	token, err := f.tokens.Issue(context.Background(), purpose)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token.Token
}
