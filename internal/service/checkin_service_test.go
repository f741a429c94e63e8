package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/events"
	"github.com/spec-kit/checkin-service/internal/repository"
)

func TestScanClockInThenReuseToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.issue(t, domain.TokenPurposeAttendance)

	outcome, err := f.checkin.Scan(ctx, token, ActorContext{EmployeeID: employeeID})
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if outcome.Action != domain.ActionClockIn {
		t.Fatalf("expected clock_in, got %s", outcome.Action)
	}
	if outcome.Attendance == nil || outcome.Attendance.Method != domain.MethodQR || !outcome.Attendance.Open() {
		t.Fatalf("unexpected record: %+v", outcome.Attendance)
	}

	if _, err := f.checkin.Scan(ctx, token, ActorContext{EmployeeID: employeeID}); !errors.Is(err, ErrTokenAlreadyUsed) {
		t.Fatalf("expected ErrTokenAlreadyUsed, got %v", err)
	}
}

func TestScanExpiredToken(t *testing.T) {
	f := newFixture(t)
	token := f.issue(t, domain.TokenPurposeAttendance)
	f.clock.Advance(31 * time.Second)

	if _, err := f.checkin.Scan(context.Background(), token, ActorContext{EmployeeID: employeeID}); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestScanUnknownToken(t *testing.T) {
	f := newFixture(t)
	for _, token := range []string{"", "   ", "does-not-exist"} {
		if _, err := f.checkin.Scan(context.Background(), token, ActorContext{EmployeeID: employeeID}); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("token %q: expected ErrTokenInvalid, got %v", token, err)
		}
	}
}

func TestScanUnknownActorLeavesTokenUnconsumed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.issue(t, domain.TokenPurposeAttendance)

	if _, err := f.checkin.Scan(ctx, token, ActorContext{EmployeeID: "no-such-employee"}); !errors.Is(err, ErrActorNotFound) {
		t.Fatalf("expected ErrActorNotFound, got %v", err)
	}
	stored, err := f.store.Tokens().GetByToken(ctx, token)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if stored.Consumed {
		t.Fatalf("token consumed by a failed transition")
	}

	if _, err := f.checkin.Scan(ctx, token, ActorContext{EmployeeID: employeeID}); err != nil {
		t.Fatalf("retry with valid actor: %v", err)
	}
}

func TestScanAlternatesClockInAndOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	want := []domain.Action{domain.ActionClockIn, domain.ActionClockOut, domain.ActionClockIn, domain.ActionClockOut}
	for i, action := range want {
		token := f.issue(t, domain.TokenPurposeAttendance)
		outcome, err := f.checkin.Scan(ctx, token, ActorContext{EmployeeID: employeeID})
		if err != nil {
			t.Fatalf("scan %d: %v", i, err)
		}
		if outcome.Action != action {
			t.Fatalf("scan %d: expected %s, got %s", i, action, outcome.Action)
		}
		if action == domain.ActionClockOut && outcome.TotalHours != 2 {
			t.Fatalf("scan %d: expected 2 total hours, got %v", i, outcome.TotalHours)
		}
		f.clock.Advance(2 * time.Hour)
	}

	records, err := f.store.Attendance().List(ctx, repository.AttendanceFilter{UserID: strPtr(employeeID)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for _, r := range records {
		if r.Open() {
			t.Fatalf("record %s left open", r.ID)
		}
	}
}

func TestScanWithinDebounceIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.checkin.Scan(ctx, f.issue(t, domain.TokenPurposeAttendance), ActorContext{EmployeeID: employeeID}); err != nil {
		t.Fatalf("clock in: %v", err)
	}
	f.clock.Advance(10 * time.Second)
	token := f.issue(t, domain.TokenPurposeAttendance)
	if _, err := f.checkin.Scan(ctx, token, ActorContext{EmployeeID: employeeID}); !errors.Is(err, ErrRecordConflict) {
		t.Fatalf("expected ErrRecordConflict inside debounce window, got %v", err)
	}
	stored, _ := f.store.Tokens().GetByToken(ctx, token)
	if stored.Consumed {
		t.Fatalf("rejected scan consumed the token")
	}
}

func TestManualClockInRejectsOpenRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creds := ManualEntryInput{EmployeeID: employeeID, Password: password}

	first, err := f.checkin.ManualClockIn(ctx, creds)
	if err != nil {
		t.Fatalf("first clock in: %v", err)
	}
	if !first.Attendance.ManualFallback || !first.Attendance.FlaggedForReview || first.Attendance.AuditNotes == nil {
		t.Fatalf("manual record not flagged: %+v", first.Attendance)
	}

	f.clock.Advance(time.Hour)
	if _, err := f.checkin.ManualClockIn(ctx, creds); !errors.Is(err, ErrRecordConflict) {
		t.Fatalf("expected ErrRecordConflict, got %v", err)
	}
	// the QR path enforces the same invariant
	open, err := f.store.Attendance().GetOpenByUser(ctx, employeeID)
	if err != nil || open.ID != first.Attendance.ID {
		t.Fatalf("expected original record to stay open: %+v, %v", open, err)
	}
}

func TestManualClockOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creds := ManualEntryInput{EmployeeID: employeeID, Password: password}

	if _, err := f.checkin.ManualClockOut(ctx, creds); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}

	if _, err := f.checkin.Scan(ctx, f.issue(t, domain.TokenPurposeAttendance), ActorContext{EmployeeID: employeeID}); err != nil {
		t.Fatalf("qr clock in: %v", err)
	}
	f.clock.Advance(8 * time.Hour)
	outcome, err := f.checkin.ManualClockOut(ctx, creds)
	if err != nil {
		t.Fatalf("manual clock out: %v", err)
	}
	if outcome.Action != domain.ActionClockOut || outcome.TotalHours != 8 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	record := outcome.Attendance
	if record.Method != domain.MethodQR || record.ClockOutMethod == nil || *record.ClockOutMethod != domain.MethodManual {
		t.Fatalf("unexpected methods: in=%s out=%v", record.Method, record.ClockOutMethod)
	}
	if !record.FlaggedForReview {
		t.Fatalf("manual clock-out not flagged")
	}
}

func TestManualEntryInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := []ManualEntryInput{
		{EmployeeID: employeeID, Password: "wrong"},
		{EmployeeID: "nobody", Password: password},
		{EmployeeID: employeeID},
		{Password: password},
	}
	for i, in := range cases {
		if _, err := f.checkin.ManualClockIn(ctx, in); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("case %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
}

func TestConcurrentScansOfSameToken(t *testing.T) {
	f := newFixture(t)
	token := f.issue(t, domain.TokenPurposeAttendance)

	actors := []string{employeeID, otherID}
	errs := make([]error, len(actors))
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, actor := range actors {
		wg.Add(1)
		go func(i int, actor string) {
			defer wg.Done()
			<-start
			_, errs[i] = f.checkin.Scan(context.Background(), token, ActorContext{EmployeeID: actor})
		}(i, actor)
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

func TestConcurrentClockInsForSameActor(t *testing.T) {
	f := newFixture(t)
	const attempts = 8
	tokens := make([]string, attempts)
	for i := range tokens {
		tokens[i] = f.issue(t, domain.TokenPurposeAttendance)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		actions []domain.Action
	)
	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			outcome, err := f.checkin.Scan(context.Background(), token, ActorContext{EmployeeID: employeeID})
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
	wg.Wait()

	if len(actions) != 1 || actions[0] != domain.ActionClockIn {
		t.Fatalf("expected exactly one clock_in, got %v", actions)
	}
}

func TestBiometricScan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.checkin.BiometricScan(ctx, domain.ScanResult{Success: false}); !errors.Is(err, ErrScannerFailed) {
		t.Fatalf("expected ErrScannerFailed, got %v", err)
	}
	if _, err := f.checkin.BiometricScan(ctx, domain.ScanResult{Success: true, CardID: "UNKNOWN"}); !errors.Is(err, ErrActorNotFound) {
		t.Fatalf("expected ErrActorNotFound, got %v", err)
	}

	outcome, err := f.checkin.BiometricScan(ctx, domain.ScanResult{Success: true, CardID: "CARD-1"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if outcome.Action != domain.ActionClockIn || outcome.Attendance.Method != domain.MethodBiometric || outcome.Attendance.UserID != employeeID {
		t.Fatalf("unexpected outcome: %+v", outcome.Attendance)
	}
	if outcome.Attendance.FlaggedForReview {
		t.Fatalf("biometric entry should not be flagged")
	}
}

func TestVisitorCheckInAndOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	details := VisitorDetails{FullName: "Vera Visitor", Contact: "Vera@Example.com ", HostEmployeeID: hostID, Purpose: "interview"}

	in, err := f.checkin.CheckInVisitor(ctx, details)
	if err != nil {
		t.Fatalf("check in: %v", err)
	}
	if in.Action != domain.ActionCheckIn || in.Visitor.Status != domain.VisitorCheckedIn || in.Visitor.Contact != "vera@example.com" {
		t.Fatalf("unexpected check-in: %+v", in.Visitor)
	}
	if _, err := f.checkin.CheckInVisitor(ctx, details); !errors.Is(err, ErrRecordConflict) {
		t.Fatalf("expected ErrRecordConflict for double check-in, got %v", err)
	}

	f.clock.Advance(45 * time.Minute)
	out, err := f.checkin.CheckOutVisitor(ctx, VisitorCheckoutInput{VisitorID: in.Visitor.ID})
	if err != nil {
		t.Fatalf("check out: %v", err)
	}
	if out.Visitor.Status != domain.VisitorCheckedOut || out.Visitor.CheckOutTime == nil {
		t.Fatalf("unexpected check-out: %+v", out.Visitor)
	}

	if _, err := f.checkin.CheckOutVisitor(ctx, VisitorCheckoutInput{VisitorID: in.Visitor.ID}); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	if _, err := f.checkin.CheckOutVisitor(ctx, VisitorCheckoutInput{Contact: "vera@example.com"}); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession by contact, got %v", err)
	}
}

func TestVisitorScanToggles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := ActorContext{Visitor: &VisitorDetails{FullName: "Vera", Contact: "+1 555 0100", HostEmployeeID: hostID, Purpose: "delivery"}}

	in, err := f.checkin.Scan(ctx, f.issue(t, domain.TokenPurposeVisitor), actor)
	if err != nil {
		t.Fatalf("check in: %v", err)
	}
	if in.Action != domain.ActionCheckIn {
		t.Fatalf("expected check_in, got %s", in.Action)
	}

	out, err := f.checkin.Scan(ctx, f.issue(t, domain.TokenPurposeVisitor), ActorContext{Visitor: &VisitorDetails{Contact: "+1 555 0100"}})
	if err != nil {
		t.Fatalf("check out: %v", err)
	}
	if out.Action != domain.ActionCheckOut || out.Visitor.ID != in.Visitor.ID {
		t.Fatalf("unexpected check-out: %+v", out)
	}
}

func TestVisitorCheckInValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.checkin.CheckInVisitor(ctx, VisitorDetails{FullName: "Vera", Contact: "v@example.com"}); err == nil {
		t.Fatalf("expected validation error without host and purpose")
	}
	_, err := f.checkin.CheckInVisitor(ctx, VisitorDetails{FullName: "Vera", Contact: "v@example.com", HostEmployeeID: "ghost", Purpose: "x"})
	if !errors.Is(err, ErrActorNotFound) {
		t.Fatalf("expected ErrActorNotFound for unknown host, got %v", err)
	}
}

func TestTransitionsPublishEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.checkin.Scan(ctx, f.issue(t, domain.TokenPurposeAttendance), ActorContext{EmployeeID: employeeID}); err != nil {
		t.Fatalf("clock in: %v", err)
	}
	f.clock.Advance(time.Hour)
	if _, err := f.checkin.ManualClockOut(ctx, ManualEntryInput{EmployeeID: employeeID, Password: password}); err != nil {
		t.Fatalf("clock out: %v", err)
	}
	if _, err := f.checkin.CheckInVisitor(ctx, VisitorDetails{FullName: "V", Contact: "v", HostEmployeeID: hostID, Purpose: "p"}); err != nil {
		t.Fatalf("visitor: %v", err)
	}

	got := f.dispatcher.Types()
	want := []events.EventType{events.EventClockIn, events.EventClockOut, events.EventVisitorCheckedIn}
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestFailedTransitionPublishesNothing(t *testing.T) {
	f := newFixture(t)
	if _, err := f.checkin.ManualClockOut(context.Background(), ManualEntryInput{EmployeeID: employeeID, Password: password}); err == nil {
		t.Fatalf("expected error")
	}
	if got := f.dispatcher.Types(); len(got) != 0 {
		t.Fatalf("expected no events, got %v", got)
	}
}

func TestAttendanceStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.checkin.AttendanceStatus(ctx, employeeID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if view.ClockedIn || view.Status != domain.AttendanceAbsent {
		t.Fatalf("expected absent, got %+v", view)
	}

	f.clock.Advance(30 * time.Minute) // 09:25, past grace
	if _, err := f.checkin.Scan(ctx, f.issue(t, domain.TokenPurposeAttendance), ActorContext{EmployeeID: employeeID}); err != nil {
		t.Fatalf("clock in: %v", err)
	}
	view, err = f.checkin.AttendanceStatus(ctx, employeeID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !view.ClockedIn || view.Status != domain.AttendanceLate || view.Current == nil {
		t.Fatalf("expected late and clocked in, got %+v", view)
	}

	f.clock.Advance(3 * time.Hour)
	if _, err := f.checkin.Scan(ctx, f.issue(t, domain.TokenPurposeAttendance), ActorContext{EmployeeID: employeeID}); err != nil {
		t.Fatalf("clock out: %v", err)
	}
	view, err = f.checkin.AttendanceStatus(ctx, employeeID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if view.ClockedIn || view.Current == nil {
		t.Fatalf("expected today's closed record, got %+v", view)
	}
}

func TestListFlagged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.checkin.Scan(ctx, f.issue(t, domain.TokenPurposeAttendance), ActorContext{EmployeeID: otherID}); err != nil {
		t.Fatalf("qr clock in: %v", err)
	}
	if _, err := f.checkin.ManualClockIn(ctx, ManualEntryInput{EmployeeID: employeeID, Password: password}); err != nil {
		t.Fatalf("manual clock in: %v", err)
	}

	flagged, err := f.checkin.ListFlagged(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list flagged: %v", err)
	}
	if len(flagged) != 1 || flagged[0].Record.UserID != employeeID {
		t.Fatalf("expected only the manual record, got %+v", flagged)
	}
}

func TestReviewAttendanceClearsFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in, err := f.checkin.ManualClockIn(ctx, ManualEntryInput{EmployeeID: employeeID, Password: password})
	if err != nil {
		t.Fatalf("manual clock in: %v", err)
	}
	recordID := in.Attendance.ID

	f.clock.Advance(time.Hour)
	view, err := f.checkin.ReviewAttendance(ctx, ReviewInput{RecordID: recordID, ReviewerID: hostID, Notes: " badge left at home "})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if view.Record.FlaggedForReview {
		t.Fatalf("record still flagged after review")
	}
	if view.Record.AuditNotes == nil ||
		!strings.HasPrefix(*view.Record.AuditNotes, manualAuditNote+" (clock-in); ") ||
		!strings.HasSuffix(*view.Record.AuditNotes, "reviewed by "+hostID+" at 2024-05-06T09:55:00Z: badge left at home") {
		t.Fatalf("unexpected audit notes: %v", view.Record.AuditNotes)
	}

	flagged, err := f.checkin.ListFlagged(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list flagged: %v", err)
	}
	if len(flagged) != 0 {
		t.Fatalf("expected empty review queue, got %d", len(flagged))
	}

	if _, err := f.checkin.ReviewAttendance(ctx, ReviewInput{RecordID: recordID, ReviewerID: hostID}); !errors.Is(err, ErrNotFlagged) {
		t.Fatalf("expected ErrNotFlagged on second review, got %v", err)
	}
	if _, err := f.checkin.ReviewAttendance(ctx, ReviewInput{RecordID: "missing", ReviewerID: hostID}); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}

	// the record stays open and can still be closed; a manual clock-out flags it again
	if _, err := f.checkin.ManualClockOut(ctx, ManualEntryInput{EmployeeID: employeeID, Password: password}); err != nil {
		t.Fatalf("manual clock out: %v", err)
	}
	flagged, _ = f.checkin.ListFlagged(ctx, 10, 0)
	if len(flagged) != 1 || flagged[0].Record.ID != recordID {
		t.Fatalf("expected record back in the queue, got %+v", flagged)
	}
}

func TestListVisitorLogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.checkin.CheckInVisitor(ctx, VisitorDetails{FullName: "Vera", Contact: "vera@example.com", HostEmployeeID: hostID, Purpose: "interview"})
	if err != nil {
		t.Fatalf("check in vera: %v", err)
	}
	f.clock.Advance(10 * time.Minute)
	if _, err := f.checkin.CheckOutVisitor(ctx, VisitorCheckoutInput{VisitorID: first.Visitor.ID}); err != nil {
		t.Fatalf("check out vera: %v", err)
	}
	f.clock.Advance(10 * time.Minute)
	if _, err := f.checkin.CheckInVisitor(ctx, VisitorDetails{FullName: "Walt", Contact: "walt@example.com", HostEmployeeID: otherID, Purpose: "delivery"}); err != nil {
		t.Fatalf("check in walt: %v", err)
	}

	all, err := f.checkin.ListVisitorLogs(ctx, repository.VisitorFilter{})
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if len(all) != 2 || all[0].FullName != "Walt" || all[1].FullName != "Vera" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	active, err := f.checkin.ListActiveVisitors(ctx, 10, 0)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active visitor, got %d", len(active))
	}

	checkedOut := domain.VisitorCheckedOut
	past, err := f.checkin.ListVisitorLogs(ctx, repository.VisitorFilter{Status: &checkedOut})
	if err != nil {
		t.Fatalf("logs by status: %v", err)
	}
	if len(past) != 1 || past[0].ID != first.Visitor.ID || past[0].CheckOutTime == nil {
		t.Fatalf("expected vera's closed visit, got %+v", past)
	}

	byHost, _ := f.checkin.ListVisitorLogs(ctx, repository.VisitorFilter{HostEmployeeID: strPtr(otherID)})
	if len(byHost) != 1 || byHost[0].FullName != "Walt" {
		t.Fatalf("expected walt for host filter, got %+v", byHost)
	}

	paged, _ := f.checkin.ListVisitorLogs(ctx, repository.VisitorFilter{Limit: 1, Offset: 1})
	if len(paged) != 1 || paged[0].FullName != "Vera" {
		t.Fatalf("expected second page to hold vera, got %+v", paged)
	}
}

func TestPublishFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zap.WarnLevel)
	svc := NewCheckinService(CheckinDependencies{
		Store:      f.store,
		Dispatcher: failingDispatcher{},
		Policy:     DefaultAttendancePolicy(),
		Clock:      f.clock.Now,
		Logger:     zap.New(core),
	})

	if _, err := svc.Scan(context.Background(), f.issue(t, domain.TokenPurposeAttendance), ActorContext{EmployeeID: employeeID}); err != nil {
		t.Fatalf("transition must not fail on publish error: %v", err)
	}
	entries := logs.FilterMessage("publish event failed").All()
	if len(entries) != 1 || entries[0].ContextMap()["event"] != string(events.EventClockIn) {
		t.Fatalf("expected one publish warning, got %+v", logs.All())
	}
}

func strPtr(s string) *string { return &s }
