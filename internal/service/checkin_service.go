package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/checkin-service/internal/auth"
	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/events"
	"github.com/spec-kit/checkin-service/internal/observability"
	"github.com/spec-kit/checkin-service/internal/repository"
	apperrors "github.com/spec-kit/checkin-service/pkg/util/errorutil"
)

// direction selects which attendance transitions an entry point may perform.
type direction int

const (
	toggle direction = iota
	clockInOnly
	clockOutOnly
)

const manualAuditNote = "manual entry: credentials used instead of token"

// SessionToucher records activity in the session registry.
type SessionToucher interface {
	Touch(ctx context.Context, in TouchInput) (*domain.Session, error)
}

// CheckinService is the check-in/check-out engine. Every entry point runs the
// same transition code inside one store transaction.
type CheckinService struct {
	store       repository.Store
	dispatcher  events.Dispatcher
	sessions    SessionToucher
	metrics     *observability.Metrics
	logger      *zap.Logger
	policy      AttendancePolicy
	scanTimeout time.Duration
	now         func() time.Time
}

// CheckinDependencies bundles collaborators for the engine.
type CheckinDependencies struct {
	Store       repository.Store
	Dispatcher  events.Dispatcher
	Sessions    SessionToucher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Policy      AttendancePolicy
	ScanTimeout time.Duration
	Clock       func() time.Time
}

// VisitorDetails carries what a visitor supplies at the kiosk or desk.
type VisitorDetails struct {
	FullName       string
	Contact        string
	HostEmployeeID string
	Purpose        string
}

// ActorContext binds a scan to the employee or visitor presenting it.
type ActorContext struct {
	EmployeeID string
	SessionID  string
	UserAgent  string
	IPAddress  string
	Visitor    *VisitorDetails
}

// ManualEntryInput is the credential fallback used when a token cannot be scanned.
type ManualEntryInput struct {
	EmployeeID string
	Password   string
	UserAgent  string
	IPAddress  string
}

// VisitorCheckoutInput identifies the visit to close, by id or contact.
type VisitorCheckoutInput struct {
	VisitorID string
	Contact   string
}

// Outcome is the terminal result of a successful transition.
type Outcome struct {
	Action     domain.Action
	Attendance *domain.AttendanceRecord
	Visitor    *domain.VisitorRecord
	Status     domain.AttendanceStatus
	TotalHours float64
}

// AttendanceView pairs a record with its derived status.
type AttendanceView struct {
	Record domain.AttendanceRecord
	Status domain.AttendanceStatus
}

// StatusView describes an employee's attendance right now.
type StatusView struct {
	EmployeeID string
	ClockedIn  bool
	Status     domain.AttendanceStatus
	Current    *domain.AttendanceRecord
}

// NewCheckinService constructs the engine.
func NewCheckinService(deps CheckinDependencies) *CheckinService {
	timeout := deps.ScanTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	policy := deps.Policy
	if policy.Location == nil {
		policy = DefaultAttendancePolicy()
	}
	return &CheckinService{
		store:       deps.Store,
		dispatcher:  deps.Dispatcher,
		sessions:    deps.Sessions,
		metrics:     deps.Metrics,
		logger:      loggerOrNop(deps.Logger),
		policy:      policy,
		scanTimeout: timeout,
		now:         clockOrDefault(deps.Clock),
	}
}

// Scan redeems a kiosk token and applies the transition its purpose selects.
func (s *CheckinService) Scan(ctx context.Context, token string, actor ActorContext) (*Outcome, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		s.metrics.RecordTransition("qr", ErrTokenInvalid.Code)
		return nil, ErrTokenInvalid
	}
	now := s.now()

	var outcome *Outcome
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		qr, err := s.redeemToken(ctx, tx, token, now)
		if err != nil {
			return err
		}
		switch qr.Purpose {
		case domain.TokenPurposeAttendance:
			outcome, err = s.transitionAttendance(ctx, tx, actor.EmployeeID, domain.MethodQR, toggle, now, false)
		case domain.TokenPurposeVisitor:
			outcome, err = s.toggleVisitor(ctx, tx, actor.Visitor, now)
		default:
			err = ErrTokenInvalid
		}
		return err
	})
	return s.finish(ctx, "qr", outcome, err, actor.SessionID, actor.UserAgent, actor.IPAddress)
}

// ManualClockIn opens a record after verifying credentials.
func (s *CheckinService) ManualClockIn(ctx context.Context, in ManualEntryInput) (*Outcome, error) {
	return s.manual(ctx, in, clockInOnly)
}

// ManualClockOut closes the open record after verifying credentials.
func (s *CheckinService) ManualClockOut(ctx context.Context, in ManualEntryInput) (*Outcome, error) {
	return s.manual(ctx, in, clockOutOnly)
}

func (s *CheckinService) manual(ctx context.Context, in ManualEntryInput, dir direction) (*Outcome, error) {
	employee, err := s.verifyCredentials(ctx, in.EmployeeID, in.Password)
	if err != nil {
		s.metrics.RecordTransition("manual", resultCode(err))
		return nil, err
	}

	now := s.now()
	var outcome *Outcome
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		var txErr error
		outcome, txErr = s.transitionAttendance(ctx, tx, employee.ID, domain.MethodManual, dir, now, true)
		return txErr
	})
	return s.finish(ctx, "manual", outcome, err, "", in.UserAgent, in.IPAddress)
}

// BiometricScan resolves the employee from an external reader result and toggles like a QR scan.
func (s *CheckinService) BiometricScan(ctx context.Context, result domain.ScanResult) (*Outcome, error) {
	if !result.Success {
		s.metrics.RecordTransition("biometric", ErrScannerFailed.Code)
		return nil, ErrScannerFailed
	}
	cardID := strings.TrimSpace(result.CardID)
	if cardID == "" {
		s.metrics.RecordTransition("biometric", ErrActorNotFound.Code)
		return nil, ErrActorNotFound
	}

	now := s.now()
	var outcome *Outcome
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		employee, err := tx.Employees().GetByCardID(ctx, cardID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrActorNotFound
			}
			return err
		}
		outcome, err = s.transitionAttendance(ctx, tx, employee.ID, domain.MethodBiometric, toggle, now, false)
		return err
	})
	return s.finish(ctx, "biometric", outcome, err, "", "", "")
}

// CheckInVisitor registers a visitor at the desk. An already active visit is a conflict.
func (s *CheckinService) CheckInVisitor(ctx context.Context, details VisitorDetails) (*Outcome, error) {
	now := s.now()
	var outcome *Outcome
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		contact, err := s.lockVisitor(ctx, tx, &details)
		if err != nil {
			return err
		}
		if _, err := tx.Visitors().GetActiveByContact(ctx, contact); err == nil {
			return ErrRecordConflict.WithDetails(map[string]any{"contact": contact})
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		outcome, err = s.checkInVisitor(ctx, tx, details, now)
		return err
	})
	return s.finish(ctx, "visitor_desk", outcome, err, "", "", "")
}

// CheckOutVisitor closes an active visit. Closing one that is not active yields ErrNoActiveSession.
func (s *CheckinService) CheckOutVisitor(ctx context.Context, in VisitorCheckoutInput) (*Outcome, error) {
	if in.VisitorID == "" && strings.TrimSpace(in.Contact) == "" {
		return nil, validationError("visitor_id", "visitor_id or contact is required")
	}
	now := s.now()
	var outcome *Outcome
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var (
			visitor *domain.VisitorRecord
			err     error
		)
		if in.VisitorID != "" {
			visitor, err = tx.Visitors().GetByID(ctx, in.VisitorID)
		} else {
			visitor, err = tx.Visitors().GetActiveByContact(ctx, normalizeContact(in.Contact))
		}
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNoActiveSession
			}
			return err
		}
		if err := tx.Attendance().LockActor(ctx, visitorLockKey(visitor.Contact)); err != nil {
			return err
		}
		outcome, err = s.checkOutVisitor(ctx, tx, visitor, now)
		return err
	})
	return s.finish(ctx, "visitor_desk", outcome, err, "", "", "")
}

// AttendanceStatus reports whether employeeID is clocked in and today's derived status.
func (s *CheckinService) AttendanceStatus(ctx context.Context, employeeID string) (*StatusView, error) {
	now := s.now()
	view := &StatusView{EmployeeID: employeeID, Status: domain.AttendanceAbsent}

	open, err := s.store.Attendance().GetOpenByUser(ctx, employeeID)
	switch {
	case err == nil:
		view.ClockedIn = true
		view.Current = open
		view.Status = s.policy.Derive(open, now)
		return view, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	latest, err := s.store.Attendance().GetLatestByUser(ctx, employeeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return view, nil
		}
		return nil, err
	}
	if !latest.ClockInTime.Before(s.policy.DayStart(now)) {
		view.Current = latest
		view.Status = s.policy.Derive(latest, now)
	}
	return view, nil
}

// ListAttendance returns records matching filter with derived statuses.
func (s *CheckinService) ListAttendance(ctx context.Context, filter repository.AttendanceFilter) ([]AttendanceView, error) {
	records, err := s.store.Attendance().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]AttendanceView, 0, len(records))
	for i := range records {
		views = append(views, AttendanceView{Record: records[i], Status: s.policy.Derive(&records[i], now)})
	}
	return views, nil
}

// ListFlagged returns records awaiting HR review.
func (s *CheckinService) ListFlagged(ctx context.Context, limit, offset int) ([]AttendanceView, error) {
	flagged := true
	return s.ListAttendance(ctx, repository.AttendanceFilter{Flagged: &flagged, Limit: limit, Offset: offset})
}

// ReviewInput is an HR decision on a flagged record.
type ReviewInput struct {
	RecordID   string
	ReviewerID string
	Notes      string
}

// ReviewAttendance clears the review flag on a record and appends the reviewer's notes to its audit trail.
func (s *CheckinService) ReviewAttendance(ctx context.Context, in ReviewInput) (*AttendanceView, error) {
	now := s.now()
	var reviewed *domain.AttendanceRecord
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		record, err := tx.Attendance().GetByID(ctx, in.RecordID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRecordNotFound
			}
			return err
		}
		if !record.FlaggedForReview {
			return ErrNotFlagged
		}

		note := fmt.Sprintf("reviewed by %s at %s", in.ReviewerID, now.Format(time.RFC3339))
		if notes := strings.TrimSpace(in.Notes); notes != "" {
			note += ": " + notes
		}
		record.AuditNotes = appendNote(record.AuditNotes, note)
		if err := tx.Attendance().Review(ctx, record); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFlagged
			}
			return err
		}
		reviewed = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("attendance reviewed",
		zap.String("record_id", reviewed.ID),
		zap.String("user_id", reviewed.UserID),
		zap.String("reviewer_id", in.ReviewerID))
	return &AttendanceView{Record: *reviewed, Status: s.policy.Derive(reviewed, now)}, nil
}

// ListVisitorLogs returns past and present visits matching filter.
func (s *CheckinService) ListVisitorLogs(ctx context.Context, filter repository.VisitorFilter) ([]domain.VisitorRecord, error) {
	return s.store.Visitors().List(ctx, filter)
}

// ListActiveVisitors returns visitors currently on site.
func (s *CheckinService) ListActiveVisitors(ctx context.Context, limit, offset int) ([]domain.VisitorRecord, error) {
	return s.store.Visitors().ListActive(ctx, limit, offset)
}

// redeemToken validates and consumes token within tx. Lookups that exceed the scan
// timeout fail closed as an invalid token.
func (s *CheckinService) redeemToken(ctx context.Context, tx repository.Store, token string, now time.Time) (*domain.QRToken, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.scanTimeout)
	defer cancel()

	qr, err := tx.Tokens().GetByToken(lookupCtx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if qr.Expired(now) {
		return nil, ErrTokenExpired
	}
	if qr.Consumed {
		return nil, ErrTokenAlreadyUsed
	}
	consumed, err := tx.Tokens().Consume(lookupCtx, token, now)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if !consumed {
		return nil, ErrTokenAlreadyUsed
	}
	return qr, nil
}

// verifyCredentials runs outside the transaction so bcrypt does not hold a connection.
func (s *CheckinService) verifyCredentials(ctx context.Context, employeeID, password string) (*domain.Employee, error) {
	if strings.TrimSpace(employeeID) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	checkCtx, cancel := context.WithTimeout(ctx, s.scanTimeout)
	defer cancel()

	employee, err := s.store.Employees().GetByID(checkCtx, employeeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = auth.BurnCompare(password)
			return nil, ErrInvalidCredentials
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !employee.Active {
		_ = auth.BurnCompare(password)
		return nil, ErrInvalidCredentials
	}
	if err := auth.ComparePassword(employee.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if checkCtx.Err() != nil {
		return nil, ErrInvalidCredentials
	}
	return employee, nil
}

func (s *CheckinService) transitionAttendance(ctx context.Context, tx repository.Store, employeeID string, method domain.AttendanceMethod, dir direction, now time.Time, manual bool) (*Outcome, error) {
	if strings.TrimSpace(employeeID) == "" {
		return nil, ErrActorNotFound
	}
	employee, err := tx.Employees().GetByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrActorNotFound
		}
		return nil, err
	}
	if !employee.Active {
		return nil, ErrActorNotFound
	}

	if err := tx.Attendance().LockActor(ctx, employee.ID); err != nil {
		return nil, err
	}
	open, err := tx.Attendance().GetOpenByUser(ctx, employee.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if open == nil {
		if dir == clockOutOnly {
			return nil, ErrNoActiveSession
		}
		return s.clockIn(ctx, tx, employee.ID, method, now, manual)
	}

	switch dir {
	case clockInOnly:
		return nil, ErrRecordConflict.WithDetails(map[string]any{
			"record_id":     open.ID,
			"clock_in_time": open.ClockInTime,
		})
	case toggle:
		if s.policy.Debounce > 0 && now.Sub(open.ClockInTime) < s.policy.Debounce {
			return nil, ErrRecordConflict.WithDetails(map[string]any{
				"record_id":     open.ID,
				"clock_in_time": open.ClockInTime,
				"reason":        "already clocked in",
			})
		}
	}
	return s.clockOut(ctx, tx, open, method, now, manual)
}

func (s *CheckinService) clockIn(ctx context.Context, tx repository.Store, employeeID string, method domain.AttendanceMethod, now time.Time, manual bool) (*Outcome, error) {
	record := &domain.AttendanceRecord{
		ID:          uuid.NewString(),
		UserID:      employeeID,
		ClockInTime: now,
		Method:      method,
	}
	if manual {
		note := manualAuditNote + " (clock-in)"
		record.ManualFallback = true
		record.FlaggedForReview = true
		record.AuditNotes = &note
	}
	if err := tx.Attendance().Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrOpenRecordExists) {
			return nil, ErrRecordConflict
		}
		return nil, err
	}
	return &Outcome{
		Action:     domain.ActionClockIn,
		Attendance: record,
		Status:     s.policy.Derive(record, now),
	}, nil
}

func (s *CheckinService) clockOut(ctx context.Context, tx repository.Store, record *domain.AttendanceRecord, method domain.AttendanceMethod, now time.Time, manual bool) (*Outcome, error) {
	record.ClockOutTime = &now
	record.ClockOutMethod = &method
	if manual {
		record.ManualFallback = true
		record.FlaggedForReview = true
		record.AuditNotes = appendNote(record.AuditNotes, manualAuditNote+" (clock-out)")
	}
	if s.policy.MaxShift > 0 && now.Sub(record.ClockInTime) > s.policy.MaxShift {
		record.FlaggedForReview = true
		record.AuditNotes = appendNote(record.AuditNotes, fmt.Sprintf("shift exceeded %s", s.policy.MaxShift))
	}
	if err := tx.Attendance().Close(ctx, record); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRecordConflict
		}
		return nil, err
	}
	return &Outcome{
		Action:     domain.ActionClockOut,
		Attendance: record,
		Status:     s.policy.Derive(record, now),
		TotalHours: record.TotalHours(),
	}, nil
}

func (s *CheckinService) toggleVisitor(ctx context.Context, tx repository.Store, details *VisitorDetails, now time.Time) (*Outcome, error) {
	if details == nil {
		return nil, ErrActorNotFound
	}
	contact, err := s.lockVisitor(ctx, tx, details)
	if err != nil {
		return nil, err
	}
	active, err := tx.Visitors().GetActiveByContact(ctx, contact)
	if err == nil {
		return s.checkOutVisitor(ctx, tx, active, now)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return s.checkInVisitor(ctx, tx, *details, now)
}

// lockVisitor normalises the contact on details and serialises work on that visitor.
func (s *CheckinService) lockVisitor(ctx context.Context, tx repository.Store, details *VisitorDetails) (string, error) {
	contact := normalizeContact(details.Contact)
	if contact == "" {
		return "", validationError("contact", "is required")
	}
	details.Contact = contact
	if err := tx.Attendance().LockActor(ctx, visitorLockKey(contact)); err != nil {
		return "", err
	}
	return contact, nil
}

func (s *CheckinService) checkInVisitor(ctx context.Context, tx repository.Store, details VisitorDetails, now time.Time) (*Outcome, error) {
	missing := map[string]any{}
	if strings.TrimSpace(details.FullName) == "" {
		missing["full_name"] = "is required"
	}
	if strings.TrimSpace(details.HostEmployeeID) == "" {
		missing["host_employee_id"] = "is required"
	}
	if strings.TrimSpace(details.Purpose) == "" {
		missing["purpose"] = "is required"
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("visitor check-in requires host and purpose", missing)
	}

	host, err := tx.Employees().GetByID(ctx, details.HostEmployeeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrActorNotFound.WithDetails(map[string]any{"host_employee_id": details.HostEmployeeID})
		}
		return nil, err
	}

	visitor := &domain.VisitorRecord{
		ID:             uuid.NewString(),
		FullName:       strings.TrimSpace(details.FullName),
		Contact:        details.Contact,
		HostEmployeeID: host.ID,
		Purpose:        strings.TrimSpace(details.Purpose),
		CheckInTime:    now,
		Status:         domain.VisitorCheckedIn,
	}
	if err := tx.Visitors().Create(ctx, visitor); err != nil {
		if errors.Is(err, repository.ErrOpenRecordExists) {
			return nil, ErrRecordConflict
		}
		return nil, err
	}
	return &Outcome{Action: domain.ActionCheckIn, Visitor: visitor}, nil
}

func (s *CheckinService) checkOutVisitor(ctx context.Context, tx repository.Store, visitor *domain.VisitorRecord, now time.Time) (*Outcome, error) {
	if !visitor.Active() {
		return nil, ErrNoActiveSession
	}
	visitor.CheckOutTime = &now
	if err := tx.Visitors().Close(ctx, visitor); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, err
	}
	return &Outcome{Action: domain.ActionCheckOut, Visitor: visitor}, nil
}

// finish records the outcome and runs post-commit side effects. Side effects never
// change the result of a committed transition.
func (s *CheckinService) finish(ctx context.Context, entry string, outcome *Outcome, err error, sessionID, userAgent, ip string) (*Outcome, error) {
	if err != nil {
		s.metrics.RecordTransition(entry, resultCode(err))
		var domainErr *apperrors.DomainError
		if !errors.As(err, &domainErr) {
			s.logger.Error("check-in transition failed", zap.String("entry", entry), zap.Error(err))
		}
		return nil, err
	}
	s.metrics.RecordTransition(entry, string(outcome.Action))

	sideCtx := context.WithoutCancel(ctx)
	s.publish(sideCtx, outcome)
	if sessionID != "" && s.sessions != nil && outcome.Attendance != nil {
		if _, err := s.sessions.Touch(sideCtx, TouchInput{
			SessionID: sessionID,
			UserID:    outcome.Attendance.UserID,
			UserAgent: userAgent,
			IPAddress: ip,
		}); err != nil {
			s.logger.Warn("session touch after transition failed",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
	}
	return outcome, nil
}

func (s *CheckinService) publish(ctx context.Context, outcome *Outcome) {
	if s.dispatcher == nil {
		return
	}
	now := s.now()
	var event events.Event
	switch {
	case outcome.Attendance != nil:
		record := outcome.Attendance
		eventType := events.EventClockIn
		method := record.Method
		if outcome.Action == domain.ActionClockOut {
			eventType = events.EventClockOut
			if record.ClockOutMethod != nil {
				method = *record.ClockOutMethod
			}
		}
		event = events.New(eventType, record.UserID, now, events.AttendancePayload{
			RecordID:       record.ID,
			Method:         method,
			ClockInTime:    record.ClockInTime,
			ClockOutTime:   record.ClockOutTime,
			TotalHours:     outcome.TotalHours,
			ManualFallback: record.ManualFallback,
		})
	case outcome.Visitor != nil:
		visitor := outcome.Visitor
		eventType := events.EventVisitorCheckedIn
		if outcome.Action == domain.ActionCheckOut {
			eventType = events.EventVisitorCheckedOut
		}
		event = events.New(eventType, visitor.HostEmployeeID, now, events.VisitorPayload{
			VisitorID:      visitor.ID,
			FullName:       visitor.FullName,
			HostEmployeeID: visitor.HostEmployeeID,
			Purpose:        visitor.Purpose,
		})
	default:
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed",
			zap.String("event", string(event.Type)),
			zap.Error(err))
	}
}

func resultCode(err error) string {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "INTERNAL_ERROR"
}

func normalizeContact(contact string) string {
	return strings.ToLower(strings.TrimSpace(contact))
}

func visitorLockKey(contact string) string {
	return "visitor:" + contact
}

func appendNote(existing *string, note string) *string {
	if existing == nil || *existing == "" {
		return &note
	}
	joined := *existing + "; " + note
	return &joined
}
