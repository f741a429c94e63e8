// Package memory provides single-process implementations of the repository
// interfaces. Transactions are serialised on one mutex, which is enough for a
// single instance; multi-instance deployments must use Postgres and Redis.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/repository"
)

type state struct {
	tokens     map[string]domain.QRToken
	attendance map[string]domain.AttendanceRecord
	visitors   map[string]domain.VisitorRecord
	employees  map[string]domain.Employee
}

func newState() *state {
	return &state{
		tokens:     make(map[string]domain.QRToken),
		attendance: make(map[string]domain.AttendanceRecord),
		visitors:   make(map[string]domain.VisitorRecord),
		employees:  make(map[string]domain.Employee),
	}
}

func (s *state) clone() *state {
	cp := newState()
	for k, v := range s.tokens {
		cp.tokens[k] = v
	}
	for k, v := range s.attendance {
		cp.attendance[k] = v
	}
	for k, v := range s.visitors {
		cp.visitors[k] = v
	}
	for k, v := range s.employees {
		cp.employees[k] = v
	}
	return cp
}

// Store is an in-memory repository.Store.
type Store struct {
	mu   *sync.Mutex
	root *Store
	data *state
	inTx bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	s := &Store{mu: &sync.Mutex{}, data: newState()}
	s.root = s
	return s
}

// SeedEmployee inserts or replaces an employee.
func (s *Store) SeedEmployee(e domain.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
		e.UpdatedAt = e.CreatedAt
	}
	s.root.data.employees[e.ID] = e
}

func (s *Store) Tokens() repository.TokenRepository          { return &tokenRepo{s} }
func (s *Store) Attendance() repository.AttendanceRepository { return &attendanceRepo{s} }
func (s *Store) Visitors() repository.VisitorRepository      { return &visitorRepo{s} }
func (s *Store) Employees() repository.EmployeeRepository    { return &employeeRepo{s} }

// WithTx runs fn on a snapshot and publishes it only when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &Store{mu: s.mu, root: s.root, data: s.root.data.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	s.root.data = tx.data
	return nil
}

// view runs f with the store state, taking the lock outside a transaction.
func (s *Store) view(f func(*state) error) error {
	if s.inTx {
		return f(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return f(s.root.data)
}

type tokenRepo struct{ s *Store }

func (r *tokenRepo) Create(ctx context.Context, token *domain.QRToken) error {
	return r.s.view(func(st *state) error {
		st.tokens[token.Token] = *token
		return nil
	})
}

func (r *tokenRepo) GetByToken(ctx context.Context, token string) (*domain.QRToken, error) {
	var out *domain.QRToken
	err := r.s.view(func(st *state) error {
		t, ok := st.tokens[token]
		if !ok {
			return repository.ErrNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (r *tokenRepo) Consume(ctx context.Context, token string, at time.Time) (bool, error) {
	var ok bool
	err := r.s.view(func(st *state) error {
		t, found := st.tokens[token]
		if !found || t.Consumed {
			return nil
		}
		t.Consumed = true
		t.ConsumedAt = &at
		st.tokens[token] = t
		ok = true
		return nil
	})
	return ok, err
}

func (r *tokenRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.s.view(func(st *state) error {
		for k, t := range st.tokens {
			if t.ExpiresAt.Before(cutoff) {
				delete(st.tokens, k)
				n++
			}
		}
		return nil
	})
	return n, err
}

type attendanceRepo struct{ s *Store }

func (r *attendanceRepo) LockActor(ctx context.Context, key string) error { return nil }

func (r *attendanceRepo) GetOpenByUser(ctx context.Context, userID string) (*domain.AttendanceRecord, error) {
	var out *domain.AttendanceRecord
	err := r.s.view(func(st *state) error {
		for _, rec := range st.attendance {
			if rec.UserID == userID && rec.Open() {
				rec := rec
				out = &rec
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *attendanceRepo) GetLatestByUser(ctx context.Context, userID string) (*domain.AttendanceRecord, error) {
	var out *domain.AttendanceRecord
	err := r.s.view(func(st *state) error {
		for _, rec := range st.attendance {
			if rec.UserID != userID {
				continue
			}
			if out == nil || rec.ClockInTime.After(out.ClockInTime) {
				rec := rec
				out = &rec
			}
		}
		if out == nil {
			return repository.ErrNotFound
		}
		return nil
	})
	return out, err
}

func (r *attendanceRepo) Create(ctx context.Context, record *domain.AttendanceRecord) error {
	return r.s.view(func(st *state) error {
		for _, rec := range st.attendance {
			if rec.UserID == record.UserID && rec.Open() {
				return repository.ErrOpenRecordExists
			}
		}
		record.CreatedAt = time.Now().UTC()
		st.attendance[record.ID] = *record
		return nil
	})
}

func (r *attendanceRepo) Close(ctx context.Context, record *domain.AttendanceRecord) error {
	return r.s.view(func(st *state) error {
		rec, ok := st.attendance[record.ID]
		if !ok || !rec.Open() {
			return repository.ErrNotFound
		}
		rec.ClockOutTime = record.ClockOutTime
		rec.ClockOutMethod = record.ClockOutMethod
		rec.ManualFallback = record.ManualFallback
		rec.FlaggedForReview = record.FlaggedForReview
		rec.AuditNotes = record.AuditNotes
		st.attendance[record.ID] = rec
		return nil
	})
}

func (r *attendanceRepo) Review(ctx context.Context, record *domain.AttendanceRecord) error {
	return r.s.view(func(st *state) error {
		rec, ok := st.attendance[record.ID]
		if !ok || !rec.FlaggedForReview {
			return repository.ErrNotFound
		}
		rec.FlaggedForReview = false
		rec.AuditNotes = record.AuditNotes
		st.attendance[record.ID] = rec
		record.FlaggedForReview = false
		return nil
	})
}

func (r *attendanceRepo) GetByID(ctx context.Context, id string) (*domain.AttendanceRecord, error) {
	var out *domain.AttendanceRecord
	err := r.s.view(func(st *state) error {
		rec, ok := st.attendance[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &rec
		return nil
	})
	return out, err
}

func (r *attendanceRepo) List(ctx context.Context, filter repository.AttendanceFilter) ([]domain.AttendanceRecord, error) {
	var out []domain.AttendanceRecord
	err := r.s.view(func(st *state) error {
		for _, rec := range st.attendance {
			if filter.UserID != nil && rec.UserID != *filter.UserID {
				continue
			}
			if filter.From != nil && rec.ClockInTime.Before(*filter.From) {
				continue
			}
			if filter.To != nil && !rec.ClockInTime.Before(*filter.To) {
				continue
			}
			if filter.Flagged != nil && rec.FlaggedForReview != *filter.Flagged {
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClockInTime.After(out[j].ClockInTime) })
	return page(out, filter.Limit, filter.Offset), nil
}

type visitorRepo struct{ s *Store }

func (r *visitorRepo) Create(ctx context.Context, visitor *domain.VisitorRecord) error {
	return r.s.view(func(st *state) error {
		for _, v := range st.visitors {
			if v.Active() && strings.EqualFold(v.Contact, visitor.Contact) {
				return repository.ErrOpenRecordExists
			}
		}
		st.visitors[visitor.ID] = *visitor
		return nil
	})
}

func (r *visitorRepo) GetByID(ctx context.Context, id string) (*domain.VisitorRecord, error) {
	var out *domain.VisitorRecord
	err := r.s.view(func(st *state) error {
		v, ok := st.visitors[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &v
		return nil
	})
	return out, err
}

func (r *visitorRepo) GetActiveByContact(ctx context.Context, contact string) (*domain.VisitorRecord, error) {
	var out *domain.VisitorRecord
	err := r.s.view(func(st *state) error {
		for _, v := range st.visitors {
			if v.Active() && strings.EqualFold(v.Contact, contact) {
				v := v
				out = &v
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *visitorRepo) Close(ctx context.Context, visitor *domain.VisitorRecord) error {
	return r.s.view(func(st *state) error {
		v, ok := st.visitors[visitor.ID]
		if !ok || !v.Active() {
			return repository.ErrNotFound
		}
		v.Status = domain.VisitorCheckedOut
		v.CheckOutTime = visitor.CheckOutTime
		st.visitors[visitor.ID] = v
		visitor.Status = domain.VisitorCheckedOut
		return nil
	})
}

func (r *visitorRepo) ListActive(ctx context.Context, limit, offset int) ([]domain.VisitorRecord, error) {
	var out []domain.VisitorRecord
	err := r.s.view(func(st *state) error {
		for _, v := range st.visitors {
			if v.Active() {
				out = append(out, v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckInTime.After(out[j].CheckInTime) })
	return page(out, limit, offset), nil
}

func (r *visitorRepo) List(ctx context.Context, filter repository.VisitorFilter) ([]domain.VisitorRecord, error) {
	var out []domain.VisitorRecord
	err := r.s.view(func(st *state) error {
		for _, v := range st.visitors {
			if filter.Status != nil && v.Status != *filter.Status {
				continue
			}
			if filter.HostEmployeeID != nil && v.HostEmployeeID != *filter.HostEmployeeID {
				continue
			}
			if filter.From != nil && v.CheckInTime.Before(*filter.From) {
				continue
			}
			if filter.To != nil && !v.CheckInTime.Before(*filter.To) {
				continue
			}
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckInTime.After(out[j].CheckInTime) })
	return page(out, filter.Limit, filter.Offset), nil
}

type employeeRepo struct{ s *Store }

func (r *employeeRepo) GetByID(ctx context.Context, id string) (*domain.Employee, error) {
	return r.find(func(e domain.Employee) bool { return e.ID == id })
}

func (r *employeeRepo) GetByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	return r.find(func(e domain.Employee) bool { return strings.EqualFold(e.Email, email) })
}

func (r *employeeRepo) GetByCardID(ctx context.Context, cardID string) (*domain.Employee, error) {
	return r.find(func(e domain.Employee) bool { return e.CardID != nil && *e.CardID == cardID })
}

func (r *employeeRepo) find(match func(domain.Employee) bool) (*domain.Employee, error) {
	var out *domain.Employee
	err := r.s.view(func(st *state) error {
		for _, e := range st.employees {
			if match(e) {
				e := e
				out = &e
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

var _ repository.Store = (*Store)(nil)
