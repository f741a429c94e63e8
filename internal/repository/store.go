package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("repository: not found")
	// ErrOpenRecordExists is returned when an insert would create a second open record for an actor.
	ErrOpenRecordExists = errors.New("repository: open record exists")
)

// Store is the unit of work over the check-in tables.
type Store interface {
	Tokens() TokenRepository
	Attendance() AttendanceRepository
	Visitors() VisitorRepository
	Employees() EmployeeRepository
	// WithTx runs fn against a transactional Store. Any error returned by fn rolls everything back.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AttendanceFilter narrows attendance listings.
type AttendanceFilter struct {
	UserID  *string
	From    *time.Time
	To      *time.Time
	Flagged *bool
	Limit   int
	Offset  int
}

type pgStore struct {
	pool *pgxpool.Pool
	db   DBTX
}

// NewPostgresStore returns a Store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, db: pool}
}

func (s *pgStore) Tokens() TokenRepository          { return &tokenRepository{db: s.db} }
func (s *pgStore) Attendance() AttendanceRepository { return &attendanceRepository{db: s.db} }
func (s *pgStore) Visitors() VisitorRepository      { return &visitorRepository{db: s.db} }
func (s *pgStore) Employees() EmployeeRepository    { return &employeeRepository{db: s.db} }

func (s *pgStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if tx, ok := s.db.(pgx.Tx); ok {
		// already inside a transaction; nest with a savepoint
		return pgx.BeginFunc(ctx, tx, func(inner pgx.Tx) error {
			return fn(&pgStore{pool: s.pool, db: inner})
		})
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgStore{pool: s.pool, db: tx})
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// notFound maps a missing row, or an id that is not a valid uuid, to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
		return ErrNotFound
	}
	return err
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// compile-time check
var _ DBTX = (*pgxpool.Pool)(nil)
