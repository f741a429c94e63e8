package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/checkin-service/internal/domain"
)

// AttendanceRepository persists clock-in/clock-out records.
type AttendanceRepository interface {
	// LockActor serialises transitions for one actor until the surrounding transaction ends.
	LockActor(ctx context.Context, key string) error
	GetOpenByUser(ctx context.Context, userID string) (*domain.AttendanceRecord, error)
	GetLatestByUser(ctx context.Context, userID string) (*domain.AttendanceRecord, error)
	Create(ctx context.Context, record *domain.AttendanceRecord) error
	// Close sets the clock-out fields on a still-open record; ErrNotFound when it is already closed.
	Close(ctx context.Context, record *domain.AttendanceRecord) error
	// Review clears the review flag and stores record.AuditNotes; ErrNotFound when the record is not flagged.
	Review(ctx context.Context, record *domain.AttendanceRecord) error
	GetByID(ctx context.Context, id string) (*domain.AttendanceRecord, error)
	List(ctx context.Context, filter AttendanceFilter) ([]domain.AttendanceRecord, error)
}

type attendanceRepository struct {
	db DBTX
}

const attendanceColumns = `id, user_id, clock_in_time, clock_out_time, clock_in_method, clock_out_method,
        manual_fallback, flagged_for_review, audit_notes, created_at`

func (r *attendanceRepository) LockActor(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key)
	return err
}

func (r *attendanceRepository) GetOpenByUser(ctx context.Context, userID string) (*domain.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + `
        FROM attendance_records WHERE user_id=$1 AND clock_out_time IS NULL`

	record, err := scanAttendance(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return record, nil
}

func (r *attendanceRepository) GetLatestByUser(ctx context.Context, userID string) (*domain.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + `
        FROM attendance_records WHERE user_id=$1
        ORDER BY clock_in_time DESC LIMIT 1`

	record, err := scanAttendance(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return record, nil
}

func (r *attendanceRepository) Create(ctx context.Context, record *domain.AttendanceRecord) error {
	const query = `
        INSERT INTO attendance_records (id, user_id, clock_in_time, clock_in_method, manual_fallback, flagged_for_review, audit_notes)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		record.ID,
		record.UserID,
		record.ClockInTime,
		record.Method,
		record.ManualFallback,
		record.FlaggedForReview,
		record.AuditNotes,
	).Scan(&record.CreatedAt)
	if isUniqueViolation(err) {
		return ErrOpenRecordExists
	}
	return err
}

func (r *attendanceRepository) Close(ctx context.Context, record *domain.AttendanceRecord) error {
	const query = `
        UPDATE attendance_records
        SET clock_out_time=$1, clock_out_method=$2, manual_fallback=$3, flagged_for_review=$4, audit_notes=$5
        WHERE id=$6 AND clock_out_time IS NULL`

	cmd, err := r.db.Exec(ctx, query,
		record.ClockOutTime,
		record.ClockOutMethod,
		record.ManualFallback,
		record.FlaggedForReview,
		record.AuditNotes,
		record.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *attendanceRepository) Review(ctx context.Context, record *domain.AttendanceRecord) error {
	const query = `
        UPDATE attendance_records SET flagged_for_review=FALSE, audit_notes=$1
        WHERE id=$2 AND flagged_for_review=TRUE`

	cmd, err := r.db.Exec(ctx, query, record.AuditNotes, record.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	record.FlaggedForReview = false
	return nil
}

func (r *attendanceRepository) GetByID(ctx context.Context, id string) (*domain.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE id=$1`

	record, err := scanAttendance(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return record, nil
}

func (r *attendanceRepository) List(ctx context.Context, filter AttendanceFilter) ([]domain.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records`
	args := []any{}
	clauses := []string{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("clock_in_time >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("clock_in_time < $%d", len(args)))
	}
	if filter.Flagged != nil {
		args = append(args, *filter.Flagged)
		clauses = append(clauses, fmt.Sprintf("flagged_for_review=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	limit, offset := clampPage(filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY clock_in_time DESC LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AttendanceRecord
	for rows.Next() {
		record, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *record)
	}
	return result, rows.Err()
}

func scanAttendance(row pgx.Row) (*domain.AttendanceRecord, error) {
	var (
		record   domain.AttendanceRecord
		outAt    *time.Time
		outMeth  *string
		auditLog *string
	)
	if err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.ClockInTime,
		&outAt,
		&record.Method,
		&outMeth,
		&record.ManualFallback,
		&record.FlaggedForReview,
		&auditLog,
		&record.CreatedAt,
	); err != nil {
		return nil, err
	}
	record.ClockOutTime = outAt
	record.AuditNotes = auditLog
	if outMeth != nil {
		m := domain.AttendanceMethod(*outMeth)
		record.ClockOutMethod = &m
	}
	return &record, nil
}
