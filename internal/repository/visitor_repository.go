package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/checkin-service/internal/domain"
)

// VisitorRepository persists visitor check-ins.
type VisitorRepository interface {
	Create(ctx context.Context, visitor *domain.VisitorRecord) error
	GetByID(ctx context.Context, id string) (*domain.VisitorRecord, error)
	GetActiveByContact(ctx context.Context, contact string) (*domain.VisitorRecord, error)
	// Close moves a CHECKED_IN visit to CHECKED_OUT; ErrNotFound when it is not active.
	Close(ctx context.Context, visitor *domain.VisitorRecord) error
	ListActive(ctx context.Context, limit, offset int) ([]domain.VisitorRecord, error)
	// List returns the visit log, newest check-in first.
	List(ctx context.Context, filter VisitorFilter) ([]domain.VisitorRecord, error)
}

// VisitorFilter narrows the visit log.
type VisitorFilter struct {
	Status         *domain.VisitorStatus
	HostEmployeeID *string
	From           *time.Time
	To             *time.Time
	Limit          int
	Offset         int
}

type visitorRepository struct {
	db DBTX
}

const visitorColumns = `id, full_name, contact, host_employee_id, purpose, check_in_time, check_out_time, status`

func (r *visitorRepository) Create(ctx context.Context, visitor *domain.VisitorRecord) error {
	const query = `
        INSERT INTO visitor_records (id, full_name, contact, host_employee_id, purpose, check_in_time, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err := r.db.Exec(ctx, query,
		visitor.ID,
		visitor.FullName,
		visitor.Contact,
		visitor.HostEmployeeID,
		visitor.Purpose,
		visitor.CheckInTime,
		visitor.Status,
	)
	if isUniqueViolation(err) {
		return ErrOpenRecordExists
	}
	return err
}

func (r *visitorRepository) GetByID(ctx context.Context, id string) (*domain.VisitorRecord, error) {
	query := `SELECT ` + visitorColumns + ` FROM visitor_records WHERE id=$1`

	visitor, err := scanVisitor(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return visitor, nil
}

func (r *visitorRepository) GetActiveByContact(ctx context.Context, contact string) (*domain.VisitorRecord, error) {
	query := `SELECT ` + visitorColumns + `
        FROM visitor_records WHERE contact=$1 AND status='CHECKED_IN'`

	visitor, err := scanVisitor(r.db.QueryRow(ctx, query, contact))
	if err != nil {
		return nil, notFound(err)
	}
	return visitor, nil
}

func (r *visitorRepository) Close(ctx context.Context, visitor *domain.VisitorRecord) error {
	const query = `
        UPDATE visitor_records SET status='CHECKED_OUT', check_out_time=$1
        WHERE id=$2 AND status='CHECKED_IN'`

	cmd, err := r.db.Exec(ctx, query, visitor.CheckOutTime, visitor.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	visitor.Status = domain.VisitorCheckedOut
	return nil
}

func (r *visitorRepository) ListActive(ctx context.Context, limit, offset int) ([]domain.VisitorRecord, error) {
	limit, offset = clampPage(limit, offset)
	query := `SELECT ` + visitorColumns + `
        FROM visitor_records WHERE status='CHECKED_IN'
        ORDER BY check_in_time DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.VisitorRecord
	for rows.Next() {
		visitor, err := scanVisitor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *visitor)
	}
	return result, rows.Err()
}

func (r *visitorRepository) List(ctx context.Context, filter VisitorFilter) ([]domain.VisitorRecord, error) {
	query := `SELECT ` + visitorColumns + ` FROM visitor_records`
	args := []any{}
	clauses := []string{}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.HostEmployeeID != nil {
		args = append(args, *filter.HostEmployeeID)
		clauses = append(clauses, fmt.Sprintf("host_employee_id=$%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("check_in_time >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("check_in_time < $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	limit, offset := clampPage(filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY check_in_time DESC LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.VisitorRecord
	for rows.Next() {
		visitor, err := scanVisitor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *visitor)
	}
	return result, rows.Err()
}

func scanVisitor(row pgx.Row) (*domain.VisitorRecord, error) {
	var visitor domain.VisitorRecord
	if err := row.Scan(
		&visitor.ID,
		&visitor.FullName,
		&visitor.Contact,
		&visitor.HostEmployeeID,
		&visitor.Purpose,
		&visitor.CheckInTime,
		&visitor.CheckOutTime,
		&visitor.Status,
	); err != nil {
		return nil, err
	}
	return &visitor, nil
}
