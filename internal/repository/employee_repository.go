package repository

import (
	"context"

	"github.com/spec-kit/checkin-service/internal/domain"
)

// EmployeeRepository reads employees. Provisioning happens outside this service.
type EmployeeRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Employee, error)
	GetByEmail(ctx context.Context, email string) (*domain.Employee, error)
	GetByCardID(ctx context.Context, cardID string) (*domain.Employee, error)
}

type employeeRepository struct {
	db DBTX
}

const employeeQuery = `
        SELECT id, name, email, password_hash, role, card_id, active, created_at, updated_at
        FROM employees`

func (r *employeeRepository) GetByID(ctx context.Context, id string) (*domain.Employee, error) {
	return r.getOne(ctx, employeeQuery+` WHERE id=$1`, id)
}

func (r *employeeRepository) GetByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	return r.getOne(ctx, employeeQuery+` WHERE lower(email)=lower($1)`, email)
}

func (r *employeeRepository) GetByCardID(ctx context.Context, cardID string) (*domain.Employee, error) {
	return r.getOne(ctx, employeeQuery+` WHERE card_id=$1`, cardID)
}

func (r *employeeRepository) getOne(ctx context.Context, query string, arg string) (*domain.Employee, error) {
	var employee domain.Employee
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&employee.ID,
		&employee.Name,
		&employee.Email,
		&employee.PasswordHash,
		&employee.Role,
		&employee.CardID,
		&employee.Active,
		&employee.CreatedAt,
		&employee.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &employee, nil
}
