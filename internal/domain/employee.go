package domain

import "time"

// EmployeeRole enumerates access levels.
type EmployeeRole string

const (
	RoleEmployee EmployeeRole = "EMPLOYEE"
	RoleSecurity EmployeeRole = "SECURITY"
	RoleKiosk    EmployeeRole = "KIOSK"
	RoleHR       EmployeeRole = "HR"
	RoleAdmin    EmployeeRole = "ADMIN"
)

// Employee is an actor that can clock in and host visitors.
type Employee struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         EmployeeRole
	CardID       *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
