// Package directory manages the tenant's people records: employees who log in
// to the staff portal and clients who access the client portal.
package directory

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrUnauthorized signals a missing or foreign tenant scope.
	ErrUnauthorized = errors.New("directory: unauthorized")
	// ErrNotFound signals the person does not exist within the tenant.
	ErrNotFound = errors.New("directory: not found")
	// ErrDuplicateEmail signals the email is already registered in the
	// directory.
	ErrDuplicateEmail = errors.New("directory: email already in use")
	// ErrInvalidInput signals a rejected field value.
	ErrInvalidInput = errors.New("directory: invalid input")
)

// Employee is a staff member of the tenant.
type Employee struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    uuid.UUID       `json:"-"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone,omitempty"`
	Designation string          `json:"designation,omitempty"`
	JoiningDate *time.Time      `json:"joining_date,omitempty"`
	Salary      decimal.Decimal `json:"salary"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Client is an external customer with optional portal access.
type Client struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"-"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	Address     string    `json:"address,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// EmployeeInput carries the writable employee fields.
type EmployeeInput struct {
	Name        string
	Email       string
	Phone       string
	Designation string
	JoiningDate *time.Time
	Salary      decimal.Decimal
	Password    string
}

// ClientInput carries the writable client fields.
type ClientInput struct {
	Name        string
	Email       string
	Phone       string
	CompanyName string
	Address     string
	Password    string
}
