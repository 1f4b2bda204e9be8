// Package projects tracks client engagements: the project record itself, its
// module/submodule breakdown, the employees assigned to it, and the daily
// work logs recorded against it.
package projects

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates the project lifecycle states.
type Status string

const (
	StatusPlanning   Status = "PLANNING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusOnHold     Status = "ON_HOLD"
	StatusCompleted  Status = "COMPLETED"
)

var (
	// ErrUnauthorized signals a missing or foreign tenant scope.
	ErrUnauthorized = errors.New("projects: unauthorized")
	// ErrNotFound signals the record does not exist within the tenant.
	ErrNotFound = errors.New("projects: not found")
	// ErrInvalidInput signals a rejected field value.
	ErrInvalidInput = errors.New("projects: invalid input")
	// ErrReorderMismatch signals a reorder request that does not cover
	// exactly the modules at that level.
	ErrReorderMismatch = errors.New("projects: reorder must include every module exactly once")
)

// Project is a client engagement within a tenant.
type Project struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    uuid.UUID       `json:"-"`
	ClientID    *uuid.UUID      `json:"client_id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Status      Status          `json:"status"`
	StartDate   *time.Time      `json:"start_date,omitempty"`
	Deadline    *time.Time      `json:"deadline,omitempty"`
	Budget      decimal.Decimal `json:"budget"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Module is a unit of project scope. A nil ParentID marks a top-level
// module; otherwise it is a submodule of its parent. Position orders
// siblings.
type Module struct {
	ID        uuid.UUID  `json:"id"`
	ProjectID uuid.UUID  `json:"project_id"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	Name      string     `json:"name"`
	Position  int        `json:"position"`
	CreatedAt time.Time  `json:"created_at"`
}

// DailyLog records work done on a project by an employee on a date.
type DailyLog struct {
	ID          uuid.UUID       `json:"id"`
	ProjectID   uuid.UUID       `json:"project_id"`
	EmployeeID  uuid.UUID       `json:"employee_id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Hours       decimal.Decimal `json:"hours"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ProjectInput carries the writable project fields.
type ProjectInput struct {
	Name        string
	Description string
	ClientID    *uuid.UUID
	Status      Status
	StartDate   *time.Time
	Deadline    *time.Time
	Budget      decimal.Decimal
}

// DailyLogInput carries the writable daily-log fields.
type DailyLogInput struct {
	ProjectID   uuid.UUID
	EmployeeID  uuid.UUID
	Date        time.Time
	Description string
	Hours       decimal.Decimal
}

func validStatus(s Status) bool {
	switch s {
	case StatusPlanning, StatusInProgress, StatusOnHold, StatusCompleted:
		return true
	}
	return false
}
