// Package ledger owns accounts, income and expenditure entries, and the
// balance consistency rules between them. Every account balance is mutated
// exclusively through the entry operations in Service; any other write path
// is a bug.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind discriminates the two entry types.
type Kind string

const (
	KindIncome      Kind = "INCOME"
	KindExpenditure Kind = "EXPENDITURE"
)

// Sentinel errors returned by Service operations.
var (
	// ErrUnauthorized indicates a call without a tenant context.
	ErrUnauthorized = errors.New("ledger: unauthorized")
	// ErrInvalidAccount indicates the account does not exist or belongs to a
	// different tenant.
	ErrInvalidAccount = errors.New("ledger: invalid account")
	// ErrNotFound indicates the entry does not exist or belongs to a
	// different tenant.
	ErrNotFound = errors.New("ledger: not found")
	// ErrTransactionFailed indicates the atomic store operation could not
	// commit. No partial state is persisted.
	ErrTransactionFailed = errors.New("ledger: transaction failed")
)

// Account holds a running balance kept equal to its opening balance plus all
// income minus all expenditure entries referencing it.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	TenantID  uuid.UUID       `json:"-"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Entry is an income or expenditure record. EmployeeID is only meaningful for
// expenditures.
type Entry struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    uuid.UUID       `json:"-"`
	Kind        Kind            `json:"kind"`
	AccountID   uuid.UUID       `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	CategoryID  *uuid.UUID      `json:"category_id,omitempty"`
	EmployeeID  *uuid.UUID      `json:"employee_id,omitempty"`
	TagIDs      []uuid.UUID     `json:"tag_ids"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Category labels entries of one kind. Color feeds the category breakdown
// chart on the dashboard.
type Category struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"-"`
	Kind     Kind      `json:"kind"`
	Name     string    `json:"name"`
	Color    string    `json:"color,omitempty"`
}

// Tag is a free-form label attachable to entries of either kind.
type Tag struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"-"`
	Name     string    `json:"name"`
}

// EntryInput carries the caller-supplied fields for create and update.
type EntryInput struct {
	AccountID   uuid.UUID
	Amount      decimal.Decimal
	Description string
	Date        time.Time
	CategoryID  *uuid.UUID
	EmployeeID  *uuid.UUID
	TagIDs      []uuid.UUID
}

// ListFilter narrows entry listings.
type ListFilter struct {
	From      time.Time
	To        time.Time
	AccountID uuid.UUID
	Page      int
	PerPage   int
}

// signedDelta is the only place the sign convention lives: incomes raise the
// account balance, expenditures lower it.
func signedDelta(kind Kind, amount decimal.Decimal) decimal.Decimal {
	if kind == KindExpenditure {
		return amount.Neg()
	}
	return amount
}
