package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidInput indicates a malformed entry payload (non-positive amount,
// missing account). Handlers normally catch these earlier via DTO validation.
var ErrInvalidInput = errors.New("ledger: invalid input")

// Service applies entry mutations and the matching account balance
// adjustments as single atomic units. All methods require an explicit tenant
// id; uuid.Nil is rejected with ErrUnauthorized.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateEntry inserts an entry, its tag associations, and adjusts the target
// account balance. The three effects commit together or not at all.
func (s *Service) CreateEntry(ctx context.Context, tenantID uuid.UUID, kind Kind, in EntryInput) (Entry, error) {
	if tenantID == uuid.Nil {
		return Entry{}, ErrUnauthorized
	}
	if err := validateInput(kind, in); err != nil {
		return Entry{}, err
	}

	entry := Entry{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Kind:        kind,
		AccountID:   in.AccountID,
		Amount:      in.Amount,
		Description: in.Description,
		Date:        in.Date,
		CategoryID:  in.CategoryID,
		TagIDs:      in.TagIDs,
	}
	if kind == KindExpenditure {
		entry.EmployeeID = in.EmployeeID
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.LockAccount(ctx, tenantID, in.AccountID); err != nil {
			return err
		}
		if err := tx.InsertEntry(ctx, entry); err != nil {
			return err
		}
		if err := tx.ReplaceEntryTags(ctx, kind, entry.ID, in.TagIDs); err != nil {
			return err
		}
		return tx.AdjustAccountBalance(ctx, in.AccountID, signedDelta(kind, in.Amount))
	})
	if err != nil {
		return Entry{}, txError(err)
	}
	return s.repo.GetEntry(ctx, tenantID, kind, entry.ID)
}

// UpdateEntry rewrites an entry. Balances are reconciled only when the
// account or the amount changed: the original effect is reversed on the
// original account, then the new effect applied to the new account. Tag
// associations are always dropped and recreated wholesale, even when nothing
// else changed.
func (s *Service) UpdateEntry(ctx context.Context, tenantID uuid.UUID, kind Kind, entryID uuid.UUID, in EntryInput) (Entry, error) {
	if tenantID == uuid.Nil {
		return Entry{}, ErrUnauthorized
	}
	if err := validateInput(kind, in); err != nil {
		return Entry{}, err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetEntryForUpdate(ctx, tenantID, kind, entryID)
		if err != nil {
			return err
		}

		accountChanged := existing.AccountID != in.AccountID
		amountChanged := !existing.Amount.Equal(in.Amount)

		if accountChanged || amountChanged {
			// Lock in a stable order so two concurrent reassignments
			// between the same pair of accounts cannot deadlock.
			for _, id := range lockOrder(existing.AccountID, in.AccountID) {
				if _, err := tx.LockAccount(ctx, tenantID, id); err != nil {
					return err
				}
			}
			if err := tx.AdjustAccountBalance(ctx, existing.AccountID, signedDelta(kind, existing.Amount).Neg()); err != nil {
				return err
			}
			if err := tx.AdjustAccountBalance(ctx, in.AccountID, signedDelta(kind, in.Amount)); err != nil {
				return err
			}
		} else if _, err := tx.LockAccount(ctx, tenantID, in.AccountID); err != nil {
			// No balance write, but the target account must still belong
			// to the caller's tenant.
			return err
		}

		if err := tx.ReplaceEntryTags(ctx, kind, entryID, in.TagIDs); err != nil {
			return err
		}

		updated := existing
		updated.AccountID = in.AccountID
		updated.Amount = in.Amount
		updated.Description = in.Description
		updated.Date = in.Date
		updated.CategoryID = in.CategoryID
		updated.TagIDs = in.TagIDs
		if kind == KindExpenditure {
			updated.EmployeeID = in.EmployeeID
		}
		return tx.UpdateEntry(ctx, updated)
	})
	if err != nil {
		return Entry{}, txError(err)
	}
	return s.repo.GetEntry(ctx, tenantID, kind, entryID)
}

// DeleteEntry removes an entry (tag associations cascade) and reverses its
// balance effect on its account.
func (s *Service) DeleteEntry(ctx context.Context, tenantID uuid.UUID, kind Kind, entryID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return ErrUnauthorized
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetEntryForUpdate(ctx, tenantID, kind, entryID)
		if err != nil {
			return err
		}
		if _, err := tx.LockAccount(ctx, tenantID, existing.AccountID); err != nil {
			return err
		}
		if err := tx.DeleteEntry(ctx, kind, entryID); err != nil {
			return err
		}
		return tx.AdjustAccountBalance(ctx, existing.AccountID, signedDelta(kind, existing.Amount).Neg())
	})
	if err != nil {
		return txError(err)
	}
	return nil
}

// GetEntry loads a single entry with its tag ids.
func (s *Service) GetEntry(ctx context.Context, tenantID uuid.UUID, kind Kind, entryID uuid.UUID) (Entry, error) {
	if tenantID == uuid.Nil {
		return Entry{}, ErrUnauthorized
	}
	return s.repo.GetEntry(ctx, tenantID, kind, entryID)
}

// ListEntries returns entries for the tenant, newest date first.
func (s *Service) ListEntries(ctx context.Context, tenantID uuid.UUID, kind Kind, filter ListFilter) ([]Entry, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	return s.repo.ListEntries(ctx, tenantID, kind, filter)
}

// CreateAccount opens an account with the given opening balance. This is the
// only moment a balance is written outside an entry mutation.
func (s *Service) CreateAccount(ctx context.Context, tenantID uuid.UUID, name string, openingBalance decimal.Decimal) (Account, error) {
	if tenantID == uuid.Nil {
		return Account{}, ErrUnauthorized
	}
	if name == "" {
		return Account{}, fmt.Errorf("%w: account name is required", ErrInvalidInput)
	}
	account := Account{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     name,
		Balance:  openingBalance,
	}
	if err := s.repo.InsertAccount(ctx, account); err != nil {
		return Account{}, err
	}
	return s.repo.GetAccount(ctx, tenantID, account.ID)
}

// RenameAccount changes the display name. The balance field is deliberately
// not reachable from here.
func (s *Service) RenameAccount(ctx context.Context, tenantID, accountID uuid.UUID, name string) (Account, error) {
	if tenantID == uuid.Nil {
		return Account{}, ErrUnauthorized
	}
	if name == "" {
		return Account{}, fmt.Errorf("%w: account name is required", ErrInvalidInput)
	}
	if err := s.repo.RenameAccount(ctx, tenantID, accountID, name); err != nil {
		return Account{}, err
	}
	return s.repo.GetAccount(ctx, tenantID, accountID)
}

// GetAccount loads one account.
func (s *Service) GetAccount(ctx context.Context, tenantID, accountID uuid.UUID) (Account, error) {
	if tenantID == uuid.Nil {
		return Account{}, ErrUnauthorized
	}
	return s.repo.GetAccount(ctx, tenantID, accountID)
}

// ListAccounts returns all accounts of the tenant.
func (s *Service) ListAccounts(ctx context.Context, tenantID uuid.UUID) ([]Account, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	return s.repo.ListAccounts(ctx, tenantID)
}

// ListCategories returns the tenant's categories for one entry kind.
func (s *Service) ListCategories(ctx context.Context, tenantID uuid.UUID, kind Kind) ([]Category, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	return s.repo.ListCategories(ctx, tenantID, kind)
}

// CreateCategory adds a category for one entry kind.
func (s *Service) CreateCategory(ctx context.Context, tenantID uuid.UUID, kind Kind, name, color string) (Category, error) {
	if tenantID == uuid.Nil {
		return Category{}, ErrUnauthorized
	}
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}
	cat := Category{ID: uuid.New(), TenantID: tenantID, Kind: kind, Name: name, Color: color}
	if err := s.repo.InsertCategory(ctx, cat); err != nil {
		return Category{}, err
	}
	return cat, nil
}

// ListTags returns the tenant's tags.
func (s *Service) ListTags(ctx context.Context, tenantID uuid.UUID) ([]Tag, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	return s.repo.ListTags(ctx, tenantID)
}

// CreateTag adds a tag.
func (s *Service) CreateTag(ctx context.Context, tenantID uuid.UUID, name string) (Tag, error) {
	if tenantID == uuid.Nil {
		return Tag{}, ErrUnauthorized
	}
	if name == "" {
		return Tag{}, fmt.Errorf("%w: tag name is required", ErrInvalidInput)
	}
	tag := Tag{ID: uuid.New(), TenantID: tenantID, Name: name}
	if err := s.repo.InsertTag(ctx, tag); err != nil {
		return Tag{}, err
	}
	return tag, nil
}

func validateInput(kind Kind, in EntryInput) error {
	if in.AccountID == uuid.Nil {
		return fmt.Errorf("%w: account is required", ErrInvalidInput)
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if kind == KindIncome && in.EmployeeID != nil {
		return fmt.Errorf("%w: employee only applies to expenditures", ErrInvalidInput)
	}
	return nil
}

// txError collapses storage failures into ErrTransactionFailed while letting
// the domain sentinels through untouched.
func txError(err error) error {
	if errors.Is(err, ErrInvalidAccount) || errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
}

func lockOrder(a, b uuid.UUID) []uuid.UUID {
	if a == b {
		return []uuid.UUID{a}
	}
	if a.String() < b.String() {
		return []uuid.UUID{a, b}
	}
	return []uuid.UUID{b, a}
}
