package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/studioops/studioops/internal/platform/db"
)

// Repository defines ledger data access. All mutating entry operations are
// reachable only through TxRepository inside WithTx.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetAccount(ctx context.Context, tenantID, accountID uuid.UUID) (Account, error)
	ListAccounts(ctx context.Context, tenantID uuid.UUID) ([]Account, error)
	InsertAccount(ctx context.Context, account Account) error
	RenameAccount(ctx context.Context, tenantID, accountID uuid.UUID, name string) error

	GetEntry(ctx context.Context, tenantID uuid.UUID, kind Kind, entryID uuid.UUID) (Entry, error)
	ListEntries(ctx context.Context, tenantID uuid.UUID, kind Kind, filter ListFilter) ([]Entry, error)

	ListCategories(ctx context.Context, tenantID uuid.UUID, kind Kind) ([]Category, error)
	InsertCategory(ctx context.Context, category Category) error
	ListTags(ctx context.Context, tenantID uuid.UUID) ([]Tag, error)
	InsertTag(ctx context.Context, tag Tag) error
}

// TxRepository exposes the operations that may run inside the atomic unit.
// LockAccount takes a row lock on the account and doubles as the tenant
// ownership check; AdjustAccountBalance is the sole writer of the balance
// column.
type TxRepository interface {
	LockAccount(ctx context.Context, tenantID, accountID uuid.UUID) (Account, error)
	AdjustAccountBalance(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) error

	GetEntryForUpdate(ctx context.Context, tenantID uuid.UUID, kind Kind, entryID uuid.UUID) (Entry, error)
	InsertEntry(ctx context.Context, entry Entry) error
	UpdateEntry(ctx context.Context, entry Entry) error
	DeleteEntry(ctx context.Context, kind Kind, entryID uuid.UUID) error
	ReplaceEntryTags(ctx context.Context, kind Kind, entryID uuid.UUID, tagIDs []uuid.UUID) error
}

var _ Repository = (*pgRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

type pgTxRepository struct {
	tx pgx.Tx
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

// WithTx runs fn inside a read-committed transaction. Row locks taken via
// LockAccount serialize concurrent balance adjustments.
func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

type entryTables struct {
	table       string
	tagJoin     string
	fkCol       string
	employeeCol string
}

func tablesFor(kind Kind) entryTables {
	if kind == KindExpenditure {
		return entryTables{table: "expenditures", tagJoin: "expenditure_tags", fkCol: "expenditure_id", employeeCol: "employee_id"}
	}
	// The incomes table has no employee column; select a typed NULL so both
	// kinds scan identically.
	return entryTables{table: "incomes", tagJoin: "income_tags", fkCol: "income_id", employeeCol: "NULL::uuid"}
}

// --- accounts ---

const accountCols = `id, company_id, name, balance::text, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var balance string
	if err := row.Scan(&a.ID, &a.TenantID, &a.Name, &balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, err
	}
	var err error
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return Account{}, fmt.Errorf("ledger: parse balance: %w", err)
	}
	return a, nil
}

func (r *pgRepository) GetAccount(ctx context.Context, tenantID, accountID uuid.UUID) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id=$1 AND company_id=$2`, accountID, tenantID)
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrInvalidAccount
	}
	return account, err
}

func (r *pgRepository) ListAccounts(ctx context.Context, tenantID uuid.UUID) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountCols+` FROM accounts WHERE company_id=$1 ORDER BY name ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	accounts := []Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *pgRepository) InsertAccount(ctx context.Context, account Account) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO accounts (id, company_id, name, balance, created_at, updated_at)
VALUES ($1, $2, $3, $4::numeric, NOW(), NOW())`, account.ID, account.TenantID, account.Name, account.Balance.StringFixed(2))
	return mapPgError(err)
}

func (r *pgRepository) RenameAccount(ctx context.Context, tenantID, accountID uuid.UUID, name string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET name=$3, updated_at=NOW() WHERE id=$1 AND company_id=$2`, accountID, tenantID, name)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidAccount
	}
	return nil
}

// --- entries (pool reads) ---

func (r *pgRepository) GetEntry(ctx context.Context, tenantID uuid.UUID, kind Kind, entryID uuid.UUID) (Entry, error) {
	return getEntry(ctx, r.pool, tenantID, kind, entryID, "")
}

func (r *pgRepository) ListEntries(ctx context.Context, tenantID uuid.UUID, kind Kind, filter ListFilter) ([]Entry, error) {
	t := tablesFor(kind)
	limit := filter.PerPage
	if limit <= 0 {
		limit = 50
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, account_id, amount::text, description, date, category_id, `+t.employeeCol+`, created_at, updated_at
FROM `+t.table+`
WHERE company_id=$1
  AND ($2::timestamptz IS NULL OR date >= $2)
  AND ($3::timestamptz IS NULL OR date <= $3)
  AND ($4::uuid IS NULL OR account_id = $4)
ORDER BY date DESC, created_at DESC
LIMIT $5 OFFSET $6`, tenantID, nullTime(filter.From), nullTime(filter.To), nullUUID(filter.AccountID), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows, kind)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range entries {
		tags, err := entryTags(ctx, r.pool, kind, entries[i].ID)
		if err != nil {
			return nil, err
		}
		entries[i].TagIDs = tags
	}
	return entries, nil
}

// --- categories / tags ---

func (r *pgRepository) ListCategories(ctx context.Context, tenantID uuid.UUID, kind Kind) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, kind, name, COALESCE(color, '') FROM categories WHERE company_id=$1 AND kind=$2 ORDER BY name ASC`, tenantID, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	categories := []Category{}
	for rows.Next() {
		var c Category
		var kindStr string
		if err := rows.Scan(&c.ID, &c.TenantID, &kindStr, &c.Name, &c.Color); err != nil {
			return nil, err
		}
		c.Kind = Kind(kindStr)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *pgRepository) InsertCategory(ctx context.Context, category Category) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO categories (id, company_id, kind, name, color) VALUES ($1, $2, $3, $4, NULLIF($5, ''))`,
		category.ID, category.TenantID, string(category.Kind), category.Name, category.Color)
	return mapPgError(err)
}

func (r *pgRepository) ListTags(ctx context.Context, tenantID uuid.UUID) ([]Tag, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, name FROM tags WHERE company_id=$1 ORDER BY name ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tags := []Tag{}
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (r *pgRepository) InsertTag(ctx context.Context, tag Tag) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO tags (id, company_id, name) VALUES ($1, $2, $3)`, tag.ID, tag.TenantID, tag.Name)
	return mapPgError(err)
}

// --- transactional operations ---

func (r *pgTxRepository) LockAccount(ctx context.Context, tenantID, accountID uuid.UUID) (Account, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id=$1 AND company_id=$2 FOR UPDATE`, accountID, tenantID)
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrInvalidAccount
	}
	return account, err
}

func (r *pgTxRepository) AdjustAccountBalance(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE accounts SET balance = balance + $2::numeric, updated_at=NOW() WHERE id=$1`, accountID, delta.StringFixed(2))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidAccount
	}
	return nil
}

func (r *pgTxRepository) GetEntryForUpdate(ctx context.Context, tenantID uuid.UUID, kind Kind, entryID uuid.UUID) (Entry, error) {
	return getEntry(ctx, r.tx, tenantID, kind, entryID, " FOR UPDATE")
}

func (r *pgTxRepository) InsertEntry(ctx context.Context, entry Entry) error {
	t := tablesFor(entry.Kind)
	var err error
	if entry.Kind == KindExpenditure {
		_, err = r.tx.Exec(ctx, `INSERT INTO `+t.table+` (id, company_id, account_id, amount, description, date, category_id, employee_id, created_at, updated_at)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, NOW(), NOW())`,
			entry.ID, entry.TenantID, entry.AccountID, entry.Amount.StringFixed(2), entry.Description, entry.Date, entry.CategoryID, entry.EmployeeID)
	} else {
		_, err = r.tx.Exec(ctx, `INSERT INTO `+t.table+` (id, company_id, account_id, amount, description, date, category_id, created_at, updated_at)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, NOW(), NOW())`,
			entry.ID, entry.TenantID, entry.AccountID, entry.Amount.StringFixed(2), entry.Description, entry.Date, entry.CategoryID)
	}
	return err
}

func (r *pgTxRepository) UpdateEntry(ctx context.Context, entry Entry) error {
	t := tablesFor(entry.Kind)
	var tag pgconn.CommandTag
	var err error
	if entry.Kind == KindExpenditure {
		tag, err = r.tx.Exec(ctx, `UPDATE `+t.table+` SET account_id=$3, amount=$4::numeric, description=$5, date=$6, category_id=$7, employee_id=$8, updated_at=NOW()
WHERE id=$1 AND company_id=$2`,
			entry.ID, entry.TenantID, entry.AccountID, entry.Amount.StringFixed(2), entry.Description, entry.Date, entry.CategoryID, entry.EmployeeID)
	} else {
		tag, err = r.tx.Exec(ctx, `UPDATE `+t.table+` SET account_id=$3, amount=$4::numeric, description=$5, date=$6, category_id=$7, updated_at=NOW()
WHERE id=$1 AND company_id=$2`,
			entry.ID, entry.TenantID, entry.AccountID, entry.Amount.StringFixed(2), entry.Description, entry.Date, entry.CategoryID)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgTxRepository) DeleteEntry(ctx context.Context, kind Kind, entryID uuid.UUID) error {
	t := tablesFor(kind)
	tag, err := r.tx.Exec(ctx, `DELETE FROM `+t.table+` WHERE id=$1`, entryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceEntryTags drops every association row for the entry and recreates
// one per tag id. Wholesale replace, not a diff.
func (r *pgTxRepository) ReplaceEntryTags(ctx context.Context, kind Kind, entryID uuid.UUID, tagIDs []uuid.UUID) error {
	t := tablesFor(kind)
	if _, err := r.tx.Exec(ctx, `DELETE FROM `+t.tagJoin+` WHERE `+t.fkCol+`=$1`, entryID); err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		if _, err := r.tx.Exec(ctx, `INSERT INTO `+t.tagJoin+` (`+t.fkCol+`, tag_id) VALUES ($1, $2)`, entryID, tagID); err != nil {
			return err
		}
	}
	return nil
}

// --- shared query helpers ---

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getEntry(ctx context.Context, q querier, tenantID uuid.UUID, kind Kind, entryID uuid.UUID, suffix string) (Entry, error) {
	t := tablesFor(kind)
	row := q.QueryRow(ctx, `SELECT id, company_id, account_id, amount::text, description, date, category_id, `+t.employeeCol+`, created_at, updated_at
FROM `+t.table+` WHERE id=$1 AND company_id=$2`+suffix, entryID, tenantID)
	entry, err := scanEntry(row, kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	entry.TagIDs, err = entryTags(ctx, q, kind, entry.ID)
	return entry, err
}

func scanEntry(row pgx.Row, kind Kind) (Entry, error) {
	var e Entry
	var amount string
	var employeeID *uuid.UUID
	if err := row.Scan(&e.ID, &e.TenantID, &e.AccountID, &amount, &e.Description, &e.Date, &e.CategoryID, &employeeID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Entry{}, err
	}
	e.Kind = kind
	if kind == KindExpenditure {
		e.EmployeeID = employeeID
	}
	var err error
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return Entry{}, fmt.Errorf("ledger: parse amount: %w", err)
	}
	return e, nil
}

func entryTags(ctx context.Context, q querier, kind Kind, entryID uuid.UUID) ([]uuid.UUID, error) {
	t := tablesFor(kind)
	rows, err := q.Query(ctx, `SELECT tag_id FROM `+t.tagJoin+` WHERE `+t.fkCol+`=$1 ORDER BY tag_id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

// ErrDuplicate surfaces unique constraint violations on category/tag names.
var ErrDuplicate = errors.New("ledger: duplicate")

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
