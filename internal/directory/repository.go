package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists employees and clients for a tenant.
type Repository interface {
	InsertEmployee(ctx context.Context, e *Employee, passwordHash string) error
	UpdateEmployee(ctx context.Context, e *Employee) error
	SetEmployeePassword(ctx context.Context, tenantID, id uuid.UUID, passwordHash string) error
	GetEmployee(ctx context.Context, tenantID, id uuid.UUID) (*Employee, error)
	ListEmployees(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]Employee, error)
	SetEmployeeActive(ctx context.Context, tenantID, id uuid.UUID, active bool) error

	InsertClient(ctx context.Context, c *Client, passwordHash string) error
	UpdateClient(ctx context.Context, c *Client) error
	GetClient(ctx context.Context, tenantID, id uuid.UUID) (*Client, error)
	ListClients(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]Client, error)
	SetClientActive(ctx context.Context, tenantID, id uuid.UUID, active bool) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) InsertEmployee(ctx context.Context, e *Employee, passwordHash string) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO employees (id, company_id, name, email, phone, designation, joining_date, salary, password_hash, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11)`,
		e.ID, e.TenantID, e.Name, e.Email, nullString(e.Phone), nullString(e.Designation),
		e.JoiningDate, e.Salary.StringFixed(2), passwordHash, e.IsActive, e.CreatedAt)
	return mapPgError(err)
}

func (r *pgRepository) UpdateEmployee(ctx context.Context, e *Employee) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE employees SET name=$3, email=$4, phone=$5, designation=$6, joining_date=$7, salary=$8::numeric
WHERE company_id=$1 AND id=$2`,
		e.TenantID, e.ID, e.Name, e.Email, nullString(e.Phone), nullString(e.Designation),
		e.JoiningDate, e.Salary.StringFixed(2))
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) SetEmployeePassword(ctx context.Context, tenantID, id uuid.UUID, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE employees SET password_hash=$3 WHERE company_id=$1 AND id=$2`,
		tenantID, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const employeeCols = `id, company_id, name, email, COALESCE(phone, ''), COALESCE(designation, ''),
joining_date, salary::text, is_active, created_at`

func (r *pgRepository) GetEmployee(ctx context.Context, tenantID, id uuid.UUID) (*Employee, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+employeeCols+` FROM employees WHERE company_id=$1 AND id=$2`, tenantID, id)
	return scanEmployee(row)
}

func (r *pgRepository) ListEmployees(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]Employee, error) {
	query := `SELECT ` + employeeCols + ` FROM employees WHERE company_id=$1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *pgRepository) SetEmployeeActive(ctx context.Context, tenantID, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE employees SET is_active=$3 WHERE company_id=$1 AND id=$2`, tenantID, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) InsertClient(ctx context.Context, c *Client, passwordHash string) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO clients (id, company_id, name, email, phone, company_name, address, password_hash, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.TenantID, c.Name, c.Email, nullString(c.Phone), nullString(c.CompanyName),
		nullString(c.Address), nullString(passwordHash), c.IsActive, c.CreatedAt)
	return mapPgError(err)
}

func (r *pgRepository) UpdateClient(ctx context.Context, c *Client) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE clients SET name=$3, email=$4, phone=$5, company_name=$6, address=$7
WHERE company_id=$1 AND id=$2`,
		c.TenantID, c.ID, c.Name, c.Email, nullString(c.Phone), nullString(c.CompanyName), nullString(c.Address))
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const clientCols = `id, company_id, name, email, COALESCE(phone, ''), COALESCE(company_name, ''),
COALESCE(address, ''), is_active, created_at`

func (r *pgRepository) GetClient(ctx context.Context, tenantID, id uuid.UUID) (*Client, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+clientCols+` FROM clients WHERE company_id=$1 AND id=$2`, tenantID, id)
	return scanClient(row)
}

func (r *pgRepository) ListClients(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]Client, error) {
	query := `SELECT ` + clientCols + ` FROM clients WHERE company_id=$1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *pgRepository) SetClientActive(ctx context.Context, tenantID, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE clients SET is_active=$3 WHERE company_id=$1 AND id=$2`, tenantID, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEmployee(row pgx.Row) (*Employee, error) {
	var e Employee
	var salary string
	err := row.Scan(&e.ID, &e.TenantID, &e.Name, &e.Email, &e.Phone, &e.Designation,
		&e.JoiningDate, &salary, &e.IsActive, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if e.Salary, err = decimal.NewFromString(salary); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Phone, &c.CompanyName,
		&c.Address, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateEmail
	}
	return err
}
