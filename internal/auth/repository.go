package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studioops/studioops/internal/shared"
)

// Repository defines the directory lookups used during login. Each directory
// is consulted in turn; ErrNotFound means "try the next one".
type Repository interface {
	FindAdminByEmail(ctx context.Context, email string) (*Principal, error)
	FindEmployeeByEmail(ctx context.Context, email string) (*Principal, error)
	FindClientByEmail(ctx context.Context, email string) (*Principal, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) FindAdminByEmail(ctx context.Context, email string) (*Principal, error) {
	return r.findPrincipal(ctx, shared.RoleAdmin, `
SELECT id, company_id, email, name, password_hash, is_active, created_at
FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *pgRepository) FindEmployeeByEmail(ctx context.Context, email string) (*Principal, error) {
	return r.findPrincipal(ctx, shared.RoleEmployee, `
SELECT id, company_id, email, name, password_hash, is_active, created_at
FROM employees WHERE lower(email) = lower($1)`, email)
}

func (r *pgRepository) FindClientByEmail(ctx context.Context, email string) (*Principal, error) {
	return r.findPrincipal(ctx, shared.RoleClient, `
SELECT id, company_id, email, name, COALESCE(password_hash, ''), is_active, created_at
FROM clients WHERE lower(email) = lower($1)`, email)
}

func (r *pgRepository) findPrincipal(ctx context.Context, role shared.Role, query, email string) (*Principal, error) {
	p := Principal{Role: role}
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&p.ID, &p.TenantID, &p.Email, &p.Name, &p.PasswordHash, &p.IsActive, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
