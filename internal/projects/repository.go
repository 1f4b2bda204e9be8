package projects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/studioops/studioops/internal/platform/db"
)

// Repository persists projects, modules, assignments and daily logs.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error

	InsertProject(ctx context.Context, p *Project) error
	UpdateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, tenantID, id uuid.UUID) (*Project, error)
	ListProjects(ctx context.Context, tenantID uuid.UUID) ([]Project, error)
	ListProjectsForEmployee(ctx context.Context, tenantID, employeeID uuid.UUID) ([]Project, error)
	ListProjectsForClient(ctx context.Context, tenantID, clientID uuid.UUID) ([]Project, error)
	DeleteProject(ctx context.Context, tenantID, id uuid.UUID) error

	AssignEmployee(ctx context.Context, projectID, employeeID uuid.UUID) error
	UnassignEmployee(ctx context.Context, projectID, employeeID uuid.UUID) error
	ListAssignedEmployeeIDs(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error)
	IsEmployeeAssigned(ctx context.Context, projectID, employeeID uuid.UUID) (bool, error)

	InsertModule(ctx context.Context, m *Module) error
	RenameModule(ctx context.Context, projectID, id uuid.UUID, name string) error
	DeleteModule(ctx context.Context, projectID, id uuid.UUID) error
	ListModules(ctx context.Context, projectID uuid.UUID) ([]Module, error)
	NextModulePosition(ctx context.Context, projectID uuid.UUID, parentID *uuid.UUID) (int, error)

	InsertDailyLog(ctx context.Context, l *DailyLog) error
	ListDailyLogs(ctx context.Context, projectID uuid.UUID, from, to *time.Time) ([]DailyLog, error)
}

// TxRepository exposes the operations available inside a module reorder
// transaction.
type TxRepository interface {
	ModuleIDsForUpdate(ctx context.Context, projectID uuid.UUID, parentID *uuid.UUID) ([]uuid.UUID, error)
	SetModulePosition(ctx context.Context, id uuid.UUID, position int) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

type pgTxRepository struct {
	tx pgx.Tx
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

// WithTx runs fn inside a transaction, rolling back on error.
func (r *pgRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

func (r *pgRepository) InsertProject(ctx context.Context, p *Project) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO projects (id, company_id, client_id, name, description, status, start_date, deadline, budget, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10)`,
		p.ID, p.TenantID, p.ClientID, p.Name, nullString(p.Description), string(p.Status),
		p.StartDate, p.Deadline, p.Budget.StringFixed(2), p.CreatedAt)
	return err
}

func (r *pgRepository) UpdateProject(ctx context.Context, p *Project) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE projects SET client_id=$3, name=$4, description=$5, status=$6, start_date=$7, deadline=$8, budget=$9::numeric
WHERE company_id=$1 AND id=$2`,
		p.TenantID, p.ID, p.ClientID, p.Name, nullString(p.Description), string(p.Status),
		p.StartDate, p.Deadline, p.Budget.StringFixed(2))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const projectCols = `id, company_id, client_id, name, COALESCE(description, ''), status,
start_date, deadline, budget::text, created_at`

func (r *pgRepository) GetProject(ctx context.Context, tenantID, id uuid.UUID) (*Project, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+projectCols+` FROM projects WHERE company_id=$1 AND id=$2`, tenantID, id)
	return scanProject(row)
}

func (r *pgRepository) ListProjects(ctx context.Context, tenantID uuid.UUID) ([]Project, error) {
	return r.queryProjects(ctx,
		`SELECT `+projectCols+` FROM projects WHERE company_id=$1 ORDER BY created_at DESC`, tenantID)
}

func (r *pgRepository) ListProjectsForEmployee(ctx context.Context, tenantID, employeeID uuid.UUID) ([]Project, error) {
	return r.queryProjects(ctx, `
SELECT `+projectCols+` FROM projects
WHERE company_id=$1 AND id IN (SELECT project_id FROM project_employees WHERE employee_id=$2)
ORDER BY created_at DESC`, tenantID, employeeID)
}

func (r *pgRepository) ListProjectsForClient(ctx context.Context, tenantID, clientID uuid.UUID) ([]Project, error) {
	return r.queryProjects(ctx,
		`SELECT `+projectCols+` FROM projects WHERE company_id=$1 AND client_id=$2 ORDER BY created_at DESC`,
		tenantID, clientID)
}

func (r *pgRepository) queryProjects(ctx context.Context, query string, args ...any) ([]Project, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *pgRepository) DeleteProject(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM projects WHERE company_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) AssignEmployee(ctx context.Context, projectID, employeeID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO project_employees (project_id, employee_id)
VALUES ($1, $2) ON CONFLICT DO NOTHING`, projectID, employeeID)
	return err
}

func (r *pgRepository) UnassignEmployee(ctx context.Context, projectID, employeeID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM project_employees WHERE project_id=$1 AND employee_id=$2`, projectID, employeeID)
	return err
}

func (r *pgRepository) ListAssignedEmployeeIDs(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT employee_id FROM project_employees WHERE project_id=$1`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *pgRepository) IsEmployeeAssigned(ctx context.Context, projectID, employeeID uuid.UUID) (bool, error) {
	var assigned bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM project_employees WHERE project_id=$1 AND employee_id=$2)`,
		projectID, employeeID).Scan(&assigned)
	return assigned, err
}

func (r *pgRepository) InsertModule(ctx context.Context, m *Module) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO project_modules (id, project_id, parent_id, name, position, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.ProjectID, m.ParentID, m.Name, m.Position, m.CreatedAt)
	return err
}

func (r *pgRepository) RenameModule(ctx context.Context, projectID, id uuid.UUID, name string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE project_modules SET name=$3 WHERE project_id=$1 AND id=$2`, projectID, id, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) DeleteModule(ctx context.Context, projectID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM project_modules WHERE project_id=$1 AND id=$2`, projectID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) ListModules(ctx context.Context, projectID uuid.UUID) ([]Module, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, project_id, parent_id, name, position, created_at
FROM project_modules WHERE project_id=$1 ORDER BY parent_id NULLS FIRST, position`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.ParentID, &m.Name, &m.Position, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *pgRepository) NextModulePosition(ctx context.Context, projectID uuid.UUID, parentID *uuid.UUID) (int, error) {
	var next int
	err := r.pool.QueryRow(ctx, `
SELECT COALESCE(MAX(position), -1) + 1 FROM project_modules
WHERE project_id=$1 AND parent_id IS NOT DISTINCT FROM $2`, projectID, parentID).Scan(&next)
	return next, err
}

func (r *pgRepository) InsertDailyLog(ctx context.Context, l *DailyLog) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO daily_logs (id, project_id, employee_id, date, description, hours, created_at)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)`,
		l.ID, l.ProjectID, l.EmployeeID, l.Date, l.Description, l.Hours.StringFixed(2), l.CreatedAt)
	return err
}

func (r *pgRepository) ListDailyLogs(ctx context.Context, projectID uuid.UUID, from, to *time.Time) ([]DailyLog, error) {
	query := `SELECT id, project_id, employee_id, date, description, hours::text, created_at
FROM daily_logs WHERE project_id=$1`
	args := []any{projectID}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	query += " ORDER BY date DESC, created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyLog
	for rows.Next() {
		var l DailyLog
		var hours string
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.EmployeeID, &l.Date, &l.Description, &hours, &l.CreatedAt); err != nil {
			return nil, err
		}
		if l.Hours, err = decimal.NewFromString(hours); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (t *pgTxRepository) ModuleIDsForUpdate(ctx context.Context, projectID uuid.UUID, parentID *uuid.UUID) ([]uuid.UUID, error) {
	rows, err := t.tx.Query(ctx, `
SELECT id FROM project_modules
WHERE project_id=$1 AND parent_id IS NOT DISTINCT FROM $2
ORDER BY position FOR UPDATE`, projectID, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (t *pgTxRepository) SetModulePosition(ctx context.Context, id uuid.UUID, position int) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE project_modules SET position=$2 WHERE id=$1`, id, position)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	var status, budget string
	err := row.Scan(&p.ID, &p.TenantID, &p.ClientID, &p.Name, &p.Description, &status,
		&p.StartDate, &p.Deadline, &budget, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Status = Status(status)
	if p.Budget, err = decimal.NewFromString(budget); err != nil {
		return nil, err
	}
	return &p, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
