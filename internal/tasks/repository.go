package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists tasks.
type Repository interface {
	Insert(ctx context.Context, t *Task) error
	Update(ctx context.Context, t *Task) error
	Get(ctx context.Context, tenantID, id uuid.UUID) (*Task, error)
	List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Task, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) Insert(ctx context.Context, t *Task) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO tasks (id, company_id, project_id, module_id, title, description, status, priority,
assignee_id, due_date, requires_approval, visible_to_client, approved_at, completed_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.TenantID, t.ProjectID, t.ModuleID, t.Title, nullString(t.Description),
		string(t.Status), string(t.Priority), t.AssigneeID, t.DueDate,
		t.RequiresApproval, t.VisibleToClient, t.ApprovedAt, t.CompletedAt, t.CreatedAt)
	return err
}

func (r *pgRepository) Update(ctx context.Context, t *Task) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE tasks SET module_id=$3, title=$4, description=$5, status=$6, priority=$7,
assignee_id=$8, due_date=$9, requires_approval=$10, visible_to_client=$11, approved_at=$12, completed_at=$13
WHERE company_id=$1 AND id=$2`,
		t.TenantID, t.ID, t.ModuleID, t.Title, nullString(t.Description), string(t.Status),
		string(t.Priority), t.AssigneeID, t.DueDate, t.RequiresApproval, t.VisibleToClient,
		t.ApprovedAt, t.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const taskCols = `id, company_id, project_id, module_id, title, COALESCE(description, ''), status,
priority, assignee_id, due_date, requires_approval, visible_to_client, approved_at, completed_at, created_at`

func (r *pgRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*Task, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE company_id=$1 AND id=$2`, tenantID, id)
	return scanTask(row)
}

func (r *pgRepository) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Task, error) {
	query := `SELECT ` + taskCols + ` FROM tasks WHERE company_id=$1`
	args := []any{tenantID}
	if filter.ProjectID != nil {
		args = append(args, *filter.ProjectID)
		query += fmt.Sprintf(" AND project_id=$%d", len(args))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		query += fmt.Sprintf(" AND assignee_id=$%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		query += fmt.Sprintf(` AND visible_to_client
AND EXISTS (SELECT 1 FROM projects p WHERE p.id = tasks.project_id AND p.client_id = $%d)`, len(args))
	}
	query += ` ORDER BY CASE priority
WHEN 'URGENT' THEN 0 WHEN 'HIGH' THEN 1 WHEN 'MEDIUM' THEN 2 ELSE 3 END, created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *pgRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM tasks WHERE company_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	var status, priority string
	err := row.Scan(&t.ID, &t.TenantID, &t.ProjectID, &t.ModuleID, &t.Title, &t.Description,
		&status, &priority, &t.AssigneeID, &t.DueDate, &t.RequiresApproval, &t.VisibleToClient,
		&t.ApprovedAt, &t.CompletedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t.Status = TaskStatus(status)
	t.Priority = Priority(priority)
	return &t, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
