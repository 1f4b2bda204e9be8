// Package comments handles discussion threads attached to projects and
// tasks. Every comment belongs to a project; task-level comments also carry
// the task id.
package comments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studioops/studioops/internal/shared"
)

var (
	// ErrUnauthorized signals a missing tenant scope or a delete by
	// someone other than the author or an admin.
	ErrUnauthorized = errors.New("comments: unauthorized")
	// ErrNotFound signals the comment does not exist within the tenant.
	ErrNotFound = errors.New("comments: not found")
	// ErrInvalidInput signals an empty comment body.
	ErrInvalidInput = errors.New("comments: invalid input")
)

// Comment is one message in a project or task thread.
type Comment struct {
	ID         uuid.UUID   `json:"id"`
	TenantID   uuid.UUID   `json:"-"`
	ProjectID  uuid.UUID   `json:"project_id"`
	TaskID     *uuid.UUID  `json:"task_id,omitempty"`
	AuthorID   uuid.UUID   `json:"author_id"`
	AuthorRole shared.Role `json:"author_role"`
	Body       string      `json:"body"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Repository persists comments.
type Repository interface {
	Insert(ctx context.Context, c *Comment) error
	Get(ctx context.Context, tenantID, id uuid.UUID) (*Comment, error)
	ListByProject(ctx context.Context, tenantID, projectID uuid.UUID) ([]Comment, error)
	ListByTask(ctx context.Context, tenantID, taskID uuid.UUID) ([]Comment, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const commentCols = `id, company_id, project_id, task_id, author_id, author_role, body, created_at`

func (r *pgRepository) Insert(ctx context.Context, c *Comment) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO comments (id, company_id, project_id, task_id, author_id, author_role, body, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.TenantID, c.ProjectID, c.TaskID, c.AuthorID, string(c.AuthorRole), c.Body, c.CreatedAt)
	return err
}

func (r *pgRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*Comment, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+commentCols+` FROM comments WHERE company_id=$1 AND id=$2`, tenantID, id)
	return scanComment(row)
}

func (r *pgRepository) ListByProject(ctx context.Context, tenantID, projectID uuid.UUID) ([]Comment, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+commentCols+` FROM comments WHERE company_id=$1 AND project_id=$2 ORDER BY created_at`, tenantID, projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *pgRepository) ListByTask(ctx context.Context, tenantID, taskID uuid.UUID) ([]Comment, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+commentCols+` FROM comments WHERE company_id=$1 AND task_id=$2 ORDER BY created_at`, tenantID, taskID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *pgRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM comments WHERE company_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanComment(row pgx.Row) (*Comment, error) {
	var c Comment
	var role string
	err := row.Scan(&c.ID, &c.TenantID, &c.ProjectID, &c.TaskID, &c.AuthorID, &role, &c.Body, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.AuthorRole = shared.Role(role)
	return &c, nil
}

func collect(rows pgx.Rows) ([]Comment, error) {
	defer rows.Close()
	var out []Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Service applies comment business rules.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Add appends a comment authored by the current identity. taskID is nil for
// project-level comments.
func (s *Service) Add(ctx context.Context, identity *shared.Identity, projectID uuid.UUID, taskID *uuid.UUID, body string) (*Comment, error) {
	if identity == nil || identity.TenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if projectID == uuid.Nil {
		return nil, fmt.Errorf("%w: project is required", ErrInvalidInput)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: body is required", ErrInvalidInput)
	}

	comment := &Comment{
		ID:         uuid.New(),
		TenantID:   identity.TenantID,
		ProjectID:  projectID,
		TaskID:     taskID,
		AuthorID:   identity.UserID,
		AuthorRole: identity.Role,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// ListByProject returns every comment on a project, task-bound ones included,
// in chronological order.
func (s *Service) ListByProject(ctx context.Context, identity *shared.Identity, projectID uuid.UUID) ([]Comment, error) {
	if identity == nil || identity.TenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	return s.repo.ListByProject(ctx, identity.TenantID, projectID)
}

// ListByTask returns a task's thread in chronological order.
func (s *Service) ListByTask(ctx context.Context, identity *shared.Identity, taskID uuid.UUID) ([]Comment, error) {
	if identity == nil || identity.TenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	return s.repo.ListByTask(ctx, identity.TenantID, taskID)
}

// Remove deletes a comment. Only the author or an admin may delete.
func (s *Service) Remove(ctx context.Context, identity *shared.Identity, id uuid.UUID) error {
	if identity == nil || identity.TenantID == uuid.Nil {
		return ErrUnauthorized
	}
	comment, err := s.repo.Get(ctx, identity.TenantID, id)
	if err != nil {
		return err
	}
	if comment.AuthorID != identity.UserID && identity.Role != shared.RoleAdmin {
		return ErrUnauthorized
	}
	return s.repo.Delete(ctx, identity.TenantID, id)
}
