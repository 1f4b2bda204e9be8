package comments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/studioops/studioops/internal/shared"
)

type memoryRepo struct {
	comments map[uuid.UUID]*Comment
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{comments: map[uuid.UUID]*Comment{}}
}

func (m *memoryRepo) Insert(_ context.Context, c *Comment) error {
	cp := *c
	m.comments[c.ID] = &cp
	return nil
}

func (m *memoryRepo) Get(_ context.Context, tenantID, id uuid.UUID) (*Comment, error) {
	c, ok := m.comments[id]
	if !ok || c.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memoryRepo) ListByProject(_ context.Context, tenantID, projectID uuid.UUID) ([]Comment, error) {
	var out []Comment
	for _, c := range m.comments {
		if c.TenantID == tenantID && c.ProjectID == projectID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListByTask(_ context.Context, tenantID, taskID uuid.UUID) ([]Comment, error) {
	var out []Comment
	for _, c := range m.comments {
		if c.TenantID == tenantID && c.TaskID != nil && *c.TaskID == taskID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memoryRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	c, ok := m.comments[id]
	if !ok || c.TenantID != tenantID {
		return ErrNotFound
	}
	delete(m.comments, id)
	return nil
}

func identity(tenant uuid.UUID, role shared.Role) *shared.Identity {
	return &shared.Identity{UserID: uuid.New(), TenantID: tenant, Role: role}
}

func TestAddTaskCommentRecordsAuthor(t *testing.T) {
	svc := NewService(newMemoryRepo())
	tenant := uuid.New()
	author := identity(tenant, shared.RoleEmployee)
	projectID := uuid.New()
	taskID := uuid.New()

	comment, err := svc.Add(context.Background(), author, projectID, &taskID, "  Looks good to me  ")
	require.NoError(t, err)
	require.Equal(t, author.UserID, comment.AuthorID)
	require.Equal(t, shared.RoleEmployee, comment.AuthorRole)
	require.Equal(t, "Looks good to me", comment.Body)

	thread, err := svc.ListByTask(context.Background(), author, taskID)
	require.NoError(t, err)
	require.Len(t, thread, 1)
}

func TestProjectThreadIncludesTaskComments(t *testing.T) {
	svc := NewService(newMemoryRepo())
	tenant := uuid.New()
	author := identity(tenant, shared.RoleClient)
	projectID := uuid.New()
	taskID := uuid.New()
	ctx := context.Background()

	_, err := svc.Add(ctx, author, projectID, nil, "Kickoff question")
	require.NoError(t, err)
	_, err = svc.Add(ctx, author, projectID, &taskID, "About this task")
	require.NoError(t, err)

	projectThread, err := svc.ListByProject(ctx, author, projectID)
	require.NoError(t, err)
	require.Len(t, projectThread, 2)

	taskThread, err := svc.ListByTask(ctx, author, taskID)
	require.NoError(t, err)
	require.Len(t, taskThread, 1)
	require.Equal(t, "About this task", taskThread[0].Body)
}

func TestAddCommentRejectsEmptyBodyAndMissingProject(t *testing.T) {
	svc := NewService(newMemoryRepo())
	admin := identity(uuid.New(), shared.RoleAdmin)

	_, err := svc.Add(context.Background(), admin, uuid.New(), nil, "   ")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Add(context.Background(), admin, uuid.Nil, nil, "no project")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRemoveCommentAuthorOrAdminOnly(t *testing.T) {
	svc := NewService(newMemoryRepo())
	tenant := uuid.New()
	author := identity(tenant, shared.RoleEmployee)

	comment, err := svc.Add(context.Background(), author, uuid.New(), nil, "Delete me later")
	require.NoError(t, err)

	other := identity(tenant, shared.RoleEmployee)
	err = svc.Remove(context.Background(), other, comment.ID)
	require.ErrorIs(t, err, ErrUnauthorized)

	admin := identity(tenant, shared.RoleAdmin)
	require.NoError(t, svc.Remove(context.Background(), admin, comment.ID))
}

func TestCommentsAreTenantScoped(t *testing.T) {
	svc := NewService(newMemoryRepo())
	tenantA, tenantB := uuid.New(), uuid.New()
	author := identity(tenantA, shared.RoleEmployee)

	comment, err := svc.Add(context.Background(), author, uuid.New(), nil, "Private note")
	require.NoError(t, err)

	err = svc.Remove(context.Background(), identity(tenantB, shared.RoleAdmin), comment.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Add(context.Background(), nil, uuid.New(), nil, "anonymous")
	require.ErrorIs(t, err, ErrUnauthorized)
}
