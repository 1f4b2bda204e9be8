package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studioops/studioops/internal/shared"
)

// WorkLogger records automatic daily-log entries. Satisfied by the projects
// service.
type WorkLogger interface {
	RecordSystemLog(ctx context.Context, tenantID, projectID, employeeID uuid.UUID, date time.Time, description string) error
}

// Notifier enqueues task emails. Satisfied by the jobs enqueuer.
type Notifier interface {
	TaskAssigned(ctx context.Context, task *Task) error
	TaskCompleted(ctx context.Context, task *Task) error
}

// Service applies task business rules on top of the repository.
type Service struct {
	logger   *slog.Logger
	repo     Repository
	worklog  WorkLogger
	notifier Notifier
	now      func() time.Time
}

// NewService constructs a Service. worklog and notifier may be nil; the
// corresponding side effects are then skipped.
func NewService(logger *slog.Logger, repo Repository, worklog WorkLogger, notifier Notifier) *Service {
	return &Service{logger: logger, repo: repo, worklog: worklog, notifier: notifier, now: time.Now}
}

// Create registers a new task. The assignee, if set, is notified.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, input TaskInput) (*Task, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if input.ProjectID == uuid.Nil {
		return nil, fmt.Errorf("%w: project is required", ErrInvalidInput)
	}
	if input.Priority == "" {
		input.Priority = PriorityMedium
	}
	if !validPriority(input.Priority) {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, input.Priority)
	}

	task := &Task{
		ID:               uuid.New(),
		TenantID:         tenantID,
		ProjectID:        input.ProjectID,
		ModuleID:         input.ModuleID,
		Title:            strings.TrimSpace(input.Title),
		Description:      input.Description,
		Status:           StatusTodo,
		Priority:         input.Priority,
		AssigneeID:       input.AssigneeID,
		DueDate:          input.DueDate,
		RequiresApproval: input.RequiresApproval,
		VisibleToClient:  true,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, task); err != nil {
		return nil, err
	}
	s.recordSystemLog(ctx, task, fmt.Sprintf("Created task: %s", task.Title))
	if task.AssigneeID != nil {
		s.notifyAssigned(ctx, task)
	}
	return task, nil
}

// Update rewrites the mutable task fields. A changed assignee is notified.
// Completed tasks cannot be edited.
func (s *Service) Update(ctx context.Context, tenantID, id uuid.UUID, input TaskInput) (*Task, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if !validPriority(input.Priority) {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, input.Priority)
	}

	task, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if task.Status == StatusCompleted {
		return nil, fmt.Errorf("%w: completed tasks cannot be edited", ErrInvalidInput)
	}

	assigneeChanged := !sameAssignee(task.AssigneeID, input.AssigneeID) && input.AssigneeID != nil

	task.ModuleID = input.ModuleID
	task.Title = strings.TrimSpace(input.Title)
	task.Description = input.Description
	task.Priority = input.Priority
	task.AssigneeID = input.AssigneeID
	task.DueDate = input.DueDate
	task.RequiresApproval = input.RequiresApproval

	if err := s.repo.Update(ctx, task); err != nil {
		return nil, err
	}
	if assigneeChanged {
		s.notifyAssigned(ctx, task)
	}
	return task, nil
}

// Get fetches one task within the tenant.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*Task, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	return s.repo.Get(ctx, tenantID, id)
}

// List returns tasks matching the filter. Employees see only their own;
// clients see only client-visible tasks on their projects.
func (s *Service) List(ctx context.Context, identity *shared.Identity, filter ListFilter) ([]Task, error) {
	if identity == nil || identity.TenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	switch identity.Role {
	case shared.RoleEmployee:
		employeeID := identity.EmployeeID
		filter.AssigneeID = &employeeID
	case shared.RoleClient:
		clientID := identity.UserID
		filter.ClientID = &clientID
	}
	return s.repo.List(ctx, identity.TenantID, filter)
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if tenantID == uuid.Nil {
		return ErrUnauthorized
	}
	return s.repo.Delete(ctx, tenantID, id)
}

// SetStatus moves a task between the open states. Completion must go
// through MarkComplete so its side effects run.
func (s *Service) SetStatus(ctx context.Context, tenantID, id uuid.UUID, status TaskStatus) (*Task, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if !validStatus(status) || status == StatusCompleted {
		return nil, fmt.Errorf("%w: invalid status transition to %q", ErrInvalidInput, status)
	}
	task, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if task.Status == StatusCompleted {
		return nil, fmt.Errorf("%w: completed tasks cannot be reopened", ErrInvalidInput)
	}
	task.Status = status
	if err := s.repo.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// MarkComplete finishes a task. Only the assignee or an admin may complete
// it. When the task requires approval and the actor is not an admin, the
// task moves to IN_REVIEW instead and waits for Approve.
func (s *Service) MarkComplete(ctx context.Context, identity *shared.Identity, id uuid.UUID) (*Task, error) {
	if identity == nil || identity.TenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	task, err := s.repo.Get(ctx, identity.TenantID, id)
	if err != nil {
		return nil, err
	}
	if task.Status == StatusCompleted {
		return task, nil
	}

	isAdmin := identity.Role == shared.RoleAdmin
	isAssignee := task.AssigneeID != nil && *task.AssigneeID == identity.EmployeeID
	if !isAdmin && !isAssignee {
		return nil, ErrNotAssignee
	}

	if task.RequiresApproval && !isAdmin {
		task.Status = StatusInReview
		if err := s.repo.Update(ctx, task); err != nil {
			return nil, err
		}
		return task, nil
	}

	return s.complete(ctx, task)
}

// SetVisibility toggles whether the client portal shows the task.
func (s *Service) SetVisibility(ctx context.Context, tenantID, id uuid.UUID, visible bool) (*Task, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	task, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	task.VisibleToClient = visible
	if err := s.repo.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Approve signs off a task waiting in review and completes it. Admin only.
func (s *Service) Approve(ctx context.Context, identity *shared.Identity, id uuid.UUID) (*Task, error) {
	if identity == nil || identity.TenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if identity.Role != shared.RoleAdmin {
		return nil, ErrUnauthorized
	}
	task, err := s.repo.Get(ctx, identity.TenantID, id)
	if err != nil {
		return nil, err
	}
	if task.Status != StatusInReview {
		return nil, ErrNotInReview
	}
	now := s.now().UTC()
	task.ApprovedAt = &now
	return s.complete(ctx, task)
}

// Reject sends a task in review back to the assignee. Admin only. Request
// changes shares this transition.
func (s *Service) Reject(ctx context.Context, identity *shared.Identity, id uuid.UUID) (*Task, error) {
	if identity == nil || identity.TenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if identity.Role != shared.RoleAdmin {
		return nil, ErrUnauthorized
	}
	task, err := s.repo.Get(ctx, identity.TenantID, id)
	if err != nil {
		return nil, err
	}
	if task.Status != StatusInReview {
		return nil, ErrNotInReview
	}
	task.Status = StatusInProgress
	if err := s.repo.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) complete(ctx context.Context, task *Task) (*Task, error) {
	now := s.now().UTC()
	task.Status = StatusCompleted
	task.CompletedAt = &now
	if err := s.repo.Update(ctx, task); err != nil {
		return nil, err
	}

	s.recordSystemLog(ctx, task, fmt.Sprintf("Completed task: %s", task.Title))
	if s.notifier != nil {
		if err := s.notifier.TaskCompleted(ctx, task); err != nil {
			s.logger.Warn("completion notification failed", "task", task.ID, "error", err)
		}
	}
	return task, nil
}

// recordSystemLog writes an automatic daily log under the assignee. Tasks
// without an assignee have no log owner and are skipped.
func (s *Service) recordSystemLog(ctx context.Context, task *Task, description string) {
	if s.worklog == nil || task.AssigneeID == nil {
		return
	}
	err := s.worklog.RecordSystemLog(ctx, task.TenantID, task.ProjectID, *task.AssigneeID,
		s.now().UTC(), description)
	if err != nil {
		s.logger.Warn("auto daily log failed", "task", task.ID, "error", err)
	}
}

func (s *Service) notifyAssigned(ctx context.Context, task *Task) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.TaskAssigned(ctx, task); err != nil {
		s.logger.Warn("assignment notification failed", "task", task.ID, "error", err)
	}
}

func sameAssignee(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
