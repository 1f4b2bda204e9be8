// Package tasks manages project work items: assignment, status transitions,
// the optional approval step, and the side effects of completing a task
// (automatic daily log, notification email).
package tasks

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus enumerates the work item lifecycle.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusInReview   TaskStatus = "IN_REVIEW"
	StatusCompleted  TaskStatus = "COMPLETED"
)

// Priority orders tasks by urgency.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

var (
	// ErrUnauthorized signals a missing or foreign tenant scope.
	ErrUnauthorized = errors.New("tasks: unauthorized")
	// ErrNotFound signals the task does not exist within the tenant.
	ErrNotFound = errors.New("tasks: not found")
	// ErrInvalidInput signals a rejected field value.
	ErrInvalidInput = errors.New("tasks: invalid input")
	// ErrNotAssignee signals a completion attempt by someone other than
	// the assignee or an admin.
	ErrNotAssignee = errors.New("tasks: only the assignee can complete this task")
	// ErrNotInReview signals an approval of a task that is not waiting
	// for one.
	ErrNotInReview = errors.New("tasks: task is not awaiting approval")
)

// Task is a unit of work within a project.
type Task struct {
	ID               uuid.UUID  `json:"id"`
	TenantID         uuid.UUID  `json:"-"`
	ProjectID        uuid.UUID  `json:"project_id"`
	ModuleID         *uuid.UUID `json:"module_id,omitempty"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Status           TaskStatus `json:"status"`
	Priority         Priority   `json:"priority"`
	AssigneeID       *uuid.UUID `json:"assignee_id,omitempty"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	RequiresApproval bool       `json:"requires_approval"`
	VisibleToClient  bool       `json:"visible_to_client"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// TaskInput carries the writable task fields.
type TaskInput struct {
	ProjectID        uuid.UUID
	ModuleID         *uuid.UUID
	Title            string
	Description      string
	Priority         Priority
	AssigneeID       *uuid.UUID
	DueDate          *time.Time
	RequiresApproval bool
}

// ListFilter narrows task listings. ClientID restricts results to tasks on
// projects owned by that client that are flagged client-visible; the service
// sets it for client sessions.
type ListFilter struct {
	ProjectID  *uuid.UUID
	AssigneeID *uuid.UUID
	Status     *TaskStatus
	ClientID   *uuid.UUID
}

func validStatus(s TaskStatus) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusInReview, StatusCompleted:
		return true
	}
	return false
}

func validPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
