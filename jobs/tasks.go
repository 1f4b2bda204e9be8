// Package jobs runs background work: transactional task emails via the Asynq
// queue and the SMTP delivery they fan out to.
package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeTaskAssigned notifies an employee about a new assignment.
	TaskTypeTaskAssigned = "task:assigned"
	// TaskTypeTaskCompleted notifies about a finished task.
	TaskTypeTaskCompleted = "task:completed"
	// TaskTypeTaskDueReminder mails assignees about tasks due today. The
	// scheduler enqueues it every morning; it carries no payload because the
	// worker queries the due set at run time.
	TaskTypeTaskDueReminder = "task:due_reminder"
)

// TaskEmailPayload identifies the task an email refers to. The worker
// resolves the recipient address at delivery time so stale queue entries
// never email a reassigned or deactivated employee.
type TaskEmailPayload struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	TaskID     uuid.UUID `json:"task_id"`
	AssigneeID uuid.UUID `json:"assignee_id"`
	Title      string    `json:"title"`
}

// NewTaskAssignedTask constructs an Asynq task for an assignment email.
func NewTaskAssignedTask(payload TaskEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeTaskAssigned, data), nil
}

// NewTaskCompletedTask constructs an Asynq task for a completion email.
func NewTaskCompletedTask(payload TaskEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeTaskCompleted, data), nil
}

// NewTaskDueReminderTask constructs the scheduled due-date reminder task.
func NewTaskDueReminderTask() *asynq.Task {
	return asynq.NewTask(TaskTypeTaskDueReminder, nil)
}
