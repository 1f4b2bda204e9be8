package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// TaskEmailJob delivers assignment and completion emails. The recipient is
// resolved from the employee directory when the job runs.
type TaskEmailJob struct {
	Pool   *pgxpool.Pool
	Mailer Sender
	Logger *slog.Logger

	printer *message.Printer
}

// NewTaskEmailJob initialises the email job handler.
func NewTaskEmailJob(pool *pgxpool.Pool, mailer Sender, logger *slog.Logger) *TaskEmailJob {
	return &TaskEmailJob{
		Pool:    pool,
		Mailer:  mailer,
		Logger:  logger,
		printer: message.NewPrinter(language.English),
	}
}

// HandleAssigned processes TaskTypeTaskAssigned tasks.
func (j *TaskEmailJob) HandleAssigned(ctx context.Context, t *asynq.Task) error {
	return j.handle(ctx, t, "New task assigned: %s",
		"Hi %s,\n\nYou have been assigned a new task: %s.\n\nPlease check the staff portal for details.\n")
}

// HandleCompleted processes TaskTypeTaskCompleted tasks.
func (j *TaskEmailJob) HandleCompleted(ctx context.Context, t *asynq.Task) error {
	return j.handle(ctx, t, "Task completed: %s",
		"Hi %s,\n\nThe task %q has been marked as completed.\n\nGreat work!\n")
}

func (j *TaskEmailJob) handle(ctx context.Context, t *asynq.Task, subjectFmt, bodyFmt string) error {
	if j == nil || j.Mailer == nil {
		return errors.New("task email: handler not configured")
	}
	var payload TaskEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger().With(slog.String("task_id", payload.TaskID.String()))

	name, email, err := j.recipient(ctx, payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.Warn("recipient no longer exists, dropping email")
			return nil
		}
		return err
	}

	start := time.Now()
	subject := j.printer.Sprintf(subjectFmt, payload.Title)
	body := j.printer.Sprintf(bodyFmt, name, payload.Title)
	if err := j.Mailer.Send(email, subject, body); err != nil {
		logger.Error("send failed", slog.Any("error", err))
		return err
	}

	logger.Info("email sent",
		slog.String("type", t.Type()),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// HandleDueReminder mails every active assignee whose task is due today.
// Failed sends are logged and skipped so one bad address does not requeue
// reminders for the whole set.
func (j *TaskEmailJob) HandleDueReminder(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Mailer == nil {
		return errors.New("task email: handler not configured")
	}
	if j.Pool == nil {
		return errors.New("task email: pool not configured")
	}

	rows, err := j.Pool.Query(ctx, `
SELECT t.title, e.name, e.email
FROM tasks t
JOIN employees e ON e.id = t.assignee_id AND e.is_active
WHERE t.due_date = CURRENT_DATE AND t.status <> 'COMPLETED'
ORDER BY e.email, t.title`)
	if err != nil {
		return err
	}
	defer rows.Close()

	sent := 0
	for rows.Next() {
		var title, name, email string
		if err := rows.Scan(&title, &name, &email); err != nil {
			return err
		}
		subject := j.printer.Sprintf("Task due today: %s", title)
		body := j.printer.Sprintf("Hi %s,\n\nThe task %q is due today.\n\nPlease update its status in the staff portal.\n", name, title)
		if err := j.Mailer.Send(email, subject, body); err != nil {
			j.logger().Warn("due reminder send failed",
				slog.String("email", email), slog.Any("error", err))
			continue
		}
		sent++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	j.logger().Info("due reminders sent", slog.Int("count", sent))
	return nil
}

func (j *TaskEmailJob) recipient(ctx context.Context, payload TaskEmailPayload) (name, email string, err error) {
	if j.Pool == nil {
		return "", "", errors.New("task email: pool not configured")
	}
	err = j.Pool.QueryRow(ctx, `
SELECT name, email FROM employees
WHERE company_id=$1 AND id=$2 AND is_active`, payload.TenantID, payload.AssigneeID).
		Scan(&name, &email)
	return name, email, err
}

func (j *TaskEmailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
