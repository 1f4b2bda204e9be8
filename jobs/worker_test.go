package jobs

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerRegistersCronEntries(t *testing.T) {
	worker, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Cron: []CronRegistration{
			{Spec: "0 8 * * *", Task: NewTaskDueReminderTask()},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, worker.scheduler)
}

func TestNewWorkerRejectsBadCronSpec(t *testing.T) {
	_, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Cron: []CronRegistration{
			{Spec: "not a cron spec", Task: NewTaskDueReminderTask()},
		},
	})
	require.Error(t, err)
}

func TestNewWorkerSkipsBlankCronEntries(t *testing.T) {
	worker, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Cron: []CronRegistration{
			{Spec: "", Task: NewTaskDueReminderTask()},
			{Spec: "@daily", Task: nil},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, worker.scheduler)
}

func TestDueReminderTaskHasNoPayload(t *testing.T) {
	task := NewTaskDueReminderTask()
	require.Equal(t, TaskTypeTaskDueReminder, task.Type())
	require.Empty(t, task.Payload())
}
