package services

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zzappa/gradient-reading/internal/models"
	"github.com/zzappa/gradient-reading/pkg/taskqueue"
)

func TestQueueScheduler(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	project, job := env.createProject(t)

	mr := miniredis.RunT(t)
	cfg := taskqueue.DefaultConfig()
	cfg.RedisAddr = mr.Addr()
	queue, err := taskqueue.NewRedisQueueWithLogger(cfg, env.logger)
	require.NoError(t, err)
	t.Cleanup(func() { queue.Close() })

	scheduler := NewQueueScheduler(queue, env.logger)
	require.NoError(t, scheduler.Schedule(ctx, project.ID, job.ID))

	tasks, err := queue.GetTasksByProject(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	task := tasks[0]
	assert.Equal(t, taskqueue.TaskTransformRun, task.Type)

	var payload taskqueue.TransformRunPayload
	require.NoError(t, taskqueue.UnmarshalPayload(task.Payload, &payload))
	assert.Equal(t, project.ID, payload.ProjectID)
	assert.Equal(t, job.ID, payload.JobID)

	t.Run("worker runs the task", func(t *testing.T) {
		orch := env.newOrchestrator(t, &scriptedGenerator{fn: echoWithTerm})
		worker := NewTransformWorker(orch, env.logger)

		require.NoError(t, worker.ProcessTask(ctx, task))

		stored, err := env.status.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCompleted, stored.Status)
	})

	t.Run("worker rejects bad payload", func(t *testing.T) {
		worker := NewTransformWorker(env.newOrchestrator(t, &scriptedGenerator{fn: echoWithTerm}), env.logger)

		err := worker.ProcessTask(ctx, &taskqueue.Task{ID: "bad", Payload: []byte(`{"project_id":""}`)})
		assert.ErrorIs(t, err, taskqueue.ErrInvalidPayload)

		err = worker.ProcessTask(ctx, &taskqueue.Task{ID: "empty"})
		assert.ErrorIs(t, err, taskqueue.ErrInvalidPayload)
	})
	t.Run("rescheduling prunes superseded tasks", func(t *testing.T) {
		require.NoError(t, queue.UpdateTaskStatus(ctx, task.ID, taskqueue.StatusCompleted, ""))

		require.NoError(t, scheduler.Schedule(ctx, project.ID, "job-2"))
		assert.Equal(t, []string{"job-2"}, scheduledJobs(t, queue, project.ID))

		// 未开始的旧运行被新运行取代
		require.NoError(t, scheduler.Schedule(ctx, project.ID, "job-3"))
		assert.Equal(t, []string{"job-3"}, scheduledJobs(t, queue, project.ID))

		_, err := queue.GetTask(ctx, task.ID)
		assert.ErrorIs(t, err, taskqueue.ErrTaskNotFound)
	})
}

func scheduledJobs(t *testing.T, queue taskqueue.Queue, projectID string) []string {
	t.Helper()
	tasks, err := queue.GetTasksByProject(context.Background(), projectID)
	require.NoError(t, err)

	jobs := make([]string, 0, len(tasks))
	for _, task := range tasks {
		var payload taskqueue.TransformRunPayload
		require.NoError(t, taskqueue.UnmarshalPayload(task.Payload, &payload))
		jobs = append(jobs, payload.JobID)
	}
	return jobs
}
