package taskqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisQueue 使用miniredis创建队列
func setupRedisQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.RedisAddr = mr.Addr()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	queue, err := NewRedisQueueWithLogger(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { queue.Close() })
	return queue, mr
}

// TestNewRedisQueue 测试创建Redis队列实例
func TestNewRedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)

	queue, err := NewQueue("redis", &Config{RedisAddr: mr.Addr()})
	require.NoError(t, err)
	assert.NoError(t, queue.Close())

	_, err = NewQueue("kafka", nil)
	assert.Error(t, err)

	mr.Close()
	_, err = NewRedisQueue(&Config{RedisAddr: mr.Addr()})
	assert.Error(t, err)
}

// TestRedisQueue_Enqueue 测试队列入队功能
func TestRedisQueue_Enqueue(t *testing.T) {
	queue, mr := setupRedisQueue(t)
	ctx := context.Background()

	payload := TransformRunPayload{ProjectID: "project-1", JobID: "job-1"}
	taskID, err := queue.Enqueue(ctx, TaskTransformRun, "project-1", payload)
	require.NoError(t, err)
	assert.NotEmpty(t, taskID)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, taskID, task.ID)
	assert.Equal(t, TaskTransformRun, task.Type)
	assert.Equal(t, "project-1", task.ProjectID)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, 0, task.MaxRetries)

	var decoded TransformRunPayload
	require.NoError(t, UnmarshalPayload(task.Payload, &decoded))
	assert.Equal(t, payload, decoded)

	// 任务数据带过期时间
	assert.Equal(t, defaultTaskExpiry, mr.TTL(taskKeyPrefix+taskID))
}

// TestRedisQueue_GetTasksByProject 测试按项目获取任务
func TestRedisQueue_GetTasksByProject(t *testing.T) {
	queue, _ := setupRedisQueue(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := queue.Enqueue(ctx, TaskTransformRun, "project-2", TransformRunPayload{ProjectID: "project-2"})
		require.NoError(t, err)
	}
	_, err := queue.Enqueue(ctx, TaskTransformRun, "project-3", TransformRunPayload{ProjectID: "project-3"})
	require.NoError(t, err)

	tasks, err := queue.GetTasksByProject(ctx, "project-2")
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
	for _, task := range tasks {
		assert.Equal(t, "project-2", task.ProjectID)
	}

	empty, err := queue.GetTasksByProject(ctx, "non-existent")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// TestRedisQueue_UpdateTaskStatus 测试更新任务状态
func TestRedisQueue_UpdateTaskStatus(t *testing.T) {
	queue, _ := setupRedisQueue(t)
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskTransformRun, "project-4", nil)
	require.NoError(t, err)

	require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, StatusProcessing, ""))
	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, task.Status)
	assert.NotNil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)
	assert.Equal(t, 1, task.Attempts)

	require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, StatusFailed, "Failed while processing level 3."))
	task, err = queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, "Failed while processing level 3.", task.Error)
	assert.NotNil(t, task.CompletedAt)

	err = queue.UpdateTaskStatus(ctx, "missing", StatusCompleted, "")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

// TestRedisQueue_DeleteTask 测试删除任务
func TestRedisQueue_DeleteTask(t *testing.T) {
	queue, _ := setupRedisQueue(t)
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskTransformRun, "project-5", nil)
	require.NoError(t, err)

	require.NoError(t, queue.DeleteTask(ctx, taskID))

	_, err = queue.GetTask(ctx, taskID)
	assert.Equal(t, ErrTaskNotFound, err)

	tasks, err := queue.GetTasksByProject(ctx, "project-5")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

// TestRedisWorker_Wrap 测试处理函数对任务状态的同步
func TestRedisWorker_Wrap(t *testing.T) {
	queue, _ := setupRedisQueue(t)
	ctx := context.Background()
	worker := &RedisWorker{queue: queue, handlers: make(map[TaskType]Handler), logger: queue.logger}

	t.Run("success", func(t *testing.T) {
		taskID, err := queue.Enqueue(ctx, TaskTransformRun, "project-6", TransformRunPayload{ProjectID: "project-6", JobID: "job-6"})
		require.NoError(t, err)

		var seen TransformRunPayload
		handler := HandlerFunc(func(ctx context.Context, task *Task) error {
			return UnmarshalPayload(task.Payload, &seen)
		})
		require.NoError(t, worker.wrap(handler)(ctx, asynq.NewTask(string(TaskTransformRun), []byte(taskID))))
		assert.Equal(t, "job-6", seen.JobID)

		task, err := queue.GetTask(ctx, taskID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, task.Status)
		assert.Equal(t, 1, task.Attempts)
	})

	t.Run("failure", func(t *testing.T) {
		taskID, err := queue.Enqueue(ctx, TaskTransformRun, "project-7", nil)
		require.NoError(t, err)

		handler := HandlerFunc(func(context.Context, *Task) error {
			return errors.New("lock timeout")
		})
		err = worker.wrap(handler)(ctx, asynq.NewTask(string(TaskTransformRun), []byte(taskID)))
		assert.EqualError(t, err, "lock timeout")

		task, err := queue.GetTask(ctx, taskID)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, task.Status)
		assert.Equal(t, "lock timeout", task.Error)
	})

	t.Run("unknown task", func(t *testing.T) {
		handler := HandlerFunc(func(context.Context, *Task) error { return nil })
		err := worker.wrap(handler)(ctx, asynq.NewTask(string(TaskTransformRun), []byte("missing")))
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}

// TestIntegration_RealRedis 使用真实Redis服务器运行工作者
func TestIntegration_RealRedis(t *testing.T) {
	redisAddr := "localhost:6379"

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skip("Skipping integration test: Redis not available at localhost:6379")
	}
	client.Close()

	cfg := DefaultConfig()
	cfg.RedisAddr = redisAddr
	queue, err := NewRedisQueueWithLogger(cfg, nil)
	require.NoError(t, err)
	defer queue.Close()

	done := make(chan string, 1)
	worker := NewRedisWorker(queue, cfg)
	worker.RegisterHandler(TaskTransformRun, HandlerFunc(func(ctx context.Context, task *Task) error {
		done <- task.ID
		return nil
	}))
	require.NoError(t, worker.Start())
	defer worker.Stop()

	taskID, err := queue.Enqueue(ctx, TaskTransformRun, "project-integration", TransformRunPayload{ProjectID: "project-integration"})
	require.NoError(t, err)

	select {
	case id := <-done:
		assert.Equal(t, taskID, id)
	case <-time.After(10 * time.Second):
		t.Fatal("task was not processed")
	}

	require.NoError(t, queue.DeleteTask(ctx, taskID))
}

func TestUnmarshalPayload(t *testing.T) {
	var payload TransformRunPayload
	assert.ErrorIs(t, UnmarshalPayload(nil, &payload), ErrInvalidPayload)
	assert.ErrorIs(t, UnmarshalPayload([]byte("not json"), &payload), ErrInvalidPayload)
	require.NoError(t, UnmarshalPayload([]byte(`{"project_id":"p","job_id":"j"}`), &payload))
	assert.Equal(t, TransformRunPayload{ProjectID: "p", JobID: "j"}, payload)
}
