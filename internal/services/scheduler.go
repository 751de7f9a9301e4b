package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zzappa/gradient-reading/internal/models"
	"github.com/zzappa/gradient-reading/pkg/taskqueue"
)

// Scheduler 转换运行调度器
type Scheduler interface {
	// Schedule 安排执行一次运行，不等待运行结束
	Schedule(ctx context.Context, projectID, jobID string) error
}

// GoroutineScheduler 在当前进程的goroutine中执行运行
type GoroutineScheduler struct {
	base   context.Context
	runner Runner
	logger *logrus.Logger
	wg     sync.WaitGroup
}

// NewGoroutineScheduler 创建goroutine调度器
// 运行使用base作为上下文，不受发起请求的生命周期影响
func NewGoroutineScheduler(base context.Context, runner Runner, logger *logrus.Logger) *GoroutineScheduler {
	if logger == nil {
		logger = logrus.New()
	}
	if base == nil {
		base = context.Background()
	}
	return &GoroutineScheduler{base: base, runner: runner, logger: logger}
}

// Schedule 启动goroutine执行运行
func (s *GoroutineScheduler) Schedule(_ context.Context, projectID, jobID string) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.runner.RunGuarded(s.base, projectID, jobID); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"project_id": projectID,
				"job_id":     jobID,
			}).Error("Transformation run failed")
		}
	}()
	return nil
}

// Wait 等待所有已调度的运行结束
func (s *GoroutineScheduler) Wait() {
	s.wg.Wait()
}

// QueueScheduler 通过任务队列调度运行
type QueueScheduler struct {
	queue  taskqueue.Queue
	logger *logrus.Logger
}

// NewQueueScheduler 创建队列调度器
func NewQueueScheduler(queue taskqueue.Queue, logger *logrus.Logger) *QueueScheduler {
	if logger == nil {
		logger = logrus.New()
	}
	return &QueueScheduler{queue: queue, logger: logger}
}

// Schedule 将运行加入任务队列
// 入队前清理该项目已被取代的任务记录
func (s *QueueScheduler) Schedule(ctx context.Context, projectID, jobID string) error {
	s.pruneSuperseded(ctx, projectID, jobID)

	taskID, err := s.queue.Enqueue(ctx, taskqueue.TaskTransformRun, projectID, taskqueue.TransformRunPayload{
		ProjectID: projectID,
		JobID:     jobID,
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue transformation: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"job_id":     jobID,
		"task_id":    taskID,
	}).Info("Transformation enqueued")
	return nil
}

// pruneSuperseded 删除项目中已结束的任务，以及属于其他转换任务且尚未开始的任务
// 清理失败只记录日志
func (s *QueueScheduler) pruneSuperseded(ctx context.Context, projectID, jobID string) {
	tasks, err := s.queue.GetTasksByProject(ctx, projectID)
	if err != nil {
		s.logger.WithError(err).WithField("project_id", projectID).Warn("Failed to list project tasks")
		return
	}

	for _, task := range tasks {
		if task.Type != taskqueue.TaskTransformRun {
			continue
		}
		var payload taskqueue.TransformRunPayload
		if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
			continue
		}
		superseded := task.Status.IsTerminal() ||
			(task.Status == taskqueue.StatusPending && payload.JobID != jobID)
		if !superseded {
			continue
		}
		if err := s.queue.DeleteTask(ctx, task.ID); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"project_id": projectID,
				"task_id":    task.ID,
			}).Warn("Failed to delete superseded task")
		}
	}
}

// TransformWorker 处理队列中的转换任务
type TransformWorker struct {
	runner Runner
	logger *logrus.Logger
}

// NewTransformWorker 创建转换任务处理器
func NewTransformWorker(runner Runner, logger *logrus.Logger) *TransformWorker {
	if logger == nil {
		logger = logrus.New()
	}
	return &TransformWorker{runner: runner, logger: logger}
}

// ProcessTask 解析任务负载并执行运行
func (w *TransformWorker) ProcessTask(ctx context.Context, task *taskqueue.Task) error {
	var payload taskqueue.TransformRunPayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return err
	}
	if payload.ProjectID == "" || payload.JobID == "" {
		return taskqueue.ErrInvalidPayload
	}

	w.logger.WithFields(logrus.Fields{
		"task_id":    task.ID,
		"project_id": payload.ProjectID,
		"job_id":     payload.JobID,
	}).Info("Processing transformation task")

	return w.runner.RunGuarded(ctx, payload.ProjectID, payload.JobID)
}

// RecoverIncompleteJobs 重新调度所有处理中的任务
// 启动时调用，处理中的任务视为其所属进程已经退出
func RecoverIncompleteJobs(ctx context.Context, status *TransformStatusManager, scheduler Scheduler, logger *logrus.Logger) (int, error) {
	if logger == nil {
		logger = logrus.New()
	}

	jobs, err := status.ListJobs(ctx, models.JobStatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to list incomplete jobs: %w", err)
	}

	recovered := 0
	for _, job := range jobs {
		entry := logger.WithFields(logrus.Fields{
			"project_id": job.ProjectID,
			"job_id":     job.ID,
		})
		if err := scheduler.Schedule(ctx, job.ProjectID, job.ID); err != nil {
			entry.WithError(err).Error("Failed to reschedule incomplete job")
			continue
		}
		entry.Info("Rescheduled incomplete job")
		recovered++
	}
	return recovered, nil
}
