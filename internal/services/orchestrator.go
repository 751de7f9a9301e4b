package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zzappa/gradient-reading/internal/database"
	"github.com/zzappa/gradient-reading/internal/lock"
	"github.com/zzappa/gradient-reading/internal/models"
	"github.com/zzappa/gradient-reading/internal/transform"
)

// Runner 执行一次转换运行
type Runner interface {
	RunGuarded(ctx context.Context, projectID, jobID string) error
}

// Orchestrator 转换编排器
// 对每个任务按级别1到7顺序执行转换，并维护章节与任务状态
type Orchestrator struct {
	generator transform.Generator     // 生成适配器
	status    *TransformStatusManager // 状态管理器
	locker    *lock.Locker            // 跨进程文档锁
	active    *ActiveJobs             // 进程内活跃任务
	snapshots *SnapshotWriter         // 快照写入器，可为空
	options   transform.Options       // 流程参数模板，语言由项目决定
	logger    *logrus.Logger
}

// OrchestratorOption 编排器选项
type OrchestratorOption func(*Orchestrator)

// WithLocker 设置文档锁
func WithLocker(locker *lock.Locker) OrchestratorOption {
	return func(o *Orchestrator) {
		o.locker = locker
	}
}

// WithActiveJobs 设置活跃任务登记表
func WithActiveJobs(active *ActiveJobs) OrchestratorOption {
	return func(o *Orchestrator) {
		o.active = active
	}
}

// WithSnapshots 设置快照写入器
func WithSnapshots(snapshots *SnapshotWriter) OrchestratorOption {
	return func(o *Orchestrator) {
		o.snapshots = snapshots
	}
}

// WithTransformOptions 设置流程参数
func WithTransformOptions(opts transform.Options) OrchestratorOption {
	return func(o *Orchestrator) {
		o.options = opts
	}
}

// WithOrchestratorLogger 设置日志记录器
func WithOrchestratorLogger(logger *logrus.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator 创建转换编排器
// 未指定文档锁时使用全局数据库上的租约表
func NewOrchestrator(generator transform.Generator, status *TransformStatusManager, opts ...OrchestratorOption) (*Orchestrator, error) {
	if generator == nil {
		return nil, errors.New("generator cannot be nil")
	}
	if status == nil {
		return nil, errors.New("status manager cannot be nil")
	}

	o := &Orchestrator{
		generator: generator,
		status:    status,
		logger:    logrus.New(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.locker == nil {
		o.locker = lock.NewLocker(lock.NewGormBackend(database.MustDB()), o.logger)
	}
	if o.active == nil {
		active, err := NewActiveJobs(nil, o.logger)
		if err != nil {
			return nil, err
		}
		o.active = active
	}
	return o, nil
}

// RunGuarded 在活跃任务登记和文档锁保护下执行运行
// 同一任务已在本进程执行时直接返回
func (o *Orchestrator) RunGuarded(ctx context.Context, projectID, jobID string) error {
	logger := o.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"job_id":     jobID,
	})

	if !o.active.TryAdd(ctx, jobID) {
		logger.Info("Job already running in this process, skipping")
		return nil
	}
	defer o.active.Remove(context.Background(), jobID)

	// 等锁超时说明另一个存活的进程正在处理该项目，任务状态留给持有者推进
	lease, err := o.locker.Acquire(ctx, lock.DocumentLockName(projectID))
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			logger.Warn("Timed out waiting for document lock, leaving job to the current holder")
		}
		return fmt.Errorf("failed to acquire document lock: %w", err)
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			logger.WithError(err).Warn("Failed to release document lock")
		}
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-lease.Lost():
			logger.Warn("Document lock lost while transformation is running")
		case <-done:
		}
	}()

	return o.Run(ctx, projectID, jobID)
}

// Run 执行一次完整的转换运行
// 每次运行都从头重建章节，重复执行同一任务得到相同的章节结构
func (o *Orchestrator) Run(ctx context.Context, projectID, jobID string) (err error) {
	logger := o.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"job_id":     jobID,
	})

	job, err := o.status.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.ProjectID != projectID {
		return fmt.Errorf("%w: job %s does not belong to project %s", models.ErrJobNotFound, jobID, projectID)
	}
	if job.Status != models.JobStatusProcessing {
		logger.WithField("status", job.Status).Info("Job is not processing, skipping")
		return nil
	}

	// 当前处理中的级别，-1表示没有处理中的章节
	current := -1
	defer func() {
		if r := recover(); r != nil {
			message := fmt.Sprint(r)
			logger.WithField("panic", message).Error("Transformation panicked")
			o.fail(ctx, projectID, jobID, current, message)
			err = fmt.Errorf("transformation panicked: %v", r)
		}
	}()

	project, err := o.status.GetProject(ctx, projectID)
	if err != nil {
		o.fail(ctx, projectID, jobID, current, err.Error())
		return err
	}

	opts := o.options
	opts.SourceLanguage = project.SourceLanguage
	opts.TargetLanguage = project.TargetLanguage
	pipeline, err := transform.NewPipeline(o.generator, opts, o.logger)
	if err != nil {
		o.fail(ctx, projectID, jobID, current, err.Error())
		return err
	}

	segments := pipeline.Plan(project.SourceText)
	if err := o.status.BeginRun(ctx, project, jobID, segments); err != nil {
		o.fail(ctx, projectID, jobID, current, err.Error())
		return err
	}

	for _, seg := range segments {
		current = seg.Level
		if err := o.status.StartLevel(ctx, projectID, jobID, seg.Level); err != nil {
			o.fail(ctx, projectID, jobID, current, err.Error())
			return err
		}

		out, err := pipeline.ProcessSegment(ctx, seg)
		if err != nil {
			if ctx.Err() != nil {
				// 进程退出时保留处理中状态，下次启动由恢复流程重新执行
				logger.WithField("level", seg.Level).Warn("Transformation interrupted, leaving job for recovery")
				return ctx.Err()
			}
			o.fail(ctx, projectID, jobID, current, fmt.Sprintf("Failed while processing level %d.", seg.Level))
			return fmt.Errorf("level %d: %w", seg.Level, err)
		}

		if err := o.status.CompleteLevel(ctx, projectID, jobID, out); err != nil {
			o.fail(ctx, projectID, jobID, current, err.Error())
			return err
		}
	}
	current = -1

	if err := o.status.CompleteRun(ctx, projectID, jobID, pipeline.Tracker()); err != nil {
		o.fail(ctx, projectID, jobID, current, err.Error())
		return err
	}

	o.snapshots.WriteQuietly(ctx, projectID)
	return nil
}

// fail 标记运行失败，失败本身只记录日志
func (o *Orchestrator) fail(ctx context.Context, projectID, jobID string, level int, message string) {
	if err := o.status.FailRun(context.WithoutCancel(ctx), projectID, jobID, level, message); err != nil {
		o.logger.WithError(err).WithFields(logrus.Fields{
			"project_id": projectID,
			"job_id":     jobID,
		}).Warn("Failed to mark job as failed")
		return
	}
	o.snapshots.WriteQuietly(context.WithoutCancel(ctx), projectID)
}
