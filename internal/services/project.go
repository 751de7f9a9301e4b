package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/zzappa/gradient-reading/internal/document"
	"github.com/zzappa/gradient-reading/internal/languages"
	"github.com/zzappa/gradient-reading/internal/models"
)

// ErrInvalidProject 项目参数不合法
var ErrInvalidProject = errors.New("invalid project")

// CreateProjectInput 创建项目参数
type CreateProjectInput struct {
	Title          string
	SourceText     string
	SourceLanguage string
	TargetLanguage string
	Format         string // "text"或"markdown"
}

// ProjectService 项目服务
// 负责项目的创建、转换启动和查询
type ProjectService struct {
	status    *TransformStatusManager
	scheduler Scheduler
	snapshots *SnapshotWriter
	logger    *logrus.Logger
}

// ProjectOption 项目服务选项
type ProjectOption func(*ProjectService)

// WithProjectSnapshots 设置快照写入器
func WithProjectSnapshots(snapshots *SnapshotWriter) ProjectOption {
	return func(s *ProjectService) {
		s.snapshots = snapshots
	}
}

// WithProjectLogger 设置日志记录器
func WithProjectLogger(logger *logrus.Logger) ProjectOption {
	return func(s *ProjectService) {
		s.logger = logger
	}
}

// NewProjectService 创建项目服务
func NewProjectService(status *TransformStatusManager, scheduler Scheduler, opts ...ProjectOption) *ProjectService {
	s := &ProjectService{
		status:    status,
		scheduler: scheduler,
		logger:    logrus.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateProject 校验参数并创建项目
func (s *ProjectService) CreateProject(ctx context.Context, in CreateProjectInput) (*models.Project, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalidProject)
	}
	if _, err := languages.Get(in.SourceLanguage); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProject, err)
	}
	if _, err := languages.Get(in.TargetLanguage); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProject, err)
	}
	if in.SourceLanguage == in.TargetLanguage {
		return nil, fmt.Errorf("%w: source and target language must differ", ErrInvalidProject)
	}

	text := in.SourceText
	switch in.Format {
	case "", "text":
	case "markdown":
		text = document.MarkdownToText([]byte(text))
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidProject, in.Format)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: source text cannot be empty", ErrInvalidProject)
	}

	project := &models.Project{
		ID:             uuid.New().String(),
		Title:          title,
		SourceLanguage: in.SourceLanguage,
		TargetLanguage: in.TargetLanguage,
		SourceText:     text,
		Status:         models.ProjectStatusCreated,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := s.status.projects.Create(project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"project_id": project.ID,
		"source":     project.SourceLanguage,
		"target":     project.TargetLanguage,
	}).Info("Project created")

	s.snapshots.WriteQuietly(ctx, project.ID)
	return project, nil
}

// StartTransformation 清理项目旧结果，创建任务并调度运行
// 项目已有处理中的任务时返回models.ErrJobAlreadyRunning
func (s *ProjectService) StartTransformation(ctx context.Context, projectID string) (*models.TransformationJob, error) {
	job, err := s.status.PrepareRun(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if err := s.scheduler.Schedule(ctx, projectID, job.ID); err != nil {
		if failErr := s.status.FailRun(ctx, projectID, job.ID, -1, "Failed to schedule transformation."); failErr != nil {
			s.logger.WithError(failErr).WithField("job_id", job.ID).Warn("Failed to mark job as failed")
		}
		return nil, err
	}
	return job, nil
}

// GetProject 获取项目
func (s *ProjectService) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	return s.status.GetProject(ctx, projectID)
}

// ListProjects 分页列出项目
func (s *ProjectService) ListProjects(ctx context.Context, offset, limit int) ([]*models.Project, int64, error) {
	return s.status.projects.List(offset, limit)
}

// ListChapters 列出项目章节，项目不存在时返回错误
func (s *ProjectService) ListChapters(ctx context.Context, projectID string) ([]*models.Chapter, error) {
	if _, err := s.status.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.status.ListChapters(ctx, projectID)
}

// GetChapter 获取项目的指定章节
func (s *ProjectService) GetChapter(ctx context.Context, projectID string, chapterNum int) (*models.Chapter, error) {
	return s.status.GetChapter(ctx, projectID, chapterNum)
}

// GetLatestJob 获取项目最近一次的任务
func (s *ProjectService) GetLatestJob(ctx context.Context, projectID string) (*models.TransformationJob, error) {
	if _, err := s.status.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.status.GetLatestJob(ctx, projectID)
}

// GetJob 获取任务
func (s *ProjectService) GetJob(ctx context.Context, jobID string) (*models.TransformationJob, error) {
	return s.status.GetJob(ctx, jobID)
}

// GetSnapshot 读取项目快照
func (s *ProjectService) GetSnapshot(ctx context.Context, projectID string) (*ProjectSnapshot, error) {
	if s.snapshots == nil {
		return nil, errors.New("snapshots are not configured")
	}
	return s.snapshots.Read(ctx, projectID)
}
