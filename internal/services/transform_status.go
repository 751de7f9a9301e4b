package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/zzappa/gradient-reading/internal/models"
	"github.com/zzappa/gradient-reading/internal/repository"
	"github.com/zzappa/gradient-reading/internal/transform"
	"gorm.io/datatypes"
)

// TransformStatusManager 转换状态管理器
// 负责一次运行中章节、任务和项目的状态推进
type TransformStatusManager struct {
	runs     repository.RunRepository     // 运行仓储
	projects repository.ProjectRepository // 项目仓储
	chapters repository.ChapterRepository // 章节仓储
	jobs     repository.JobRepository     // 任务仓储
	logger   *logrus.Logger               // 日志记录器
	mu       sync.Mutex                   // 互斥锁，保证状态转换的原子性
}

// NewTransformStatusManager 创建转换状态管理器
func NewTransformStatusManager(
	runs repository.RunRepository,
	projects repository.ProjectRepository,
	chapters repository.ChapterRepository,
	jobs repository.JobRepository,
	logger *logrus.Logger,
) *TransformStatusManager {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	return &TransformStatusManager{
		runs:     runs,
		projects: projects,
		chapters: chapters,
		jobs:     jobs,
		logger:   logger,
	}
}

// PrepareRun 为项目创建新的处理中任务
func (m *TransformStatusManager) PrepareRun(ctx context.Context, projectID string) (*models.TransformationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &models.TransformationJob{ID: uuid.New().String()}
	if err := m.runs.PrepareRun(projectID, job); err != nil {
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"job_id":     job.ID,
	}).Info("Transformation job created")
	return job, nil
}

// BeginRun 根据分段结果重建章节
// 章节0为已完成的原文，级别1-7等待处理
func (m *TransformStatusManager) BeginRun(ctx context.Context, project *models.Project, jobID string, segments []transform.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	chapters := []*models.Chapter{{
		ID:         uuid.New().String(),
		ChapterNum: 0,
		Level:      0,
		SourceText: project.SourceText,
		Content:    project.SourceText,
		Footnotes:  datatypes.JSON("[]"),
		Status:     models.ChapterStatusCompleted,
	}}
	for _, seg := range segments {
		chapters = append(chapters, &models.Chapter{
			ID:         uuid.New().String(),
			ChapterNum: seg.Level,
			Level:      seg.Level,
			SourceText: strings.Join(seg.Paragraphs, "\n\n"),
			Footnotes:  datatypes.JSON("[]"),
			Status:     models.ChapterStatusPending,
		})
	}

	m.logger.WithFields(logrus.Fields{
		"project_id": project.ID,
		"job_id":     jobID,
		"chapters":   len(chapters),
	}).Info("Starting transformation run")

	return m.runs.BeginRun(project.ID, jobID, chapters)
}

// StartLevel 将级别对应的章节标记为处理中
func (m *TransformStatusManager) StartLevel(ctx context.Context, projectID, jobID string, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"job_id":     jobID,
		"level":      level,
	}).Info("Processing level")

	return m.runs.StartChapter(projectID, jobID, level)
}

// CompleteLevel 保存级别的转换结果
func (m *TransformStatusManager) CompleteLevel(ctx context.Context, projectID, jobID string, out *transform.ChapterOutput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	footnotes, err := json.Marshal(out.Footnotes)
	if err != nil {
		return fmt.Errorf("failed to marshal footnotes: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"job_id":     jobID,
		"level":      out.Level,
		"paragraphs": len(out.Paragraphs),
		"footnotes":  len(out.Footnotes),
		"calls":      out.Calls,
	}).Info("Level completed")

	return m.runs.CompleteChapter(projectID, jobID, out.Level, out.Content(), datatypes.JSON(footnotes))
}

// FailRun 将运行标记为失败，level小于0表示没有处理中的章节
func (m *TransformStatusManager) FailRun(ctx context.Context, projectID, jobID string, level int, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"job_id":     jobID,
		"level":      level,
		"error":      message,
	}).Error("Transformation failed")

	return m.runs.FailRun(projectID, jobID, level, message)
}

// CompleteRun 保存词汇表并完成运行
func (m *TransformStatusManager) CompleteRun(ctx context.Context, projectID, jobID string, tracker *transform.Tracker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	vocabulary, err := tracker.Export()
	if err != nil {
		return fmt.Errorf("failed to export vocabulary: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"job_id":     jobID,
		"terms":      tracker.Len(),
	}).Info("Transformation completed")

	return m.runs.CompleteRun(projectID, jobID, vocabulary)
}

// GetProject 获取项目
func (m *TransformStatusManager) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	return m.projects.GetByID(projectID)
}

// GetJob 获取任务
func (m *TransformStatusManager) GetJob(ctx context.Context, jobID string) (*models.TransformationJob, error) {
	return m.jobs.GetByID(jobID)
}

// GetLatestJob 获取项目最近一次的任务
func (m *TransformStatusManager) GetLatestJob(ctx context.Context, projectID string) (*models.TransformationJob, error) {
	return m.jobs.GetLatestByProject(projectID)
}

// ListChapters 列出项目的章节
func (m *TransformStatusManager) ListChapters(ctx context.Context, projectID string) ([]*models.Chapter, error) {
	return m.chapters.ListByProject(projectID)
}

// GetChapter 获取项目的指定章节
func (m *TransformStatusManager) GetChapter(ctx context.Context, projectID string, chapterNum int) (*models.Chapter, error) {
	return m.chapters.GetByNum(projectID, chapterNum)
}

// ListJobs 按状态列出任务
func (m *TransformStatusManager) ListJobs(ctx context.Context, statuses ...models.JobStatus) ([]*models.TransformationJob, error) {
	return m.jobs.ListByStatus(statuses...)
}
