package repository

import (
	"github.com/zzappa/gradient-reading/internal/models"
	"gorm.io/datatypes"
)

// ProjectRepository 项目仓储接口
type ProjectRepository interface {
	// Create 创建项目
	Create(project *models.Project) error

	// GetByID 根据ID获取项目
	GetByID(id string) (*models.Project, error)

	// List 分页列出项目，按创建时间倒序
	List(offset, limit int) ([]*models.Project, int64, error)

	// UpdateStatus 更新项目状态
	UpdateStatus(id string, status models.ProjectStatus) error

	// SaveVocabulary 保存项目词汇表
	SaveVocabulary(id string, vocabulary datatypes.JSON) error
}

// ChapterRepository 章节仓储接口
type ChapterRepository interface {
	// ListByProject 按章节序号列出项目的所有章节
	ListByProject(projectID string) ([]*models.Chapter, error)

	// GetByNum 获取项目的指定章节
	GetByNum(projectID string, chapterNum int) (*models.Chapter, error)
}

// JobRepository 转换任务仓储接口
type JobRepository interface {
	// Create 创建任务
	Create(job *models.TransformationJob) error

	// GetByID 根据ID获取任务
	GetByID(id string) (*models.TransformationJob, error)

	// GetLatestByProject 获取项目最近一次的任务
	GetLatestByProject(projectID string) (*models.TransformationJob, error)

	// ListByStatus 按状态列出任务，按开始时间排序
	ListByStatus(statuses ...models.JobStatus) ([]*models.TransformationJob, error)
}

// RunRepository 转换运行仓储
// 所有方法在单个事务中同时更新章节、任务和项目，轮询方总能看到一致的进度
type RunRepository interface {
	// PrepareRun 清理项目的旧章节与旧任务，重置词汇表并创建新的处理中任务
	// 如果项目已有处理中的任务返回models.ErrJobAlreadyRunning
	PrepareRun(projectID string, job *models.TransformationJob) error

	// BeginRun 删除项目所有章节并写入本次运行的初始章节，重置任务进度
	BeginRun(projectID, jobID string, chapters []*models.Chapter) error

	// StartChapter 将章节从pending转为processing并更新当前章节
	StartChapter(projectID, jobID string, chapterNum int) error

	// CompleteChapter 写入章节内容并将其标记为completed，更新完成计数
	CompleteChapter(projectID, jobID string, chapterNum int, content string, footnotes datatypes.JSON) error

	// FailRun 将处理中的章节和任务标记为失败，chapterNum小于0时只处理任务和项目
	FailRun(projectID, jobID string, chapterNum int, message string) error

	// CompleteRun 保存词汇表并将任务和项目标记为完成
	CompleteRun(projectID, jobID string, vocabulary datatypes.JSON) error
}
