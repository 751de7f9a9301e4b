package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/zzappa/gradient-reading/internal/database"
	"github.com/zzappa/gradient-reading/internal/models"
	"gorm.io/gorm"
)

// jobRepository 转换任务仓储实现
type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository 使用全局数据库连接创建任务仓储
func NewJobRepository() JobRepository {
	return &jobRepository{db: database.MustDB()}
}

// NewJobRepositoryWithDB 使用指定的数据库连接创建任务仓储
func NewJobRepositoryWithDB(db *gorm.DB) JobRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &jobRepository{db: db}
}

// Create 创建任务
func (r *jobRepository) Create(job *models.TransformationJob) error {
	if job.ID == "" {
		return errors.New("job ID cannot be empty")
	}
	if job.TotalChapters == 0 {
		job.TotalChapters = models.TotalChapters
	}
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now()
	}
	return r.db.Create(job).Error
}

// GetByID 根据ID获取任务
func (r *jobRepository) GetByID(id string) (*models.TransformationJob, error) {
	var job models.TransformationJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrJobNotFound, id)
		}
		return nil, err
	}
	return &job, nil
}

// GetLatestByProject 获取项目最近一次的任务
func (r *jobRepository) GetLatestByProject(projectID string) (*models.TransformationJob, error) {
	var job models.TransformationJob
	err := r.db.Where("project_id = ?", projectID).Order("started_at DESC").First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: project %s", models.ErrJobNotFound, projectID)
		}
		return nil, err
	}
	return &job, nil
}

// ListByStatus 按状态列出任务
func (r *jobRepository) ListByStatus(statuses ...models.JobStatus) ([]*models.TransformationJob, error) {
	var jobs []*models.TransformationJob
	query := r.db.Model(&models.TransformationJob{})
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if err := query.Order("started_at ASC").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
