package repository

import (
	"errors"
	"fmt"

	"github.com/zzappa/gradient-reading/internal/database"
	"github.com/zzappa/gradient-reading/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// projectRepository 项目仓储实现
type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository 使用全局数据库连接创建项目仓储
func NewProjectRepository() ProjectRepository {
	return &projectRepository{db: database.MustDB()}
}

// NewProjectRepositoryWithDB 使用指定的数据库连接创建项目仓储
func NewProjectRepositoryWithDB(db *gorm.DB) ProjectRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &projectRepository{db: db}
}

// Create 创建项目
func (r *projectRepository) Create(project *models.Project) error {
	if project.ID == "" {
		return errors.New("project ID cannot be empty")
	}
	return r.db.Create(project).Error
}

// GetByID 根据ID获取项目
func (r *projectRepository) GetByID(id string) (*models.Project, error) {
	var project models.Project
	err := r.db.Where("id = ?", id).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrProjectNotFound, id)
		}
		return nil, err
	}
	return &project, nil
}

// List 分页列出项目
func (r *projectRepository) List(offset, limit int) ([]*models.Project, int64, error) {
	var projects []*models.Project
	var total int64

	query := r.db.Model(&models.Project{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 20
	}
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&projects).Error
	if err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

// UpdateStatus 更新项目状态
func (r *projectRepository) UpdateStatus(id string, status models.ProjectStatus) error {
	result := r.db.Model(&models.Project{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrProjectNotFound, id)
	}
	return nil
}

// SaveVocabulary 保存项目词汇表
func (r *projectRepository) SaveVocabulary(id string, vocabulary datatypes.JSON) error {
	if len(vocabulary) == 0 {
		vocabulary = datatypes.JSON("{}")
	}
	result := r.db.Model(&models.Project{}).Where("id = ?", id).Update("vocabulary", vocabulary)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrProjectNotFound, id)
	}
	return nil
}
