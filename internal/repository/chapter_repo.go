package repository

import (
	"errors"
	"fmt"

	"github.com/zzappa/gradient-reading/internal/database"
	"github.com/zzappa/gradient-reading/internal/models"
	"gorm.io/gorm"
)

// chapterRepository 章节仓储实现
type chapterRepository struct {
	db *gorm.DB
}

// NewChapterRepository 使用全局数据库连接创建章节仓储
func NewChapterRepository() ChapterRepository {
	return &chapterRepository{db: database.MustDB()}
}

// NewChapterRepositoryWithDB 使用指定的数据库连接创建章节仓储
func NewChapterRepositoryWithDB(db *gorm.DB) ChapterRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &chapterRepository{db: db}
}

// ListByProject 列出项目的所有章节
func (r *chapterRepository) ListByProject(projectID string) ([]*models.Chapter, error) {
	var chapters []*models.Chapter
	err := r.db.Where("project_id = ?", projectID).Order("chapter_num ASC").Find(&chapters).Error
	if err != nil {
		return nil, err
	}
	return chapters, nil
}

// GetByNum 获取指定章节
func (r *chapterRepository) GetByNum(projectID string, chapterNum int) (*models.Chapter, error) {
	var chapter models.Chapter
	err := r.db.Where("project_id = ? AND chapter_num = ?", projectID, chapterNum).First(&chapter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: project %s chapter %d", models.ErrChapterNotFound, projectID, chapterNum)
		}
		return nil, err
	}
	return &chapter, nil
}
