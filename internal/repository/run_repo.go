package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/zzappa/gradient-reading/internal/database"
	"github.com/zzappa/gradient-reading/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// runRepository 转换运行仓储实现
type runRepository struct {
	db *gorm.DB
}

// NewRunRepository 使用全局数据库连接创建运行仓储
func NewRunRepository() RunRepository {
	return &runRepository{db: database.MustDB()}
}

// NewRunRepositoryWithDB 使用指定的数据库连接创建运行仓储
func NewRunRepositoryWithDB(db *gorm.DB) RunRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &runRepository{db: db}
}

// PrepareRun 清理旧数据并创建新任务
func (r *runRepository) PrepareRun(projectID string, job *models.TransformationJob) error {
	if job == nil || job.ID == "" {
		return errors.New("job ID cannot be empty")
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if _, err := lockProject(tx, projectID); err != nil {
			return err
		}

		var running int64
		err := tx.Model(&models.TransformationJob{}).
			Where("project_id = ? AND status = ?", projectID, models.JobStatusProcessing).
			Count(&running).Error
		if err != nil {
			return err
		}
		if running > 0 {
			return models.ErrJobAlreadyRunning
		}

		if err := tx.Where("project_id = ?", projectID).Delete(&models.Chapter{}).Error; err != nil {
			return fmt.Errorf("failed to delete chapters: %w", err)
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.TransformationJob{}).Error; err != nil {
			return fmt.Errorf("failed to delete jobs: %w", err)
		}

		err = tx.Model(&models.Project{}).Where("id = ?", projectID).Updates(map[string]interface{}{
			"vocabulary": datatypes.JSON("{}"),
			"status":     models.ProjectStatusProcessing,
		}).Error
		if err != nil {
			return err
		}

		job.ProjectID = projectID
		job.Status = models.JobStatusProcessing
		job.TotalChapters = models.TotalChapters
		job.CompletedChapters = 0
		job.CurrentChapter = 0
		job.ErrorMessage = ""
		job.CompletedAt = nil
		if job.StartedAt.IsZero() {
			job.StartedAt = time.Now()
		}
		return tx.Create(job).Error
	})
}

// BeginRun 重建章节并重置任务进度
func (r *runRepository) BeginRun(projectID, jobID string, chapters []*models.Chapter) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		job, err := lockJob(tx, projectID, jobID)
		if err != nil {
			return err
		}
		if job.Status != models.JobStatusProcessing {
			return fmt.Errorf("%w: job %s is %s", models.ErrInvalidStatusTransition, jobID, job.Status)
		}

		if err := tx.Where("project_id = ?", projectID).Delete(&models.Chapter{}).Error; err != nil {
			return fmt.Errorf("failed to delete chapters: %w", err)
		}

		completed := 0
		for _, chapter := range chapters {
			chapter.ProjectID = projectID
			if chapter.Status == models.ChapterStatusCompleted {
				completed++
			}
		}
		if len(chapters) > 0 {
			if err := tx.Create(&chapters).Error; err != nil {
				return fmt.Errorf("failed to create chapters: %w", err)
			}
		}

		err = tx.Model(&models.TransformationJob{}).Where("id = ?", jobID).Updates(map[string]interface{}{
			"total_chapters":     models.TotalChapters,
			"completed_chapters": completed,
			"current_chapter":    completed,
			"error_message":      "",
			"completed_at":       nil,
			"updated_at":         time.Now(),
		}).Error
		if err != nil {
			return err
		}

		return tx.Model(&models.Project{}).Where("id = ?", projectID).
			Update("status", models.ProjectStatusProcessing).Error
	})
}

// StartChapter 将章节标记为处理中
func (r *runRepository) StartChapter(projectID, jobID string, chapterNum int) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := transitionChapter(tx, projectID, chapterNum, models.ChapterStatusProcessing, nil); err != nil {
			return err
		}
		return updateRunningJob(tx, projectID, jobID, map[string]interface{}{
			"current_chapter": chapterNum + 1,
		})
	})
}

// CompleteChapter 写入章节内容并标记完成
func (r *runRepository) CompleteChapter(projectID, jobID string, chapterNum int, content string, footnotes datatypes.JSON) error {
	if len(footnotes) == 0 {
		footnotes = datatypes.JSON("[]")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		err := transitionChapter(tx, projectID, chapterNum, models.ChapterStatusCompleted, map[string]interface{}{
			"content":   content,
			"footnotes": footnotes,
		})
		if err != nil {
			return err
		}
		return updateRunningJob(tx, projectID, jobID, map[string]interface{}{
			"completed_chapters": chapterNum + 1,
		})
	})
}

// FailRun 将运行标记为失败
func (r *runRepository) FailRun(projectID, jobID string, chapterNum int, message string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if chapterNum >= 0 {
			var chapter models.Chapter
			err := tx.Where("project_id = ? AND chapter_num = ?", projectID, chapterNum).First(&chapter).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			// 只有正在处理的章节会被标记为失败，已完成的章节保持不变
			if err == nil && chapter.Status == models.ChapterStatusProcessing {
				err = tx.Model(&models.Chapter{}).Where("id = ?", chapter.ID).
					Update("status", models.ChapterStatusFailed).Error
				if err != nil {
					return err
				}
			}
		}

		now := time.Now()
		err := updateRunningJob(tx, projectID, jobID, map[string]interface{}{
			"status":        models.JobStatusFailed,
			"error_message": message,
			"completed_at":  &now,
		})
		if err != nil {
			return err
		}

		return tx.Model(&models.Project{}).Where("id = ?", projectID).
			Update("status", models.ProjectStatusFailed).Error
	})
}

// CompleteRun 保存词汇表并完成运行
func (r *runRepository) CompleteRun(projectID, jobID string, vocabulary datatypes.JSON) error {
	if len(vocabulary) == 0 {
		vocabulary = datatypes.JSON("{}")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		job, err := lockJob(tx, projectID, jobID)
		if err != nil {
			return err
		}

		now := time.Now()
		err = updateRunningJob(tx, projectID, jobID, map[string]interface{}{
			"status":             models.JobStatusCompleted,
			"completed_chapters": job.TotalChapters,
			"completed_at":       &now,
		})
		if err != nil {
			return err
		}

		return tx.Model(&models.Project{}).Where("id = ?", projectID).Updates(map[string]interface{}{
			"vocabulary": vocabulary,
			"status":     models.ProjectStatusCompleted,
		}).Error
	})
}

// lockProject 在事务中读取项目，确认其存在
func lockProject(tx *gorm.DB, projectID string) (*models.Project, error) {
	var project models.Project
	if err := tx.Where("id = ?", projectID).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrProjectNotFound, projectID)
		}
		return nil, err
	}
	return &project, nil
}

// lockJob 在事务中读取属于项目的任务
func lockJob(tx *gorm.DB, projectID, jobID string) (*models.TransformationJob, error) {
	var job models.TransformationJob
	if err := tx.Where("id = ? AND project_id = ?", jobID, projectID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrJobNotFound, jobID)
		}
		return nil, err
	}
	return &job, nil
}

// transitionChapter 校验并执行章节状态转换
func transitionChapter(tx *gorm.DB, projectID string, chapterNum int, next models.ChapterStatus, fields map[string]interface{}) error {
	var chapter models.Chapter
	err := tx.Where("project_id = ? AND chapter_num = ?", projectID, chapterNum).First(&chapter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: project %s chapter %d", models.ErrChapterNotFound, projectID, chapterNum)
		}
		return err
	}
	if !chapter.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: chapter %d %s -> %s", models.ErrInvalidStatusTransition, chapterNum, chapter.Status, next)
	}

	updates := map[string]interface{}{"status": next}
	for k, v := range fields {
		updates[k] = v
	}
	return tx.Model(&models.Chapter{}).Where("id = ?", chapter.ID).Updates(updates).Error
}

// updateRunningJob 更新处理中的任务，任务已处于终止状态时返回错误
func updateRunningJob(tx *gorm.DB, projectID, jobID string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	result := tx.Model(&models.TransformationJob{}).
		Where("id = ? AND project_id = ? AND status = ?", jobID, projectID, models.JobStatusProcessing).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: job %s is not processing", models.ErrInvalidStatusTransition, jobID)
	}
	return nil
}
