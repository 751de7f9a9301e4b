package models

import "time"

const (
	// TransformLevels 转换级别数量（1-7）
	TransformLevels = 7
	// TotalChapters 每次转换产生的章节数（含原文章节）
	TotalChapters = TransformLevels + 1
)

// JobStatus 转换任务状态
type JobStatus string

const (
	// JobStatusProcessing 处理中
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted 已完成
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed 失败
	JobStatusFailed JobStatus = "failed"
)

// IsTerminal 是否为终止状态
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo 检查任务状态转换是否合法
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	return s == JobStatusProcessing && next.IsTerminal()
}

// TransformationJob 转换任务数据模型
type TransformationJob struct {
	ID                string     `gorm:"primaryKey;size:36"`     // 任务ID
	ProjectID         string     `gorm:"size:36;not null;index"` // 项目ID
	Status            JobStatus  `gorm:"size:20;not null;index"` // 任务状态
	TotalChapters     int        `gorm:"not null;default:8"`     // 章节总数
	CompletedChapters int        `gorm:"not null;default:0"`     // 已完成章节数
	CurrentChapter    int        `gorm:"not null;default:0"`     // 当前处理的章节序号（从1开始）
	ErrorMessage      string     `gorm:"type:text"`              // 错误信息
	StartedAt         time.Time  `gorm:"not null;index"`         // 开始时间
	CompletedAt       *time.Time `gorm:"index"`                  // 结束时间
	UpdatedAt         time.Time  `gorm:"not null"`               // 更新时间
}

// TableName 明确指定表名
func (TransformationJob) TableName() string {
	return "transformation_jobs"
}
