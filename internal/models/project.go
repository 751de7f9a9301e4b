package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProjectStatus 项目状态类型
type ProjectStatus string

const (
	// ProjectStatusCreated 项目已创建，尚未转换
	ProjectStatusCreated ProjectStatus = "created"
	// ProjectStatusProcessing 转换进行中
	ProjectStatusProcessing ProjectStatus = "processing"
	// ProjectStatusCompleted 转换完成
	ProjectStatusCompleted ProjectStatus = "completed"
	// ProjectStatusFailed 转换失败
	ProjectStatusFailed ProjectStatus = "failed"
)

// Project 项目数据模型
// 一个项目对应一篇源文本及其8个难度级别的章节
type Project struct {
	ID             string         `gorm:"primaryKey;size:36"`     // 项目ID
	Title          string         `gorm:"not null"`               // 标题
	SourceLanguage string         `gorm:"size:8;not null"`        // 源语言代码
	TargetLanguage string         `gorm:"size:8;not null"`        // 目标语言代码
	SourceText     string         `gorm:"type:text;not null"`     // 原始文本
	Vocabulary     datatypes.JSON `gorm:"type:json"`              // 词汇表，键为小写基本形式
	Status         ProjectStatus  `gorm:"size:20;not null;index"` // 项目状态
	CreatedAt      time.Time      `gorm:"not null;index"`         // 创建时间
	UpdatedAt      time.Time      `gorm:"not null"`               // 更新时间
}

// BeforeCreate 创建前设置默认状态
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.Status == "" {
		p.Status = ProjectStatusCreated
	}
	if len(p.Vocabulary) == 0 {
		p.Vocabulary = datatypes.JSON("{}")
	}
	return nil
}

// TableName 明确指定表名
func (Project) TableName() string {
	return "projects"
}

// VocabularyMap 解析项目词汇表
func (p *Project) VocabularyMap() (map[string]VocabularyEntry, error) {
	vocab := make(map[string]VocabularyEntry)
	if len(p.Vocabulary) == 0 {
		return vocab, nil
	}
	if err := json.Unmarshal(p.Vocabulary, &vocab); err != nil {
		return nil, err
	}
	return vocab, nil
}

// VocabularyEntry 词汇条目
// 以小写的基本形式为键，首次引入者优先
type VocabularyEntry struct {
	Term           string `json:"term"`            // 目标语言基本形式
	Translation    string `json:"translation"`     // 源语言释义
	Explanation    string `json:"explanation"`     // 简要说明
	Category       string `json:"category"`        // 词类
	GrammarNote    string `json:"grammar_note"`    // 语法说明
	Pronunciation  string `json:"pronunciation"`   // 发音
	NativeScript   string `json:"native_script"`   // 原生文字形式
	FirstLevel     int    `json:"first_level"`     // 首次引入的级别
	FirstParagraph int    `json:"first_paragraph"` // 首次引入的段落位置
}
