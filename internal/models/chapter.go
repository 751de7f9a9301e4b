package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ChapterStatus 章节状态类型
type ChapterStatus string

const (
	// ChapterStatusPending 等待处理
	ChapterStatusPending ChapterStatus = "pending"
	// ChapterStatusProcessing 处理中
	ChapterStatusProcessing ChapterStatus = "processing"
	// ChapterStatusCompleted 已完成
	ChapterStatusCompleted ChapterStatus = "completed"
	// ChapterStatusFailed 处理失败
	ChapterStatusFailed ChapterStatus = "failed"
)

var chapterTransitions = map[ChapterStatus][]ChapterStatus{
	ChapterStatusPending:    {ChapterStatusProcessing},
	ChapterStatusProcessing: {ChapterStatusCompleted, ChapterStatusFailed},
}

// CanTransitionTo 检查章节状态转换是否合法
func (s ChapterStatus) CanTransitionTo(next ChapterStatus) bool {
	for _, allowed := range chapterTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Chapter 章节数据模型
// 每个项目每个级别一个章节，级别0为原文
type Chapter struct {
	ID         string         `gorm:"primaryKey;size:36"`                               // 章节ID
	ProjectID  string         `gorm:"size:36;not null;uniqueIndex:idx_project_chapter"` // 所属项目
	ChapterNum int            `gorm:"not null;uniqueIndex:idx_project_chapter"`         // 章节序号
	Level      int            `gorm:"not null"`                                         // 难度级别
	SourceText string         `gorm:"type:text"`                                        // 本级别对应的源文本段
	Content    string         `gorm:"type:text"`                                        // 转换后的文本
	Footnotes  datatypes.JSON `gorm:"type:json"`                                        // 脚注
	Status     ChapterStatus  `gorm:"size:20;not null;index"`                           // 状态
	CreatedAt  time.Time      `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"not null"`
}

// TableName 明确指定表名
func (Chapter) TableName() string {
	return "chapters"
}

// FootnoteList 解析章节脚注
func (c *Chapter) FootnoteList() ([]Footnote, error) {
	var notes []Footnote
	if len(c.Footnotes) == 0 {
		return notes, nil
	}
	if err := json.Unmarshal(c.Footnotes, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// Footnote 脚注
// 从段落位置指向词汇条目
type Footnote struct {
	Term           string `json:"term"`
	ParagraphIndex int    `json:"paragraph_index"`
	Translation    string `json:"translation,omitempty"`
	Explanation    string `json:"explanation,omitempty"`
	Category       string `json:"category,omitempty"`
	GrammarNote    string `json:"grammar_note,omitempty"`
	Pronunciation  string `json:"pronunciation,omitempty"`
	NativeScript   string `json:"native_script,omitempty"`
	FirstLevel     int    `json:"first_level"`
}
