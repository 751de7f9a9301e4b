package model

import (
	"time"

	"github.com/zzappa/gradient-reading/internal/models"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// ProjectResponse 项目信息
type ProjectResponse struct {
	ID             string                            `json:"id"`
	Title          string                            `json:"title"`
	SourceLanguage string                            `json:"source_language"`
	TargetLanguage string                            `json:"target_language"`
	Status         string                            `json:"status"`
	SourceText     string                            `json:"source_text,omitempty"`
	Vocabulary     map[string]models.VocabularyEntry `json:"vocabulary,omitempty"`
	CreatedAt      time.Time                         `json:"created_at"`
	UpdatedAt      time.Time                         `json:"updated_at"`
}

// NewProjectResponse 转换项目模型，detail为false时省略源文本和词汇表
func NewProjectResponse(p *models.Project, detail bool) ProjectResponse {
	resp := ProjectResponse{
		ID:             p.ID,
		Title:          p.Title,
		SourceLanguage: p.SourceLanguage,
		TargetLanguage: p.TargetLanguage,
		Status:         string(p.Status),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if detail {
		resp.SourceText = p.SourceText
		if vocab, err := p.VocabularyMap(); err == nil {
			resp.Vocabulary = vocab
		}
	}
	return resp
}

// ProjectListResponse 项目列表响应
type ProjectListResponse struct {
	Total    int64             `json:"total"`     // 总数量
	Page     int               `json:"page"`      // 当前页码
	PageSize int               `json:"page_size"` // 每页大小
	Projects []ProjectResponse `json:"projects"`  // 项目列表
}

// ChapterResponse 章节信息
type ChapterResponse struct {
	ChapterNum int               `json:"chapter_num"`
	Level      int               `json:"level"`
	Status     string            `json:"status"`
	Content    string            `json:"content"`
	Footnotes  []models.Footnote `json:"footnotes"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// NewChapterResponse 转换章节模型
func NewChapterResponse(ch *models.Chapter) ChapterResponse {
	notes, err := ch.FootnoteList()
	if err != nil || notes == nil {
		notes = []models.Footnote{}
	}
	return ChapterResponse{
		ChapterNum: ch.ChapterNum,
		Level:      ch.Level,
		Status:     string(ch.Status),
		Content:    ch.Content,
		Footnotes:  notes,
		UpdatedAt:  ch.UpdatedAt,
	}
}

// JobResponse 转换任务状态
type JobResponse struct {
	ID                string     `json:"id"`
	ProjectID         string     `json:"project_id"`
	Status            string     `json:"status"`
	TotalChapters     int        `json:"total_chapters"`
	CompletedChapters int        `json:"completed_chapters"`
	CurrentChapter    int        `json:"current_chapter"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewJobResponse 转换任务模型
func NewJobResponse(job *models.TransformationJob) JobResponse {
	return JobResponse{
		ID:                job.ID,
		ProjectID:         job.ProjectID,
		Status:            string(job.Status),
		TotalChapters:     job.TotalChapters,
		CompletedChapters: job.CompletedChapters,
		CurrentChapter:    job.CurrentChapter,
		ErrorMessage:      job.ErrorMessage,
		StartedAt:         job.StartedAt,
		CompletedAt:       job.CompletedAt,
		UpdatedAt:         job.UpdatedAt,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}
