package model

// PaginationRequest 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// Offset 当前页的起始偏移
func (p *PaginationRequest) Offset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// CreateProjectRequest 创建项目请求
type CreateProjectRequest struct {
	Title          string `json:"title" binding:"required,max=255"`               // 标题
	SourceText     string `json:"source_text" binding:"required"`                 // 源文本
	SourceLanguage string `json:"source_language" binding:"required,min=2,max=8"` // 源语言代码
	TargetLanguage string `json:"target_language" binding:"required,min=2,max=8"` // 目标语言代码
	Format         string `json:"format" binding:"omitempty,oneof=text markdown"` // 源文本格式，默认为text
}

// ProjectURIRequest 项目路径参数
type ProjectURIRequest struct {
	ID string `uri:"id" binding:"required"` // 项目ID
}

// ChapterURIRequest 章节路径参数
type ChapterURIRequest struct {
	ID  string `uri:"id" binding:"required"`     // 项目ID
	Num int    `uri:"num" binding:"min=0,max=7"` // 章节序号
}

// JobURIRequest 任务路径参数
type JobURIRequest struct {
	ID string `uri:"id" binding:"required"` // 任务ID
}
