package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/zzappa/gradient-reading/api/middleware"
	"github.com/zzappa/gradient-reading/api/model"
	"github.com/zzappa/gradient-reading/internal/services"
)

// ProjectHandler 处理项目相关的API请求
type ProjectHandler struct {
	projectService *services.ProjectService // 项目服务
	logger         *logrus.Logger           // 日志记录器
}

// NewProjectHandler 创建新的项目处理器
func NewProjectHandler(projectService *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		logger:         middleware.GetLogger(),
	}
}

// CreateProject 创建项目
// POST /api/projects
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req model.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("Invalid create project request")
		middleware.HandleError(c, middleware.NewValidationError("无效的请求参数", err.Error()))
		return
	}

	project, err := h.projectService.CreateProject(c.Request.Context(), services.CreateProjectInput{
		Title:          req.Title,
		SourceText:     req.SourceText,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Format:         req.Format,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model.NewSuccessResponse(model.NewProjectResponse(project, true)))
}

// ListProjects 分页列出项目
// GET /api/projects
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	var req model.PaginationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的分页参数", err.Error()))
		return
	}

	projects, total, err := h.projectService.ListProjects(c.Request.Context(), req.Offset(), req.GetPageSize())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	items := make([]model.ProjectResponse, 0, len(projects))
	for _, p := range projects {
		items = append(items, model.NewProjectResponse(p, false))
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ProjectListResponse{
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
		Projects: items,
	}))
}

// GetProject 获取项目详情
// GET /api/projects/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	var uri model.ProjectURIRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的项目ID", err.Error()))
		return
	}

	project, err := h.projectService.GetProject(c.Request.Context(), uri.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewProjectResponse(project, true)))
}

// ListChapters 列出项目章节
// GET /api/projects/:id/chapters
func (h *ProjectHandler) ListChapters(c *gin.Context) {
	var uri model.ProjectURIRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的项目ID", err.Error()))
		return
	}

	chapters, err := h.projectService.ListChapters(c.Request.Context(), uri.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	items := make([]model.ChapterResponse, 0, len(chapters))
	for _, ch := range chapters {
		items = append(items, model.NewChapterResponse(ch))
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(items))
}

// GetChapter 获取单个章节
// GET /api/projects/:id/chapters/:num
func (h *ProjectHandler) GetChapter(c *gin.Context) {
	var uri model.ChapterURIRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的章节参数", err.Error()))
		return
	}

	chapter, err := h.projectService.GetChapter(c.Request.Context(), uri.ID, uri.Num)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewChapterResponse(chapter)))
}

// GetSnapshot 获取项目快照
// GET /api/projects/:id/snapshot
func (h *ProjectHandler) GetSnapshot(c *gin.Context) {
	var uri model.ProjectURIRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的项目ID", err.Error()))
		return
	}

	snapshot, err := h.projectService.GetSnapshot(c.Request.Context(), uri.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(snapshot))
}
