package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/zzappa/gradient-reading/api/middleware"
	"github.com/zzappa/gradient-reading/api/model"
	"github.com/zzappa/gradient-reading/internal/services"
)

// TransformHandler 处理转换任务相关的API请求
type TransformHandler struct {
	projectService *services.ProjectService
	logger         *logrus.Logger
}

// NewTransformHandler 创建新的转换处理器
func NewTransformHandler(projectService *services.ProjectService) *TransformHandler {
	return &TransformHandler{
		projectService: projectService,
		logger:         middleware.GetLogger(),
	}
}

// StartTransformation 启动项目转换
// POST /api/projects/:id/transform
func (h *TransformHandler) StartTransformation(c *gin.Context) {
	var uri model.ProjectURIRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的项目ID", err.Error()))
		return
	}

	job, err := h.projectService.StartTransformation(c.Request.Context(), uri.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"project_id": uri.ID,
		"job_id":     job.ID,
	}).Info("Transformation started")

	c.JSON(http.StatusAccepted, model.NewSuccessResponse(model.NewJobResponse(job)))
}

// GetProjectJob 获取项目最近一次的转换任务
// GET /api/projects/:id/job
func (h *TransformHandler) GetProjectJob(c *gin.Context) {
	var uri model.ProjectURIRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的项目ID", err.Error()))
		return
	}

	job, err := h.projectService.GetLatestJob(c.Request.Context(), uri.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewJobResponse(job)))
}

// GetJob 获取转换任务状态
// GET /api/jobs/:id
func (h *TransformHandler) GetJob(c *gin.Context) {
	var uri model.JobURIRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的任务ID", err.Error()))
		return
	}

	job, err := h.projectService.GetJob(c.Request.Context(), uri.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewJobResponse(job)))
}
