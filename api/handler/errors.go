package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/zzappa/gradient-reading/api/middleware"
	"github.com/zzappa/gradient-reading/internal/models"
	"github.com/zzappa/gradient-reading/internal/services"
	"github.com/zzappa/gradient-reading/pkg/storage"
)

// handleServiceError 将服务层错误转换为应用错误交给错误中间件
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrProjectNotFound):
		middleware.HandleError(c, middleware.NewNotFoundError("项目不存在"))
	case errors.Is(err, models.ErrJobNotFound):
		middleware.HandleError(c, middleware.NewNotFoundError("转换任务不存在"))
	case errors.Is(err, models.ErrChapterNotFound):
		middleware.HandleError(c, middleware.NewNotFoundError("章节不存在"))
	case errors.Is(err, storage.ErrObjectNotFound):
		middleware.HandleError(c, middleware.NewNotFoundError("项目快照不存在"))
	case errors.Is(err, models.ErrJobAlreadyRunning):
		middleware.HandleError(c, middleware.NewConflictError("项目正在转换中"))
	case errors.Is(err, services.ErrInvalidProject):
		middleware.HandleError(c, middleware.NewValidationError("无效的项目参数", err.Error()))
	default:
		middleware.HandleError(c, middleware.NewInternalError("服务器内部错误", err.Error()))
	}
}
