package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/zzappa/gradient-reading/api/model"
)

// 定义应用中的错误类型常量
const (
	ErrorTypeValidation = "VALIDATION_ERROR" // 输入验证错误
	ErrorTypeNotFound   = "NOT_FOUND_ERROR"  // 资源不存在错误
	ErrorTypeConflict   = "CONFLICT_ERROR"   // 资源状态冲突错误
	ErrorTypeInternal   = "INTERNAL_ERROR"   // 内部服务器错误
)

// AppError 应用错误结构体
type AppError struct {
	Type    string // 错误类型
	Message string // 错误消息
	Details string // 详细错误信息
	Code    int    // 错误代码
}

// Error 实现error接口的方法
func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewValidationError 创建输入验证错误
func NewValidationError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) AppError {
	return AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

// NewConflictError 创建资源状态冲突错误
func NewConflictError(message string) AppError {
	return AppError{
		Type:    ErrorTypeConflict,
		Message: message,
		Code:    http.StatusConflict,
	}
}

// NewInternalError 创建内部服务器错误
func NewInternalError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusInternalServerError,
	}
}

// ErrorHandler 统一错误处理中间件
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(logrus.Fields{
					"error":    err,
					"stack":    string(debug.Stack()),
					"path":     c.Request.URL.Path,
					"trace_id": c.GetString(TraceIDKey),
				}).Error("Panic recovered in API request")

				errorResponse := model.NewErrorResponse(http.StatusInternalServerError, "服务器内部错误")
				if gin.Mode() == gin.DebugMode {
					errorResponse.Message = fmt.Sprintf("Panic: %v", err)
				}
				errorResponse.TraceID = c.GetString(TraceIDKey)

				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse)
			}
		}()

		// 处理请求
		c.Next()

		// 检查是否已经有错误被处理
		if len(c.Errors) > 0 {
			// 取最后一个错误进行处理
			err := c.Errors.Last().Err

			traceID := c.GetString(TraceIDKey)

			var appErr AppError
			var appErrPtr *AppError
			switch {
			case errors.As(err, &appErr):
				respondAppError(c, appErr, traceID)

			case errors.As(err, &appErrPtr):
				respondAppError(c, *appErrPtr, traceID)

			default:
				log.WithFields(logrus.Fields{
					"trace_id": traceID,
					"path":     c.Request.URL.Path,
				}).Error(err.Error())

				errResp := model.NewErrorResponse(http.StatusInternalServerError, "服务器内部错误")
				errResp.TraceID = traceID

				if gin.Mode() == gin.DebugMode {
					errResp.Message = err.Error()
				}

				c.JSON(http.StatusInternalServerError, errResp)
			}

			// 中止继续处理
			c.Abort()
		}
	}
}

// respondAppError 记录并返回应用错误
func respondAppError(c *gin.Context, e AppError, traceID string) {
	entry := log.WithFields(logrus.Fields{
		"error_type": e.Type,
		"trace_id":   traceID,
		"path":       c.Request.URL.Path,
	})
	if e.Details != "" {
		entry = entry.WithField("details", e.Details)
	}
	if e.Code >= http.StatusInternalServerError {
		entry.Error(e.Message)
	} else {
		entry.Warn(e.Message)
	}

	errResp := model.NewErrorResponse(e.Code, e.Message)
	errResp.TraceID = traceID
	c.JSON(e.Code, errResp)
}

// HandleError 在处理器中使用的错误处理辅助函数
func HandleError(c *gin.Context, err error) {
	// 添加错误到上下文中
	_ = c.Error(err)
}
