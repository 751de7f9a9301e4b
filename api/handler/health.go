package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zzappa/gradient-reading/api/model"
	"gorm.io/gorm"
)

// HealthHandler 健康检查
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health 检查服务和数据库状态
// GET /api/health
func (h *HealthHandler) Health(c *gin.Context) {
	resp := model.HealthResponse{Status: "ok", Database: "ok"}

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		resp.Status = "degraded"
		resp.Database = err.Error()
		c.JSON(http.StatusServiceUnavailable, model.NewSuccessResponse(resp))
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}
