package api

import (
	"github.com/gin-gonic/gin"
	"github.com/zzappa/gradient-reading/api/handler"
	"github.com/zzappa/gradient-reading/api/middleware"
)

// Handlers 路由使用的处理器集合
type Handlers struct {
	Project   *handler.ProjectHandler
	Transform *handler.TransformHandler
	Health    *handler.HealthHandler
}

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(h Handlers, enableCORS bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// 应用全局中间件
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetTraceID())
	if enableCORS {
		router.Use(Cors())
	}

	// 在调试模式下记录请求体和响应体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestLogger())
		router.Use(middleware.ResponseLogger())
	}

	api := router.Group("/api")
	{
		projects := api.Group("/projects")
		{
			// 创建项目 - POST /api/projects
			projects.POST("", h.Project.CreateProject)

			// 项目列表 - GET /api/projects
			projects.GET("", h.Project.ListProjects)

			// 项目详情 - GET /api/projects/:id
			projects.GET("/:id", h.Project.GetProject)

			// 章节 - GET /api/projects/:id/chapters[/:num]
			projects.GET("/:id/chapters", h.Project.ListChapters)
			projects.GET("/:id/chapters/:num", h.Project.GetChapter)

			// 快照 - GET /api/projects/:id/snapshot
			projects.GET("/:id/snapshot", h.Project.GetSnapshot)

			// 启动转换 - POST /api/projects/:id/transform
			projects.POST("/:id/transform", h.Transform.StartTransformation)

			// 最近的任务 - GET /api/projects/:id/job
			projects.GET("/:id/job", h.Transform.GetProjectJob)
		}

		// 任务状态 - GET /api/jobs/:id
		api.GET("/jobs/:id", h.Transform.GetJob)

		// 健康检查 - GET /api/health
		api.GET("/health", h.Health.Health)
	}

	return router
}

// Cors 跨域资源共享中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
