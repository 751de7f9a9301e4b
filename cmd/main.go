package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/zzappa/gradient-reading/api"
	"github.com/zzappa/gradient-reading/api/handler"
	"github.com/zzappa/gradient-reading/api/middleware"
	appconfig "github.com/zzappa/gradient-reading/config"
	"github.com/zzappa/gradient-reading/internal/cache"
	"github.com/zzappa/gradient-reading/internal/database"
	"github.com/zzappa/gradient-reading/internal/llm"
	"github.com/zzappa/gradient-reading/internal/lock"
	"github.com/zzappa/gradient-reading/internal/repository"
	"github.com/zzappa/gradient-reading/internal/services"
	"github.com/zzappa/gradient-reading/internal/transform"
	"github.com/zzappa/gradient-reading/pkg/storage"
	"github.com/zzappa/gradient-reading/pkg/taskqueue"
	"gopkg.in/natefinch/lumberjack.v2"
)

// waitScheduler 可在退出前等待在途运行结束的调度器
type waitScheduler interface {
	services.Scheduler
	Wait()
}

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := appconfig.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 初始化日志
	logger := setupLogger(cfg.Log)
	logger.Info("Starting gradient reading service...")

	// 初始化数据库
	if err := setupDatabase(cfg.Database, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// 创建快照存储
	objectStorage, err := setupStorage(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// 创建大语言模型客户端和生成器
	llmClient, err := setupLLM(cfg.LLM)
	if err != nil {
		logger.Fatalf("Failed to initialize LLM client: %v", err)
	}
	generator, err := setupGenerator(cfg, llmClient, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize generator: %v", err)
	}

	// 创建文档锁
	locker, closeLock, err := setupLocker(cfg.Lock, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize document lock: %v", err)
	}
	defer closeLock()

	// 初始化业务服务
	db := database.MustDB()
	statusManager := services.NewTransformStatusManager(
		repository.NewRunRepositoryWithDB(db),
		repository.NewProjectRepositoryWithDB(db),
		repository.NewChapterRepositoryWithDB(db),
		repository.NewJobRepositoryWithDB(db),
		logger,
	)
	snapshots := services.NewSnapshotWriter(objectStorage, statusManager, logger)

	orchestrator, err := services.NewOrchestrator(generator, statusManager,
		services.WithLocker(locker),
		services.WithSnapshots(snapshots),
		services.WithTransformOptions(transform.Options{
			ChunkWords: cfg.Transform.ChunkWords,
			CallWords:  cfg.Transform.CallWords,
			TailWords:  cfg.Transform.TailWords,
			Weights:    cfg.Transform.Weights,
		}),
		services.WithOrchestratorLogger(logger),
	)
	if err != nil {
		logger.Fatalf("Failed to initialize orchestrator: %v", err)
	}

	// 进程级上下文，退出时取消以停止在途运行
	baseCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	// 初始化调度器（启用队列时通过Redis任务队列调度）
	var scheduler services.Scheduler
	var worker taskqueue.Worker
	var queue *taskqueue.RedisQueue
	if cfg.Queue.Enable {
		queue, worker, err = setupTaskQueue(cfg.Queue, orchestrator, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
		scheduler = services.NewQueueScheduler(queue, logger)
		logger.Info("Transformations will be scheduled through the task queue")
	} else {
		scheduler = services.NewGoroutineScheduler(baseCtx, orchestrator, logger)
	}

	// 恢复上次退出时未完成的任务
	if n, err := services.RecoverIncompleteJobs(baseCtx, statusManager, scheduler, logger); err != nil {
		logger.Errorf("Failed to recover incomplete jobs: %v", err)
	} else if n > 0 {
		logger.Infof("Recovered %d incomplete jobs", n)
	}

	projectService := services.NewProjectService(statusManager, scheduler,
		services.WithProjectSnapshots(snapshots),
		services.WithProjectLogger(logger),
	)

	// 初始化API处理器并设置路由
	r := api.SetupRouter(api.Handlers{
		Project:   handler.NewProjectHandler(projectService),
		Transform: handler.NewTransformHandler(projectService),
		Health:    handler.NewHealthHandler(db),
	}, cfg.Server.EnableCORS)

	// 启动HTTP服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Server is running on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	// 取消在途运行，未完成的任务保持处理中状态，下次启动时恢复
	cancelRuns()
	if ws, ok := scheduler.(waitScheduler); ok {
		ws.Wait()
	}
	if worker != nil {
		worker.Stop()
	}

	logger.Info("Server exited")
}

// setupLogger 设置日志系统
// 配置了日志文件时同时输出到标准输出和滚动文件
func setupLogger(cfg appconfig.LogConfig) *logrus.Logger {
	logger := middleware.GetLogger()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			logger.Warnf("Failed to create log directory, logging to stdout only: %v", err)
			return logger
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}))
	}

	return logger
}

// setupDatabase 设置数据库
func setupDatabase(cfg appconfig.DatabaseConfig, logger *logrus.Logger) error {
	dbConfig := database.DefaultConfig()
	dbConfig.Type = cfg.Type
	dbConfig.DSN = cfg.DSN
	if cfg.MaxOpenConns > 0 {
		dbConfig.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		dbConfig.MaxIdleConns = cfg.MaxIdleConns
	}

	return database.Setup(dbConfig, logger)
}

// setupStorage 设置快照存储
func setupStorage(cfg appconfig.StorageConfig) (storage.Storage, error) {
	return storage.New(storage.Config{
		Type:  cfg.Type,
		Local: storage.LocalConfig{Path: cfg.Path},
		Minio: storage.MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
		},
	})
}

// setupLLM 设置大语言模型客户端
func setupLLM(cfg appconfig.LLMConfig) (llm.Client, error) {
	if cfg.APIKey == "" || cfg.APIKey == "${LLM_API_KEY}" {
		return nil, fmt.Errorf("LLM API key is required")
	}

	opts := []llm.Option{
		llm.WithAPIKey(cfg.APIKey),
		llm.WithMaxTokens(cfg.MaxTokens),
		llm.WithTemperature(cfg.Temperature),
	}
	if cfg.Model != "" {
		opts = append(opts, llm.WithModel(cfg.Model))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, llm.WithBaseURL(cfg.Endpoint))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, llm.WithTimeout(cfg.Timeout))
	}

	return llm.NewClient(cfg.Provider, opts...)
}

// setupGenerator 设置转换生成器，启用缓存时包装一层结果缓存
func setupGenerator(cfg *appconfig.Config, client llm.Client, logger *logrus.Logger) (transform.Generator, error) {
	opts := []transform.GeneratorOption{
		transform.WithAttempts(cfg.Transform.Attempts),
		transform.WithRetryDelay(cfg.Transform.RetryDelay),
	}
	if cfg.LLM.MaxTokens > 0 {
		opts = append(opts, transform.WithMaxTokens(cfg.LLM.MaxTokens))
	}

	generator, err := transform.NewLLMGenerator(client, logger, opts...)
	if err != nil {
		return nil, err
	}
	if !cfg.Cache.Enable {
		return generator, nil
	}

	cacheConfig := cache.DefaultConfig()
	cacheConfig.Type = cfg.Cache.Type
	cacheConfig.KeyPrefix = "gradient:generation"
	cacheConfig.RedisAddr = cfg.Cache.Address
	cacheConfig.RedisPassword = cfg.Cache.Password
	cacheConfig.RedisDB = cfg.Cache.DB
	ttl := time.Duration(cfg.Cache.TTL) * time.Second
	if ttl > 0 {
		cacheConfig.DefaultTTL = ttl
	}

	store, err := cache.NewCache(cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generation cache: %v", err)
	}
	logger.WithField("type", cacheConfig.Type).Info("Generation cache enabled")
	return transform.NewCachingGenerator(generator, store, cacheConfig.DefaultTTL, logger), nil
}

// setupLocker 根据配置的后端创建文档锁，返回的关闭函数释放后端连接
func setupLocker(cfg appconfig.LockConfig, logger *logrus.Logger) (*lock.Locker, func(), error) {
	var backend lock.Backend
	closeFn := func() {}

	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %v", err)
		}
		backend = lock.NewRedisBackend(client, "")
		closeFn = func() { _ = client.Close() }
	case "postgres":
		pool, err := lock.NewPostgresPool(context.Background(), cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			return nil, nil, err
		}
		backend = lock.NewPostgresBackend(pool)
		closeFn = pool.Close
	default:
		backend = lock.NewGormBackend(database.MustDB())
	}

	logger.WithFields(logrus.Fields{
		"backend": cfg.Backend,
		"ttl":     cfg.TTL,
	}).Info("Document lock initialized")

	return lock.NewLocker(backend, logger,
		lock.WithTTL(cfg.TTL),
		lock.WithPollInterval(cfg.PollInterval),
		lock.WithAcquireTimeout(cfg.AcquireTimeout),
	), closeFn, nil
}

// setupTaskQueue 设置任务队列，配置为工作进程时同时启动任务处理
func setupTaskQueue(cfg appconfig.QueueConfig, runner services.Runner, logger *logrus.Logger) (*taskqueue.RedisQueue, taskqueue.Worker, error) {
	queueConfig := taskqueue.DefaultConfig()
	queueConfig.RedisAddr = cfg.RedisAddr
	queueConfig.RedisPassword = cfg.RedisPassword
	queueConfig.RedisDB = cfg.RedisDB
	queueConfig.Concurrency = cfg.Concurrency
	if cfg.TaskTimeout > 0 {
		queueConfig.TaskTimeout = cfg.TaskTimeout
	}

	logger.WithFields(logrus.Fields{
		"redis_addr":  cfg.RedisAddr,
		"concurrency": cfg.Concurrency,
		"worker":      cfg.Worker,
	}).Info("Setting up task queue")

	queue, err := taskqueue.NewRedisQueueWithLogger(queueConfig, logger)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Worker {
		return queue, nil, nil
	}

	worker := taskqueue.NewRedisWorker(queue, queueConfig)
	worker.RegisterHandler(taskqueue.TaskTransformRun, services.NewTransformWorker(runner, logger))
	if err := worker.Start(); err != nil {
		_ = queue.Close()
		return nil, nil, fmt.Errorf("failed to start task worker: %v", err)
	}
	return queue, worker, nil
}
