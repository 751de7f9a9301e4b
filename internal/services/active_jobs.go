package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zzappa/gradient-reading/internal/cache"
)

// DefaultActiveJobTTL 活跃任务登记的过期时间，进程异常时登记不会永久残留
const DefaultActiveJobTTL = 24 * time.Hour

// ActiveJobs 进程内活跃任务登记表
// 同一进程内同一个任务不会被调度两次，跨进程互斥由文档锁负责
type ActiveJobs struct {
	store  cache.Cache
	ttl    time.Duration
	logger *logrus.Logger
}

// NewActiveJobs 创建活跃任务登记表
// store为空时使用独立前缀的内存缓存
func NewActiveJobs(store cache.Cache, logger *logrus.Logger) (*ActiveJobs, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if store == nil {
		cfg := cache.DefaultConfig()
		cfg.KeyPrefix = "active-jobs"
		cfg.DefaultTTL = DefaultActiveJobTTL
		var err error
		if store, err = cache.NewMemoryCache(cfg); err != nil {
			return nil, err
		}
	}
	return &ActiveJobs{store: store, ttl: DefaultActiveJobTTL, logger: logger}, nil
}

// TryAdd 原子地登记任务，任务已登记时返回false
func (a *ActiveJobs) TryAdd(ctx context.Context, jobID string) bool {
	added, err := a.store.Add(ctx, jobID, time.Now().Format(time.RFC3339), a.ttl)
	if err != nil {
		a.logger.WithError(err).WithField("job_id", jobID).Warn("Failed to register active job")
		return false
	}
	return added
}

// Remove 注销任务
func (a *ActiveJobs) Remove(ctx context.Context, jobID string) {
	if err := a.store.Delete(ctx, jobID); err != nil {
		a.logger.WithError(err).WithField("job_id", jobID).Warn("Failed to unregister active job")
	}
}

// Contains 任务是否已登记
func (a *ActiveJobs) Contains(ctx context.Context, jobID string) bool {
	_, found, err := a.store.Get(ctx, jobID)
	return err == nil && found
}
