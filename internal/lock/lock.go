package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrLockTimeout 在等待时间内没有拿到锁
	ErrLockTimeout = errors.New("timed out waiting for document lock")
	// ErrNotHeld 租约已不属于当前持有者
	ErrNotHeld = errors.New("lock is not held")
)

// 默认参数
const (
	DefaultTTL            = 2 * time.Minute
	DefaultPollInterval   = 200 * time.Millisecond
	DefaultAcquireTimeout = 10 * time.Minute
)

// Backend 租约存储后端
// 所有操作都是非阻塞的，token标识持有者
type Backend interface {
	// TryAcquire 尝试获取租约，已被其他持有者占用且未过期时返回false
	TryAcquire(ctx context.Context, name, token string, ttl time.Duration) (bool, error)
	// Renew 延长租约，租约已不属于token时返回false
	Renew(ctx context.Context, name, token string, ttl time.Duration) (bool, error)
	// Release 释放租约，不属于token的租约保持不变
	Release(ctx context.Context, name, token string) error
}

// Locker 基于租约的跨进程文档锁
type Locker struct {
	backend        Backend
	ttl            time.Duration
	pollInterval   time.Duration
	acquireTimeout time.Duration
	logger         *logrus.Logger
}

// Option Locker选项
type Option func(*Locker)

// WithTTL 设置租约有效期
func WithTTL(ttl time.Duration) Option {
	return func(l *Locker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithPollInterval 设置获取锁的轮询间隔
func WithPollInterval(interval time.Duration) Option {
	return func(l *Locker) {
		if interval > 0 {
			l.pollInterval = interval
		}
	}
}

// WithAcquireTimeout 设置获取锁的最长等待时间
func WithAcquireTimeout(timeout time.Duration) Option {
	return func(l *Locker) {
		if timeout > 0 {
			l.acquireTimeout = timeout
		}
	}
}

// NewLocker 创建文档锁
func NewLocker(backend Backend, logger *logrus.Logger, opts ...Option) *Locker {
	if logger == nil {
		logger = logrus.New()
	}
	l := &Locker{
		backend:        backend,
		ttl:            DefaultTTL,
		pollInterval:   DefaultPollInterval,
		acquireTimeout: DefaultAcquireTimeout,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire 轮询获取锁，超过acquireTimeout返回ErrLockTimeout
// 获取成功后启动心跳协程续约，调用方必须Release
func (l *Locker) Acquire(ctx context.Context, name string) (*Lease, error) {
	token := uuid.New().String()
	deadline := time.Now().Add(l.acquireTimeout)

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		ok, err := l.backend.TryAcquire(ctx, name, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
		}
		if ok {
			if attempt > 1 {
				l.logger.WithFields(logrus.Fields{
					"lock":     name,
					"attempts": attempt,
				}).Debug("Lock acquired after waiting")
			}
			return l.startLease(name, token), nil
		}

		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Locker) startLease(name, token string) *Lease {
	ctx, cancel := context.WithCancel(context.Background())
	lease := &Lease{
		name:    name,
		token:   token,
		backend: l.backend,
		cancel:  cancel,
		done:    make(chan struct{}),
		lost:    make(chan struct{}),
	}
	go lease.heartbeat(ctx, l.ttl, l.logger)
	return lease
}

// Lease 已获取的租约
type Lease struct {
	name    string
	token   string
	backend Backend
	cancel  context.CancelFunc
	done    chan struct{}
	lost    chan struct{}

	releaseOnce sync.Once
	releaseErr  error
}

// Name 租约名称
func (l *Lease) Name() string {
	return l.name
}

// Lost 续约失败时关闭，表示租约可能已被其他进程接管
func (l *Lease) Lost() <-chan struct{} {
	return l.lost
}

func (l *Lease) heartbeat(ctx context.Context, ttl time.Duration, logger *logrus.Logger) {
	defer close(l.done)

	ticker := time.NewTicker(ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := l.backend.Renew(ctx, l.name, l.token, ttl)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// 暂时性错误，下一次心跳再试
				logger.WithError(err).WithField("lock", l.name).Warn("Failed to renew lock")
				continue
			}
			if !ok {
				logger.WithField("lock", l.name).Error("Lock lease lost")
				close(l.lost)
				return
			}
		}
	}
}

// Release 停止续约并释放租约，可重复调用
func (l *Lease) Release(ctx context.Context) error {
	l.releaseOnce.Do(func() {
		l.cancel()
		<-l.done
		if err := l.backend.Release(ctx, l.name, l.token); err != nil {
			l.releaseErr = fmt.Errorf("failed to release lock %s: %w", l.name, err)
		}
	})
	return l.releaseErr
}

// DocumentLockName 文档锁名称
func DocumentLockName(projectID string) string {
	return "project:" + projectID
}
