package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache 基于go-cache实现的内存缓存
type MemoryCache struct {
	cache  *gocache.Cache
	prefix string
}

// NewMemoryCache 创建一个新的内存缓存
func NewMemoryCache(config Config) (Cache, error) {
	defaultExpiration := config.DefaultTTL
	if defaultExpiration == 0 {
		defaultExpiration = 24 * time.Hour
	}

	cleanupInterval := config.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 10 * time.Minute
	}

	return &MemoryCache{
		cache:  gocache.New(defaultExpiration, cleanupInterval),
		prefix: config.KeyPrefix,
	}, nil
}

func (m *MemoryCache) key(key string) string {
	if m.prefix == "" {
		return key
	}
	return m.prefix + ":" + key
}

// Get 获取缓存内容
func (m *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	if value, found := m.cache.Get(m.key(key)); found {
		str, ok := value.(string)
		if !ok {
			return "", false, nil
		}
		return str, true, nil
	}
	return "", false, nil
}

// Set 设置缓存内容，ttl为0时使用默认过期时间
func (m *MemoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	m.cache.Set(m.key(key), value, ttl)
	return nil
}

// Add 键不存在时写入，go-cache的Add本身是原子的
func (m *MemoryCache) Add(_ context.Context, key string, value string, ttl time.Duration) (bool, error) {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	if err := m.cache.Add(m.key(key), value, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

// Delete 删除缓存项
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.cache.Delete(m.key(key))
	return nil
}

// Clear 清空前缀下的缓存项
func (m *MemoryCache) Clear(_ context.Context) error {
	if m.prefix == "" {
		m.cache.Flush()
		return nil
	}
	for k := range m.cache.Items() {
		if strings.HasPrefix(k, m.prefix+":") {
			m.cache.Delete(k)
		}
	}
	return nil
}

// 在包初始化时注册内存缓存
func init() {
	RegisterCache("memory", NewMemoryCache)
}
