package lock

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// 只有持有者才能续约或删除
var (
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RedisBackend 基于 SET NX PX 的后端
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend 创建Redis后端，prefix为空时使用"gradient:lock"
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "gradient:lock"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) key(name string) string {
	return b.prefix + ":" + name
}

// TryAcquire 键不存在时写入token，过期由Redis负责
func (b *RedisBackend) TryAcquire(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	ok, err := b.client.SetNX(ctx, b.key(name), token, ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	// 同一持有者重复获取视为续约
	current, err := b.client.Get(ctx, b.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if current != token {
		return false, nil
	}
	return b.Renew(ctx, name, token, ttl)
}

// Renew 延长自己持有的租约
func (b *RedisBackend) Renew(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	n, err := renewScript.Run(ctx, b.client, []string{b.key(name)}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release 删除自己持有的租约
func (b *RedisBackend) Release(ctx context.Context, name, token string) error {
	return releaseScript.Run(ctx, b.client, []string{b.key(name)}, token).Err()
}
