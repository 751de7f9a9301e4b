package lock

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend 基于会话级 pg_try_advisory_lock 的后端
// 每个持有的锁占用一个连接，进程退出或连接断开时锁由数据库释放，ttl不参与判断
type PostgresBackend struct {
	pool *pgxpool.Pool

	mu    sync.Mutex
	conns map[string]*pgxpool.Conn
}

// NewPostgresBackend 创建advisory lock后端
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool, conns: make(map[string]*pgxpool.Conn)}
}

// NewPostgresPool 解析DSN并创建连接池
func NewPostgresPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse lock database DSN: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create lock connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping lock database: %w", err)
	}
	return pool, nil
}

// advisoryKey 将锁名称映射为advisory lock的bigint键
func advisoryKey(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64())
}

func connKey(name, token string) string {
	return name + "\x00" + token
}

// TryAcquire 在独立连接上尝试获取advisory lock，成功后保留该连接
func (b *PostgresBackend) TryAcquire(ctx context.Context, name, token string, _ time.Duration) (bool, error) {
	b.mu.Lock()
	_, held := b.conns[connKey(name, token)]
	b.mu.Unlock()
	if held {
		return true, nil
	}

	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}

	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", advisoryKey(name)).Scan(&ok); err != nil {
		conn.Release()
		return false, err
	}
	if !ok {
		conn.Release()
		return false, nil
	}

	b.mu.Lock()
	b.conns[connKey(name, token)] = conn
	b.mu.Unlock()
	return true, nil
}

// Renew 检查持有锁的连接仍然可用
func (b *PostgresBackend) Renew(ctx context.Context, name, token string, _ time.Duration) (bool, error) {
	b.mu.Lock()
	conn, ok := b.conns[connKey(name, token)]
	b.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := conn.Ping(ctx); err != nil {
		// 连接断开意味着锁已经释放
		b.drop(name, token, conn)
		return false, nil
	}
	return true, nil
}

// Release 解锁并归还连接
func (b *PostgresBackend) Release(ctx context.Context, name, token string) error {
	b.mu.Lock()
	conn, ok := b.conns[connKey(name, token)]
	b.mu.Unlock()
	if !ok {
		return nil
	}

	_, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryKey(name))
	if err != nil {
		// 关闭会话，锁随会话一起释放，避免带锁的连接回到连接池
		_ = conn.Conn().Close(ctx)
	}
	b.drop(name, token, conn)
	return err
}

func (b *PostgresBackend) drop(name, token string, conn *pgxpool.Conn) {
	b.mu.Lock()
	delete(b.conns, connKey(name, token))
	b.mu.Unlock()
	conn.Release()
}
