package lock

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zzappa/gradient-reading/internal/database"
	"github.com/zzappa/gradient-reading/internal/models"
	"gorm.io/gorm"
)

func setupLeaseDB(t *testing.T) *gorm.DB {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := database.Open(&database.Config{
		Type:         "sqlite",
		DSN:          filepath.Join(t.TempDir(), "lock.db"),
		MaxOpenConns: 1,
	}, logger)
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// exerciseBackend 各个后端共同的行为
func exerciseBackend(t *testing.T, b Backend) {
	ctx := context.Background()
	name := DocumentLockName("p1")

	ok, err := b.TryAcquire(ctx, name, "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "first owner should acquire")

	ok, err = b.TryAcquire(ctx, name, "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second owner must not acquire a held lock")

	ok, err = b.TryAcquire(ctx, name, "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "holder may acquire again")

	ok, err = b.TryAcquire(ctx, DocumentLockName("p2"), "owner-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "locks are per document")

	ok, err = b.Renew(ctx, name, "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Renew(ctx, name, "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// 非持有者释放不产生影响
	require.NoError(t, b.Release(ctx, name, "owner-b"))
	ok, err = b.TryAcquire(ctx, name, "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Release(ctx, name, "owner-a"))
	ok, err = b.TryAcquire(ctx, name, "owner-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "released lock can be taken")

	require.NoError(t, b.Release(ctx, name, "owner-b"))
	require.NoError(t, b.Release(ctx, DocumentLockName("p2"), "owner-b"))
}

func TestGormBackend(t *testing.T) {
	db := setupLeaseDB(t)
	b := NewGormBackend(db)

	t.Run("exclusion", func(t *testing.T) {
		exerciseBackend(t, b)
	})

	t.Run("expired lease can be taken over", func(t *testing.T) {
		ctx := context.Background()
		ok, err := b.TryAcquire(ctx, "crashed", "owner-a", 20*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		time.Sleep(60 * time.Millisecond)

		ok, err = b.TryAcquire(ctx, "crashed", "owner-b", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = b.Renew(ctx, "crashed", "owner-a", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok, "previous owner lost the lease")

		var lease models.TransformLease
		require.NoError(t, db.First(&lease, "name = ?", "crashed").Error)
		assert.Equal(t, "owner-b", lease.Owner)
	})
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	b := NewRedisBackend(client, "")

	t.Run("exclusion", func(t *testing.T) {
		exerciseBackend(t, b)
	})

	t.Run("key expiry", func(t *testing.T) {
		ctx := context.Background()
		ok, err := b.TryAcquire(ctx, "crashed", "owner-a", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, time.Minute, mr.TTL("gradient:lock:crashed"))

		ok, err = b.Renew(ctx, "crashed", "owner-a", 2*time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 2*time.Minute, mr.TTL("gradient:lock:crashed"))

		mr.FastForward(3 * time.Minute)

		ok, err = b.TryAcquire(ctx, "crashed", "owner-b", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestPostgresBackend(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	pool, err := NewPostgresPool(context.Background(), dsn, 4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	exerciseBackend(t, NewPostgresBackend(pool))
}

func TestLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("contention times out", func(t *testing.T) {
		backend := NewGormBackend(setupLeaseDB(t))
		locker := NewLocker(backend, nil,
			WithPollInterval(10*time.Millisecond),
			WithAcquireTimeout(100*time.Millisecond))

		lease, err := locker.Acquire(ctx, DocumentLockName("p1"))
		require.NoError(t, err)
		assert.Equal(t, "project:p1", lease.Name())

		_, err = locker.Acquire(ctx, DocumentLockName("p1"))
		assert.ErrorIs(t, err, ErrLockTimeout)

		require.NoError(t, lease.Release(ctx))
		require.NoError(t, lease.Release(ctx), "release is idempotent")

		again, err := locker.Acquire(ctx, DocumentLockName("p1"))
		require.NoError(t, err)
		require.NoError(t, again.Release(ctx))
	})

	t.Run("waiter acquires after release", func(t *testing.T) {
		backend := NewGormBackend(setupLeaseDB(t))
		locker := NewLocker(backend, nil,
			WithPollInterval(10*time.Millisecond),
			WithAcquireTimeout(5*time.Second))

		lease, err := locker.Acquire(ctx, "doc")
		require.NoError(t, err)

		acquired := make(chan *Lease, 1)
		go func() {
			l, err := locker.Acquire(ctx, "doc")
			if err == nil {
				acquired <- l
			}
			close(acquired)
		}()

		time.Sleep(50 * time.Millisecond)
		require.NoError(t, lease.Release(ctx))

		select {
		case l, ok := <-acquired:
			require.True(t, ok, "waiter should acquire the lock")
			require.NoError(t, l.Release(ctx))
		case <-time.After(3 * time.Second):
			t.Fatal("waiter did not acquire the lock")
		}
	})

	t.Run("heartbeat keeps lease alive", func(t *testing.T) {
		backend := NewGormBackend(setupLeaseDB(t))
		locker := NewLocker(backend, nil, WithTTL(300*time.Millisecond))

		lease, err := locker.Acquire(ctx, "doc")
		require.NoError(t, err)
		defer lease.Release(ctx)

		time.Sleep(900 * time.Millisecond)

		ok, err := backend.TryAcquire(ctx, "doc", "intruder", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok, "renewed lease must not expire")
	})

	t.Run("lost lease is reported", func(t *testing.T) {
		db := setupLeaseDB(t)
		locker := NewLocker(NewGormBackend(db), nil, WithTTL(150*time.Millisecond))

		lease, err := locker.Acquire(ctx, "doc")
		require.NoError(t, err)
		defer lease.Release(ctx)

		require.NoError(t, db.Where("name = ?", "doc").Delete(&models.TransformLease{}).Error)

		select {
		case <-lease.Lost():
		case <-time.After(2 * time.Second):
			t.Fatal("lost lease was not reported")
		}
	})

	t.Run("cancelled wait", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()

		locker := NewLocker(NewRedisBackend(client, "test"), nil, WithPollInterval(10*time.Millisecond))
		lease, err := locker.Acquire(ctx, "doc")
		require.NoError(t, err)
		defer lease.Release(ctx)

		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = locker.Acquire(cctx, "doc")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
