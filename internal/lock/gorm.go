package lock

import (
	"context"
	"time"

	"github.com/zzappa/gradient-reading/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBackend 基于租约表的后端，每个锁名称一行
type GormBackend struct {
	db *gorm.DB
}

// NewGormBackend 创建租约表后端
func NewGormBackend(db *gorm.DB) *GormBackend {
	return &GormBackend{db: db}
}

// TryAcquire 插入租约行，已存在时只接管过期或自己持有的租约
func (b *GormBackend) TryAcquire(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	lease := &models.TransformLease{
		Name:      name,
		Owner:     token,
		ExpiresAt: now.Add(ttl),
		UpdatedAt: now,
	}

	result := b.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(lease)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	result = b.db.WithContext(ctx).Model(&models.TransformLease{}).
		Where("name = ? AND (expires_at < ? OR owner = ?)", name, now, token).
		Updates(map[string]interface{}{
			"owner":      token,
			"expires_at": now.Add(ttl),
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Renew 延长自己持有的租约
func (b *GormBackend) Renew(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	result := b.db.WithContext(ctx).Model(&models.TransformLease{}).
		Where("name = ? AND owner = ?", name, token).
		Updates(map[string]interface{}{
			"expires_at": now.Add(ttl),
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Release 删除自己持有的租约行
func (b *GormBackend) Release(ctx context.Context, name, token string) error {
	return b.db.WithContext(ctx).
		Where("name = ? AND owner = ?", name, token).
		Delete(&models.TransformLease{}).Error
}
