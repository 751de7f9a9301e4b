package models

import "time"

// TransformLease 跨进程租约
// 每个文档一行，持有者需要在过期前续约
type TransformLease struct {
	Name      string    `gorm:"primaryKey;size:128"` // 租约名称
	Owner     string    `gorm:"size:64;not null"`    // 持有者令牌
	ExpiresAt time.Time `gorm:"not null;index"`      // 过期时间
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName 明确指定表名
func (TransformLease) TableName() string {
	return "transform_leases"
}
