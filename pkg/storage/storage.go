package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// ErrObjectNotFound 对象不存在
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo 对象元数据
type ObjectInfo struct {
	Key         string    // 对象键，使用/分隔
	Size        int64     // 大小(字节)
	ContentType string    // MIME类型
	ModifiedAt  time.Time // 最后修改时间
}

// Storage 对象存储接口
// 以键寻址，同一个键重复写入会覆盖旧内容
type Storage interface {
	// Put 写入对象，size未知时传-1
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (ObjectInfo, error)

	// Get 读取对象内容，对象不存在时返回ErrObjectNotFound
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete 删除对象，对象不存在时不报错
	Delete(ctx context.Context, key string) error

	// List 列出指定前缀下的对象
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Exists 检查对象是否存在
	Exists(ctx context.Context, key string) (bool, error)
}

// Config 存储配置
type Config struct {
	Type  string      // 存储类型: "local", "minio"
	Local LocalConfig // 本地存储配置
	Minio MinioConfig // MinIO存储配置
}

// New 根据配置创建存储实现
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "local", "":
		return NewLocalStorage(cfg.Local)
	case "minio":
		return NewMinioStorage(cfg.Minio)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// cleanKey 规整对象键，拒绝越出根目录的键
func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(key, "\\", "/")), "/")
	if key == "" || key == "." {
		return "", fmt.Errorf("invalid object key")
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid object key: %s", key)
		}
	}
	return key, nil
}

// contentTypeFor 根据扩展名推断MIME类型
func contentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".json":
		return "application/json"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
