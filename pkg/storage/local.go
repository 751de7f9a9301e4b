package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage 本地文件存储实现
type LocalStorage struct {
	basePath string // 基础存储路径
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path string // 本地存储路径
}

// NewLocalStorage 创建本地存储实例
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	// 确保路径是绝对路径
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %v", err)
	}

	// 确保目录存在
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %v", err)
	}

	return &LocalStorage{basePath: absPath}, nil
}

func (s *LocalStorage) objectPath(key string) (string, string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	return cleaned, filepath.Join(s.basePath, filepath.FromSlash(cleaned)), nil
}

// Put 写入临时文件后重命名，读者不会看到写了一半的对象
func (s *LocalStorage) Put(_ context.Context, key string, reader io.Reader, _ int64, contentType string) (ObjectInfo, error) {
	cleaned, filePath, err := s.objectPath(key)
	if err != nil {
		return ObjectInfo{}, err
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to create directory: %v", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to create file: %v", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to write file: %v", err)
	}

	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to move file into place: %v", err)
	}

	if contentType == "" {
		contentType = contentTypeFor(cleaned)
	}
	info, err := os.Stat(filePath)
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{
		Key:         cleaned,
		Size:        size,
		ContentType: contentType,
		ModifiedAt:  info.ModTime(),
	}, nil
}

// Get 获取文件内容
func (s *LocalStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	_, filePath, err := s.objectPath(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open file: %v", err)
	}
	return file, nil
}

// Delete 删除文件
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	_, filePath, err := s.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %v", err)
	}
	return nil
}

// List 列出前缀下的所有文件
func (s *LocalStorage) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}

		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, ObjectInfo{
			Key:         key,
			Size:        info.Size(),
			ContentType: contentTypeFor(key),
			ModifiedAt:  info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %v", err)
	}
	return objects, nil
}

// Exists 检查文件是否存在
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	_, filePath, err := s.objectPath(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
