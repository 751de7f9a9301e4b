package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zzappa/gradient-reading/pkg/storage"
)

// ProjectSnapshot 项目快照
type ProjectSnapshot struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	SourceLanguage string            `json:"source_language"`
	TargetLanguage string            `json:"target_language"`
	Status         string            `json:"status"`
	Vocabulary     json.RawMessage   `json:"vocabulary"`
	Chapters       []ChapterSnapshot `json:"chapters"`
	WrittenAt      time.Time         `json:"written_at"`
}

// ChapterSnapshot 章节快照
type ChapterSnapshot struct {
	ChapterNum int             `json:"chapter_num"`
	Level      int             `json:"level"`
	Status     string          `json:"status"`
	Content    string          `json:"content"`
	Footnotes  json.RawMessage `json:"footnotes"`
}

// SnapshotKey 项目快照的对象键
func SnapshotKey(projectID string) string {
	return "snapshots/" + projectID + ".json"
}

// SnapshotWriter 将项目当前状态写入对象存储
type SnapshotWriter struct {
	store  storage.Storage
	status *TransformStatusManager
	logger *logrus.Logger
}

// NewSnapshotWriter 创建快照写入器
func NewSnapshotWriter(store storage.Storage, status *TransformStatusManager, logger *logrus.Logger) *SnapshotWriter {
	if logger == nil {
		logger = logrus.New()
	}
	return &SnapshotWriter{store: store, status: status, logger: logger}
}

// Write 写入项目快照，覆盖旧快照
func (w *SnapshotWriter) Write(ctx context.Context, projectID string) error {
	project, err := w.status.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	chapters, err := w.status.ListChapters(ctx, projectID)
	if err != nil {
		return err
	}

	snapshot := ProjectSnapshot{
		ID:             project.ID,
		Title:          project.Title,
		SourceLanguage: project.SourceLanguage,
		TargetLanguage: project.TargetLanguage,
		Status:         string(project.Status),
		Vocabulary:     rawOr(project.Vocabulary, "{}"),
		Chapters:       make([]ChapterSnapshot, 0, len(chapters)),
		WrittenAt:      time.Now().UTC(),
	}
	for _, ch := range chapters {
		snapshot.Chapters = append(snapshot.Chapters, ChapterSnapshot{
			ChapterNum: ch.ChapterNum,
			Level:      ch.Level,
			Status:     string(ch.Status),
			Content:    ch.Content,
			Footnotes:  rawOr(ch.Footnotes, "[]"),
		})
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	info, err := w.store.Put(ctx, SnapshotKey(projectID), bytes.NewReader(data), int64(len(data)), "application/json")
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	w.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"key":        info.Key,
		"size":       info.Size,
	}).Debug("Project snapshot written")
	return nil
}

// WriteQuietly 写入快照，失败只记录日志
func (w *SnapshotWriter) WriteQuietly(ctx context.Context, projectID string) {
	if w == nil {
		return
	}
	if err := w.Write(ctx, projectID); err != nil {
		w.logger.WithError(err).WithField("project_id", projectID).Warn("Failed to write project snapshot")
	}
}

// Read 读取项目快照
func (w *SnapshotWriter) Read(ctx context.Context, projectID string) (*ProjectSnapshot, error) {
	reader, err := w.store.Get(ctx, SnapshotKey(projectID))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var snapshot ProjectSnapshot
	if err := json.NewDecoder(reader).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}

func rawOr(data []byte, fallback string) json.RawMessage {
	if len(data) == 0 {
		return json.RawMessage(fallback)
	}
	return json.RawMessage(data)
}
