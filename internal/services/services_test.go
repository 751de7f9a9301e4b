package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zzappa/gradient-reading/internal/database"
	"github.com/zzappa/gradient-reading/internal/lock"
	"github.com/zzappa/gradient-reading/internal/models"
	"github.com/zzappa/gradient-reading/internal/repository"
	"github.com/zzappa/gradient-reading/internal/transform"
	"github.com/zzappa/gradient-reading/pkg/storage"
	"gorm.io/gorm"
)

// scriptedGenerator 并发安全的脚本化生成器
type scriptedGenerator struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, req transform.TransformRequest) (*transform.GenerationResult, error)
}

func (g *scriptedGenerator) Transform(_ context.Context, req transform.TransformRequest) (*transform.GenerationResult, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.mu.Unlock()
	return g.fn(call, req)
}

func (g *scriptedGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// echoWithTerm 原样返回段落，并在第一段引用词条casa
func echoWithTerm(_ int, req transform.TransformRequest) (*transform.GenerationResult, error) {
	result := &transform.GenerationResult{}
	for i, para := range strings.Split(req.Text, "\n\n") {
		p := transform.ParagraphResult{Text: para}
		if i == 0 {
			p.FootnoteRefs = []string{"casa"}
		}
		result.Paragraphs = append(result.Paragraphs, p)
	}
	result.NewTerms = []transform.TermCandidate{{
		Term:        "casa",
		Translation: fmt.Sprintf("house (level %d)", req.Level),
		Category:    "noun",
	}}
	return result, nil
}

// testEnv 服务层测试环境
type testEnv struct {
	db       *gorm.DB
	status   *TransformStatusManager
	store    storage.Storage
	snaps    *SnapshotWriter
	logger   *logrus.Logger
	projects repository.ProjectRepository
}

// setupTestEnv 在临时目录中创建sqlite数据库和本地存储
func setupTestEnv(t *testing.T) *testEnv {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := database.Open(&database.Config{
		Type:         "sqlite",
		DSN:          filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
	}, logger)
	require.NoError(t, err, "Failed to open test database")

	originalDB := database.DB
	database.DB = db
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		database.DB = originalDB
	})

	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	projects := repository.NewProjectRepositoryWithDB(db)
	status := NewTransformStatusManager(
		repository.NewRunRepositoryWithDB(db),
		projects,
		repository.NewChapterRepositoryWithDB(db),
		repository.NewJobRepositoryWithDB(db),
		logger,
	)

	return &testEnv{
		db:       db,
		status:   status,
		store:    store,
		snaps:    NewSnapshotWriter(store, status, logger),
		logger:   logger,
		projects: projects,
	}
}

// newOrchestrator 创建使用快速轮询租约锁的编排器
func (e *testEnv) newOrchestrator(t *testing.T, gen transform.Generator, lockOpts ...lock.Option) *Orchestrator {
	opts := append([]lock.Option{lock.WithPollInterval(10 * time.Millisecond)}, lockOpts...)
	orch, err := NewOrchestrator(gen, e.status,
		WithLocker(lock.NewLocker(lock.NewGormBackend(e.db), e.logger, opts...)),
		WithSnapshots(e.snaps),
		WithOrchestratorLogger(e.logger),
	)
	require.NoError(t, err)
	return orch
}

// sourceText 生成14个段落的源文本
func sourceText() string {
	paras := make([]string, 0, 14)
	for i := 1; i <= 14; i++ {
		paras = append(paras, fmt.Sprintf(
			"Paragraph %d follows the keeper up the stairs of the old lighthouse. The lamp is cold and the sea is grey below.", i))
	}
	return strings.Join(paras, "\n\n")
}

// createProject 创建测试项目并准备任务
func (e *testEnv) createProject(t *testing.T) (*models.Project, *models.TransformationJob) {
	svc := NewProjectService(e.status, nil, WithProjectSnapshots(e.snaps), WithProjectLogger(e.logger))
	project, err := svc.CreateProject(context.Background(), CreateProjectInput{
		Title:          "The Lighthouse",
		SourceText:     sourceText(),
		SourceLanguage: "en",
		TargetLanguage: "es",
	})
	require.NoError(t, err)

	job, err := e.status.PrepareRun(context.Background(), project.ID)
	require.NoError(t, err)
	return project, job
}

// paragraphCounts 每个章节的段落数
func paragraphCounts(chapters []*models.Chapter) []int {
	counts := make([]int, 0, len(chapters))
	for _, ch := range chapters {
		counts = append(counts, len(strings.Split(ch.Content, "\n\n")))
	}
	return counts
}

func TestActiveJobs(t *testing.T) {
	ctx := context.Background()
	active, err := NewActiveJobs(nil, nil)
	require.NoError(t, err)

	assert.True(t, active.TryAdd(ctx, "job-1"))
	assert.False(t, active.TryAdd(ctx, "job-1"), "second registration must fail")
	assert.True(t, active.Contains(ctx, "job-1"))
	assert.True(t, active.TryAdd(ctx, "job-2"))

	active.Remove(ctx, "job-1")
	assert.False(t, active.Contains(ctx, "job-1"))
	assert.True(t, active.TryAdd(ctx, "job-1"))
}

func TestOrchestrator_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("completes all levels", func(t *testing.T) {
		env := setupTestEnv(t)
		project, job := env.createProject(t)
		gen := &scriptedGenerator{fn: echoWithTerm}
		orch := env.newOrchestrator(t, gen)

		require.NoError(t, orch.RunGuarded(ctx, project.ID, job.ID))

		stored, err := env.status.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCompleted, stored.Status)
		assert.Equal(t, models.TotalChapters, stored.CompletedChapters)
		assert.Equal(t, models.TotalChapters, stored.TotalChapters)
		assert.NotNil(t, stored.CompletedAt)

		chapters, err := env.status.ListChapters(ctx, project.ID)
		require.NoError(t, err)
		require.Len(t, chapters, models.TotalChapters)
		for i, ch := range chapters {
			assert.Equal(t, i, ch.ChapterNum)
			assert.Equal(t, models.ChapterStatusCompleted, ch.Status)
		}
		assert.Equal(t, sourceText(), chapters[0].Content)

		// 所有级别的段落合起来就是全部14个段落
		total := 0
		for _, n := range paragraphCounts(chapters[1:]) {
			total += n
		}
		assert.Equal(t, 14, total)

		// 第一次引入的释义保留
		updated, err := env.status.GetProject(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ProjectStatusCompleted, updated.Status)
		vocab, err := updated.VocabularyMap()
		require.NoError(t, err)
		require.Contains(t, vocab, "casa")
		assert.Equal(t, "house (level 1)", vocab["casa"].Translation)
		assert.Equal(t, 1, vocab["casa"].FirstLevel)

		notes, err := chapters[1].FootnoteList()
		require.NoError(t, err)
		require.NotEmpty(t, notes)
		assert.Equal(t, "casa", notes[0].Term)
		assert.Equal(t, "house (level 1)", notes[0].Translation)

		snapshot, err := env.snaps.Read(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, string(models.ProjectStatusCompleted), snapshot.Status)
		assert.Len(t, snapshot.Chapters, models.TotalChapters)
	})

	t.Run("rerun rebuilds the same structure", func(t *testing.T) {
		env := setupTestEnv(t)
		project, job := env.createProject(t)
		orch := env.newOrchestrator(t, &scriptedGenerator{fn: echoWithTerm})

		require.NoError(t, orch.RunGuarded(ctx, project.ID, job.ID))
		first, err := env.status.ListChapters(ctx, project.ID)
		require.NoError(t, err)

		second, err := env.status.PrepareRun(ctx, project.ID)
		require.NoError(t, err)
		require.NoError(t, orch.RunGuarded(ctx, project.ID, second.ID))
		again, err := env.status.ListChapters(ctx, project.ID)
		require.NoError(t, err)

		require.Len(t, again, len(first))
		assert.Equal(t, paragraphCounts(first), paragraphCounts(again))
		for i := range first {
			assert.Equal(t, first[i].Content, again[i].Content)
			assert.NotEqual(t, first[i].ID, again[i].ID, "chapters must be rebuilt")
		}

		// 旧任务被清理
		_, err = env.status.GetJob(ctx, job.ID)
		assert.ErrorIs(t, err, models.ErrJobNotFound)
	})

	t.Run("generation failure aborts the run", func(t *testing.T) {
		env := setupTestEnv(t)
		project, job := env.createProject(t)
		gen := &scriptedGenerator{fn: func(call int, req transform.TransformRequest) (*transform.GenerationResult, error) {
			if req.Level == 3 {
				return nil, errors.New("service unavailable")
			}
			return echoWithTerm(call, req)
		}}
		orch := env.newOrchestrator(t, gen)

		err := orch.RunGuarded(ctx, project.ID, job.ID)
		require.Error(t, err)

		stored, err := env.status.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusFailed, stored.Status)
		assert.Equal(t, "Failed while processing level 3.", stored.ErrorMessage)
		assert.Equal(t, 3, stored.CompletedChapters)

		chapters, err := env.status.ListChapters(ctx, project.ID)
		require.NoError(t, err)
		statuses := make([]models.ChapterStatus, 0, len(chapters))
		for _, ch := range chapters {
			statuses = append(statuses, ch.Status)
		}
		assert.Equal(t, []models.ChapterStatus{
			models.ChapterStatusCompleted,
			models.ChapterStatusCompleted,
			models.ChapterStatusCompleted,
			models.ChapterStatusFailed,
			models.ChapterStatusPending,
			models.ChapterStatusPending,
			models.ChapterStatusPending,
			models.ChapterStatusPending,
		}, statuses)
		assert.NotEmpty(t, chapters[2].Content, "completed chapters stay inspectable")

		updated, err := env.status.GetProject(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ProjectStatusFailed, updated.Status)
	})

	t.Run("panic fails the run", func(t *testing.T) {
		env := setupTestEnv(t)
		project, job := env.createProject(t)
		gen := &scriptedGenerator{fn: func(call int, req transform.TransformRequest) (*transform.GenerationResult, error) {
			if req.Level == 2 {
				panic("boom")
			}
			return echoWithTerm(call, req)
		}}
		orch := env.newOrchestrator(t, gen)

		err := orch.RunGuarded(ctx, project.ID, job.ID)
		require.Error(t, err)

		stored, err := env.status.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusFailed, stored.Status)
		assert.Equal(t, "boom", stored.ErrorMessage)

		chapter, err := env.status.GetChapter(ctx, project.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, models.ChapterStatusFailed, chapter.Status)
	})

	t.Run("skips terminal job", func(t *testing.T) {
		env := setupTestEnv(t)
		project, job := env.createProject(t)
		gen := &scriptedGenerator{fn: echoWithTerm}
		orch := env.newOrchestrator(t, gen)

		require.NoError(t, orch.RunGuarded(ctx, project.ID, job.ID))
		calls := gen.Calls()

		require.NoError(t, orch.RunGuarded(ctx, project.ID, job.ID))
		assert.Equal(t, calls, gen.Calls(), "completed job must not run again")
	})

	t.Run("unknown job", func(t *testing.T) {
		env := setupTestEnv(t)
		project, _ := env.createProject(t)
		orch := env.newOrchestrator(t, &scriptedGenerator{fn: echoWithTerm})

		err := orch.Run(ctx, project.ID, "missing-job")
		assert.ErrorIs(t, err, models.ErrJobNotFound)
	})
}

func TestOrchestrator_SingleFlight(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	project, job := env.createProject(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	gen := &scriptedGenerator{fn: func(call int, req transform.TransformRequest) (*transform.GenerationResult, error) {
		if call == 1 {
			once.Do(func() { close(entered) })
			<-release
		}
		return echoWithTerm(call, req)
	}}
	orch := env.newOrchestrator(t, gen)

	errCh := make(chan error, 1)
	go func() {
		errCh <- orch.RunGuarded(ctx, project.ID, job.ID)
	}()
	<-entered

	t.Run("same process skips", func(t *testing.T) {
		assert.NoError(t, orch.RunGuarded(ctx, project.ID, job.ID))
	})

	t.Run("other process waits and times out", func(t *testing.T) {
		// 独立的活跃任务表模拟另一个进程
		other := env.newOrchestrator(t, gen, lock.WithAcquireTimeout(100*time.Millisecond))
		err := other.RunGuarded(ctx, project.ID, job.ID)
		assert.ErrorIs(t, err, lock.ErrLockTimeout)

		stored, err := env.status.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusProcessing, stored.Status, "holder keeps the job")
	})

	close(release)
	require.NoError(t, <-errCh)
	callsAfterRun := gen.Calls()

	stored, err := env.status.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)

	// 锁释放后其他进程可以获取，但任务已完成不会再次执行
	other := env.newOrchestrator(t, gen)
	require.NoError(t, other.RunGuarded(ctx, project.ID, job.ID))
	assert.Equal(t, callsAfterRun, gen.Calls())
}

func TestRecoverIncompleteJobs(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	project, job := env.createProject(t)

	gen := &scriptedGenerator{fn: echoWithTerm}
	orch := env.newOrchestrator(t, gen)
	scheduler := NewGoroutineScheduler(ctx, orch, env.logger)

	recovered, err := RecoverIncompleteJobs(ctx, env.status, scheduler, env.logger)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)
	scheduler.Wait()

	stored, err := env.status.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)

	// 没有处理中的任务时不调度
	recovered, err = RecoverIncompleteJobs(ctx, env.status, scheduler, env.logger)
	require.NoError(t, err)
	assert.Equal(t, 0, recovered)

	chapters, err := env.status.ListChapters(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, chapters, models.TotalChapters)
}
