package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "gorm", cfg.Lock.Backend)
	assert.Equal(t, 2*time.Minute, cfg.Lock.TTL)
	assert.Equal(t, 200*time.Millisecond, cfg.Lock.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.Lock.AcquireTimeout)
	assert.Equal(t, 250, cfg.Transform.ChunkWords)
	assert.Equal(t, 900, cfg.Transform.CallWords)
	assert.Equal(t, 140, cfg.Transform.TailWords)
	assert.Equal(t, []float64{0.7, 0.8, 1.25, 1.3, 1.25, 0.95, 0.75}, cfg.Transform.Weights)
	assert.EqualValues(t, 2, cfg.Transform.Attempts)
	assert.False(t, cfg.Queue.Enable)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
llm:
  provider: openai
  api_key: ${TEST_GRADIENT_KEY}
lock:
  backend: redis
  acquire_timeout: 30s
transform:
  chunk_words: 300
  call_words: 800
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("TEST_GRADIENT_KEY", "sk-test")
	t.Setenv("SERVER_MODE", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "redis", cfg.Lock.Backend)
	assert.Equal(t, 30*time.Second, cfg.Lock.AcquireTimeout)
	assert.Equal(t, 300, cfg.Transform.ChunkWords)
	// 未覆盖的键保留默认值
	assert.Equal(t, 140, cfg.Transform.TailWords)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LLM_PROVIDER=tongyi\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("LLM_PROVIDER") })

	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "tongyi", cfg.LLM.Provider)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown lock backend", func(c *Config) { c.Lock.Backend = "etcd" }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "local" }},
		{"call cap below chunk target", func(c *Config) { c.Transform.CallWords = 100 }},
		{"wrong weight count", func(c *Config) { c.Transform.Weights = []float64{1, 1} }},
		{"non-positive weight", func(c *Config) { c.Transform.Weights = []float64{1, 1, 1, 0, 1, 1, 1} }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "s3" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			require.NoError(t, err)
			require.NoError(t, Validate(cfg))

			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}
