package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	assert.Equal(t, "openai", cfg.GetLLM().Provider)

	pipeline, err := cfg.GetPipeline()
	require.NoError(t, err)
	assert.Equal(t, PipelineConfig{Workers: 4, StepTimeout: time.Minute, BatchSize: 25, PollInterval: 5 * time.Minute}, pipeline)

	store, err := cfg.GetStore()
	require.NoError(t, err)
	assert.Equal(t, "memory", store.Type)
	assert.Equal(t, 720*time.Hour, store.RunRetention)

	assert.Equal(t, "log", cfg.GetNotify().Type)
	assert.Equal(t, "smtp", cfg.GetReply().Type)
	assert.Equal(t, ":8080", cfg.GetServer().ListenAddress)
	assert.True(t, cfg.GetMetrics().Enabled)
}

func TestNewReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
llm:
  provider: gemini
gemini:
  model_name: gemini-2.0-flash
pipeline:
  workers: 8
  step_timeout: 15s
smtp:
  port: 2525
  starttls: false
server:
  cron_secret: s3cret
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.GetLLM().Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.GetGemini().ModelName)
	assert.Equal(t, 1000, cfg.GetGemini().MaxTokens)

	pipeline, err := cfg.GetPipeline()
	require.NoError(t, err)
	assert.Equal(t, 8, pipeline.Workers)
	assert.Equal(t, 15*time.Second, pipeline.StepTimeout)

	smtp, err := cfg.GetSMTP()
	require.NoError(t, err)
	assert.Equal(t, 2525, smtp.Port)
	assert.False(t, smtp.StartTLS)
	assert.Equal(t, "s3cret", cfg.GetServer().CronSecret)
}

func TestNewEnvOverride(t *testing.T) {
	t.Setenv("INBOX_TRIAGE_STORE_TYPE", "sqlite")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  type: mysql\n"), 0o600))

	cfg, err := New(path)
	require.NoError(t, err)

	store, err := cfg.GetStore()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", store.Type)
}

func TestNewMissingExplicitFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestInvalidDuration(t *testing.T) {
	v := NewEmptyViper()
	v.Set("pipeline.step_timeout", "soon")

	_, err := NewFromViper(v).GetPipeline()
	assert.ErrorContains(t, err, "pipeline.step_timeout")
}
