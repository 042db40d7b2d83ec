package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv(EnvHTTPPort, "")
	t.Setenv(EnvDataDir, t.TempDir())
	ResetDataDir()
	defer ResetDataDir()

	cfg := NewConfig()
	assert.Equal(t, ":19970", cfg.Server.HTTPPort)
	assert.Equal(t, 25, cfg.Engine.L0Size)
	assert.Equal(t, 25, cfg.Engine.ChunkSize)
	assert.Equal(t, 10, cfg.Engine.RegistryCapacity)
	assert.Equal(t, 3600, cfg.Engine.RuntimeTTLSeconds)
	assert.NotEmpty(t, cfg.Engine.TopicKeywords)
	assert.Equal(t, "zh-CN", cfg.LLM.Language)
}

func TestNewConfig_EnvOverride(t *testing.T) {
	t.Setenv(EnvHTTPPort, ":29970")
	t.Setenv(EnvLLMModel, "gpt-4o")
	t.Setenv(EnvDataDir, t.TempDir())
	ResetDataDir()
	defer ResetDataDir()

	cfg := NewConfig()
	assert.Equal(t, ":29970", cfg.Server.HTTPPort)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
}

func TestNewConfig_FileOverlay(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)
	t.Setenv(EnvHTTPPort, "")
	ResetDataDir()
	defer ResetDataDir()

	yaml := `
engine:
  chunk_size: 10
  topic_keywords: ["议题一", "wrap up"]
llm:
  model: custom-model
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(yaml), 0644))

	cfg := NewConfig()
	assert.Equal(t, 10, cfg.Engine.ChunkSize)
	assert.Equal(t, []string{"议题一", "wrap up"}, cfg.Engine.TopicKeywords)
	assert.Equal(t, "custom-model", cfg.LLM.Model)
	// 文件未覆盖的字段保持默认值
	assert.Equal(t, 25, cfg.Engine.L0Size)
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: ["), 0644))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestGetDataDir_EnvPriority(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)
	ResetDataDir()
	defer ResetDataDir()

	assert.Equal(t, dir, GetDataDir())
	assert.Equal(t, filepath.Join(dir, ConfigFileName), ConfigFilePath())
}
