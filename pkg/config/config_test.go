package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvConfigPath, EnvModel, EnvAdminPassword, EnvDatabasePath, EnvRedisAddr} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, resolved, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, resolved)
	assert.Equal(t, DefaultModel, cfg.Model.Name)
	assert.Equal(t, DefaultTimeout, cfg.Model.Timeout.D())
	assert.Equal(t, RenderSequential, cfg.Pipeline.RenderMode)
	assert.Equal(t, DefaultCondenseOverTokens, cfg.Pipeline.CondenseOverTokens)
	assert.Equal(t, DefaultDrafts, cfg.Pipeline.Drafts)
	assert.Equal(t, StorageSQLite, cfg.Storage.Backend)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "roadmapbp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  name: gpt-4o
  timeout: 90s
pipeline:
  render_mode: concurrent
  render_concurrency: 2
metrics:
  enabled: false
`), 0o644))

	cfg, resolved, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, "gpt-4o", cfg.Model.Name)
	assert.Equal(t, 90*time.Second, cfg.Model.Timeout.D())
	assert.Equal(t, RenderConcurrent, cfg.Pipeline.RenderMode)
	assert.Equal(t, 2, cfg.Pipeline.RenderConcurrency)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadJSONWithSecondsTimeout(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "roadmapbp.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"model":{"name":"gemini-2.0-flash","timeout":30}}`), 0o644))

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Model.Timeout.D())
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv(EnvModel, "llama3.1")
	t.Setenv(EnvAdminPassword, "s3cret")
	t.Setenv(EnvDatabasePath, "/tmp/x.db")

	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "llama3.1", cfg.Model.Name)
	assert.Equal(t, "s3cret", cfg.Server.AdminPassword)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.SQLitePath)
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown model", func(c *Config) { c.Model.Name = "nonesuch-1" }, "unknown model"},
		{"bad render mode", func(c *Config) { c.Pipeline.RenderMode = "parallel" }, "render_mode"},
		{"bad concurrency", func(c *Config) { c.Pipeline.RenderConcurrency = -1 }, "render_concurrency"},
		{"too many drafts", func(c *Config) { c.Pipeline.Drafts = 50 }, "drafts"},
		{"bad backend", func(c *Config) { c.Storage.Backend = "mongo" }, "storage.backend"},
		{"bad temperature", func(c *Config) { hot := float32(5); c.Model.Temperature = &hot }, "temperature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadKeepsExplicitZeroTemperature(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	zero := filepath.Join(dir, "zero.yaml")
	require.NoError(t, os.WriteFile(zero, []byte("model:\n  name: mock\n  temperature: 0\n"), 0o600))
	cfg, _, err := Load(zero)
	require.NoError(t, err)
	require.NotNil(t, cfg.Model.Temperature)
	assert.Zero(t, cfg.Model.SamplingTemperature())

	unset := filepath.Join(dir, "unset.yaml")
	require.NoError(t, os.WriteFile(unset, []byte("model:\n  name: mock\n"), 0o600))
	cfg, _, err = Load(unset)
	require.NoError(t, err)
	assert.InDelta(t, DefaultTemperature, cfg.Model.SamplingTemperature(), 1e-6)

	assert.InDelta(t, DefaultTemperature, ModelConfig{}.SamplingTemperature(), 1e-6)
}

func TestSaveConfigRoundTripOmitsPassword(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	for _, name := range []string{"out.yaml", "out.json"} {
		path := filepath.Join(dir, name)
		cfg := Default()
		cfg.Server.AdminPassword = "hunter2"
		cfg.Model.Timeout = Duration(45 * time.Second)
		require.NoError(t, SaveConfig(cfg, path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "hunter2")

		loaded, _, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 45*time.Second, loaded.Model.Timeout.D(), name)
	}
}

func TestGetModelProvider(t *testing.T) {
	tests := map[string]string{
		"claude-sonnet-4-5": ProviderAnthropic,
		"claude-future-9":   ProviderAnthropic,
		"gpt-4o":            ProviderOpenAI,
		"o3-mini":           ProviderOpenAI,
		"gemini-2.5-pro":    ProviderGoogle,
		"ollama:phi4":       ProviderOllama,
		"qwen2.5":           ProviderOllama,
		"mock":              ProviderMock,
	}
	for model, want := range tests {
		got, err := GetModelProvider(model)
		require.NoError(t, err, model)
		assert.Equal(t, want, got, model)
	}

	_, err := GetModelProvider("bert")
	assert.Error(t, err)
	assert.Equal(t, "phi4", ProviderModelName("ollama:phi4"))
}

func TestGetModelInfoAndCost(t *testing.T) {
	info, known := GetModelInfo("gpt-4o")
	assert.True(t, known)
	assert.Equal(t, ProviderOpenAI, info.Provider)

	info, known = GetModelInfo("llama3.2")
	assert.False(t, known)
	assert.Equal(t, ProviderOllama, info.Provider)
	assert.Equal(t, 4096, info.MaxOutputTokens)

	assert.InDelta(t, 3.0+15.0, CalculateCost("claude-sonnet-4-5", 1_000_000, 1_000_000), 1e-9)
	assert.Zero(t, CalculateCost("unknown", 100, 100))
}

func TestGetAPIKey(t *testing.T) {
	SetDecryptedSecrets(nil)
	t.Setenv(EnvAnthropicAPIKey, "")
	_, err := GetAPIKey(ProviderAnthropic)
	require.Error(t, err)

	t.Setenv(EnvAnthropicAPIKey, "from-env")
	key, err := GetAPIKey(ProviderAnthropic)
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	t.Setenv(EnvOllamaHost, "")
	host, err := GetAPIKey(ProviderOllama)
	require.NoError(t, err)
	assert.Equal(t, DefaultOllamaHost, host)

	_, err = GetAPIKey("acme")
	assert.Error(t, err)
}
