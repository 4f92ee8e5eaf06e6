package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "OPENAI_API_BASE", "STRIVEBOT_MODEL", "PORT"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultsWithKeyFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, "gpt-3.5-turbo", cfg.Chat.Model)
	assert.Equal(t, 500, cfg.Chat.MaxTokens)
	assert.Equal(t, 50, cfg.Chat.TitleMaxTokens)
	assert.InDelta(t, 0.7, cfg.Chat.Temperature, 1e-9)
}

func TestLoadMissingAPIKeyIsFatal(t *testing.T) {
	clearEnv(t)

	_, err := Load("")
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestLoadYAMLFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("PORT", "8080")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 4000
openai:
  api_key: sk-file
  base_url: https://proxy.example.com/v1
chat:
  model: gpt-4
  max_tokens: 800
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port, "env overrides the file")
	assert.Equal(t, "sk-env", cfg.OpenAI.APIKey, "env overrides the file")
	assert.Equal(t, "https://proxy.example.com/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, "gpt-4", cfg.Chat.Model)
	assert.Equal(t, 800, cfg.Chat.MaxTokens)
	assert.Equal(t, 50, cfg.Chat.TitleMaxTokens, "unset file fields keep defaults")
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.OpenAI.APIKey = "sk-test"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"blank api key", func(c *Config) { c.OpenAI.APIKey = "   " }},
		{"blank base url", func(c *Config) { c.OpenAI.BaseURL = "" }},
		{"bad header name", func(c *Config) { c.OpenAI.Headers = map[string]string{"bad header": "v"} }},
		{"blank model", func(c *Config) { c.Chat.Model = "" }},
		{"zero max tokens", func(c *Config) { c.Chat.MaxTokens = 0 }},
		{"zero title tokens", func(c *Config) { c.Chat.TitleMaxTokens = 0 }},
		{"temperature out of range", func(c *Config) { c.Chat.Temperature = 2.5 }},
		{"zero prompt budget", func(c *Config) { c.Chat.PromptBudget = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.OpenAI.APIKey = "sk-test"
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
