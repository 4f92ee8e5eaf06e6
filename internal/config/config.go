package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey indicates no upstream credential was configured.
// Serving without one is pointless, so startup refuses to continue.
var ErrMissingAPIKey = errors.New("openai api_key must be provided (set OPENAI_API_KEY or openai.api_key)")

// Config represents the application configuration.
// Precedence: CLI flags > environment variables > YAML file > defaults.
type Config struct {
	Server ServerConfig `yaml:"server"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Chat   ChatConfig   `yaml:"chat"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// OpenAIConfig captures authentication and routing info for the upstream
// OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey  string            `yaml:"api_key"`
	BaseURL string            `yaml:"base_url"`
	Headers map[string]string `yaml:"headers"`
}

// ChatConfig tunes the completion requests issued on behalf of clients.
type ChatConfig struct {
	Model          string  `yaml:"model"`
	MaxTokens      int     `yaml:"max_tokens"`
	TitleMaxTokens int     `yaml:"title_max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	PromptBudget   int     `yaml:"prompt_budget"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port: 3000,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		Chat: ChatConfig{
			Model:          "gpt-3.5-turbo",
			MaxTokens:      500,
			TitleMaxTokens: 50,
			Temperature:    0.7,
			PromptBudget:   3000,
		},
	}
}

// Load builds a Config from the optional YAML file at path, a .env file in
// the working directory, and process environment variables, then validates
// the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return Config{}, fmt.Errorf("resolve config path: %w", err)
		}

		data, err := os.ReadFile(absPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
		}
	}

	// .env is optional; absence is not an error.
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_BASE"); v != "" {
		c.OpenAI.BaseURL = v
	}
	if v := os.Getenv("STRIVEBOT_MODEL"); v != "" {
		c.Chat.Model = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}

	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if strings.TrimSpace(c.OpenAI.BaseURL) == "" {
		return errors.New("openai.base_url must not be empty")
	}

	for headerKey := range c.OpenAI.Headers {
		if !isCanonicalHTTPHeader(headerKey) {
			return fmt.Errorf("openai.headers: %q is not a valid canonical HTTP header", headerKey)
		}
	}

	if strings.TrimSpace(c.Chat.Model) == "" {
		return errors.New("chat.model must not be empty")
	}
	if c.Chat.MaxTokens <= 0 {
		return fmt.Errorf("chat.max_tokens must be positive, got %d", c.Chat.MaxTokens)
	}
	if c.Chat.TitleMaxTokens <= 0 {
		return fmt.Errorf("chat.title_max_tokens must be positive, got %d", c.Chat.TitleMaxTokens)
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		return fmt.Errorf("chat.temperature must be within [0, 2], got %g", c.Chat.Temperature)
	}
	if c.Chat.PromptBudget <= 0 {
		return fmt.Errorf("chat.prompt_budget must be positive, got %d", c.Chat.PromptBudget)
	}

	return nil
}

func isCanonicalHTTPHeader(header string) bool {
	if header == "" {
		return false
	}

	for _, r := range header {
		if !(r == '-' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')) {
			return false
		}
	}
	return true
}
