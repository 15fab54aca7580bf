// Package llm provides the text-generation capability the primary agents run on.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrNotConfigured is returned when no backend is configured.
var ErrNotConfigured = errors.New("llm: backend not configured")

// ErrUnsupportedBackend is returned when an unknown backend is specified.
var ErrUnsupportedBackend = errors.New("llm: unsupported backend")

// Generator turns a system instruction and a prompt into model text.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, system, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

// Config selects and configures a backend.
type Config struct {
	// Backend is "anthropic", "ollama" or "disabled".
	Backend string `yaml:"backend"`
	// Model is the model identifier. Each backend has its own default.
	Model string `yaml:"model"`
	// URL overrides the API base URL.
	URL string `yaml:"url"`
	// APIKey falls back to ANTHROPIC_API_KEY for the anthropic backend.
	APIKey    string        `yaml:"api_key"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// DefaultConfig uses Anthropic.
func DefaultConfig() Config {
	return Config{
		Backend:   "anthropic",
		Model:     defaultAnthropicModel,
		MaxTokens: 4096,
		Timeout:   120 * time.Second,
	}
}

// NewGenerator builds the backend named by cfg.
func NewGenerator(cfg Config) (Generator, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	switch cfg.Backend {
	case "", "disabled":
		return nil, ErrNotConfigured

	case "anthropic":
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: Anthropic API key required (set llm.api_key or ANTHROPIC_API_KEY)")
		}
		if cfg.Model == "" {
			cfg.Model = defaultAnthropicModel
		}
		if cfg.URL == "" {
			cfg.URL = anthropicBaseURL
		}
		return NewAnthropicClient(cfg), nil

	case "ollama":
		if cfg.Model == "" {
			cfg.Model = defaultOllamaModel
		}
		if cfg.URL == "" {
			cfg.URL = defaultOllamaURL
		}
		return NewOllamaClient(cfg), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.Backend)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
