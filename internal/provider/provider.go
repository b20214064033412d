// Package provider abstracts the LLM completion capability behind a single
// interface with a local (Ollama-style) and an OpenAI-compatible backend.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/FRAMEEE17/MonkeyResearcher/config"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/httpx"
)

// Options tunes a single completion call. Zero values fall back to the
// provider's defaults.
type Options struct {
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// LLMProvider is the completion capability every node depends on.
type LLMProvider interface {
	// Complete sends systemPrompt+userPrompt and returns the model text.
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error)
	// CompleteWithTokens additionally reports prompt/completion token usage.
	CompleteWithTokens(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, int64, int64, error)
	// Model returns the configured model name, for accounting.
	Model() string
}

// New builds the provider selected by configuration.
func New(cfg config.LLMConfig) (LLMProvider, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	client := httpx.New(timeout, 1, time.Second)
	switch cfg.Provider {
	case config.LLMProviderLocal:
		return &LocalProvider{cfg: cfg, http: client}, nil
	case config.LLMProviderOpenAICompatible:
		return &OpenAICompatProvider{cfg: cfg, http: client}, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider type: %s", cfg.Provider)
	}
}
