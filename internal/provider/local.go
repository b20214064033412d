package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/FRAMEEE17/MonkeyResearcher/config"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/httpx"
)

// LocalProvider talks to an Ollama-style /api/chat endpoint. No auth.
type LocalProvider struct {
	cfg  config.LLMConfig
	http *httpx.Client
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaMessage `json:"message"`
	PromptEvalCount int64         `json:"prompt_eval_count"`
	EvalCount       int64         `json:"eval_count"`
}

func (p *LocalProvider) Model() string { return p.cfg.Model }

func (p *LocalProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error) {
	text, _, _, err := p.CompleteWithTokens(ctx, systemPrompt, userPrompt, opts)
	return text, err
}

func (p *LocalProvider) CompleteWithTokens(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, int64, int64, error) {
	req := ollamaChatRequest{
		Model:  p.cfg.Model,
		Stream: false,
	}
	if systemPrompt != "" {
		req.Messages = append(req.Messages, ollamaMessage{Role: "system", Content: systemPrompt})
	}
	req.Messages = append(req.Messages, ollamaMessage{Role: "user", Content: userPrompt})
	if opts.JSONMode {
		req.Format = "json"
	}
	options := map[string]any{}
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if len(options) > 0 {
		req.Options = options
	}

	url := strings.TrimSuffix(p.cfg.BaseURL, "/") + "/api/chat"
	var out ollamaChatResponse
	if err := p.http.DoJSON(ctx, http.MethodPost, url, nil, req, &out); err != nil {
		return "", 0, 0, fmt.Errorf("local chat: %w", err)
	}
	text := out.Message.Content
	if p.cfg.StripThinkingTokens {
		text = StripThinkingTokens(text)
	}
	return text, out.PromptEvalCount, out.EvalCount, nil
}
