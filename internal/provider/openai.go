package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/FRAMEEE17/MonkeyResearcher/config"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/httpx"
)

// OpenAICompatProvider talks to any /v1/chat/completions compatible server
// with bearer-key authentication.
type OpenAICompatProvider struct {
	cfg  config.LLMConfig
	http *httpx.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *OpenAICompatProvider) Model() string { return p.cfg.Model }

func (p *OpenAICompatProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error) {
	text, _, _, err := p.CompleteWithTokens(ctx, systemPrompt, userPrompt, opts)
	return text, err
}

func (p *OpenAICompatProvider) CompleteWithTokens(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, int64, int64, error) {
	req := chatCompletionRequest{
		Model:       p.cfg.Model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if systemPrompt != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: userPrompt})
	if opts.JSONMode {
		req.ResponseFormat = map[string]any{"type": "json_object"}
	}

	base := p.cfg.BaseURL
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	url := strings.TrimSuffix(base, "/") + "/chat/completions"

	var out chatCompletionResponse
	headers := httpx.BearerHeader(p.cfg.APIKey, nil)
	if err := p.http.DoJSON(ctx, http.MethodPost, url, headers, req, &out); err != nil {
		return "", 0, 0, fmt.Errorf("chat completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", 0, 0, fmt.Errorf("chat completion: empty choices")
	}
	text := out.Choices[0].Message.Content
	if p.cfg.StripThinkingTokens {
		text = StripThinkingTokens(text)
	}
	return text, out.Usage.PromptTokens, out.Usage.CompletionTokens, nil
}
