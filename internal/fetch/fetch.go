// Package fetch extracts readable text from a URL. Two engines are
// available: a plain HTTP fetcher with readability extraction, and a
// headless-browser fetcher for JS-rendered pages.
package fetch

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/FRAMEEE17/MonkeyResearcher/config"
)

const (
	DefaultTimeout  = 15 * time.Second
	MaxCharsDefault = 20000
)

// Result is the extracted readable content of one page.
type Result struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	TextContent string `json:"text_content"`
	FetchMS     int    `json:"fetch_ms"`
}

// WebFetcher fetches one URL and extracts its readable text.
// Exec returns an error for unreachable or unparsable pages; callers at the
// node boundary absorb it rather than letting it escape the pipeline.
type WebFetcher interface {
	Exec(ctx context.Context, url string) (Result, error)
}

type Engine string

const (
	EngineReadability Engine = "readability"
	EngineChromedp    Engine = "chromedp"
)

// New builds the fetcher selected by configuration.
func New(cfg config.FetchConfig) (WebFetcher, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}

	switch Engine(cfg.Engine) {
	case EngineReadability, "":
		return &ReadabilityFetcher{Timeout: timeout, MaxChars: maxChars}, nil
	case EngineChromedp:
		return &ChromedpFetcher{Timeout: timeout, MaxChars: maxChars}, nil
	default:
		return nil, fmt.Errorf("unsupported fetch engine: %s", cfg.Engine)
	}
}

// truncate cuts to at most max bytes, backing up to a rune boundary.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
