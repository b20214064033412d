package research

import (
	"context"
	"fmt"
	"testing"

	"github.com/FRAMEEE17/MonkeyResearcher/internal/provider"
)

// brokenLLM fails every call; rule-based classification must never reach it.
type brokenLLM struct{}

func (brokenLLM) Complete(context.Context, string, string, provider.Options) (string, error) {
	return "", fmt.Errorf("llm unavailable")
}

func (brokenLLM) CompleteWithTokens(context.Context, string, string, provider.Options) (string, int64, int64, error) {
	return "", 0, 0, fmt.Errorf("llm unavailable")
}

func (brokenLLM) Model() string { return "broken" }

func TestClassifyIntentRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		query    string
		intent   string
		strategy string
	}{
		{"bare url", "https://example.com/post", IntentURLAnalysis, StrategyURLFetch},
		{"url inside prose", "compare the claims in https://example.com/a with reality", IntentURLAnalysis, StrategyURLFetch},
		{"academic keyword", "recent papers on sparse attention", IntentAcademicResearch, StrategyMCP},
		{"definition question", "what is quantum entanglement", IntentDirectContent, StrategyWebSearch},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := classifyIntent(context.Background(), brokenLLM{}, tt.query)
			if got.Intent != tt.intent || got.Strategy != tt.strategy {
				t.Fatalf("classify(%q) = %s/%s, want %s/%s", tt.query, got.Intent, got.Strategy, tt.intent, tt.strategy)
			}
			if got.Source != "rule" {
				t.Fatalf("rule match should not consult the llm, source = %s", got.Source)
			}
		})
	}
}

func TestClassifyIntentFallsBackWhenLLMFails(t *testing.T) {
	t.Parallel()

	got := classifyIntent(context.Background(), brokenLLM{}, "impact of soil microbiomes on crop yield")
	if got.Intent != IntentComprehensiveResearch || got.Strategy != StrategyWebSearch {
		t.Fatalf("fallback = %s/%s", got.Intent, got.Strategy)
	}
	if got.Source != "fallback" {
		t.Fatalf("source = %s, want fallback", got.Source)
	}
}

func TestAnalyzeInputDirectFetch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		query  string
		direct bool
	}{
		{"bare url", "https://example.com/article", true},
		{"url with short tail", "https://example.com/article please summarize", true},
		{"summarize this link", "can you summarize this link for me https://example.com/article", true},
		{"url embedded in research ask", "compare the benchmark claims made in https://example.com/a against independent results published elsewhere", false},
		{"no url", "history of the transistor", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			analysis := analyzeInput(tt.query)
			if got, _ := analysis["direct_fetch"].(bool); got != tt.direct {
				t.Fatalf("direct_fetch(%q) = %v, want %v", tt.query, got, tt.direct)
			}
		})
	}
}

func TestFirstURL(t *testing.T) {
	t.Parallel()

	if got := firstURL("read https://a.example/x and https://b.example/y"); got != "https://a.example/x" {
		t.Fatalf("firstURL = %q", got)
	}
	if got := firstURL("no links here"); got != "" {
		t.Fatalf("firstURL on plain text = %q", got)
	}
}
