package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "llm:\n  provider: local\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Research.MaxWebResearchLoops != 3 {
		t.Fatalf("expected default loop budget 3, got %d", cfg.Research.MaxWebResearchLoops)
	}
	if !cfg.Research.FetchFullPage {
		t.Fatalf("fetch_full_page should default true")
	}
	if cfg.Search.API != SearchAPISearxNG {
		t.Fatalf("unexpected default search api %q", cfg.Search.API)
	}
	if cfg.Search.WebTimeout != 30*time.Second {
		t.Fatalf("unexpected web timeout %v", cfg.Search.WebTimeout)
	}
	if !cfg.LLM.StripThinkingTokens {
		t.Fatalf("strip_thinking_tokens should default true")
	}
	if cfg.Memory.CaptureLevel != CaptureEssential {
		t.Fatalf("unexpected default capture level %q", cfg.Memory.CaptureLevel)
	}
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	body := "llm:\n  provider: openai_compatible\n  model: gpt-4o-mini\n"
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected error for openai_compatible without api key")
	}
}

func TestLoadRejectsUnknownEnums(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad provider", "llm:\n  provider: hosted\n"},
		{"bad search api", "search:\n  api: google\n"},
		{"bad capture level", "memory:\n  capture_level: everything\n"},
		{"negative loops", "research:\n  max_web_research_loops: -1\n"},
		{"schedule missing cron", "schedules:\n  - topic: quantum computing\n"},
		{"openapi tool missing spec_path", "tools:\n  openapi:\n    - name: weather\n      base_url: http://api.example.com\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadOpenAPITools(t *testing.T) {
	body := "llm:\n  provider: local\n" +
		"tools:\n  openapi:\n" +
		"    - name: weather\n      spec_path: ./specs/weather.json\n      base_url: http://api.example.com\n      bearer_token: tok\n"
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Tools.OpenAPI) != 1 {
		t.Fatalf("expected one openapi tool server, got %d", len(cfg.Tools.OpenAPI))
	}
	tool := cfg.Tools.OpenAPI[0]
	if tool.Name != "weather" || tool.SpecPath != "./specs/weather.json" || tool.BearerToken != "tok" {
		t.Fatalf("openapi tool config mangled: %+v", tool)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SEARXNG_URL", "http://searx.internal:8080")
	cfg, err := Load(writeConfig(t, "llm:\n  provider: local\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.SearxNGURL != "http://searx.internal:8080" {
		t.Fatalf("env override not applied: %q", cfg.Search.SearxNGURL)
	}
}

func TestPostgresDSN(t *testing.T) {
	t.Parallel()
	p := PostgresConfig{Host: "db", User: "app", Password: "s3cret", DBName: "research"}
	want := "postgres://app:s3cret@db:5432/research?sslmode=disable"
	if got := p.DSN(); got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}
	if (PostgresConfig{}).DSN() != "" {
		t.Fatalf("unconfigured postgres should produce empty DSN")
	}
	if (PostgresConfig{URL: "postgres://x"}).DSN() != "postgres://x" {
		t.Fatalf("explicit URL must win")
	}
}
