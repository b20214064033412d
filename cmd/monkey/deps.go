package main

import (
	"fmt"
	"log"
	"time"

	"github.com/FRAMEEE17/MonkeyResearcher/config"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/fetch"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/httpx"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/mcp"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/memory"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/provider"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/research"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/search"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/telemetry"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/tools"
)

// buildGraph assembles the research graph and its dependencies from config.
func buildGraph(cfg *config.Config) (*research.Graph, error) {
	llm, err := provider.New(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	fetcher, err := fetch.New(cfg.Fetch)
	if err != nil {
		return nil, fmt.Errorf("fetcher: %w", err)
	}

	var academic search.Provider
	var mcpClient *mcp.Client
	if cfg.MCP.ServerURL != "" {
		mcpClient = mcp.NewClient(cfg.MCP, log.New(log.Writer(), "[MCP] ", log.LstdFlags))
		academic = search.NewAcademic(mcpClient)
	}

	searchLogger := log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)
	web := search.NewCoordinator(searchLogger, webBackend(cfg, fetcher, academic))

	registry := tools.NewRegistry(nil)
	if err := registry.Register(tools.WebSearchSpec(web, cfg.Search.MaxResults, cfg.Research.FetchFullPage)); err != nil {
		return nil, fmt.Errorf("register web_search: %w", err)
	}
	if err := registry.Register(tools.FetchURLSpec(fetcher)); err != nil {
		return nil, fmt.Errorf("register fetch_url: %w", err)
	}
	if mcpClient != nil {
		registry.AttachMCP(mcpClient)
	}
	for _, t := range cfg.Tools.OpenAPI {
		if _, err := registry.RegisterOpenAPIFile(t.Name, t.SpecPath, t.BaseURL, t.BearerToken); err != nil {
			return nil, fmt.Errorf("register openapi tools for %s: %w", t.Name, err)
		}
	}

	mem, err := memory.New(cfg.Memory)
	if err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}

	tel := telemetry.New(cfg.Telemetry)

	// a nil *memory.Store must become a nil interface, not a typed nil
	var capturer research.Capturer
	if mem != nil {
		capturer = mem
	}
	return research.New(cfg, llm, registry, fetcher, web, academic, capturer, tel), nil
}

// webBackend picks the default search backend per search.api. Validation
// already guarantees mcp.server_url is set when the api is mcp.
func webBackend(cfg *config.Config, fetcher fetch.WebFetcher, academic search.Provider) search.Provider {
	if cfg.Search.API == config.SearchAPIMCP && academic != nil {
		return academic
	}
	return search.NewSearxNG(cfg.Search, httpx.New(cfg.Search.WebTimeout, 2, 500*time.Millisecond), fetcher)
}
