// Package mcp implements the client side of the academic-paper retrieval
// protocol: an initialize handshake that discovers the server's tools,
// then named tool calls with a parameters object.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/FRAMEEE17/MonkeyResearcher/config"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/httpx"
)

// ToolInfo describes one tool the server exposes.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Paper is one academic search hit.
type Paper struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	URL      string   `json:"url"`
	PDFURL   string   `json:"pdf_url"`
	Authors  []string `json:"authors"`
	Category string   `json:"category"`
}

// Client reaches the paper server over HTTP. The handshake is lazy and
// idempotent: the first call triggers tool discovery exactly once, even
// under concurrent first use; later calls reuse the session.
type Client struct {
	baseURL string
	token   string
	http    *httpx.Client
	logger  *log.Logger

	mu          sync.Mutex
	initialized bool
	tools       []ToolInfo
}

func NewClient(cfg config.MCPConfig, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(log.Writer(), "[MCP] ", log.LstdFlags)
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.ServerURL, "/"),
		token:   cfg.AuthToken,
		http:    httpx.New(timeout, retries, time.Second),
		logger:  logger,
	}
}

// defaultTools is the arxiv tool set assumed when discovery fails; the
// server contract guarantees at least these.
func defaultTools() []ToolInfo {
	return []ToolInfo{
		{Name: "search_papers", Description: "Search arXiv for papers matching a query", Parameters: map[string]any{
			"query":       map[string]any{"type": "string", "required": true},
			"max_results": map[string]any{"type": "integer", "required": false},
		}},
		{Name: "download_paper", Description: "Download a paper PDF by arXiv id", Parameters: map[string]any{
			"paper_id": map[string]any{"type": "string", "required": true},
		}},
		{Name: "list_papers", Description: "List previously downloaded papers", Parameters: map[string]any{}},
		{Name: "read_paper", Description: "Read the text of a downloaded paper", Parameters: map[string]any{
			"paper_id": map[string]any{"type": "string", "required": true},
		}},
	}
}

// Initialize performs tool discovery once. Safe for concurrent use.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}
	if c.baseURL == "" {
		return fmt.Errorf("mcp server url not configured")
	}

	var out struct {
		Tools []ToolInfo `json:"tools"`
	}
	err := c.http.DoJSON(ctx, http.MethodGet, c.baseURL+"/tools", httpx.BearerHeader(c.token, nil), nil, &out)
	if err != nil || len(out.Tools) == 0 {
		if err != nil {
			c.logger.Printf("tool discovery failed, assuming default tool set: %v", err)
		}
		c.tools = defaultTools()
	} else {
		c.tools = out.Tools
	}
	c.initialized = true
	return nil
}

// Tools returns the discovered tool set, initializing on first use.
func (c *Client) Tools(ctx context.Context) ([]ToolInfo, error) {
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ToolInfo, len(c.tools))
	copy(out, c.tools)
	return out, nil
}

// Call invokes one named tool. Transport retries with exponential backoff
// are handled by the underlying client.
func (c *Client) Call(ctx context.Context, tool string, params map[string]any) (map[string]any, error) {
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}
	body := map[string]any{"tool": tool, "parameters": params}
	var out map[string]any
	if err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/call", httpx.BearerHeader(c.token, nil), body, &out); err != nil {
		return nil, fmt.Errorf("mcp call %s: %w", tool, err)
	}
	return out, nil
}

// SearchPapers runs the search_papers tool and parses the result.
func (c *Client) SearchPapers(ctx context.Context, query string, maxResults int) ([]Paper, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	out, err := c.Call(ctx, "search_papers", map[string]any{"query": query, "max_results": maxResults})
	if err != nil {
		return nil, err
	}
	return parsePapers(out)
}

func parsePapers(out map[string]any) ([]Paper, error) {
	raw, ok := out["papers"]
	if !ok {
		// some servers nest the payload under result
		if inner, ok2 := out["result"].(map[string]any); ok2 {
			raw = inner["papers"]
		}
	}
	if raw == nil {
		return nil, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("re-encode papers: %w", err)
	}
	var papers []Paper
	if err := json.Unmarshal(b, &papers); err != nil {
		return nil, fmt.Errorf("parse papers: %w", err)
	}
	return papers, nil
}
