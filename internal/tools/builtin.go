package tools

import (
	"context"
	"fmt"

	"github.com/FRAMEEE17/MonkeyResearcher/internal/fetch"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/search"
)

// WebSearchSpec exposes a search provider as the web_search tool.
func WebSearchSpec(provider search.Provider, maxResults int, fetchFullPage bool) ToolSpec {
	return ToolSpec{
		Name:        "web_search",
		Description: "Search the web for pages matching a query",
		Parameters: map[string]ParamSpec{
			"query":       {Type: "string", Description: "search query", Required: true},
			"max_results": {Type: "integer", Description: "maximum hits to return"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			if query == "" {
				return nil, fmt.Errorf("query is required")
			}
			limit := maxResults
			if n, ok := asInt(args["max_results"]); ok && n > 0 {
				limit = n
			}
			return provider.Search(ctx, query, limit, fetchFullPage)
		},
	}
}

// FetchURLSpec exposes a web fetcher as the fetch_url tool.
func FetchURLSpec(fetcher fetch.WebFetcher) ToolSpec {
	return ToolSpec{
		Name:        "fetch_url",
		Description: "Fetch one URL and extract its readable text",
		Parameters: map[string]ParamSpec{
			"url": {Type: "string", Description: "absolute http(s) URL", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			url, _ := args["url"].(string)
			if url == "" {
				return nil, fmt.Errorf("url is required")
			}
			return fetcher.Exec(ctx, url)
		},
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
