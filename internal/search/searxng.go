package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/FRAMEEE17/MonkeyResearcher/config"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/fetch"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/httpx"
)

// SearxNG queries a SearxNG meta-search instance over its JSON API.
// When fetchFullPage is requested and a fetcher is attached, each hit's
// readable text is pulled best-effort into RawContent.
type SearxNG struct {
	cfg     config.SearchConfig
	http    *httpx.Client
	fetcher fetch.WebFetcher
}

func NewSearxNG(cfg config.SearchConfig, client *httpx.Client, fetcher fetch.WebFetcher) *SearxNG {
	if client == nil {
		client = httpx.New(cfg.WebTimeout, 2, 0)
	}
	return &SearxNG{cfg: cfg, http: client, fetcher: fetcher}
}

func (s *SearxNG) Name() string { return "searxng" }

type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (s *SearxNG) Search(ctx context.Context, query string, maxResults int, fetchFullPage bool) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = s.cfg.MaxResults
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	endpoint := strings.TrimSuffix(s.cfg.SearxNGURL, "/") + "/search"
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("engines", "google,bing,duckduckgo")

	var out searxngResponse
	if err := s.http.DoJSON(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("searxng query: %w", err)
	}

	results := make([]Result, 0, maxResults)
	for _, r := range out.Results {
		if len(results) >= maxResults {
			break
		}
		if r.URL == "" {
			continue
		}
		results = append(results, Result{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}

	if fetchFullPage && s.fetcher != nil {
		for i := range results {
			page, err := s.fetcher.Exec(ctx, results[i].URL)
			if err != nil {
				// snippet-only result, keep going
				continue
			}
			results[i].RawContent = page.TextContent
		}
	}
	return results, nil
}
