package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// ReadabilityFetcher does a plain HTTP GET and runs article extraction on
// the response. Good enough for static pages, which is most of the web the
// researcher touches.
type ReadabilityFetcher struct {
	Timeout  time.Duration
	MaxChars int
}

func (f *ReadabilityFetcher) Exec(ctx context.Context, rawURL string) (Result, error) {
	if strings.TrimSpace(rawURL) == "" {
		return Result{}, fmt.Errorf("invalid url")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Result{}, fmt.Errorf("parse url: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", "MonkeyResearcher/1.0 (research agent)")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("fetch %s: %s", rawURL, resp.Status)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return Result{}, fmt.Errorf("extract %s: %w", rawURL, err)
	}

	return Result{
		URL:         rawURL,
		Title:       strings.TrimSpace(article.Title),
		TextContent: truncate(strings.TrimSpace(article.TextContent), f.MaxChars),
		FetchMS:     int(time.Since(t0) / time.Millisecond),
	}, nil
}
