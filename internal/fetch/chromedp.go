package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
)

// ChromedpFetcher renders the page in a headless browser before extraction.
// Used for JS-heavy pages the plain fetcher returns empty shells for.
type ChromedpFetcher struct {
	Timeout  time.Duration
	MaxChars int
}

func (f *ChromedpFetcher) Exec(ctx context.Context, rawURL string) (Result, error) {
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

	html, err := renderHTML(ctx, rawURL)
	if err != nil {
		return Result{}, fmt.Errorf("render %s: %w", rawURL, err)
	}

	article, err := readability.FromReader(strings.NewReader(html), parsed)
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

func renderHTML(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("MonkeyResearcher/1.0 (research agent)"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
