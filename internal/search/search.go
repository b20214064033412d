// Package search provides a uniform interface over the web search backends
// and the academic-paper retrieval service, plus the fan-out coordinator
// that merges their results.
package search

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
)

// Result is one normalized search hit.
type Result struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Snippet    string `json:"snippet"`
	RawContent string `json:"raw_content,omitempty"`
}

// Provider is a single search backend.
type Provider interface {
	// Name identifies the backend in logs and tool results.
	Name() string
	// Search returns up to maxResults hits for query. fetchFullPage asks the
	// backend to also populate RawContent where it can.
	Search(ctx context.Context, query string, maxResults int, fetchFullPage bool) ([]Result, error)
}

// NormalizeURL lowercases scheme/host and strips fragments and trailing
// slashes so dedup treats trivially different spellings as one source.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(strings.ToLower(raw))
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	s := u.String()
	return strings.TrimSuffix(s, "/")
}

// Deduplicate drops later duplicates by normalized URL, preserving
// first-seen order. Running it twice over its own output is a no-op.
func Deduplicate(results []Result) []Result {
	seen := make(map[string]struct{}, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		key := NormalizeURL(r.URL)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Coordinator fans a query out to every configured provider concurrently and
// merges whatever succeeded. Partial failure of one provider never blocks
// the others.
type Coordinator struct {
	providers []Provider
	logger    *log.Logger
}

func NewCoordinator(logger *log.Logger, providers ...Provider) *Coordinator {
	if logger == nil {
		logger = log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)
	}
	return &Coordinator{providers: providers, logger: logger}
}

func (c *Coordinator) Name() string { return "coordinator" }

// Search merges provider results under first-wins URL dedup. It returns an
// error only when every provider failed.
func (c *Coordinator) Search(ctx context.Context, query string, maxResults int, fetchFullPage bool) ([]Result, error) {
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("no search providers configured")
	}

	type outcome struct {
		idx     int
		results []Result
		err     error
	}
	outcomes := make([]outcome, len(c.providers))
	var wg sync.WaitGroup
	for i, p := range c.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			res, err := p.Search(ctx, query, maxResults, fetchFullPage)
			outcomes[i] = outcome{idx: i, results: res, err: err}
		}(i, p)
	}
	wg.Wait()

	var merged []Result
	failures := 0
	for i, o := range outcomes {
		if o.err != nil {
			failures++
			c.logger.Printf("provider %s failed for %q: %v", c.providers[i].Name(), query, o.err)
			continue
		}
		merged = append(merged, o.results...)
	}
	if failures == len(c.providers) {
		return nil, fmt.Errorf("all %d search providers failed", failures)
	}
	return Deduplicate(merged), nil
}
