package search

import (
	"context"
	"fmt"

	"github.com/FRAMEEE17/MonkeyResearcher/internal/mcp"
)

// PaperSearcher is the slice of the retrieval client the adapter needs.
type PaperSearcher interface {
	SearchPapers(ctx context.Context, query string, maxResults int) ([]mcp.Paper, error)
}

// Academic adapts the paper-retrieval service to the Provider interface so
// the coordinator can fan out to it like any web backend.
type Academic struct {
	client PaperSearcher
}

func NewAcademic(client PaperSearcher) *Academic {
	return &Academic{client: client}
}

func (a *Academic) Name() string { return "academic" }

func (a *Academic) Search(ctx context.Context, query string, maxResults int, fetchFullPage bool) ([]Result, error) {
	papers, err := a.client.SearchPapers(ctx, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("academic search: %w", err)
	}
	results := make([]Result, 0, len(papers))
	for _, p := range papers {
		url := p.URL
		if url == "" {
			url = p.PDFURL
		}
		if url == "" {
			continue
		}
		r := Result{Title: p.Title, URL: url, Snippet: p.Summary}
		if fetchFullPage {
			// abstracts are the full content for papers; PDFs are pulled
			// separately through the download tool
			r.RawContent = p.Summary
		}
		results = append(results, r)
	}
	return results, nil
}
