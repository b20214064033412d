package research

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/FRAMEEE17/MonkeyResearcher/internal/search"
)

// Reliability tags assigned by the static domain table.
const (
	ReliabilityHigh   = "High"
	ReliabilityMedium = "Medium"
	ReliabilityLow    = "Low"
)

type domainClass struct {
	match       func(host, full string) bool
	reliability string
	sourceType  string
}

func hostHas(parts ...string) func(host, full string) bool {
	return func(host, _ string) bool {
		for _, p := range parts {
			if strings.Contains(host, p) {
				return true
			}
		}
		return false
	}
}

// domainTable is evaluated in order; first match wins.
var domainTable = []domainClass{
	{hostHas("arxiv.org"), ReliabilityHigh, "Peer-Reviewed Preprint"},
	{hostHas("ieee.org", "acm.org", "nature.com", "science.org"), ReliabilityHigh, "Academic Publication"},
	{func(host, _ string) bool {
		return strings.Contains(host, "github.com") || strings.HasPrefix(host, "docs.") || strings.Contains(host, "readthedocs")
	}, ReliabilityMedium, "Technical Documentation"},
	{func(host, full string) bool {
		return strings.Contains(host, "medium.com") || strings.Contains(full, "blog")
	}, ReliabilityMedium, "Blog Post"},
	{hostHas("reuters.com", "bloomberg.com", "apnews.com", "news"), ReliabilityMedium, "News Source"},
}

// ClassifySource assigns the reliability tag and source type for a URL.
func ClassifySource(rawURL string) (string, string) {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.ToLower(host)
	full := strings.ToLower(rawURL)
	for _, dc := range domainTable {
		if dc.match(host, full) {
			return dc.reliability, dc.sourceType
		}
	}
	return ReliabilityLow, "Web Source"
}

// sourcesFromResults converts search hits into tagged citations.
func sourcesFromResults(results []search.Result) []Source {
	out := make([]Source, 0, len(results))
	for _, r := range results {
		reliability, sourceType := ClassifySource(r.URL)
		out = append(out, Source{Title: r.Title, URL: r.URL, Reliability: reliability, SourceType: sourceType})
	}
	return out
}

// filterLowReliability drops Low-tagged citations when configured to.
func filterLowReliability(sources []Source) []Source {
	out := make([]Source, 0, len(sources))
	for _, s := range sources {
		if s.Reliability == ReliabilityLow {
			continue
		}
		out = append(out, s)
	}
	return out
}

// formatResultsForContext renders deduplicated results as the LLM context
// block, truncating each source's content to maxChars characters.
func formatResultsForContext(results []search.Result, maxChars int) string {
	deduped := search.Deduplicate(results)
	var b strings.Builder
	b.WriteString("Sources:\n\n")
	for _, r := range deduped {
		content := r.RawContent
		if content == "" {
			content = r.Snippet
		}
		truncated := false
		if maxChars > 0 && len(content) > maxChars {
			content = firstN(content, maxChars)
			truncated = true
		}
		fmt.Fprintf(&b, "Source: %s\n===\n%s", r.Title, content)
		if truncated {
			b.WriteString("...")
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

// bulletSources renders citations as the bullet list embedded in reports.
func bulletSources(sources []Source) string {
	var b strings.Builder
	for _, s := range sources {
		fmt.Fprintf(&b, "* **%s**: %s (Reliability: %s - %s)\n", s.Title, s.URL, s.Reliability, s.SourceType)
	}
	return b.String()
}

var sourcesHeaderPattern = regexp.MustCompile(`(?mi)^#{0,6}\s*sources:?\s*$`)

const reportFooter = "\n\n---\n*This report was generated by an automated research agent. " +
	"Verify critical claims against the primary sources listed above.*"

// finalizeReport normalizes the sources header, appends the source list when
// the model left it out, and adds the standard footer.
func finalizeReport(report string, sources []Source) string {
	report = strings.TrimSpace(report)
	report = sourcesHeaderPattern.ReplaceAllString(report, "### Sources:")

	if len(sources) > 0 && !strings.Contains(report, "### Sources:") {
		report += "\n\n### Sources:\n" + bulletSources(sources)
	}
	return report + reportFooter
}
