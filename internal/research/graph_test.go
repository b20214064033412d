package research

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FRAMEEE17/MonkeyResearcher/config"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/fetch"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/provider"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/search"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/tools"
)

// scriptedLLM answers each node's call by matching on its system prompt.
type scriptedLLM struct {
	nQuestions int
}

func (s *scriptedLLM) Complete(_ context.Context, system, _ string, _ provider.Options) (string, error) {
	switch {
	case strings.Contains(system, "classify a research request"):
		return `{"intent": "comprehensive_research", "confidence": 0.9}`, nil
	case strings.Contains(system, "choosing which tools"):
		return `{"tool_calls": []}`, nil
	case strings.Contains(system, "one focused web search query"):
		return `{"rationale": "covers the topic", "query": "test query"}`, nil
	case strings.Contains(system, "draft summary of web research"),
		strings.Contains(system, "extending an existing research summary"):
		return "The findings indicate steady progress on the topic.", nil
	case strings.Contains(system, "fact-check a research summary"):
		questions := make([]string, 0, s.nQuestions)
		for i := 0; i < s.nQuestions; i++ {
			questions = append(questions, fmt.Sprintf(`"is claim %d accurate?"`, i+1))
		}
		return `{"verification_questions": [` + strings.Join(questions, ", ") + `]}`, nil
	case strings.Contains(system, "judge whether a piece of search evidence"):
		return `{"verdict": "supported", "reason": "matches the evidence"}`, nil
	case strings.Contains(system, "reconcile fact-check findings"):
		return "The findings indicate steady, verified progress on the topic.", nil
	case strings.Contains(system, "review a research summary for completeness"):
		return `{"is_sufficient": false, "knowledge_gap": "missing recent data", "follow_up_query": "recent data"}`, nil
	case strings.Contains(system, "final polished research report"):
		return "## Summary\n\nFinal findings.\n\n## Key Findings\n\n- finding one", nil
	default:
		return "", fmt.Errorf("unexpected system prompt: %.60s", system)
	}
}

func (s *scriptedLLM) CompleteWithTokens(ctx context.Context, system, user string, opts provider.Options) (string, int64, int64, error) {
	out, err := s.Complete(ctx, system, user, opts)
	return out, 10, 10, err
}

func (s *scriptedLLM) Model() string { return "scripted" }

// fakeSearch records every query and serves canned results.
type fakeSearch struct {
	mu      sync.Mutex
	fail    bool
	results []search.Result
	queries []string
}

func (f *fakeSearch) Name() string { return "fake" }

func (f *fakeSearch) Search(_ context.Context, query string, _ int, _ bool) ([]search.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.fail {
		return nil, fmt.Errorf("search backend down")
	}
	return f.results, nil
}

func (f *fakeSearch) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeFetcher struct {
	fail bool
}

func (f *fakeFetcher) Exec(_ context.Context, url string) (fetch.Result, error) {
	if f.fail {
		return fetch.Result{}, fmt.Errorf("connection refused")
	}
	return fetch.Result{URL: url, Title: "Fetched Page", TextContent: "Page body with enough text to summarize."}, nil
}

func testConfig(loops int, verification bool) *config.Config {
	return &config.Config{
		Research: config.ResearchConfig{
			MaxWebResearchLoops: loops,
			MaxTokensPerSource:  1000,
			VerificationEnabled: verification,
		},
		Search: config.SearchConfig{MaxResults: 3, WebTimeout: 5 * time.Second},
	}
}

func newTestGraph(t *testing.T, cfg *config.Config, llm provider.LLMProvider, web search.Provider, fetcher fetch.WebFetcher) *Graph {
	t.Helper()
	reg := tools.NewRegistry(log.New(io.Discard, "", 0))
	if err := reg.Register(tools.WebSearchSpec(web, 3, false)); err != nil {
		t.Fatalf("register web_search: %v", err)
	}
	if err := reg.Register(tools.FetchURLSpec(fetcher)); err != nil {
		t.Fatalf("register fetch_url: %v", err)
	}
	g := New(cfg, llm, reg, fetcher, web, nil, nil, nil)
	g.logger = log.New(io.Discard, "", 0)
	return g
}

func TestRunSingleLoopProducesReport(t *testing.T) {
	t.Parallel()

	web := &fakeSearch{results: []search.Result{
		{Title: "Hit A", URL: "https://arxiv.org/abs/2401.1", RawContent: "content a"},
		{Title: "Hit B", URL: "https://b.example/page", Snippet: "snippet b"},
	}}
	g := newTestGraph(t, testConfig(1, false), &scriptedLLM{}, web, &fakeFetcher{})

	res, err := g.Run(context.Background(), "progress in solid state batteries")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.State.ResearchLoopCount != 1 {
		t.Fatalf("loop count = %d, want 1", res.State.ResearchLoopCount)
	}
	if res.Report == "" || !strings.Contains(res.Report, "### Sources:") {
		t.Fatalf("report missing sources section:\n%s", res.Report)
	}
	if !strings.Contains(res.Report, "(Reliability: High - Peer-Reviewed Preprint)") {
		t.Fatalf("arxiv hit not tagged in report:\n%s", res.Report)
	}

	// one search from the tool fallback, one from the research pass
	var loopSearches int
	for _, q := range web.seen() {
		if q == "test query" {
			loopSearches++
		}
	}
	if loopSearches != 1 {
		t.Fatalf("research pass searched %d times, want 1 (queries: %v)", loopSearches, web.seen())
	}

	// the scripted model reports 10/10 tokens per call; the run must add them up
	if res.State.PromptTokens == 0 || res.State.PromptTokens%10 != 0 {
		t.Fatalf("prompt tokens = %d, want a positive multiple of 10", res.State.PromptTokens)
	}
	if res.State.CompletionTokens != res.State.PromptTokens {
		t.Fatalf("completion tokens = %d, want %d", res.State.CompletionTokens, res.State.PromptTokens)
	}
}

func TestRunSurvivesTotalSearchFailure(t *testing.T) {
	t.Parallel()

	web := &fakeSearch{fail: true}
	g := newTestGraph(t, testConfig(2, false), &scriptedLLM{}, web, &fakeFetcher{})

	res, err := g.Run(context.Background(), "topic nobody can search for")
	if err != nil {
		t.Fatalf("Run should degrade, not fail: %v", err)
	}

	if res.Report == "" {
		t.Fatal("degraded run produced no report")
	}
	if got := res.State.ResearchLoopCount; got != 2 {
		t.Fatalf("loop count = %d, want 2: failed passes must still consume the budget", got)
	}
	if len(res.State.SourcesGathered) != 0 {
		t.Fatalf("sources = %+v, want none", res.State.SourcesGathered)
	}
}

func TestRunDirectFetchSkipsResearchLoop(t *testing.T) {
	t.Parallel()

	web := &fakeSearch{}
	g := newTestGraph(t, testConfig(3, true), &scriptedLLM{nQuestions: 2}, web, &fakeFetcher{})

	res, err := g.Run(context.Background(), "summarize this https://blog.example.com/post")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.State.ResearchLoopCount != 0 {
		t.Fatalf("direct fetch ran the research loop %d times", res.State.ResearchLoopCount)
	}
	if queries := web.seen(); len(queries) != 0 {
		t.Fatalf("direct fetch issued searches: %v", queries)
	}
	if !strings.Contains(res.Report, "https://blog.example.com/post") {
		t.Fatalf("fetched page missing from sources:\n%s", res.Report)
	}
}

func TestRunDirectFetchFailureFallsBackToOnePass(t *testing.T) {
	t.Parallel()

	web := &fakeSearch{results: []search.Result{{Title: "Hit", URL: "https://c.example", Snippet: "s"}}}
	g := newTestGraph(t, testConfig(3, false), &scriptedLLM{}, web, &fakeFetcher{fail: true})

	res, err := g.Run(context.Background(), "summarize this https://dead.example.com/post")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.State.ResearchLoopCount != 1 {
		t.Fatalf("loop count = %d, want 1 (url strategy caps the budget)", res.State.ResearchLoopCount)
	}
	if res.Report == "" {
		t.Fatal("no report after fetch failure")
	}
	// the failed fetch is recorded, not hidden
	var failedFetch bool
	for _, tr := range res.State.ToolResults {
		if tr.Call.Name == "fetch_url" && !tr.Success {
			failedFetch = true
		}
	}
	if !failedFetch {
		t.Fatal("failed fetch_url not recorded in tool results")
	}
}

func TestRunVerificationQuestionCap(t *testing.T) {
	t.Parallel()

	web := &fakeSearch{results: []search.Result{{Title: "Hit", URL: "https://d.example", Snippet: "s"}}}
	g := newTestGraph(t, testConfig(1, true), &scriptedLLM{nQuestions: 10}, web, &fakeFetcher{})

	res, err := g.Run(context.Background(), "verification heavy topic")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if n := len(res.State.VerificationQuestions); n > maxVerificationQuestions {
		t.Fatalf("kept %d verification questions, cap is %d", n, maxVerificationQuestions)
	}
	if n := len(res.State.VerificationResults); n > maxVerificationQuestions {
		t.Fatalf("ran %d verifications, cap is %d", n, maxVerificationQuestions)
	}
	for _, v := range res.State.VerificationResults {
		if v.Verdict != "supported" {
			t.Fatalf("verdict = %q, want supported", v.Verdict)
		}
	}
}

func TestRunStreamEmitsTerminalEvent(t *testing.T) {
	t.Parallel()

	web := &fakeSearch{results: []search.Result{{Title: "Hit", URL: "https://e.example", Snippet: "s"}}}
	g := newTestGraph(t, testConfig(1, false), &scriptedLLM{}, web, &fakeFetcher{})

	events := make(chan Event, 64)
	done := make(chan error, 1)
	go func() {
		_, err := g.RunStream(context.Background(), "streamed topic", events)
		done <- err
	}()

	var collected []Event
	for ev := range events {
		collected = append(collected, ev)
	}
	if err := <-done; err != nil {
		t.Fatalf("RunStream: %v", err)
	}

	if len(collected) == 0 {
		t.Fatal("no events emitted")
	}
	last := collected[len(collected)-1]
	if !last.Done {
		t.Fatalf("terminal event not marked done: %+v", last)
	}
	for _, ev := range collected[:len(collected)-1] {
		if ev.Done {
			t.Fatalf("non-terminal event marked done: %+v", ev)
		}
		if ev.Description == "" {
			t.Fatal("event with empty description")
		}
	}
}

func TestRunRejectsEmptyTopic(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t, testConfig(1, false), &scriptedLLM{}, &fakeSearch{}, &fakeFetcher{})
	if _, err := g.Run(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty topic")
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t, testConfig(3, false), &scriptedLLM{}, &fakeSearch{}, &fakeFetcher{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.Run(ctx, "cancelled topic"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
