package research

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FRAMEEE17/MonkeyResearcher/config"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/fetch"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/provider"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/search"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/telemetry"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/tools"
)

// Event is one progress update emitted while a run executes. The terminal
// event carries Done=true; everything before it describes the node that
// just finished.
type Event struct {
	Description string `json:"description"`
	Done        bool   `json:"done"`
}

// Result is the outcome of one research run.
type Result struct {
	RunID    string        `json:"run_id"`
	Topic    string        `json:"topic"`
	Report   string        `json:"report"`
	State    *State        `json:"state"`
	Duration time.Duration `json:"duration"`
}

// CaptureRecord is what a run hands to long-term memory on completion.
type CaptureRecord struct {
	RunID     string   `json:"run_id"`
	Topic     string   `json:"topic"`
	Report    string   `json:"report"`
	Summary   string   `json:"summary"`
	Sources   []Source `json:"sources"`
	LoopCount int      `json:"loop_count"`
}

// Capturer persists completed runs for later recall. Capture failures are
// logged and swallowed; memory must never fail a run.
type Capturer interface {
	Capture(ctx context.Context, rec CaptureRecord) error
	Recall(ctx context.Context, topic string, k int) ([]string, error)
}

// Graph wires the research nodes to their dependencies and drives a run
// through them. All per-request data lives in State; a Graph is safe for
// concurrent runs.
type Graph struct {
	cfg      *config.Config
	llm      provider.LLMProvider
	registry *tools.Registry
	fetcher  fetch.WebFetcher
	web      search.Provider
	academic search.Provider
	memory   Capturer
	tel      *telemetry.Telemetry
	logger   *log.Logger
	tracer   trace.Tracer
}

// New assembles the graph. academic and memory may be nil; the mcp strategy
// then falls back to web search and capture becomes a no-op.
func New(cfg *config.Config, llm provider.LLMProvider, registry *tools.Registry, fetcher fetch.WebFetcher,
	web, academic search.Provider, memory Capturer, tel *telemetry.Telemetry) *Graph {
	return &Graph{
		cfg:      cfg,
		llm:      llm,
		registry: registry,
		fetcher:  fetcher,
		web:      web,
		academic: academic,
		memory:   memory,
		tel:      tel,
		logger:   log.New(log.Writer(), "[RESEARCH] ", log.LstdFlags),
		tracer:   otel.Tracer("research-graph"),
	}
}

// complete runs one LLM call, recording token usage in telemetry and on the
// run's state. Nodes execute on the driver goroutine, so the state counters
// need no delta plumbing.
func (g *Graph) complete(ctx context.Context, s *State, system, user string, opts provider.Options) (string, error) {
	out, promptTokens, completionTokens, err := g.llm.CompleteWithTokens(ctx, system, user, opts)
	if err != nil {
		return "", err
	}
	s.PromptTokens += promptTokens
	s.CompletionTokens += completionTokens
	g.tel.LLMUsage(g.llm.Model(), promptTokens, completionTokens)
	return out, nil
}

// Usage reports the accumulated per-model token accounting for this process.
func (g *Graph) Usage() (map[string]telemetry.ModelUsage, int64) {
	return g.tel.Usage()
}

// routeResearch is the whole routing decision after a reflection pass:
// continue while completed passes stay under the loop budget. Summary
// quality never influences it.
func routeResearch(loopCount, maxLoops int) bool {
	return loopCount < maxLoops
}

// Run executes a research run without progress events.
func (g *Graph) Run(ctx context.Context, topic string) (*Result, error) {
	return g.RunStream(ctx, topic, nil)
}

// RunStream executes a research run, emitting one Event per finished node on
// events (may be nil). The channel is closed when the run returns.
func (g *Graph) RunStream(ctx context.Context, topic string, events chan<- Event) (*Result, error) {
	defer func() {
		if events != nil {
			close(events)
		}
	}()

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("empty research topic")
	}

	runID := uuid.NewString()
	start := time.Now()
	g.tel.RunStarted()

	ctx, span := g.tracer.Start(ctx, "research.run",
		trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	state := NewState(topic)
	g.registry.EnsureWarm(ctx)
	g.seedFromMemory(ctx, state)

	step := func(name, desc string, fn func(context.Context, *State) Delta) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled before %s: %w", name, err)
		}
		nctx, nspan := g.tracer.Start(ctx, "node."+name)
		t0 := time.Now()
		state.Apply(fn(nctx, state))
		nspan.End()
		g.tel.NodeFinished(name, time.Since(t0))
		g.emit(ctx, events, desc, false)
		return nil
	}

	if err := step("classify_intent", "Classifying research intent", g.nodeClassifyIntent); err != nil {
		return nil, err
	}

	fetched := false
	if firstURL(state.ResearchTopic) != "" {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run cancelled before fetch_url_content: %w", err)
		}
		t0 := time.Now()
		delta, ok := g.nodeFetchURLContent(ctx, state)
		state.Apply(delta)
		fetched = ok
		g.tel.NodeFinished("fetch_url_content", time.Since(t0))
		g.emit(ctx, events, "Fetching URL content", false)
	}

	if state.SearchStrategy == StrategyDirectFetch {
		if fetched {
			// single-page summarization request: skip the research loop
			if err := step("summarize_sources", "Summarizing page content", g.nodeSummarizeSources); err != nil {
				return nil, err
			}
			return g.finish(ctx, events, runID, topic, start, state)
		}
		// the page was unreachable; fall back to a capped research pass
		state.Apply(Delta{SearchStrategy: StrategyURLFetch})
	}

	if err := step("tool_enhanced_research", "Running tool-enhanced research", g.nodeToolEnhancedResearch); err != nil {
		return nil, err
	}

	maxLoops := g.cfg.Research.MaxWebResearchLoops
	if state.SearchStrategy == StrategyURLFetch && maxLoops > 1 {
		maxLoops = 1
	}

	for routeResearch(state.ResearchLoopCount, maxLoops) {
		pass := state.ResearchLoopCount + 1
		if err := step("generate_query", "Generating search query", g.nodeGenerateQuery); err != nil {
			return nil, err
		}
		if err := step("web_research", fmt.Sprintf("Searching the web (pass %d)", pass), g.nodeWebResearch); err != nil {
			return nil, err
		}
		if err := step("summarize_sources", "Summarizing sources", g.nodeSummarizeSources); err != nil {
			return nil, err
		}
		if err := step("generate_verification_questions", "Generating verification questions", g.nodeGenerateVerificationQuestions); err != nil {
			return nil, err
		}
		if err := step("verify_research_claims", "Verifying claims against the web", g.nodeVerifyResearchClaims); err != nil {
			return nil, err
		}
		if err := step("synthesize_with_verification", "Synthesizing verified summary", g.nodeSynthesizeWithVerification); err != nil {
			return nil, err
		}
		if err := step("reflect_on_summary", "Reflecting on the summary", g.nodeReflectOnSummary); err != nil {
			return nil, err
		}
	}

	return g.finish(ctx, events, runID, topic, start, state)
}

func (g *Graph) finish(ctx context.Context, events chan<- Event, runID, topic string, start time.Time, state *State) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run cancelled before finalize_summary: %w", err)
	}

	t0 := time.Now()
	report, err := g.nodeFinalizeSummary(ctx, state)
	g.tel.NodeFinished("finalize_summary", time.Since(t0))
	if err != nil {
		g.tel.RunFinished(false, time.Since(start))
		return nil, fmt.Errorf("finalize summary: %w", err)
	}

	g.capture(ctx, runID, topic, report, state)
	g.tel.RunFinished(true, time.Since(start))
	g.emit(ctx, events, "Research complete", true)

	return &Result{
		RunID:    runID,
		Topic:    topic,
		Report:   report,
		State:    state,
		Duration: time.Since(start),
	}, nil
}

func (g *Graph) emit(ctx context.Context, events chan<- Event, desc string, done bool) {
	if events == nil {
		return
	}
	select {
	case events <- Event{Description: desc, Done: done}:
	case <-ctx.Done():
	}
}

// seedFromMemory prepends recalled notes from earlier runs on similar topics.
func (g *Graph) seedFromMemory(ctx context.Context, state *State) {
	if g.memory == nil {
		return
	}
	notes, err := g.memory.Recall(ctx, state.ResearchTopic, 3)
	if err != nil {
		g.logger.Printf("memory recall failed: %v", err)
		return
	}
	if len(notes) == 0 {
		return
	}
	state.Apply(Delta{EnhancedContext: strptr("Notes from earlier research:\n" + strings.Join(notes, "\n---\n"))})
}

func (g *Graph) capture(ctx context.Context, runID, topic, report string, state *State) {
	if g.memory == nil {
		return
	}
	rec := CaptureRecord{
		RunID:     runID,
		Topic:     topic,
		Report:    report,
		Summary:   state.RunningSummary,
		Sources:   dedupSources(state.SourcesGathered),
		LoopCount: state.ResearchLoopCount,
	}
	if err := g.memory.Capture(ctx, rec); err != nil {
		g.logger.Printf("memory capture failed: %v", err)
	}
}

func (g *Graph) providerFor(strategy string) search.Provider {
	if strategy == StrategyMCP && g.academic != nil {
		return g.academic
	}
	return g.web
}

func (g *Graph) searchTimeout() time.Duration {
	if g.cfg.Search.WebTimeout > 0 {
		return g.cfg.Search.WebTimeout
	}
	return 30 * time.Second
}

func (g *Graph) maxResults() int {
	if g.cfg.Search.MaxResults > 0 {
		return g.cfg.Search.MaxResults
	}
	return 5
}
