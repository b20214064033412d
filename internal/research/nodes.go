package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/FRAMEEE17/MonkeyResearcher/internal/provider"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/search"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/tools"
)

// maxVerificationQuestions bounds the verification sub-loop regardless of
// how many questions the model produces.
const maxVerificationQuestions = 3

// Every node takes the current state and returns a partial delta. LLM and
// network failures are absorbed here: a failing node returns an empty delta
// and the graph keeps moving toward a terminal state.

func (g *Graph) nodeClassifyIntent(ctx context.Context, s *State) Delta {
	analysis := analyzeInput(s.ResearchTopic)
	cls := classifyIntent(ctx, g.llm, s.ResearchTopic)

	strategy := cls.Strategy
	if direct, _ := analysis["direct_fetch"].(bool); direct && cls.Intent == IntentURLAnalysis {
		strategy = StrategyDirectFetch
	}
	g.logger.Printf("intent=%s strategy=%s source=%s confidence=%.2f", cls.Intent, strategy, cls.Source, cls.Confidence)

	return Delta{
		InputAnalysis:  analysis,
		SearchStrategy: strategy,
		IntentResult: map[string]any{
			"intent":     cls.Intent,
			"confidence": cls.Confidence,
			"source":     cls.Source,
		},
	}
}

// nodeFetchURLContent pulls the first URL out of the topic and extracts its
// text. The bool reports whether the fetch produced usable content; on
// failure the pipeline continues with an empty enhanced context.
func (g *Graph) nodeFetchURLContent(ctx context.Context, s *State) (Delta, bool) {
	target := firstURL(s.ResearchTopic)
	if target == "" {
		return Delta{}, false
	}

	call := tools.ToolCall{Name: "fetch_url", Arguments: map[string]any{"url": target}}
	page, err := g.fetcher.Exec(ctx, target)
	if err != nil || page.TextContent == "" {
		if err == nil {
			err = fmt.Errorf("no readable content")
		}
		g.logger.Printf("url fetch failed for %s: %v", target, err)
		return Delta{
			AppendToolResults: []tools.ToolResult{{Call: call, Success: false, Error: err.Error()}},
		}, false
	}

	result := search.Result{Title: page.Title, URL: target, Snippet: firstN(page.TextContent, 300), RawContent: page.TextContent}
	reliability, sourceType := ClassifySource(target)
	return Delta{
		AppendToolResults: []tools.ToolResult{{Call: call, Success: true, Payload: page}},
		AppendWebResults:  []search.Result{result},
		AppendSources:     []Source{{Title: pageTitle(page.Title, target), URL: target, Reliability: reliability, SourceType: sourceType}},
		EnhancedContext:   strptr(page.TextContent),
	}, true
}

func (g *Graph) nodeToolEnhancedResearch(ctx context.Context, s *State) Delta {
	calls := g.registry.Select(ctx, g.llm, s.ResearchTopic)
	if len(calls) == 0 {
		// model declined or produced garbage; run a plain web search so the
		// loop starts with some grounding
		calls = []tools.ToolCall{{Name: "web_search", Arguments: map[string]any{"query": s.ResearchTopic}}}
	}

	results := g.registry.ExecuteAll(ctx, calls)

	var delta Delta
	delta.AppendToolResults = results

	var contextParts []string
	for _, res := range results {
		if !res.Success {
			continue
		}
		if hits, ok := res.Payload.([]search.Result); ok {
			delta.AppendWebResults = append(delta.AppendWebResults, hits...)
			delta.AppendSources = append(delta.AppendSources, g.tagSources(hits)...)
			for _, h := range hits {
				contextParts = append(contextParts, h.Title+": "+firstN(pick(h.RawContent, h.Snippet), 500))
			}
			continue
		}
		if b, err := json.Marshal(res.Payload); err == nil {
			contextParts = append(contextParts, res.Call.Name+": "+firstN(string(b), 500))
		}
	}
	if len(contextParts) > 0 {
		merged := s.EnhancedContext
		if merged != "" {
			merged += "\n\n"
		}
		merged += "Initial tool findings:\n" + strings.Join(contextParts, "\n")
		delta.EnhancedContext = strptr(merged)
	}
	return delta
}

func (g *Graph) nodeGenerateQuery(ctx context.Context, s *State) Delta {
	user := fmt.Sprintf("RESEARCH TOPIC: %s\n", s.ResearchTopic)
	if s.RunningSummary != "" {
		user += fmt.Sprintf("\nCURRENT SUMMARY:\n%s\n", firstN(s.RunningSummary, 3000))
	}
	if s.EnhancedContext != "" {
		user += fmt.Sprintf("\nADDITIONAL CONTEXT:\n%s\n", firstN(s.EnhancedContext, 2000))
	}
	if len(s.PastQueries) > 0 {
		user += "\nQUERIES ALREADY USED (do not repeat):\n- " + strings.Join(s.PastQueries, "\n- ") + "\n"
	}

	query := ""
	raw, err := g.complete(ctx, s, queryWriterPrompt, user, provider.Options{Temperature: 0.3, JSONMode: true})
	if err == nil {
		var parsed struct {
			Rationale string `json:"rationale"`
			Query     string `json:"query"`
		}
		if jerr := json.Unmarshal([]byte(provider.ExtractJSONObject(raw)), &parsed); jerr == nil {
			query = strings.TrimSpace(parsed.Query)
		}
	} else {
		g.logger.Printf("query generation failed: %v", err)
	}
	if query == "" {
		// degraded default keeps the loop moving
		query = s.ResearchTopic
		if s.ResearchLoopCount > 0 {
			query = s.ResearchTopic + " latest findings"
		}
	}
	return Delta{SearchQuery: strptr(query), AppendPastQueries: []string{query}}
}

// nodeWebResearch is the sole place a research pass completes: its delta
// always flags the counter increment, even for a failed search, so the loop
// budget is consumed by attempts rather than successes.
func (g *Graph) nodeWebResearch(ctx context.Context, s *State) Delta {
	delta := Delta{CompletedResearchPass: true}
	p := g.providerFor(s.SearchStrategy)
	if p == nil {
		g.logger.Printf("no search provider for strategy %s", s.SearchStrategy)
		return delta
	}

	g.tel.SearchIssued()
	cctx, cancel := context.WithTimeout(ctx, g.searchTimeout())
	defer cancel()
	results, err := p.Search(cctx, s.SearchQuery, g.maxResults(), g.cfg.Research.FetchFullPage)
	if err != nil {
		g.logger.Printf("web research failed for %q: %v", s.SearchQuery, err)
		return delta
	}

	delta.AppendWebResults = results
	delta.AppendSources = g.tagSources(results)
	return delta
}

func (g *Graph) nodeSummarizeSources(ctx context.Context, s *State) Delta {
	contextBlock := formatResultsForContext(s.WebResearchResults, g.cfg.Research.MaxTokensPerSource)
	if s.EnhancedContext != "" {
		contextBlock += "\nAdditional context:\n" + firstN(s.EnhancedContext, 4000) + "\n"
	}

	system := summarizerCreatePrompt
	user := fmt.Sprintf("RESEARCH TOPIC: %s\n\n%s", s.ResearchTopic, contextBlock)
	if s.RunningSummary != "" {
		system = summarizerExtendPrompt
		user = fmt.Sprintf("RESEARCH TOPIC: %s\n\nEXISTING SUMMARY:\n%s\n\nNEW RESULTS:\n%s",
			s.ResearchTopic, s.RunningSummary, contextBlock)
	}

	summary, err := g.complete(ctx, s, system, user, provider.Options{Temperature: 0.3})
	if err != nil || strings.TrimSpace(summary) == "" {
		g.logger.Printf("summarization failed, keeping previous summary: %v", err)
		return Delta{}
	}
	return Delta{RunningSummary: strptr(strings.TrimSpace(summary))}
}

func (g *Graph) nodeGenerateVerificationQuestions(ctx context.Context, s *State) Delta {
	// regenerated every pass; always overwrite
	delta := Delta{SetVerificationQuestions: true}
	if !g.cfg.Research.VerificationEnabled || s.RunningSummary == "" {
		return delta
	}

	system := fmt.Sprintf(verificationQuestionsPrompt, maxVerificationQuestions)
	user := fmt.Sprintf("RESEARCH TOPIC: %s\n\nSUMMARY:\n%s", s.ResearchTopic, firstN(s.RunningSummary, 6000))
	raw, err := g.complete(ctx, s, system, user, provider.Options{Temperature: 0.2, JSONMode: true})
	if err != nil {
		g.logger.Printf("verification question generation failed: %v", err)
		return delta
	}
	var parsed struct {
		VerificationQuestions []string `json:"verification_questions"`
	}
	if jerr := json.Unmarshal([]byte(provider.ExtractJSONObject(raw)), &parsed); jerr != nil {
		return delta
	}
	questions := parsed.VerificationQuestions
	if len(questions) > maxVerificationQuestions {
		questions = questions[:maxVerificationQuestions]
	}
	delta.VerificationQuestions = questions
	return delta
}

func (g *Graph) nodeVerifyResearchClaims(ctx context.Context, s *State) Delta {
	delta := Delta{SetVerificationResults: true}
	questions := s.VerificationQuestions
	if len(questions) > maxVerificationQuestions {
		questions = questions[:maxVerificationQuestions]
	}
	if len(questions) == 0 {
		return delta
	}

	p := g.providerFor(StrategyWebSearch)
	for _, q := range questions {
		v := Verification{Question: q, Verdict: "unverified"}
		if p != nil {
			g.tel.SearchIssued()
			cctx, cancel := context.WithTimeout(ctx, g.searchTimeout())
			hits, err := p.Search(cctx, q, 3, false)
			cancel()
			if err == nil && len(hits) > 0 {
				var ev []string
				for _, h := range hits {
					ev = append(ev, h.Title+": "+h.Snippet)
				}
				v.Evidence = strings.Join(ev, "\n")
				v.Verdict = g.judgeEvidence(ctx, s, q, v.Evidence)
			}
		}
		delta.VerificationResults = append(delta.VerificationResults, v)
	}
	return delta
}

func (g *Graph) judgeEvidence(ctx context.Context, s *State, question, evidence string) string {
	user := fmt.Sprintf("QUESTION: %s\n\nEVIDENCE:\n%s", question, firstN(evidence, 3000))
	raw, err := g.complete(ctx, s, verdictPrompt, user, provider.Options{Temperature: 0.0, JSONMode: true})
	if err != nil {
		return "unverified"
	}
	var parsed struct {
		Verdict string `json:"verdict"`
	}
	if jerr := json.Unmarshal([]byte(provider.ExtractJSONObject(raw)), &parsed); jerr != nil {
		return "unverified"
	}
	switch parsed.Verdict {
	case "supported", "contradicted", "unverified":
		return parsed.Verdict
	default:
		return "unverified"
	}
}

func (g *Graph) nodeSynthesizeWithVerification(ctx context.Context, s *State) Delta {
	if len(s.VerificationResults) == 0 || s.RunningSummary == "" {
		return Delta{}
	}

	var findings strings.Builder
	for _, v := range s.VerificationResults {
		fmt.Fprintf(&findings, "- question: %s\n  verdict: %s\n  evidence: %s\n", v.Question, v.Verdict, firstN(v.Evidence, 500))
	}
	user := fmt.Sprintf("RESEARCH TOPIC: %s\n\nSUMMARY:\n%s\n\nVERIFICATION FINDINGS:\n%s",
		s.ResearchTopic, s.RunningSummary, findings.String())

	revised, err := g.complete(ctx, s, verificationSynthesisPrompt, user, provider.Options{Temperature: 0.2})
	if err != nil || strings.TrimSpace(revised) == "" {
		g.logger.Printf("verification synthesis failed, keeping summary: %v", err)
		return Delta{}
	}
	return Delta{RunningSummary: strptr(strings.TrimSpace(revised))}
}

// nodeReflectOnSummary records the model's gap analysis for the next query.
// The routing decision itself is the numeric loop comparison in the driver,
// never this node's output.
func (g *Graph) nodeReflectOnSummary(ctx context.Context, s *State) Delta {
	if s.RunningSummary == "" {
		return Delta{}
	}
	user := fmt.Sprintf("RESEARCH TOPIC: %s\n\nSUMMARY:\n%s", s.ResearchTopic, firstN(s.RunningSummary, 6000))
	raw, err := g.complete(ctx, s, reflectionPrompt, user, provider.Options{Temperature: 0.2, JSONMode: true})
	if err != nil {
		g.logger.Printf("reflection failed: %v", err)
		return Delta{}
	}
	var parsed struct {
		IsSufficient  bool   `json:"is_sufficient"`
		KnowledgeGap  string `json:"knowledge_gap"`
		FollowUpQuery string `json:"follow_up_query"`
	}
	if jerr := json.Unmarshal([]byte(provider.ExtractJSONObject(raw)), &parsed); jerr != nil {
		return Delta{}
	}
	if parsed.KnowledgeGap == "" && parsed.FollowUpQuery == "" {
		return Delta{}
	}
	note := "Knowledge gap: " + parsed.KnowledgeGap
	if parsed.FollowUpQuery != "" {
		note += "\nSuggested follow-up: " + parsed.FollowUpQuery
	}
	return Delta{EnhancedContext: strptr(note)}
}

// nodeFinalizeSummary is the terminal node. Unlike every other node its
// failure propagates: with no summary and no working model there is nothing
// left to degrade to.
func (g *Graph) nodeFinalizeSummary(ctx context.Context, s *State) (string, error) {
	sources := dedupSources(s.SourcesGathered)
	if g.cfg.Research.FilterLowReliability {
		sources = filterLowReliability(sources)
	}

	user := fmt.Sprintf("RESEARCH TOPIC: %s\n\nRESEARCH SUMMARY:\n%s\n\nSOURCES:\n%s",
		s.ResearchTopic, s.RunningSummary, bulletSources(sources))
	report, err := g.complete(ctx, s, finalReportPrompt, user, provider.Options{Temperature: 0.3})
	if err != nil || strings.TrimSpace(report) == "" {
		if s.RunningSummary == "" {
			return "", fmt.Errorf("finalize failed with no summary to fall back on: %w", err)
		}
		// degrade to a deterministic assembly of what we have
		g.logger.Printf("report generation failed, assembling report from summary: %v", err)
		report = "## Summary\n\n" + s.RunningSummary
	}
	return finalizeReport(report, sources), nil
}

func (g *Graph) tagSources(results []search.Result) []Source {
	sources := sourcesFromResults(results)
	if g.cfg.Research.FilterLowReliability {
		sources = filterLowReliability(sources)
	}
	return sources
}

// dedupSources mirrors the URL dedup rule for citations.
func dedupSources(sources []Source) []Source {
	seen := make(map[string]struct{}, len(sources))
	out := make([]Source, 0, len(sources))
	for _, s := range sources {
		key := search.NormalizeURL(s.URL)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// firstN truncates to at most n bytes without splitting a rune.
func firstN(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func pick(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func pageTitle(title, url string) string {
	if title != "" {
		return title
	}
	return url
}
