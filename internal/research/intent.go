package research

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/FRAMEEE17/MonkeyResearcher/internal/provider"
)

// Intent categories.
const (
	IntentURLAnalysis           = "url_analysis"
	IntentAcademicResearch      = "academic_research"
	IntentDirectContent         = "direct_content"
	IntentComprehensiveResearch = "comprehensive_research"
	IntentTechnicalAnalysis     = "technical_analysis"
)

// urlPattern matches the first http(s) URL embedded anywhere in the input.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"'{}|\\^` + "`" + `\[\]]+`)

var academicPattern = regexp.MustCompile(`(?i)\b(papers?|study|studies|research|arxiv|journal|publication)\b`)

var definitionPattern = regexp.MustCompile(`(?i)\b(what is|what are|define|definition of|explain|meaning of)\b`)

// directFetchPattern marks requests that only want one page summarized
// rather than researched around.
var directFetchPattern = regexp.MustCompile(`(?i)\b(summari[sz]e|read|look at|check out|review)\b.*\bthis\b|\b(this (url|link|page|article|site))\b`)

// Classification is the classifier's verdict.
type Classification struct {
	Intent     string  `json:"intent"`
	Strategy   string  `json:"strategy"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"` // rule, llm, fallback
}

type intentRule struct {
	pattern  *regexp.Regexp
	intent   string
	strategy string
}

// Ordered rule table; first match wins and skips the LLM entirely.
var intentRules = []intentRule{
	{urlPattern, IntentURLAnalysis, StrategyURLFetch},
	{academicPattern, IntentAcademicResearch, StrategyMCP},
	{definitionPattern, IntentDirectContent, StrategyWebSearch},
}

const intentSystemPrompt = `You classify a research request into exactly one intent category:
url_analysis, academic_research, direct_content, comprehensive_research, technical_analysis.
Respond ONLY with strict JSON: {"intent": "<category>", "confidence": <0..1>}`

// classifyIntent applies the ordered rules, falling back to the LLM, and on
// any failure to the comprehensive default. It never returns an error:
// classification must not be able to abort the pipeline.
func classifyIntent(ctx context.Context, llm provider.LLMProvider, query string) Classification {
	for _, rule := range intentRules {
		if rule.pattern.MatchString(query) {
			return Classification{Intent: rule.intent, Strategy: rule.strategy, Confidence: 1.0, Source: "rule"}
		}
	}

	raw, err := llm.Complete(ctx, intentSystemPrompt, query, provider.Options{Temperature: 0.0, JSONMode: true})
	if err == nil {
		var parsed struct {
			Intent     string  `json:"intent"`
			Confidence float64 `json:"confidence"`
		}
		if jerr := json.Unmarshal([]byte(provider.ExtractJSONObject(raw)), &parsed); jerr == nil {
			if strategy, ok := strategyForIntent(parsed.Intent); ok {
				return Classification{Intent: parsed.Intent, Strategy: strategy, Confidence: parsed.Confidence, Source: "llm"}
			}
		}
	}

	return Classification{Intent: IntentComprehensiveResearch, Strategy: StrategyWebSearch, Confidence: 0.5, Source: "fallback"}
}

func strategyForIntent(intent string) (string, bool) {
	switch intent {
	case IntentURLAnalysis:
		return StrategyURLFetch, true
	case IntentAcademicResearch:
		return StrategyMCP, true
	case IntentDirectContent, IntentComprehensiveResearch, IntentTechnicalAnalysis:
		return StrategyWebSearch, true
	default:
		return "", false
	}
}

// analyzeInput inspects the raw input for URLs and direct-fetch phrasing.
// A bare URL (or a "summarize this link" style request) upgrades the
// strategy to direct_fetch: fetch, summarize, finalize, no research loop.
func analyzeInput(query string) map[string]any {
	urls := urlPattern.FindAllString(query, -1)
	remainder := query
	for _, u := range urls {
		remainder = strings.Replace(remainder, u, "", 1)
	}
	words := strings.Fields(remainder)

	directFetch := false
	if len(urls) > 0 {
		if len(words) <= 3 || directFetchPattern.MatchString(query) {
			directFetch = true
		}
	}

	analysis := map[string]any{}
	analysis["has_url"] = len(urls) > 0
	analysis["urls"] = urls
	analysis["word_count"] = len(strings.Fields(query))
	analysis["direct_fetch"] = directFetch
	analysis["non_url_words"] = len(words)
	return analysis
}

// firstURL extracts the first URL in the topic text, if any.
func firstURL(query string) string {
	return urlPattern.FindString(query)
}
