// Package research implements the orchestration core: the shared state
// record, the intent classifier, the node graph, and the verification
// sub-loop that together turn a topic into a research report.
package research

import (
	"github.com/FRAMEEE17/MonkeyResearcher/internal/search"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/tools"
)

// Search strategies carried in State.SearchStrategy.
const (
	StrategyWebSearch   = "web_search"
	StrategyURLFetch    = "url_fetch"
	StrategyMCP         = "mcp"
	StrategyDirectFetch = "direct_fetch"
)

// Source is one citation surfaced in the final report.
type Source struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Reliability string `json:"reliability"` // High, Medium, Low
	SourceType  string `json:"source_type"`
}

// Verification is the outcome of fact-checking one claim.
type Verification struct {
	Question string `json:"question"`
	Verdict  string `json:"verdict"` // supported, contradicted, unverified
	Evidence string `json:"evidence"`
}

// State is the single record threaded through every node. Nodes never
// mutate it directly; they return a Delta and the driver applies it.
type State struct {
	ResearchTopic         string          `json:"research_topic"`
	InputAnalysis         map[string]any  `json:"input_analysis,omitempty"`
	SearchStrategy        string          `json:"search_strategy"`
	WebResearchResults    []search.Result `json:"web_research_results"`
	SourcesGathered       []Source        `json:"sources_gathered"`
	ToolResults           []tools.ToolResult `json:"tool_results"`
	RunningSummary        string          `json:"running_summary"`
	EnhancedContext       string          `json:"enhanced_context,omitempty"`
	VerificationQuestions []string        `json:"verification_questions,omitempty"`
	VerificationResults   []Verification  `json:"verification_results,omitempty"`
	SearchQuery           string          `json:"search_query,omitempty"`
	ResearchLoopCount     int             `json:"research_loop_count"`
	PromptTokens          int64           `json:"prompt_tokens"`
	CompletionTokens      int64           `json:"completion_tokens"`
	IntentResult          map[string]any  `json:"intent_result,omitempty"`
	PastQueries           []string        `json:"past_queries,omitempty"`
}

// NewState creates the per-request state with only the topic populated.
func NewState(topic string) *State {
	return &State{ResearchTopic: topic, SearchStrategy: StrategyWebSearch}
}

// Intent returns the classified intent, empty before classification ran.
func (s *State) Intent() string {
	intent, _ := s.IntentResult["intent"].(string)
	return intent
}

// Delta is the partial update a node returns. Append-only fields carry only
// the new tail; overwrite fields use pointers (or a set flag for slices) so
// "unset" and "set to empty" stay distinguishable.
type Delta struct {
	InputAnalysis  map[string]any
	IntentResult   map[string]any
	SearchStrategy string

	AppendWebResults  []search.Result
	AppendSources     []Source
	AppendToolResults []tools.ToolResult
	AppendPastQueries []string

	RunningSummary  *string
	EnhancedContext *string
	SearchQuery     *string

	SetVerificationQuestions bool
	VerificationQuestions    []string
	SetVerificationResults   bool
	VerificationResults      []Verification

	// CompletedResearchPass marks one finished web-research iteration; the
	// driver is the only place the loop counter moves.
	CompletedResearchPass bool
}

// Apply merges a delta into the state. This is the single writer for a
// request: appends concatenate, scalars overwrite, and the loop counter
// increments by exactly one per completed research pass.
func (s *State) Apply(d Delta) {
	if d.InputAnalysis != nil {
		s.InputAnalysis = d.InputAnalysis
	}
	if d.IntentResult != nil {
		s.IntentResult = d.IntentResult
	}
	if d.SearchStrategy != "" {
		s.SearchStrategy = d.SearchStrategy
	}

	s.WebResearchResults = append(s.WebResearchResults, d.AppendWebResults...)
	s.SourcesGathered = append(s.SourcesGathered, d.AppendSources...)
	s.ToolResults = append(s.ToolResults, d.AppendToolResults...)
	s.PastQueries = append(s.PastQueries, d.AppendPastQueries...)

	if d.RunningSummary != nil {
		s.RunningSummary = *d.RunningSummary
	}
	if d.EnhancedContext != nil {
		s.EnhancedContext = *d.EnhancedContext
	}
	if d.SearchQuery != nil {
		s.SearchQuery = *d.SearchQuery
	}

	if d.SetVerificationQuestions {
		s.VerificationQuestions = d.VerificationQuestions
	}
	if d.SetVerificationResults {
		s.VerificationResults = d.VerificationResults
	}

	if d.CompletedResearchPass {
		s.ResearchLoopCount++
	}
}

func strptr(s string) *string { return &s }
