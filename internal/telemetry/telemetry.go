// Package telemetry collects prometheus metrics and token accounting for
// research runs. All methods are nil-safe so callers never need to guard.
package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/FRAMEEE17/MonkeyResearcher/config"
)

// Telemetry aggregates run, node, LLM, and search metrics.
type Telemetry struct {
	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runsFailed    prometheus.Counter
	runDuration   prometheus.Histogram
	nodeDuration  *prometheus.HistogramVec
	llmTokens     *prometheus.CounterVec
	searchCalls   prometheus.Counter

	mu     sync.RWMutex
	usage  map[string]*ModelUsage
	tokens int64
}

// ModelUsage accumulates token counts for one model.
type ModelUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	Calls            int64 `json:"calls"`
}

// New registers the collectors. A disabled config returns nil, which every
// method accepts.
func New(cfg config.TelemetryConfig) *Telemetry {
	if !cfg.Enabled {
		return nil
	}
	ns := cfg.PrometheusNamespace
	if ns == "" {
		ns = "monkey"
	}
	return &Telemetry{
		runsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "research_runs_started_total", Help: "Research runs started.",
		}),
		runsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "research_runs_completed_total", Help: "Research runs completed.",
		}),
		runsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "research_runs_failed_total", Help: "Research runs that returned an error.",
		}),
		runDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Name: "research_run_duration_seconds", Help: "End-to-end run duration.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		nodeDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Name: "research_node_duration_seconds", Help: "Per-node duration.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"node"}),
		llmTokens: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "llm_tokens_total", Help: "LLM tokens by model and direction.",
		}, []string{"model", "direction"}),
		searchCalls: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "search_calls_total", Help: "Search backend invocations.",
		}),
		usage: make(map[string]*ModelUsage),
	}
}

func (t *Telemetry) RunStarted() {
	if t == nil {
		return
	}
	t.runsStarted.Inc()
}

func (t *Telemetry) RunFinished(success bool, d time.Duration) {
	if t == nil {
		return
	}
	if success {
		t.runsCompleted.Inc()
	} else {
		t.runsFailed.Inc()
	}
	t.runDuration.Observe(d.Seconds())
}

func (t *Telemetry) NodeFinished(node string, d time.Duration) {
	if t == nil {
		return
	}
	t.nodeDuration.WithLabelValues(node).Observe(d.Seconds())
}

func (t *Telemetry) SearchIssued() {
	if t == nil {
		return
	}
	t.searchCalls.Inc()
}

// LLMUsage records one completion's token counts.
func (t *Telemetry) LLMUsage(model string, promptTokens, completionTokens int64) {
	if t == nil {
		return
	}
	t.llmTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	t.llmTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))

	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.usage[model]
	if !ok {
		u = &ModelUsage{}
		t.usage[model] = u
	}
	u.PromptTokens += promptTokens
	u.CompletionTokens += completionTokens
	u.Calls++
	t.tokens += promptTokens + completionTokens
}

// Usage returns a copy of the per-model accounting and the grand total.
func (t *Telemetry) Usage() (map[string]ModelUsage, int64) {
	if t == nil {
		return nil, 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]ModelUsage, len(t.usage))
	for model, u := range t.usage {
		out[model] = *u
	}
	return out, t.tokens
}
