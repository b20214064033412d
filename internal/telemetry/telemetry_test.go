package telemetry

import (
	"testing"
	"time"

	"github.com/FRAMEEE17/MonkeyResearcher/config"
)

func TestDisabledTelemetryIsNilSafe(t *testing.T) {
	t.Parallel()
	var tel *Telemetry = New(config.TelemetryConfig{Enabled: false})
	if tel != nil {
		t.Fatalf("disabled config should return nil")
	}
	tel.RunStarted()
	tel.RunFinished(true, time.Second)
	tel.NodeFinished("web_research", time.Millisecond)
	tel.SearchIssued()
	tel.LLMUsage("m", 1, 2)
	if usage, total := tel.Usage(); usage != nil || total != 0 {
		t.Fatalf("nil telemetry should report empty usage")
	}
}

func TestUsageAccumulates(t *testing.T) {
	tel := New(config.TelemetryConfig{Enabled: true, PrometheusNamespace: "monkey_test"})
	tel.LLMUsage("llama3.2", 100, 40)
	tel.LLMUsage("llama3.2", 50, 10)
	tel.LLMUsage("gpt-4o-mini", 10, 5)

	usage, total := tel.Usage()
	if total != 215 {
		t.Fatalf("expected total 215, got %d", total)
	}
	u := usage["llama3.2"]
	if u.PromptTokens != 150 || u.CompletionTokens != 50 || u.Calls != 2 {
		t.Fatalf("unexpected usage %+v", u)
	}
}
