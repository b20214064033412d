package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/FRAMEEE17/MonkeyResearcher/internal/provider"
)

const selectSystemPrompt = `You are a research assistant choosing which tools to run for a research topic.
Pick at most three tools that together give the best coverage of the topic.
Respond ONLY with strict JSON of the form:
{"tool_calls": [{"name": "<tool name>", "arguments": {<argument>: <value>}}]}
Use only the tools listed, with their declared arguments. An empty list is a valid answer.`

// SchemaForLLM renders the registered tools as the JSON block the selection
// prompt embeds.
func (r *Registry) SchemaForLLM(ctx context.Context) (string, error) {
	r.EnsureWarm(ctx)
	specs := r.List()
	type toolDoc struct {
		Name        string               `json:"name"`
		Description string               `json:"description"`
		Parameters  map[string]ParamSpec `json:"parameters"`
	}
	docs := make([]toolDoc, 0, len(specs))
	for _, s := range specs {
		docs = append(docs, toolDoc{Name: s.Name, Description: s.Description, Parameters: s.Parameters})
	}
	b, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal tool schema: %w", err)
	}
	return string(b), nil
}

// Select asks the LLM which tools to run for topic and parses its choices.
// Malformed model output yields an empty list: research continues with zero
// tool calls rather than failing.
func (r *Registry) Select(ctx context.Context, llm provider.LLMProvider, topic string) []ToolCall {
	schema, err := r.SchemaForLLM(ctx)
	if err != nil {
		r.logger.Printf("tool schema unavailable: %v", err)
		return nil
	}

	user := fmt.Sprintf("RESEARCH TOPIC: %s\n\nAVAILABLE TOOLS:\n%s", topic, schema)
	raw, err := llm.Complete(ctx, selectSystemPrompt, user, provider.Options{Temperature: 0.1, JSONMode: true})
	if err != nil {
		r.logger.Printf("tool selection failed: %v", err)
		return nil
	}

	var parsed struct {
		ToolCalls []ToolCall `json:"tool_calls"`
	}
	if err := json.Unmarshal([]byte(provider.ExtractJSONObject(raw)), &parsed); err != nil {
		r.logger.Printf("unparsable tool selection output: %v", err)
		return nil
	}

	// keep only calls that pass schema validation
	calls := make([]ToolCall, 0, len(parsed.ToolCalls))
	for _, call := range parsed.ToolCalls {
		call.Name = strings.TrimSpace(call.Name)
		if call.Arguments == nil {
			call.Arguments = map[string]any{}
		}
		if _, err := r.validate(call); err != nil {
			r.logger.Printf("skipping selected call: %v", err)
			continue
		}
		calls = append(calls, call)
	}
	return calls
}
