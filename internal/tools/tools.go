// Package tools holds the named-tool registry the LLM selects from and the
// executor that runs its chosen calls.
package tools

import (
	"context"
	"time"
)

// ParamSpec describes one tool parameter.
type ParamSpec struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// Handler executes one tool call.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// ToolSpec is an immutable registered tool: name, parameter schema, and the
// execution handle.
type ToolSpec struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Parameters  map[string]ParamSpec `json:"parameters"`
	Timeout     time.Duration        `json:"-"`
	Handler     Handler              `json:"-"`
}

// ToolCall is a requested execution produced by LLM tool selection.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the outcome of one executed call. A failed call carries its
// error as data; executors never raise for individual tools.
type ToolResult struct {
	Call    ToolCall      `json:"call"`
	Success bool          `json:"success"`
	Payload any           `json:"payload,omitempty"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
}
