package tools

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/FRAMEEE17/MonkeyResearcher/internal/mcp"
)

const defaultCallTimeout = 60 * time.Second

// Registry holds the registered tool table. Registration happens at
// construction time; after warm-up the table is read-only, so lookups and
// execution take the read lock only.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	tools  map[string]ToolSpec
	logger *log.Logger

	mcpClient *mcp.Client
	warmed    bool
}

func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(log.Writer(), "[TOOLS] ", log.LstdFlags)
	}
	return &Registry{tools: make(map[string]ToolSpec), logger: logger}
}

// Register adds one tool. Duplicate names are rejected so a spec can never
// be silently replaced mid-session.
func (r *Registry) Register(spec ToolSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if spec.Handler == nil {
		return fmt.Errorf("tool %s: handler is required", spec.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[spec.Name]; exists {
		return fmt.Errorf("tool %s already registered", spec.Name)
	}
	r.tools[spec.Name] = spec
	r.order = append(r.order, spec.Name)
	return nil
}

// AttachMCP wires the paper server in; its tools are registered lazily on
// first use via EnsureWarm.
func (r *Registry) AttachMCP(client *mcp.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mcpClient = client
}

// EnsureWarm performs the one-time handshake with the external tool server,
// registering its tools. Concurrent first uses collapse to a single
// initialization; failure leaves the registry usable with built-ins only.
func (r *Registry) EnsureWarm(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.warmed {
		return
	}
	r.warmed = true
	if r.mcpClient == nil {
		return
	}

	infos, err := r.mcpClient.Tools(ctx)
	if err != nil {
		r.logger.Printf("mcp warm-up failed, continuing with built-in tools: %v", err)
		return
	}
	client := r.mcpClient
	for _, info := range infos {
		if _, exists := r.tools[info.Name]; exists {
			continue
		}
		name := info.Name
		spec := ToolSpec{
			Name:        name,
			Description: info.Description,
			Parameters:  paramsFromSchema(info.Parameters),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return client.Call(ctx, name, args)
			},
		}
		r.tools[name] = spec
		r.order = append(r.order, name)
	}
}

func paramsFromSchema(schema map[string]any) map[string]ParamSpec {
	out := make(map[string]ParamSpec, len(schema))
	for name, raw := range schema {
		p := ParamSpec{Type: "string"}
		if m, ok := raw.(map[string]any); ok {
			if t, ok := m["type"].(string); ok {
				p.Type = t
			}
			if d, ok := m["description"].(string); ok {
				p.Description = d
			}
			if req, ok := m["required"].(bool); ok {
				p.Required = req
			}
		}
		out[name] = p
	}
	return out
}

// List returns the registered tools in registration order.
func (r *Registry) List() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// lookup returns the spec for name.
func (r *Registry) lookup(name string) (ToolSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.tools[name]
	return spec, ok
}

// validate checks a call against the spec's declared parameters. Unknown
// tools and missing required arguments are recoverable errors: the caller
// skips the call, it does not abort the batch.
func (r *Registry) validate(call ToolCall) (ToolSpec, error) {
	spec, ok := r.lookup(call.Name)
	if !ok {
		return ToolSpec{}, fmt.Errorf("unknown tool: %s", call.Name)
	}
	for name, param := range spec.Parameters {
		if !param.Required {
			continue
		}
		if v, ok := call.Arguments[name]; !ok || v == nil {
			return ToolSpec{}, fmt.Errorf("tool %s: missing required argument %q", call.Name, name)
		}
	}
	return spec, nil
}

// Execute dispatches one call with a per-call timeout. Failures come back as
// a failed ToolResult so one bad tool never aborts the batch.
func (r *Registry) Execute(ctx context.Context, call ToolCall) ToolResult {
	start := time.Now()
	spec, err := r.validate(call)
	if err != nil {
		return ToolResult{Call: call, Success: false, Error: err.Error(), Latency: time.Since(start)}
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := spec.Handler(cctx, call.Arguments)
	res := ToolResult{Call: call, Latency: time.Since(start)}
	if err != nil {
		res.Error = err.Error()
		r.logger.Printf("tool %s failed after %v: %v", call.Name, res.Latency, err)
		return res
	}
	res.Success = true
	res.Payload = payload
	return res
}

// ExecuteAll runs calls concurrently and joins. Result order follows
// completion, not request order; each result carries its originating call.
func (r *Registry) ExecuteAll(ctx context.Context, calls []ToolCall) []ToolResult {
	if len(calls) == 0 {
		return nil
	}
	out := make(chan ToolResult, len(calls))
	var wg sync.WaitGroup
	for _, call := range calls {
		wg.Add(1)
		go func(call ToolCall) {
			defer wg.Done()
			out <- r.Execute(ctx, call)
		}(call)
	}
	wg.Wait()
	close(out)

	results := make([]ToolResult, 0, len(calls))
	for res := range out {
		results = append(results, res)
	}
	return results
}
