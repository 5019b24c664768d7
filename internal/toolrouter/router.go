// Package toolrouter implements the Tool Router (spec §4.1): the in-process
// registry each Category Server consults to answer tools/list and tools/call.
package toolrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/kodegen/mcp-gateway/internal/jsonrpc"
	"github.com/kodegen/mcp-gateway/internal/toolapi"
)

// Router holds every tool registered for one category and dispatches
// tools/call requests against them.
type Router struct {
	mu    sync.RWMutex
	tools map[string]toolapi.Tool
}

// New creates an empty Router.
func New() *Router {
	return &Router{tools: make(map[string]toolapi.Tool)}
}

// Register adds a tool, overwriting and logging on name collision.
func (r *Router) Register(t toolapi.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		log.Printf("[ToolRouter] WARNING: overwriting existing tool %q", t.Name())
	}
	r.tools[t.Name()] = t
}

// Get retrieves a tool by name.
func (r *Router) Get(name string) (toolapi.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool sorted by name, the order tools/list
// responses use.
func (r *Router) List() []toolapi.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]toolapi.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// ToolDescriptor is the wire shape of a single tools/list entry.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
	Annotations toolapi.Traits  `json:"annotations"`
}

// ListDescriptors renders List() into the tools/list wire shape.
func (r *Router) ListDescriptors() []ToolDescriptor {
	tools := r.List()
	out := make([]ToolDescriptor, len(tools))
	for i, t := range tools {
		out[i] = ToolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
			Annotations: t.Traits(),
		}
	}
	return out
}

// CallParams is the params shape of a tools/call request.
type CallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Call resolves name and executes it with arguments, translating lookup and
// execution failures into the JSON-RPC error codes spec §7 assigns them:
// an unknown tool is MethodNotFound (it is, after all, the method the
// envelope's "name" selects at this layer), malformed arguments are
// InvalidParams, and an unexpected executor failure is InternalError.
func (r *Router) Call(ctx context.Context, params CallParams) (toolapi.Result, *jsonrpc.Error) {
	t, ok := r.Get(params.Name)
	if !ok {
		return toolapi.Result{}, &jsonrpc.Error{
			Code:    jsonrpc.CodeMethodNotFound,
			Message: fmt.Sprintf("unknown tool %q", params.Name),
		}
	}

	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}
	if !json.Valid(params.Arguments) {
		return toolapi.Result{}, &jsonrpc.Error{
			Code:    jsonrpc.CodeInvalidParams,
			Message: "arguments must be a JSON object",
		}
	}

	res, err := t.Execute(ctx, params.Arguments)
	if err != nil {
		return toolapi.Result{}, &jsonrpc.Error{
			Code:    jsonrpc.CodeInternalError,
			Message: fmt.Sprintf("tool %q failed: %v", params.Name, err),
		}
	}
	return res, nil
}

// InitAll initializes every registered tool, stopping at the first failure.
func (r *Router) InitAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, t := range r.tools {
		if err := t.Init(ctx); err != nil {
			return fmt.Errorf("toolrouter: init tool %q: %w", name, err)
		}
	}
	return nil
}

// CloseAll closes every registered tool, logging but not failing on error.
func (r *Router) CloseAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, t := range r.tools {
		if err := t.Close(); err != nil {
			log.Printf("[ToolRouter] error closing tool %s: %v", name, err)
		}
	}
}
