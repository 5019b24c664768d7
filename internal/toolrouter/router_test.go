package toolrouter

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kodegen/mcp-gateway/internal/jsonrpc"
	"github.com/kodegen/mcp-gateway/internal/toolapi"
)

type stubTool struct {
	name   string
	result toolapi.Result
	err    error
}

func (s *stubTool) Name() string                  { return s.name }
func (s *stubTool) Description() string           { return "stub" }
func (s *stubTool) InputSchema() json.RawMessage  { return toolapi.BuildSchema() }
func (s *stubTool) Traits() toolapi.Traits        { return toolapi.Traits{ReadOnly: true} }
func (s *stubTool) Init(context.Context) error    { return nil }
func (s *stubTool) Close() error                  { return nil }
func (s *stubTool) Execute(_ context.Context, _ json.RawMessage) (toolapi.Result, error) {
	return s.result, s.err
}

func TestRouterListSortedByName(t *testing.T) {
	r := New()
	r.Register(&stubTool{name: "zeta"})
	r.Register(&stubTool{name: "alpha"})
	tools := r.List()
	if len(tools) != 2 || tools[0].Name() != "alpha" || tools[1].Name() != "zeta" {
		t.Fatalf("expected sorted [alpha zeta], got %v", tools)
	}
}

func TestRouterCallUnknownTool(t *testing.T) {
	r := New()
	_, rpcErr := r.Call(context.Background(), CallParams{Name: "missing"})
	if rpcErr == nil || rpcErr.Code != jsonrpc.CodeMethodNotFound {
		t.Fatalf("expected MethodNotFound, got %+v", rpcErr)
	}
}

func TestRouterCallInvalidArguments(t *testing.T) {
	r := New()
	r.Register(&stubTool{name: "echo"})
	_, rpcErr := r.Call(context.Background(), CallParams{Name: "echo", Arguments: json.RawMessage(`not-json`)})
	if rpcErr == nil || rpcErr.Code != jsonrpc.CodeInvalidParams {
		t.Fatalf("expected InvalidParams, got %+v", rpcErr)
	}
}

func TestRouterCallSuccess(t *testing.T) {
	r := New()
	r.Register(&stubTool{name: "echo", result: toolapi.Result{Output: "ok"}})
	res, rpcErr := r.Call(context.Background(), CallParams{Name: "echo"})
	if rpcErr != nil {
		t.Fatalf("unexpected error: %+v", rpcErr)
	}
	if res.Output != "ok" {
		t.Fatalf("output = %q, want ok", res.Output)
	}
}
