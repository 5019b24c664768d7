package bridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kodegen/mcp-gateway/internal/jsonrpc"
)

type stubDispatcher struct {
	failUntil int
	calls     int
	err       *jsonrpc.Error
}

func (s *stubDispatcher) Dispatch(context.Context, string, json.RawMessage) (json.RawMessage, *jsonrpc.Error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.calls <= s.failUntil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: "transient"}
	}
	return json.RawMessage(`{"ok":true}`), nil
}

func TestForwardRequestSuccess(t *testing.T) {
	b := New(DefaultConfig(), &stubDispatcher{})
	resp := b.ForwardRequest(context.Background(), jsonrpc.Request{JSONRPC: "2.0", Method: "tools/list", ID: json.RawMessage("1")})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	stats := b.GetForwardingStats()
	if stats.SuccessCount != 1 || stats.FailureCount != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestForwardRequestWithRetryEventualSuccess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryInitialDelay = time.Millisecond
	cfg.MaxRetries = 5
	d := &stubDispatcher{failUntil: 2}
	b := New(cfg, d)

	resp := b.ForwardRequestWithRetry(context.Background(), jsonrpc.Request{JSONRPC: "2.0", Method: "tools/call", ID: json.RawMessage("1")})
	if resp.Error != nil {
		t.Fatalf("expected eventual success, got error: %+v", resp.Error)
	}
	if d.calls != 3 {
		t.Fatalf("calls = %d, want 3", d.calls)
	}
}

func TestForwardBatchRequestsPreservesOrder(t *testing.T) {
	b := New(DefaultConfig(), &stubDispatcher{})
	reqs := []jsonrpc.Request{
		{JSONRPC: "2.0", Method: "tools/list", ID: json.RawMessage("1")},
		{JSONRPC: "2.0", Method: "tools/list", ID: json.RawMessage("2")},
		{JSONRPC: "2.0", Method: "tools/list", ID: json.RawMessage("3")},
	}
	resps := b.ForwardBatchRequests(context.Background(), reqs)
	if len(resps) != 3 {
		t.Fatalf("len(resps) = %d, want 3", len(resps))
	}
	for i, r := range resps {
		if string(r.ID) != string(reqs[i].ID) {
			t.Fatalf("response %d id = %s, want %s", i, r.ID, reqs[i].ID)
		}
	}
}

func TestIsHealthyWithNoRequestsYet(t *testing.T) {
	b := New(DefaultConfig(), &stubDispatcher{})
	if !b.IsHealthy() {
		t.Fatal("expected a bridge with zero requests to be healthy")
	}
}

func TestIsHealthyDegradesOnFailures(t *testing.T) {
	b := New(DefaultConfig(), &stubDispatcher{err: &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "bad"}})
	for i := 0; i < 10; i++ {
		b.ForwardRequest(context.Background(), jsonrpc.Request{JSONRPC: "2.0", Method: "tools/list"})
	}
	if b.IsHealthy() {
		t.Fatal("expected bridge to report unhealthy after all-failure run")
	}
}
