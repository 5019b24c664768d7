package category

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kodegen/mcp-gateway/internal/configstore"
	"github.com/kodegen/mcp-gateway/internal/jsonrpc"
	"github.com/kodegen/mcp-gateway/internal/ssesession"
	"github.com/kodegen/mcp-gateway/internal/toolrouter"
	"github.com/kodegen/mcp-gateway/internal/usage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	router := toolrouter.New()
	cfg := DefaultConfig(ServerInfo{Name: "test-category", Version: "0.0.0"})
	cfg.MaxConnections = 2
	return New(cfg, router, usage.New(), configstore.New(""))
}

// newSession admits a session directly through the SessionManager so tests
// can target a known-live session_id without going through GET /sse.
func newSession(t *testing.T, s *Server) string {
	t.Helper()
	sess, ok := s.sessions.CreateSession(ssesession.ClientInfo{RemoteAddr: "127.0.0.1:1234", UserAgent: "test"})
	if !ok {
		t.Fatal("failed to admit test session")
	}
	return sess.ID
}

func TestHandleMessagesMissingSessionReturns400(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/messages", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	rec := httptest.NewRecorder()

	s.handleMessages(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response not valid JSON: %v", err)
	}
	if body["error"] != "Session not found" {
		t.Fatalf("body = %+v, want {error: Session not found}", body)
	}
}

func TestHandleMessagesUnknownSessionReturns400(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/messages?session_id=does-not-exist", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	rec := httptest.NewRecorder()

	s.handleMessages(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleMessagesOversizedBodyReturns413(t *testing.T) {
	s := newTestServer(t)
	sessionID := newSession(t, s)
	oversized := bytes.Repeat([]byte("a"), jsonrpc.MaxRequestBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/messages?session_id="+sessionID, bytes.NewReader(oversized))
	rec := httptest.NewRecorder()

	s.handleMessages(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response not valid JSON: %v", err)
	}
	if body["error"] != "Request exceeds maximum size of 1MB" {
		t.Fatalf("body = %+v, want plain {error: ...} object", body)
	}
}

func TestHandleMessagesMalformedJSONRecoversID(t *testing.T) {
	s := newTestServer(t)
	sessionID := newSession(t, s)
	body := `{"jsonrpc":"2.0","id":42,"method":"tools/list",}`
	req := httptest.NewRequest(http.MethodPost, "/messages?session_id="+sessionID, strings.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleMessages(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp jsonrpc.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not valid JSON: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeParseError {
		t.Fatalf("expected parse error, got %+v", resp)
	}
	if string(resp.ID) != "42" {
		t.Fatalf("expected recovered id 42, got %s", resp.ID)
	}
}

func TestHandleMessagesInvalidEnvelopeRejected(t *testing.T) {
	s := newTestServer(t)
	sessionID := newSession(t, s)
	body := `{"jsonrpc":"1.0","method":"tools/list"}`
	req := httptest.NewRequest(http.MethodPost, "/messages?session_id="+sessionID, strings.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleMessages(rec, req)

	// Invalid-envelope (as opposed to parse-error) responses stay HTTP 200
	// per spec §4.2 step 4, carrying the error in the JSON-RPC envelope.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp jsonrpc.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not valid JSON: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeInvalidRequest {
		t.Fatalf("expected invalid-request error, got %+v", resp)
	}
}

func TestHandleMessagesToolsListRoundTrip(t *testing.T) {
	s := newTestServer(t)
	sessionID := newSession(t, s)
	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	req := httptest.NewRequest(http.MethodPost, "/messages?session_id="+sessionID, strings.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleMessages(rec, req)

	var resp jsonrpc.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not valid JSON: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}

func TestHandleMessagesBatchPreservesOrder(t *testing.T) {
	s := newTestServer(t)
	sessionID := newSession(t, s)
	body := `[
		{"jsonrpc":"2.0","id":1,"method":"tools/list"},
		{"jsonrpc":"2.0","id":2,"method":"tools/list"},
		{"jsonrpc":"2.0","id":3,"method":"tools/list"}
	]`
	req := httptest.NewRequest(http.MethodPost, "/messages/batch?session_id="+sessionID, strings.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleMessagesBatch(rec, req)

	var resps []jsonrpc.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resps); err != nil {
		t.Fatalf("response not valid JSON array: %v", err)
	}
	if len(resps) != 3 {
		t.Fatalf("len = %d, want 3", len(resps))
	}
	for i, want := range []string{"1", "2", "3"} {
		if string(resps[i].ID) != want {
			t.Fatalf("resps[%d].ID = %s, want %s", i, resps[i].ID, want)
		}
	}
}

func TestHandleMessagesBatchFirstFailureAborts(t *testing.T) {
	s := newTestServer(t)
	sessionID := newSession(t, s)
	body := `[
		{"jsonrpc":"2.0","id":1,"method":"tools/list"},
		{"jsonrpc":"1.0","id":2,"method":"tools/list"},
		{"jsonrpc":"2.0","id":3,"method":"tools/list"}
	]`
	req := httptest.NewRequest(http.MethodPost, "/messages/batch?session_id="+sessionID, strings.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleMessagesBatch(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 on first invalid element", rec.Code)
	}
	var resp jsonrpc.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not valid JSON: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeInvalidRequest {
		t.Fatalf("expected invalid-request error for the bad element, got %+v", resp)
	}
}

func TestHandleMessagesInitializePersistsClientInfo(t *testing.T) {
	s := newTestServer(t)
	sessionID := newSession(t, s)
	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"clientInfo":{"name":"agent-x","version":"9.9"}}}`
	req := httptest.NewRequest(http.MethodPost, "/messages?session_id="+sessionID, strings.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleMessages(rec, req)

	info, ok := s.config.GetClientInfo(sessionID)
	if !ok {
		t.Fatal("expected client info to be persisted for the session")
	}
	if info.Name != "agent-x" || info.Version != "9.9" {
		t.Fatalf("got %+v, want name=agent-x version=9.9", info)
	}
}

func TestHandleMessagesStreamEmptyOnUnknownSession(t *testing.T) {
	s := newTestServer(t)
	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	req := httptest.NewRequest(http.MethodPost, "/messages/stream?session_id=does-not-exist", strings.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleMessagesStream(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (default) for an empty stream", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected an empty body on unknown session, got %q", rec.Body.String())
	}
}

func TestHandleMessagesStreamEmitsSSEDataEvents(t *testing.T) {
	s := newTestServer(t)
	sessionID := newSession(t, s)
	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	req := httptest.NewRequest(http.MethodPost, "/messages/stream?session_id="+sessionID, strings.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleMessagesStream(rec, req)

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", got)
	}
	if !strings.Contains(rec.Body.String(), "data: ") {
		t.Fatalf("expected at least one SSE data: event, got %q", rec.Body.String())
	}
}

func TestHandleSSEAdmissionCap(t *testing.T) {
	s := newTestServer(t)
	client := ssesession.ClientInfo{RemoteAddr: "127.0.0.1:1234", UserAgent: "test"}

	if _, admitted := s.sessions.CreateSession(client); !admitted {
		t.Fatal("expected first session to be admitted")
	}
	if _, admitted := s.sessions.CreateSession(client); !admitted {
		t.Fatal("expected second session to be admitted (cap is 2)")
	}
	if _, admitted := s.sessions.CreateSession(client); admitted {
		t.Fatal("expected third session to be rejected at cap")
	}
}

func TestHandleHealthReportsOK(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response not valid JSON: %v", err)
	}
	for _, field := range []string{"status", "mcp_server_url", "mcp_server_healthy", "average_response_time_ms", "session_count"} {
		if _, ok := body[field]; !ok {
			t.Fatalf("response missing field %q: %+v", field, body)
		}
	}
}

func TestHandleMetricsReportsJSON(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	s.handleMetrics(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response not valid JSON: %v", err)
	}
	for _, field := range []string{"bridge_stats", "forwarding_stats", "session_count"} {
		if _, ok := body[field]; !ok {
			t.Fatalf("response missing field %q: %+v", field, body)
		}
	}
}

func TestCORSWildcardAllowsAnyOrigin(t *testing.T) {
	s := newTestServer(t)
	handler := s.withCORS(s.handleHealth)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()

	handler(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
