package category

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/kodegen/mcp-gateway/internal/configstore"
	"github.com/kodegen/mcp-gateway/internal/jsonrpc"
	"github.com/kodegen/mcp-gateway/internal/sseevents"
)

// sessionNotFoundBody is the exact wire body spec §4.2 step 1 mandates for
// an unresolved session, on every endpoint that requires one.
func sessionNotFoundBody() map[string]string { return map[string]string{"error": "Session not found"} }

// plainError wraps msg in the bare (non-JSON-RPC) error object the spec
// uses for transport-level failures that precede JSON-RPC parsing, such
// as the oversized-body response.
func plainError(msg string) map[string]string { return map[string]string{"error": msg} }

// handleSSE opens a long-lived event stream: admits a session (or 503s at
// capacity), emits the "endpoint" event with the session's POST URL, then
// pings on cfg.PingInterval until the client disconnects.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sess, ok := s.sessions.CreateSession(clientInfoFromRequest(r))
	if !ok {
		http.Error(w, "server at capacity", http.StatusServiceUnavailable)
		return
	}
	defer s.sessions.RemoveSession(sess.ID)

	sw, err := sseevents.NewWriter(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := sw.Endpoint(endpointURL(r, sess.ID)); err != nil {
		return
	}

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	ctx := r.Context()
	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sessions.TouchSession(sess.ID)
			if err := sw.Ping(n); err != nil {
				return
			}
			if err := sw.KeepAliveComment(); err != nil {
				return
			}
			n++
		}
	}
}

// decodedRequest is the outcome of the size/parse/validate pipeline
// (spec §4.2 steps 2-4) that POST /messages and /messages/stream share
// through decodeSingle; /messages/batch runs its own per-element checks.
// errBody, when non-nil, is written verbatim
// as the JSON response body — a plain {"error": ...} object for the size
// check (spec §4.2 step 2, §6), a JSON-RPC error envelope for parse/
// validation failures (spec §4.2 steps 3-4).
type decodedRequest struct {
	req      jsonrpc.Request
	errBody  any
	httpCode int
}

func decodeSingle(body []byte) decodedRequest {
	if ok, msg := jsonrpc.CheckSize(body); !ok {
		return decodedRequest{httpCode: http.StatusRequestEntityTooLarge, errBody: plainError(msg)}
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		id := jsonrpc.ExtractRequestID(body)
		resp := jsonrpc.NewErrorResponse(id, jsonrpc.CodeParseError, "Parse error: "+err.Error())
		return decodedRequest{httpCode: http.StatusBadRequest, errBody: resp}
	}

	if code, msg, ok := jsonrpc.Validate(req); !ok {
		resp := jsonrpc.NewErrorResponse(req.ID, code, msg)
		return decodedRequest{httpCode: http.StatusOK, errBody: resp}
	}

	return decodedRequest{req: req}
}

// forward runs the critical-method retry decision (spec §4.2 step 5):
// tools/call, resources/read and prompts/get get exponential-backoff
// retry, everything else gets a single forwarding attempt.
func (s *Server) forward(ctx context.Context, req jsonrpc.Request) jsonrpc.Response {
	if jsonrpc.IsCriticalMethod(req.Method) {
		return s.bridge.ForwardRequestWithRetry(ctx, req)
	}
	return s.bridge.ForwardRequest(ctx, req)
}

// handleMessages implements the single-request POST /messages pipeline
// (spec §4.2 steps 1-6): resolve session, size check, parse, validate,
// forward (with retry for critical methods), write response.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, sessionNotFoundBody())
		return
	}
	if _, ok := s.sessions.GetSession(sessionID); !ok {
		writeJSON(w, http.StatusBadRequest, sessionNotFoundBody())
		return
	}
	s.sessions.TouchSession(sessionID)

	body, err := io.ReadAll(io.LimitReader(r.Body, jsonrpc.MaxRequestBytes+1))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	decoded := decodeSingle(body)
	if decoded.errBody != nil {
		writeJSON(w, decoded.httpCode, decoded.errBody)
		return
	}

	if decoded.req.Method == "initialize" {
		s.persistClientInfo(sessionID, decoded.req.Params)
	}

	resp := s.forward(r.Context(), decoded.req)
	writeJSON(w, http.StatusOK, resp)
}

// persistClientInfo records the clientInfo block of an initialize request
// into the ConfigManager, best-effort (spec §4.2, §9: "never fatal").
func (s *Server) persistClientInfo(sessionID string, params json.RawMessage) {
	if s.config == nil || len(params) == 0 {
		return
	}
	var body struct {
		ClientInfo struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"clientInfo"`
	}
	if err := json.Unmarshal(params, &body); err != nil {
		log.Printf("[Category] initialize: client info for session %s not recorded: %v", sessionID, err)
		return
	}
	s.config.SetClientInfo(sessionID, configstore.ClientInfo{
		Name:       body.ClientInfo.Name,
		Version:    body.ClientInfo.Version,
		LastSeenAt: time.Now(),
	})
}

// handleMessagesBatch decodes and forwards a JSON array of requests,
// preserving order in the response array (spec §8 batch-ordering
// invariant).
func (s *Server) handleMessagesBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, sessionNotFoundBody())
		return
	}
	if _, ok := s.sessions.GetSession(sessionID); !ok {
		writeJSON(w, http.StatusBadRequest, sessionNotFoundBody())
		return
	}
	s.sessions.TouchSession(sessionID)

	body, err := io.ReadAll(io.LimitReader(r.Body, jsonrpc.MaxRequestBytes+1))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if ok, msg := jsonrpc.CheckSize(body); !ok {
		writeJSON(w, http.StatusRequestEntityTooLarge, plainError(msg))
		return
	}

	var rawReqs []json.RawMessage
	if err := json.Unmarshal(body, &rawReqs); err != nil {
		id := jsonrpc.ExtractRequestID(body)
		writeJSON(w, http.StatusBadRequest, jsonrpc.NewErrorResponse(id, jsonrpc.CodeParseError, "Parse error: "+err.Error()))
		return
	}

	// Each element is validated in order; the first failure aborts the
	// whole batch with HTTP 400 rather than forwarding the rest (spec
	// §4.2 /messages/batch: "first failure → HTTP 400").
	reqs := make([]jsonrpc.Request, 0, len(rawReqs))
	for _, raw := range rawReqs {
		var req jsonrpc.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, jsonrpc.NewErrorResponse(jsonrpc.ExtractRequestID(raw), jsonrpc.CodeParseError, "Parse error: "+err.Error()))
			return
		}
		if code, msg, ok := jsonrpc.Validate(req); !ok {
			writeJSON(w, http.StatusBadRequest, jsonrpc.NewErrorResponse(req.ID, code, msg))
			return
		}
		reqs = append(reqs, req)
	}

	responses := s.bridge.ForwardBatchRequests(r.Context(), reqs)
	writeJSON(w, http.StatusOK, responses)
}

// handleMessagesStream forwards a single request and streams each chunk
// as a plain SSE "data:" event over text/event-stream, for clients that
// want partial results before the final response (spec §4.2, §6 streaming
// variant). A missing or unknown session yields an empty stream rather
// than an error (spec §4.2: "validates session, empty stream on miss").
func (s *Server) handleMessagesStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		return
	}
	if _, ok := s.sessions.GetSession(sessionID); !ok {
		return
	}
	s.sessions.TouchSession(sessionID)

	body, err := io.ReadAll(io.LimitReader(r.Body, jsonrpc.MaxRequestBytes+1))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	decoded := decodeSingle(body)
	if decoded.errBody != nil {
		writeJSON(w, decoded.httpCode, decoded.errBody)
		return
	}

	sw, err := sseevents.NewWriter(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := s.bridge.ForwardStreamingRequest(r.Context(), decoded.req, func(chunk json.RawMessage) {
		_ = sw.Data(chunk)
	})
	respBytes, _ := json.Marshal(resp)
	_ = sw.Data(respBytes)
}

// handleHealth reports bridge health, the category server's own MCP
// endpoint, and live session count (spec §6).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.bridge.GetForwardingStats()
	status := http.StatusOK
	if !stats.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":                   healthLabel(stats.Healthy),
		"mcp_server_url":           s.addr,
		"mcp_server_healthy":       stats.Healthy,
		"average_response_time_ms": float64(stats.AverageResponseTime.Microseconds()) / 1000.0,
		"session_count":            s.sessions.SessionCount(),
		"total_requests":           stats.TotalRequests,
		"success_rate":             stats.SuccessRate,
	})
}

func healthLabel(healthy bool) string {
	if healthy {
		return "ok"
	}
	return "degraded"
}

// handleMetrics reports the bridge's connection stats, its rolling
// forwarding stats, and the live session count as JSON (spec §4.4, §6).
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"bridge_stats":     s.bridge.GetConnectionStats(),
		"forwarding_stats": s.bridge.GetForwardingStats(),
		"session_count":    s.sessions.SessionCount(),
	})
}
