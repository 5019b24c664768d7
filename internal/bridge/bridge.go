// Package bridge implements McpBridge (spec §4.4): the component a
// Category Server's SSE facade forwards validated JSON-RPC requests
// through on its way to the in-process Tool Router, tracking connection
// and forwarding statistics along the way.
//
// The original architecture bridges to a separate upstream MCP server
// process; this gateway collapses that hop — the Category Server hosts
// its own Tool Router in-process (see internal/category) — so Dispatcher
// here is satisfied by an in-process adapter rather than a second network
// connection. Every other contract (retry, stats, health) is unchanged.
package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kodegen/mcp-gateway/internal/backoff"
	"github.com/kodegen/mcp-gateway/internal/jsonrpc"
)

// Dispatcher is the upstream target a Bridge forwards requests to.
type Dispatcher interface {
	Dispatch(ctx context.Context, method string, params json.RawMessage) (result json.RawMessage, rpcErr *jsonrpc.Error)
}

// healthySuccessRateThreshold and healthyAvgResponseCeiling are the
// implementation-chosen, stable thresholds IsHealthy() compares against
// (spec §9 Open Question: "must be documented and stable so /health is
// reproducible").
const (
	healthySuccessRateThreshold = 0.90
	healthyAvgResponseCeiling   = 2 * time.Second
)

// Config parameterizes a Bridge's forwarding timeout and retry behavior.
// KeepAliveTimeout and MaxIdleConnections are not read by the in-process
// Bridge; UserAgent is only reported through GetConnectionStats.
type Config struct {
	Timeout            time.Duration
	KeepAliveTimeout   time.Duration
	MaxIdleConnections int
	UserAgent          string
	MaxRetries         int
	RetryInitialDelay  time.Duration
}

// DefaultConfig matches the original daemon's SseServerConfig→SseConfig
// fill-in defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:            30 * time.Second,
		KeepAliveTimeout:   90 * time.Second,
		MaxIdleConnections: 10,
		UserAgent:          "Kodegen-Daemon/1.0",
		MaxRetries:         3,
		RetryInitialDelay:  100 * time.Millisecond,
	}
}

// Bridge forwards JSON-RPC requests to a single Dispatcher, maintaining
// rolling connection and forwarding statistics.
type Bridge struct {
	cfg    Config
	target Dispatcher

	mu           sync.Mutex
	connectedAt  time.Time
	totalCalls   int64
	totalSuccess int64
	totalFailure int64
	totalLatency time.Duration
	lastRequest  time.Time
}

// New creates a Bridge forwarding to target.
func New(cfg Config, target Dispatcher) *Bridge {
	return &Bridge{cfg: cfg, target: target, connectedAt: time.Now()}
}

// ForwardRequest makes a single attempt to forward req and returns the
// JSON-RPC response, updating stats regardless of outcome.
func (b *Bridge) ForwardRequest(ctx context.Context, req jsonrpc.Request) jsonrpc.Response {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	start := time.Now()
	result, rpcErr := b.target.Dispatch(ctx, req.Method, req.Params)
	elapsed := time.Since(start)

	b.record(elapsed, rpcErr == nil)

	if rpcErr != nil {
		return jsonrpc.NewErrorResponse(req.ID, rpcErr.Code, rpcErr.Message)
	}
	return jsonrpc.NewResultResponse(req.ID, result)
}

// ForwardRequestWithRetry retries req with exponential backoff (capped at
// 10s) on dispatch failure, per spec §4.2 step 5 / §4.4. Intended only for
// the critical-method allow-list (internal/jsonrpc.IsCriticalMethod) —
// callers pre-filter, since retrying a non-idempotent call risks
// duplicate side effects.
func (b *Bridge) ForwardRequestWithRetry(ctx context.Context, req jsonrpc.Request) jsonrpc.Response {
	cfg := backoff.New(b.cfg.MaxRetries, b.cfg.RetryInitialDelay, b.cfg.Timeout)

	var resp jsonrpc.Response
	err := backoff.Retry(ctx, cfg, func(attemptCtx context.Context) error {
		start := time.Now()
		result, rpcErr := b.target.Dispatch(attemptCtx, req.Method, req.Params)
		elapsed := time.Since(start)

		if rpcErr != nil {
			b.record(elapsed, false)
			if rpcErr.Code == jsonrpc.CodeInternalError {
				return internalErrAsGoError{rpcErr}
			}
			// Non-transport errors (unknown method, bad params) are not
			// worth retrying; surface them immediately.
			resp = jsonrpc.NewErrorResponse(req.ID, rpcErr.Code, rpcErr.Message)
			return nil
		}
		b.record(elapsed, true)
		resp = jsonrpc.NewResultResponse(req.ID, result)
		return nil
	})

	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInternalError, "upstream unavailable after retries: "+err.Error())
	}
	return resp
}

type internalErrAsGoError struct{ rpcErr *jsonrpc.Error }

func (e internalErrAsGoError) Error() string { return e.rpcErr.Message }

// ForwardBatchRequests forwards each request in reqs, in order, returning
// responses in the same order (spec §8: batch ordering invariant).
func (b *Bridge) ForwardBatchRequests(ctx context.Context, reqs []jsonrpc.Request) []jsonrpc.Response {
	responses := make([]jsonrpc.Response, len(reqs))
	for i, req := range reqs {
		responses[i] = b.ForwardRequest(ctx, req)
	}
	return responses
}

// ChunkHandler is invoked once per partial result during a streaming
// forward, in upstream order (spec §9: "forward chunks in upstream
// order").
type ChunkHandler func(chunk json.RawMessage)

// ForwardStreamingRequest forwards req through ForwardRequest and, when
// that succeeds, invokes onChunk once with the full result; on an error
// response onChunk is not called. Dispatcher returns one result per call,
// so onChunk is never called more than once.
func (b *Bridge) ForwardStreamingRequest(ctx context.Context, req jsonrpc.Request, onChunk ChunkHandler) jsonrpc.Response {
	resp := b.ForwardRequest(ctx, req)
	if resp.Result != nil {
		onChunk(resp.Result)
	}
	return resp
}

func (b *Bridge) record(elapsed time.Duration, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalCalls++
	if success {
		b.totalSuccess++
	} else {
		b.totalFailure++
	}
	b.totalLatency += elapsed
	b.lastRequest = time.Now()
}

// ConnectionStats is the static connection snapshot /metrics reports: when
// the Bridge was created and its configured user agent.
type ConnectionStats struct {
	ConnectedAt time.Time
	UserAgent   string
}

// GetConnectionStats returns the bridge's static connection info.
func (b *Bridge) GetConnectionStats() ConnectionStats {
	return ConnectionStats{ConnectedAt: b.connectedAt, UserAgent: b.cfg.UserAgent}
}

// ForwardingStats is the rolling forwarding snapshot /health and /metrics
// report.
type ForwardingStats struct {
	TotalRequests       int64
	SuccessCount        int64
	FailureCount        int64
	SuccessRate         float64
	AverageResponseTime time.Duration
	Healthy             bool
	LastRequestAt       time.Time
}

// GetForwardingStats snapshots the rolling counters.
func (b *Bridge) GetForwardingStats() ForwardingStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := ForwardingStats{
		TotalRequests: b.totalCalls,
		SuccessCount:  b.totalSuccess,
		FailureCount:  b.totalFailure,
		LastRequestAt: b.lastRequest,
	}
	if b.totalCalls > 0 {
		stats.SuccessRate = float64(b.totalSuccess) / float64(b.totalCalls)
		stats.AverageResponseTime = b.totalLatency / time.Duration(b.totalCalls)
	} else {
		stats.SuccessRate = 1.0
	}
	stats.Healthy = stats.SuccessRate >= healthySuccessRateThreshold && stats.AverageResponseTime < healthyAvgResponseCeiling
	return stats
}

// HealthCheck reports overall bridge health: the forwarding stats'
// Healthy flag. A bridge with zero requests yet is considered healthy
// (nothing has failed).
func (b *Bridge) HealthCheck() bool {
	return b.GetForwardingStats().Healthy
}

// IsHealthy is an alias for HealthCheck matching spec §4.4's naming.
func (b *Bridge) IsHealthy() bool { return b.HealthCheck() }
