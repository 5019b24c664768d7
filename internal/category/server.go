// Package category implements the Category Server (spec §4.2): a single
// category's HTTP/SSE MCP endpoint, hosting a Tool Router and a shutdown
// handle behind GET /sse, POST /messages (+ /batch, /stream), GET /health
// and GET /metrics.
package category

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/kodegen/mcp-gateway/internal/bridge"
	"github.com/kodegen/mcp-gateway/internal/configstore"
	"github.com/kodegen/mcp-gateway/internal/serverhandle"
	"github.com/kodegen/mcp-gateway/internal/ssesession"
	"github.com/kodegen/mcp-gateway/internal/toolrouter"
	"github.com/kodegen/mcp-gateway/internal/usage"
)

// Config parameterizes one Server instance.
type Config struct {
	Info           ServerInfo
	MaxConnections int
	PingInterval   time.Duration
	SessionTimeout time.Duration
	CORSOrigins    []string
	BridgeConfig   bridge.Config
}

// DefaultConfig matches the original daemon's SseServerConfig defaults:
// max_connections 100, ping_interval 30s, session_timeout 300s,
// cors_origins ["*"].
func DefaultConfig(info ServerInfo) Config {
	return Config{
		Info:           info,
		MaxConnections: 100,
		PingInterval:   30 * time.Second,
		SessionTimeout: 300 * time.Second,
		CORSOrigins:    []string{"*"},
		BridgeConfig:   bridge.DefaultConfig(),
	}
}

// Server hosts one category's tools over MCP-over-SSE.
type Server struct {
	cfg      Config
	router   *toolrouter.Router
	sessions *ssesession.Manager
	bridge   *bridge.Bridge
	config   *configstore.Store
	tracker  *usage.Tracker
	addr     string
}

// New builds a Server around router, with its own SessionManager and
// McpBridge (forwarding in-process per the architectural note in
// internal/bridge).
func New(cfg Config, router *toolrouter.Router, tracker *usage.Tracker, configStore *configstore.Store) *Server {
	s := &Server{
		cfg:      cfg,
		router:   router,
		sessions: ssesession.NewManager(cfg.MaxConnections, cfg.SessionTimeout),
		config:   configStore,
		tracker:  tracker,
	}
	s.bridge = bridge.New(cfg.BridgeConfig, &routerDispatcher{router: router, tracker: tracker, info: cfg.Info})
	return s
}

// Serve binds addr (HTTP, or HTTPS if certFile/keyFile are non-empty),
// mounts every endpoint, and returns a ServerHandle without blocking the
// caller. Shutdown is driven entirely through the returned handle.
func (s *Server) Serve(addr, certFile, keyFile string) (*serverhandle.Handle, error) {
	s.addr = addr
	mux := http.NewServeMux()
	mux.HandleFunc("/sse", s.withCORS(s.handleSSE))
	mux.HandleFunc("/messages", s.withCORS(s.handleMessages))
	mux.HandleFunc("/messages/batch", s.withCORS(s.handleMessagesBatch))
	mux.HandleFunc("/messages/stream", s.withCORS(s.handleMessagesStream))
	mux.HandleFunc("/health", s.withCORS(s.handleHealth))
	mux.HandleFunc("/metrics", s.withCORS(s.handleMetrics))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("category: bind %s: %w", addr, err)
	}

	useTLS := certFile != "" && keyFile != ""

	handle, shutdownCtx, signal := serverhandle.New()
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	s.sessions.StartCleanupTask(cleanupCtx, s.cfg.PingInterval)

	serveErrCh := make(chan error, 1)
	go func() {
		var err error
		if useTLS {
			log.Printf("[Category] serving HTTPS on %s", addr)
			err = httpServer.ServeTLS(ln, certFile, keyFile)
		} else {
			log.Printf("[Category] serving HTTP on %s", addr)
			err = httpServer.Serve(ln)
		}
		if err != nil && err != http.ErrServerClosed {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	go func() {
		<-shutdownCtx.Done()
		cancelCleanup()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("[Category] graceful shutdown error: %v", err)
		}
		<-serveErrCh
		signal.Complete()
	}()

	return handle, nil
}

// withCORS wraps h with the CORS policy spec §4.2 mandates: GET/POST
// methods, content-type/authorization/accept headers, and origin handling
// where "*" in the configured list allows any origin, each other entry is
// echoed back only if it parses as a URL, and unparseable origins are
// silently dropped.
func (s *Server) withCORS(h http.HandlerFunc) http.HandlerFunc {
	allowAny := false
	allowed := make(map[string]bool)
	for _, origin := range s.cfg.CORSOrigins {
		if origin == "*" {
			allowAny = true
			continue
		}
		if _, err := url.Parse(origin); err == nil {
			allowed[origin] = true
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowAny {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
		w.Header().Set("Access-Control-Allow-Headers", "content-type, authorization, accept")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func clientInfoFromRequest(r *http.Request) ssesession.ClientInfo {
	return ssesession.ClientInfo{
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	}
}

func endpointURL(r *http.Request, sessionID string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	return fmt.Sprintf("%s://%s/messages?session_id=%s", scheme, host, sessionID)
}
