// Package stdioproxy implements the Stdio Proxy (spec §4.6): the single
// process an agent's MCP client launches over stdio, which fans out to
// every category server over SSE, merges their tool sets behind one
// routing table, and forwards tools/call to whichever upstream category
// hosts the requested tool.
package stdioproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	sdk_client "github.com/mark3labs/mcp-go/client"
	sdk_mcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/kodegen/mcp-gateway/internal/backoff"
	"github.com/kodegen/mcp-gateway/internal/catalog"
	"github.com/kodegen/mcp-gateway/internal/usage"
)

// upstream is one connected category server.
type upstream struct {
	category string
	client   sdk_client.MCPClient
}

// Proxy owns every upstream connection and the merged routing table.
type Proxy struct {
	mu        sync.RWMutex
	upstreams map[string]*upstream
	routes    catalog.RoutingTable
	tracker   *usage.Tracker
}

// New creates an empty Proxy; call ConnectAll before Serve.
func New() *Proxy {
	return &Proxy{
		upstreams: make(map[string]*upstream),
		routes:    make(catalog.RoutingTable),
		tracker:   usage.New(),
	}
}

// ConnectAllConfig parameterizes the parallel connect fan-out.
type ConnectAllConfig struct {
	Categories []string
	Retry      backoff.Config
}

// ConnectAll connects to every listed category's SSE endpoint in parallel,
// tolerating partial failure: a category that never connects is logged and
// skipped (spec §4.6 "partial-failure tolerance"), but if none connect at
// all ConnectAll returns an error — a proxy with zero upstreams can serve
// no tools and should not start.
func (p *Proxy) ConnectAll(ctx context.Context, cfg ConnectAllConfig) error {
	type result struct {
		category string
		client   sdk_client.MCPClient
		err      error
	}
	results := make([]result, len(cfg.Categories))

	g, gctx := errgroup.WithContext(ctx)
	for i, category := range cfg.Categories {
		i, category := i, category
		g.Go(func() error {
			client, err := connectWithRetry(gctx, category, cfg.Retry)
			results[i] = result{category: category, client: client, err: err}
			return nil // per-category errors never abort the group
		})
	}
	_ = g.Wait()

	connected := 0
	p.mu.Lock()
	for _, r := range results {
		if r.err != nil {
			log.Printf("[StdioProxy] category %q unavailable: %v", r.category, r.err)
			continue
		}
		p.upstreams[r.category] = &upstream{category: r.category, client: r.client}
		connected++
	}
	p.mu.Unlock()

	if connected == 0 {
		return fmt.Errorf("stdioproxy: zero categories connected out of %d", len(cfg.Categories))
	}

	if err := p.refreshRoutes(ctx); err != nil {
		return fmt.Errorf("stdioproxy: build routing table: %w", err)
	}
	log.Printf("[StdioProxy] connected %d/%d categories", connected, len(cfg.Categories))
	return nil
}

// connectWithRetry dials category's SSE endpoint with exponential backoff,
// using the mcp-go SSE client's usual connect/initialize handshake but
// targeting a fixed local port from catalog.Port rather than a config file
// URL.
func connectWithRetry(ctx context.Context, category string, cfg backoff.Config) (sdk_client.MCPClient, error) {
	port, ok := catalog.Port(category)
	if !ok {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	url := fmt.Sprintf("http://127.0.0.1:%d/sse", port)

	var client sdk_client.MCPClient
	err := backoff.Retry(ctx, cfg, func(attemptCtx context.Context) error {
		cli, err := sdk_client.NewSSEMCPClient(url)
		if err != nil {
			return err
		}
		if err := cli.Start(attemptCtx); err != nil {
			return err
		}
		_, err = cli.Initialize(attemptCtx, sdk_mcp.InitializeRequest{
			Params: sdk_mcp.InitializeParams{
				ProtocolVersion: sdk_mcp.LATEST_PROTOCOL_VERSION,
				ClientInfo:      sdk_mcp.Implementation{Name: "kodegen-stdio-proxy", Version: "0.1.0"},
			},
		})
		if err != nil {
			_ = cli.Close()
			return err
		}
		client = cli
		return nil
	})
	return client, err
}

// refreshRoutes lists tools from every connected upstream and rebuilds the
// merged routing table, failing on a cross-category name collision (spec
// §3: tool names are unique across the whole system, not just per
// category).
func (p *Proxy) refreshRoutes(ctx context.Context) error {
	p.mu.RLock()
	snapshot := make(map[string]*upstream, len(p.upstreams))
	for k, v := range p.upstreams {
		snapshot[k] = v
	}
	p.mu.RUnlock()

	routes := make(catalog.RoutingTable)
	for category, up := range snapshot {
		result, err := up.client.ListTools(ctx, sdk_mcp.ListToolsRequest{})
		if err != nil {
			return fmt.Errorf("list tools for %q: %w", category, err)
		}
		for _, t := range result.Tools {
			if existing, dup := routes[t.Name]; dup {
				return fmt.Errorf("tool %q claimed by both %q and %q", t.Name, existing, category)
			}
			routes[t.Name] = category
		}
	}

	p.mu.Lock()
	p.routes = routes
	p.mu.Unlock()
	return nil
}

// mergedTools lists every tool across every connected upstream.
func (p *Proxy) mergedTools(ctx context.Context) ([]sdk_mcp.Tool, error) {
	p.mu.RLock()
	snapshot := make([]*upstream, 0, len(p.upstreams))
	for _, v := range p.upstreams {
		snapshot = append(snapshot, v)
	}
	p.mu.RUnlock()

	var all []sdk_mcp.Tool
	for _, up := range snapshot {
		result, err := up.client.ListTools(ctx, sdk_mcp.ListToolsRequest{})
		if err != nil {
			log.Printf("[StdioProxy] list tools for %q: %v", up.category, err)
			continue
		}
		all = append(all, result.Tools...)
	}
	return all, nil
}

// callTool routes a tools/call to whichever upstream hosts name.
func (p *Proxy) callTool(ctx context.Context, name string, args map[string]any) (*sdk_mcp.CallToolResult, error) {
	p.mu.RLock()
	category, ok := p.routes[name]
	var up *upstream
	if ok {
		up = p.upstreams[category]
	}
	p.mu.RUnlock()

	if !ok || up == nil {
		p.tracker.TrackFailure(name)
		return nil, fmt.Errorf("stdioproxy: unknown tool %q", name)
	}

	req := sdk_mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := up.client.CallTool(ctx, req)
	if err != nil {
		p.tracker.TrackFailure(name)
		return nil, err
	}
	p.tracker.TrackSuccess(name)
	return result, nil
}

// Serve hosts the merged tool set over stdio using the mcp-go SDK's
// stdio server, blocking until the transport closes.
func (p *Proxy) Serve(ctx context.Context, name, version string) error {
	mcpSrv := mcpserver.NewMCPServer(name, version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	tools, err := p.mergedTools(ctx)
	if err != nil {
		return fmt.Errorf("stdioproxy: initial tool listing: %w", err)
	}
	for _, t := range tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		sdkTool := sdk_mcp.NewToolWithRawSchema(t.Name, t.Description, schema)
		mcpSrv.AddTool(sdkTool, p.handleCall)
	}

	stdio := mcpserver.NewStdioServer(mcpSrv)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func (p *Proxy) handleCall(ctx context.Context, request sdk_mcp.CallToolRequest) (*sdk_mcp.CallToolResult, error) {
	args := request.GetArguments()
	if args == nil {
		args = map[string]any{}
	}
	result, err := p.callTool(ctx, request.Params.Name, args)
	if err != nil {
		return &sdk_mcp.CallToolResult{
			Content: []sdk_mcp.Content{sdk_mcp.NewTextContent(err.Error())},
			IsError: true,
		}, nil
	}
	return result, nil
}

// Close disconnects every upstream. Safe to call once after Serve returns.
func (p *Proxy) Close() {
	p.mu.Lock()
	ups := make([]*upstream, 0, len(p.upstreams))
	for _, up := range p.upstreams {
		ups = append(ups, up)
	}
	p.upstreams = make(map[string]*upstream)
	p.mu.Unlock()

	for _, up := range ups {
		if err := up.client.Close(); err != nil {
			log.Printf("[StdioProxy] close %q: %v", up.category, err)
		}
	}
}
