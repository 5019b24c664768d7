package category

import (
	"context"
	"encoding/json"

	"github.com/kodegen/mcp-gateway/internal/jsonrpc"
	"github.com/kodegen/mcp-gateway/internal/toolrouter"
	"github.com/kodegen/mcp-gateway/internal/usage"
)

// routerDispatcher adapts a toolrouter.Router to bridge.Dispatcher,
// answering the MCP methods a single category server supports:
// initialize, tools/list, tools/call. This category server hosts no
// prompts: prompts/list reports an empty set and prompts/get reports
// method-not-found.
type routerDispatcher struct {
	router  *toolrouter.Router
	tracker *usage.Tracker
	info    ServerInfo
}

// ServerInfo is the static identity returned from an MCP initialize call.
type ServerInfo struct {
	Name    string
	Version string
}

func (d *routerDispatcher) Dispatch(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, *jsonrpc.Error) {
	switch method {
	case "initialize":
		return d.initialize()
	case "tools/list":
		return d.toolsList()
	case "tools/call":
		return d.toolsCall(ctx, params)
	case "prompts/list":
		return json.RawMessage(`{"prompts":[]}`), nil
	case "prompts/get":
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound, Message: "no prompts are hosted by this category"}
	default:
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound, Message: "unknown method " + method}
	}
}

func (d *routerDispatcher) initialize() (json.RawMessage, *jsonrpc.Error) {
	result := map[string]any{
		"serverInfo": map[string]string{
			"name":    d.info.Name,
			"version": d.info.Version,
		},
		"capabilities": map[string]any{
			"tools":   map[string]any{},
			"prompts": map[string]any{},
		},
	}
	data, _ := json.Marshal(result)
	return data, nil
}

func (d *routerDispatcher) toolsList() (json.RawMessage, *jsonrpc.Error) {
	result := map[string]any{"tools": d.router.ListDescriptors()}
	data, _ := json.Marshal(result)
	return data, nil
}

func (d *routerDispatcher) toolsCall(ctx context.Context, params json.RawMessage) (json.RawMessage, *jsonrpc.Error) {
	var callParams toolrouter.CallParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &callParams); err != nil {
			return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "malformed tools/call params: " + err.Error()}
		}
	}

	res, rpcErr := d.router.Call(ctx, callParams)
	if rpcErr != nil {
		if d.tracker != nil {
			d.tracker.TrackFailure(callParams.Name)
		}
		return nil, rpcErr
	}
	if d.tracker != nil {
		d.tracker.TrackSuccess(callParams.Name)
	}

	data, _ := json.Marshal(map[string]any{
		"content": []map[string]string{{"type": "text", "text": res.Output}},
		"isError": res.Error != "",
	})
	return data, nil
}
