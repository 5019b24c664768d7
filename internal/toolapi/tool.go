// Package toolapi defines the L0 Tool contract: the black-box unit every
// category exposes to the Tool Router and, through it, to calling agents.
package toolapi

import (
	"context"
	"encoding/json"
)

// Tool is the unified interface every category implementation satisfies,
// whether a native built-in or an adapter bridging a subprocess capability.
type Tool interface {
	// Name is the identifier agents use in a tools/call request.
	Name() string

	// Description is a natural-language summary surfaced in tools/list.
	Description() string

	// InputSchema is a JSON Schema object describing Execute's args.
	InputSchema() json.RawMessage

	// Traits reports the annotation bits carried in tools/list responses.
	Traits() Traits

	// Execute runs the tool with JSON-encoded arguments.
	Execute(ctx context.Context, args json.RawMessage) (Result, error)

	// Init prepares any resources the tool needs (subprocess handles,
	// cached clients). Tools with no setup return nil.
	Init(ctx context.Context) error

	// Close releases resources acquired by Init.
	Close() error
}

// Traits are the four annotation bits spec.md assigns to every L0 Tool:
// read_only, destructive, idempotent, open_world.
type Traits struct {
	ReadOnly    bool `json:"read_only"`
	Destructive bool `json:"destructive"`
	Idempotent  bool `json:"idempotent"`
	OpenWorld   bool `json:"open_world"`
}

// Result is a tool execution outcome. Error is non-empty on a tool-level
// failure that should still be reported as a successful JSON-RPC call with
// an error payload, distinct from a transport-level JSON-RPC error.
type Result struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// SchemaParam describes one parameter for the BuildSchema helper.
type SchemaParam struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Enum        []string
}

// BuildSchema renders params as a JSON Schema object, matching the shape
// MCP clients and the category server's tools/list handler expect.
func BuildSchema(params ...SchemaParam) json.RawMessage {
	properties := make(map[string]any, len(params))
	var required []string

	for _, p := range params {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	data, _ := json.Marshal(schema)
	return data
}
