package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kodegen/mcp-gateway/internal/toolapi"
)

func newIntrospectionTools(string) []toolapi.Tool {
	return []toolapi.Tool{&getTimeTool{}}
}

type getTimeTool struct{}

func (t *getTimeTool) Name() string        { return "get_time" }
func (t *getTimeTool) Description() string { return "Return the current time, optionally in a given IANA timezone." }
func (t *getTimeTool) Traits() toolapi.Traits {
	return toolapi.Traits{ReadOnly: true, Idempotent: false}
}
func (t *getTimeTool) Init(context.Context) error { return nil }
func (t *getTimeTool) Close() error                { return nil }

func (t *getTimeTool) InputSchema() json.RawMessage {
	return toolapi.BuildSchema(
		toolapi.SchemaParam{Name: "timezone", Type: "string", Description: "IANA timezone name, e.g. America/New_York", Required: false},
	)
}

func (t *getTimeTool) Execute(_ context.Context, args json.RawMessage) (toolapi.Result, error) {
	var a struct {
		Timezone string `json:"timezone"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return toolapi.Result{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
		}
	}

	now := time.Now()
	if a.Timezone != "" {
		loc, err := time.LoadLocation(a.Timezone)
		if err != nil {
			return toolapi.Result{Error: fmt.Sprintf("invalid timezone %q: %v", a.Timezone, err)}, nil
		}
		now = now.In(loc)
	}

	return toolapi.Result{Output: now.Format("2006-01-02 15:04:05 MST (Monday)")}, nil
}
