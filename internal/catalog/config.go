package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kodegen/mcp-gateway/internal/toolapi"
)

func newConfigTools(workspaceDir string) []toolapi.Tool {
	return []toolapi.Tool{&configGetTool{workspaceDir: workspaceDir}}
}

// configGetTool reads a single key out of the workspace's kodegen.yaml
// settings file, the same file format internal/supervisor uses for its
// category topology.
type configGetTool struct{ workspaceDir string }

func (t *configGetTool) Name() string        { return "config_get" }
func (t *configGetTool) Description() string { return "Read a key from the workspace's kodegen.yaml configuration file." }
func (t *configGetTool) Traits() toolapi.Traits {
	return toolapi.Traits{ReadOnly: true, Idempotent: true}
}
func (t *configGetTool) Init(context.Context) error { return nil }
func (t *configGetTool) Close() error                { return nil }

func (t *configGetTool) InputSchema() json.RawMessage {
	return toolapi.BuildSchema(
		toolapi.SchemaParam{Name: "key", Type: "string", Description: "Top-level key to read", Required: true},
	)
}

func (t *configGetTool) Execute(_ context.Context, args json.RawMessage) (toolapi.Result, error) {
	var a struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return toolapi.Result{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}
	if a.Key == "" {
		return toolapi.Result{Error: "key must not be empty"}, nil
	}

	path := filepath.Join(t.workspaceDir, "kodegen.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return toolapi.Result{Error: "no kodegen.yaml in workspace"}, nil
		}
		return toolapi.Result{Error: fmt.Sprintf("read failed: %v", err)}, nil
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return toolapi.Result{Error: fmt.Sprintf("kodegen.yaml is not valid YAML: %v", err)}, nil
	}

	val, ok := doc[a.Key]
	if !ok {
		return toolapi.Result{Error: fmt.Sprintf("key %q not found", a.Key)}, nil
	}
	out, _ := yaml.Marshal(val)
	return toolapi.Result{Output: string(out)}, nil
}
