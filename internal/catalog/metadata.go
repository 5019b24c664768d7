package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/kodegen/mcp-gateway/internal/toolapi"
)

// ToolMetadata is the static, compile-time-derivable description of one
// tool (spec §3). It never mutates after BuildMetadata runs.
type ToolMetadata struct {
	Name        string
	Category    string
	Description string
	Schema      json.RawMessage
	Traits      toolapi.Traits
}

// RoutingTable maps a tool name to the category that hosts it, built once
// at proxy/catalog startup and read-only thereafter. Every name in the
// static metadata set appears exactly once (spec §3 invariant).
type RoutingTable map[string]string

// builder pairs a category with the constructor for its tool set. A nil
// workspaceDir means "use the process working directory"; category
// binaries each pass their own root.
type builder func(workspaceDir string) []toolapi.Tool

var builders = map[string]builder{
	CategoryFilesystem:    newFilesystemTools,
	CategoryTerminal:      newTerminalTools,
	CategoryGit:           newGitTools,
	CategoryCitescrape:    newCitescrapeTools,
	CategoryIntrospection: newIntrospectionTools,
	CategoryConfig:        newConfigTools,
}

// BuildMetadata instantiates every category's tool set once and derives
// the static ToolMetadata table plus RoutingTable, failing loudly on a
// duplicate tool name (spec §3: names are unique across the system).
func BuildMetadata(workspaceDir string) ([]ToolMetadata, RoutingTable, error) {
	var all []ToolMetadata
	routes := make(RoutingTable)

	for _, category := range BuiltinCategories {
		build, ok := builders[category]
		if !ok {
			// Categories with no in-tree tool set yet (e.g. database,
			// github) still occupy a port and a supervisor slot; they
			// simply contribute no static metadata until implemented.
			continue
		}
		for _, t := range build(workspaceDir) {
			if _, dup := routes[t.Name()]; dup {
				return nil, nil, fmt.Errorf("catalog: duplicate tool name %q in category %q", t.Name(), category)
			}
			routes[t.Name()] = category
			all = append(all, ToolMetadata{
				Name:        t.Name(),
				Category:    category,
				Description: t.Description(),
				Schema:      t.InputSchema(),
				Traits:      t.Traits(),
			})
		}
	}
	return all, routes, nil
}

// ToolsForCategory instantiates the tool set for a single category, for
// use by the category server binary that only mounts one category.
func ToolsForCategory(category, workspaceDir string) ([]toolapi.Tool, error) {
	build, ok := builders[category]
	if !ok {
		if _, known := Port(category); !known {
			return nil, fmt.Errorf("catalog: unknown category %q", category)
		}
		return nil, nil
	}
	return build(workspaceDir), nil
}
