package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kodegen/mcp-gateway/internal/toolapi"
)

const gitTimeout = 10 * time.Second

var allowedGitCommands = map[string]bool{
	"status": true, "diff": true, "log": true,
	"branch": true, "stash": true, "show": true,
}

// dangerousGitArgs are git-level write/escape parameters. Shell
// metacharacters aren't listed: exec.Command never invokes a shell, so
// they reach git as literal argv entries and carry no injection risk.
var dangerousGitArgs = []string{
	"--exec",
	"--upload-pack",
	"--receive-pack",
	"--output",
	"--output-directory",
	"--no-index",
	"--work-tree",
	"--git-dir",
}

func newGitTools(workspaceDir string) []toolapi.Tool {
	return []toolapi.Tool{&gitInfoTool{workspaceDir: workspaceDir}}
}

type gitInfoTool struct{ workspaceDir string }

func (t *gitInfoTool) Name() string        { return "git_info" }
func (t *gitInfoTool) Description() string { return "Read-only git queries (status/diff/log/branch/stash/show)." }
func (t *gitInfoTool) Traits() toolapi.Traits {
	return toolapi.Traits{ReadOnly: true, Idempotent: true}
}
func (t *gitInfoTool) Init(context.Context) error { return nil }
func (t *gitInfoTool) Close() error                { return nil }

func (t *gitInfoTool) InputSchema() json.RawMessage {
	return toolapi.BuildSchema(
		toolapi.SchemaParam{Name: "command", Type: "string", Description: "git subcommand", Required: true,
			Enum: []string{"status", "diff", "log", "branch", "stash", "show"}},
		toolapi.SchemaParam{Name: "path", Type: "string", Description: "optional: restrict to a path", Required: false},
		toolapi.SchemaParam{Name: "args", Type: "string", Description: "optional: extra args, whitespace separated", Required: false},
	)
}

func isDangerousGitArg(token string) bool {
	lower := strings.ToLower(token)
	if strings.HasPrefix(lower, "-c") && !strings.HasPrefix(lower, "--") {
		return true
	}
	for _, bad := range dangerousGitArgs {
		if lower == bad || strings.HasPrefix(lower, bad+"=") {
			return true
		}
	}
	return false
}

func splitGitArgs(args string) []string {
	trimmed := strings.TrimSpace(args)
	if trimmed == "" {
		return nil
	}
	return strings.Fields(trimmed)
}

func (t *gitInfoTool) Execute(ctx context.Context, args json.RawMessage) (toolapi.Result, error) {
	var a struct {
		Command string `json:"command"`
		Path    string `json:"path"`
		Args    string `json:"args"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return toolapi.Result{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}

	if !allowedGitCommands[a.Command] {
		return toolapi.Result{Error: fmt.Sprintf("unsupported command %q; allowed: status/diff/log/branch/stash/show", a.Command)}, nil
	}

	userArgs := splitGitArgs(a.Args)
	for _, token := range userArgs {
		if isDangerousGitArg(token) {
			return toolapi.Result{Error: fmt.Sprintf("blocked: argument %q is not allowed", token)}, nil
		}
	}

	var cmdArgs []string
	path := strings.TrimSpace(a.Path)

	switch a.Command {
	case "status":
		if len(userArgs) > 0 {
			cmdArgs = append([]string{"status"}, userArgs...)
		} else {
			cmdArgs = []string{"status", "--short"}
		}
		if path != "" {
			cmdArgs = append(cmdArgs, "--", path)
		}
	case "diff":
		if len(userArgs) > 0 {
			cmdArgs = append([]string{"diff"}, userArgs...)
		} else {
			cmdArgs = []string{"diff", "--stat"}
		}
		if path != "" {
			cmdArgs = append(cmdArgs, "--", path)
		}
	case "log":
		if len(userArgs) > 0 {
			cmdArgs = append([]string{"log"}, userArgs...)
		} else {
			cmdArgs = []string{"log", "--oneline", "-20"}
		}
		if path != "" {
			cmdArgs = append(cmdArgs, "--", path)
		}
	case "branch":
		if len(userArgs) > 0 {
			cmdArgs = append([]string{"branch"}, userArgs...)
		} else {
			cmdArgs = []string{"branch", "-a"}
		}
		if path != "" {
			log.Printf("[git_info] branch does not take a path filter; ignored")
		}
	case "stash":
		if len(userArgs) > 0 {
			log.Printf("[git_info] stash ignores args=%v, always runs 'stash list'", userArgs)
		}
		cmdArgs = []string{"stash", "list"}
	case "show":
		if path != "" {
			log.Printf("[git_info] show does not take a path filter; pass args=\"<commit>:<path>\" instead")
		}
		cmdArgs = append([]string{"show"}, userArgs...)
	}

	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", cmdArgs...)
	cmd.Dir = t.workspaceDir
	cmd.Env = filterEnv(os.Environ())

	output, err := cmd.CombinedOutput()
	outStr := safeRuneTruncate(strings.TrimSpace(string(output)), maxOutputChars)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return toolapi.Result{Error: fmt.Sprintf("git command timed out (%v): %s", gitTimeout, outStr)}, nil
		}
		return toolapi.Result{Output: outStr, Error: fmt.Sprintf("git command error: %v", err)}, nil
	}
	return toolapi.Result{Output: outStr}, nil
}
