package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kodegen/mcp-gateway/internal/toolapi"
)

const (
	shellTimeout   = 30 * time.Second
	maxOutputChars = 8000
)

func newTerminalTools(workspaceDir string) []toolapi.Tool {
	return []toolapi.Tool{&shellExecTool{workspaceDir: workspaceDir}}
}

// dangerousPatterns is a best-effort blocklist, not a security boundary: it
// guards against accidental damage from agent-generated commands, not a
// determined attacker.
var dangerousPatterns = []string{
	"rm -rf /",
	"rm -r -f /",
	"rm --recursive",
	"rm -rf ~",
	"rm -rf $home",
	"rm -rf ${home}",
	"rm -rf -- /",
	"rm -r -f -- /",
	"mkfs",
	"dd if=",
	"shutdown",
	"reboot",
	"halt",
	"init 0",
	"init 6",
	"systemctl poweroff",
	"systemctl halt",
	"pkill -9",
	"chmod -r 000 /",
	":(){:|:&};:",
	"format c:",
	"format d:",
	"del /s /q c:\\",
	"del /s /q d:\\",
	"rd /s /q c:\\",
	"rd /s /q d:\\",
	"remove-item -recurse c:",
	"remove-item -recurse d:",
}

type shellExecTool struct{ workspaceDir string }

func (t *shellExecTool) Name() string        { return "shell_exec" }
func (t *shellExecTool) Description() string { return "Execute a shell command and return its output." }
func (t *shellExecTool) Traits() toolapi.Traits {
	return toolapi.Traits{Destructive: true, OpenWorld: true}
}
func (t *shellExecTool) Init(context.Context) error { return nil }
func (t *shellExecTool) Close() error                { return nil }

func (t *shellExecTool) InputSchema() json.RawMessage {
	return toolapi.BuildSchema(
		toolapi.SchemaParam{Name: "command", Type: "string", Description: "Command to execute", Required: true},
	)
}

func (t *shellExecTool) Execute(ctx context.Context, args json.RawMessage) (toolapi.Result, error) {
	var a struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return toolapi.Result{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}
	if strings.TrimSpace(a.Command) == "" {
		return toolapi.Result{Error: "command must not be empty"}, nil
	}

	cmdLower := strings.ToLower(a.Command)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(cmdLower, pattern) {
			return toolapi.Result{Error: fmt.Sprintf("blocked: command contains dangerous pattern %q", pattern)}, nil
		}
	}
	// "kill -9 1" needs a word-boundary guard: a naive substring match also
	// blocks "kill -9 12345" since "kill -9 1" is its prefix. Scan every
	// occurrence so a compound command doesn't hide a real hit past the first.
	const killInitPattern = "kill -9 1"
	for search := cmdLower; ; {
		idx := strings.Index(search, killInitPattern)
		if idx < 0 {
			break
		}
		end := idx + len(killInitPattern)
		if end >= len(search) || !isDigitOrAlpha(search[end]) {
			return toolapi.Result{Error: fmt.Sprintf("blocked: command contains dangerous pattern %q", killInitPattern)}, nil
		}
		search = search[idx+1:]
	}

	ctx, cancel := context.WithTimeout(ctx, shellTimeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/c", a.Command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", a.Command)
	}
	if t.workspaceDir != "" {
		cmd.Dir = t.workspaceDir
	}
	cmd.Env = filterEnv(os.Environ())

	output, err := cmd.CombinedOutput()
	outStr := safeRuneTruncate(strings.TrimSpace(string(output)), maxOutputChars)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return toolapi.Result{Error: fmt.Sprintf("command timed out (%v): %s", shellTimeout, outStr)}, nil
		}
		if ctx.Err() == context.Canceled {
			return toolapi.Result{Error: fmt.Sprintf("command canceled: %s", outStr)}, nil
		}
		return toolapi.Result{Output: outStr, Error: fmt.Sprintf("command exited with error: %v", err)}, nil
	}
	return toolapi.Result{Output: outStr}, nil
}

// safeRuneTruncate truncates s to maxRunes runes without splitting a
// multi-byte rune, appending a note with the true rune count when it does.
func safeRuneTruncate(s string, maxRunes int) string {
	count := 0
	for i := range s {
		count++
		if count > maxRunes {
			totalRunes := maxRunes + utf8.RuneCountInString(s[i:])
			return s[:i] + fmt.Sprintf("\n... (truncated, %d characters total)", totalRunes)
		}
	}
	return s
}

var sensitiveEnvSuffixes = []string{
	"_KEY", "_SECRET", "_TOKEN", "_PASSWORD", "_PASSWD",
	"_PASSPHRASE", "_CREDENTIALS", "_AUTH", "_DSN",
}

var sensitiveEnvPrefixes = []string{
	"DATABASE_URL", "REDIS_URL", "MONGO_URL",
}

// filterEnv returns a copy of env with sensitive variables removed, shared
// by every tool that shells out.
func filterEnv(env []string) []string {
	filtered := make([]string, 0, len(env))
	for _, e := range env {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) < 2 {
			continue
		}
		nameUpper := strings.ToUpper(parts[0])

		sensitive := false
		for _, suffix := range sensitiveEnvSuffixes {
			if strings.HasSuffix(nameUpper, suffix) {
				sensitive = true
				break
			}
		}
		if !sensitive {
			for _, prefix := range sensitiveEnvPrefixes {
				if strings.HasPrefix(nameUpper, prefix) {
					sensitive = true
					break
				}
			}
		}
		if !sensitive {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func isDigitOrAlpha(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z')
}
