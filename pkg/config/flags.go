package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// GatewayFlags is the common CLI surface shared by all three binaries
// (spec §6): a bind address, optional explicit TLS material (overriding
// auto-discovery), and a workspace root.
type GatewayFlags struct {
	HTTPAddr     string
	TLSCertFile  string
	TLSKeyFile   string
	WorkspaceDir string
}

// ParseGatewayFlags defines and parses the standard flag set against args
// (pass os.Args[1:]).
func ParseGatewayFlags(fs *flag.FlagSet, args []string) (GatewayFlags, error) {
	var f GatewayFlags
	fs.StringVar(&f.HTTPAddr, "http", "", "address to bind the HTTP/SSE listener (host:port)")
	fs.StringVar(&f.TLSCertFile, "tls-cert", "", "TLS certificate file (overrides auto-discovery)")
	fs.StringVar(&f.TLSKeyFile, "tls-key", "", "TLS key file (overrides auto-discovery)")
	fs.StringVar(&f.WorkspaceDir, "workspace", "", "workspace root (defaults to $WORKSPACE_DIR or cwd)")

	if err := fs.Parse(args); err != nil {
		return GatewayFlags{}, err
	}

	if f.WorkspaceDir == "" {
		f.WorkspaceDir = os.Getenv("WORKSPACE_DIR")
	}
	if f.WorkspaceDir == "" {
		f.WorkspaceDir, _ = os.Getwd()
	}
	return f, nil
}

// ShutdownTimeout reads KODEGEN_SHUTDOWN_TIMEOUT_SECS, defaulting to 30s
// (matching the supervisor's own graceful-shutdown wait).
func ShutdownTimeout() time.Duration {
	return durationSecsEnv("KODEGEN_SHUTDOWN_TIMEOUT_SECS", 30*time.Second)
}

// HTTPTimeout reads KODEGEN_HTTP_TIMEOUT_SECS, defaulting to 30s
// (matching McpBridge's default forwarding timeout).
func HTTPTimeout() time.Duration {
	return durationSecsEnv("KODEGEN_HTTP_TIMEOUT_SECS", 30*time.Second)
}

func durationSecsEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}
