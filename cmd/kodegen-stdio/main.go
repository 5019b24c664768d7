// Command kodegen-stdio is the Stdio Proxy (spec §4.6): the single process
// an agent's MCP client launches directly, fanning out to every running
// category server over SSE and exposing their merged tool set over stdio.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kodegen/mcp-gateway/internal/backoff"
	"github.com/kodegen/mcp-gateway/internal/catalog"
	"github.com/kodegen/mcp-gateway/internal/stdioproxy"
	"github.com/kodegen/mcp-gateway/pkg/config"
)

func main() {
	config.LoadEnv()

	fs := flag.NewFlagSet("kodegen-stdio", flag.ExitOnError)
	listCategories := fs.Bool("list-categories", false, "print every built-in category and exit")

	if _, err := config.ParseGatewayFlags(fs, os.Args[1:]); err != nil {
		log.Fatalf("[kodegen-stdio] flags: %v", err)
	}

	if *listCategories {
		for _, c := range catalog.BuiltinCategories {
			fmt.Println(c)
		}
		return
	}

	proxy := stdioproxy.New()
	ctx := context.Background()

	connectCfg := stdioproxy.ConnectAllConfig{
		Categories: catalog.BuiltinCategories,
		Retry:      backoff.New(5, 200*time.Millisecond, config.HTTPTimeout()),
	}
	if err := proxy.ConnectAll(ctx, connectCfg); err != nil {
		log.Fatalf("[kodegen-stdio] %v", err)
	}
	defer proxy.Close()

	if err := proxy.Serve(ctx, "kodegen-stdio-proxy", "0.1.0"); err != nil {
		log.Fatalf("[kodegen-stdio] %v", err)
	}
}
