// Command kodegen-category runs a single category's MCP-over-SSE server
// (spec §4.2): one Tool Router instance, one SessionManager, one McpBridge,
// hosted over HTTP or HTTPS depending on what TLS material is available.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kodegen/mcp-gateway/internal/catalog"
	"github.com/kodegen/mcp-gateway/internal/category"
	"github.com/kodegen/mcp-gateway/internal/cliutil"
	"github.com/kodegen/mcp-gateway/internal/configstore"
	"github.com/kodegen/mcp-gateway/internal/tlsdiscovery"
	"github.com/kodegen/mcp-gateway/internal/toolrouter"
	"github.com/kodegen/mcp-gateway/internal/usage"
	"github.com/kodegen/mcp-gateway/pkg/config"
)

func main() {
	config.LoadEnv()

	fs := flag.NewFlagSet("kodegen-category", flag.ExitOnError)
	categoryName := fs.String("category", "", "category to host (required, e.g. \"filesystem\")")
	listCategories := fs.Bool("list-categories", false, "print every built-in category and exit")
	listTools := fs.Bool("list-tools", false, "print the tools this category hosts and exit")

	flags, err := config.ParseGatewayFlags(fs, os.Args[1:])
	if err != nil {
		log.Fatalf("[kodegen-category] flags: %v", err)
	}

	if *listCategories {
		for _, c := range catalog.BuiltinCategories {
			fmt.Println(c)
		}
		return
	}

	if *categoryName == "" {
		log.Fatal("[kodegen-category] --category is required")
	}
	if _, ok := catalog.Port(*categoryName); !ok {
		log.Fatalf("[kodegen-category] unknown category %q", *categoryName)
	}

	tools, err := catalog.ToolsForCategory(*categoryName, flags.WorkspaceDir)
	if err != nil {
		log.Fatalf("[kodegen-category] %v", err)
	}

	if *listTools {
		for _, t := range tools {
			fmt.Printf("%s\t%s\n", t.Name(), t.Description())
		}
		return
	}

	router := toolrouter.New()
	for _, t := range tools {
		router.Register(t)
	}
	if err := router.InitAll(context.Background()); err != nil {
		log.Fatalf("[kodegen-category] init tools: %v", err)
	}
	defer router.CloseAll()

	addr := flags.HTTPAddr
	if addr == "" {
		port, _ := catalog.Port(*categoryName)
		addr = fmt.Sprintf("127.0.0.1:%d", port)
	}

	certFile, keyFile := flags.TLSCertFile, flags.TLSKeyFile
	if certFile == "" || keyFile == "" {
		discovered := tlsdiscovery.Discover()
		if discovered.Found() {
			certFile, keyFile = discovered.CertPath, discovered.KeyPath
		}
	}

	cfg := category.DefaultConfig(category.ServerInfo{Name: "kodegen-" + *categoryName, Version: "0.1.0"})
	configPath := ""
	if flags.WorkspaceDir != "" {
		configPath = flags.WorkspaceDir + "/.kodegen-category-clients.json"
	}
	srv := category.New(cfg, router, usage.New(), configstore.New(configPath))

	handle, err := srv.Serve(addr, certFile, keyFile)
	if err != nil {
		log.Fatalf("[kodegen-category] %v", err)
	}
	log.Printf("[kodegen-category] %q serving on %s (tls=%v)", *categoryName, addr, certFile != "" && keyFile != "")

	cliutil.WaitForShutdown(handle)
}
