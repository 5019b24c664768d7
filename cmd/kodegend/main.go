// Command kodegend is the Category Supervisor daemon (spec §4.5): it
// spawns one subprocess per enabled category, sharing a single discovered
// TLS certificate across the fleet, and performs a staged shutdown
// (SIGTERM, then SIGKILL) when asked to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kodegen/mcp-gateway/internal/catalog"
	"github.com/kodegen/mcp-gateway/internal/cliutil"
	"github.com/kodegen/mcp-gateway/internal/serverhandle"
	"github.com/kodegen/mcp-gateway/internal/supervisor"
	"github.com/kodegen/mcp-gateway/pkg/config"
)

func main() {
	config.LoadEnv()

	fs := flag.NewFlagSet("kodegend", flag.ExitOnError)
	listCategories := fs.Bool("list-categories", false, "print every built-in category and exit")
	topologyPath := fs.String("topology", "", "YAML topology file overriding category enabled/port (defaults to <workspace>/kodegen-topology.yaml if present)")

	flags, err := config.ParseGatewayFlags(fs, os.Args[1:])
	if err != nil {
		log.Fatalf("[kodegend] flags: %v", err)
	}

	if *listCategories {
		for _, c := range catalog.BuiltinCategories {
			port, _ := catalog.Port(c)
			fmt.Printf("%s\t%d\n", c, port)
		}
		return
	}

	fleet := supervisor.NewFleet(flags.WorkspaceDir)

	topology := *topologyPath
	if topology == "" && flags.WorkspaceDir != "" {
		topology = flags.WorkspaceDir + "/kodegen-topology.yaml"
	}
	if topology != "" {
		if err := fleet.LoadTopologyFile(topology); err != nil {
			log.Fatalf("[kodegend] %v", err)
		}
	}

	if err := fleet.AddBuiltinCategories(); err != nil {
		log.Fatalf("[kodegend] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	spawned, errs := fleet.SpawnAll(ctx)
	for _, e := range errs {
		log.Printf("[kodegend] %v", e)
	}
	log.Printf("[kodegend] spawned %d/%d categories", spawned, len(catalog.BuiltinCategories))

	handle, shutdownCtx, signal := serverhandle.New()
	go func() {
		<-shutdownCtx.Done()
		cancel()
		fleet.ShutdownAll()
		signal.Complete()
	}()

	cliutil.WaitForShutdown(handle)
}
