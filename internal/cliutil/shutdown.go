// Package cliutil holds the tiny bits of process-lifecycle glue shared by
// the three cmd/ binaries: a signal.Notify/Shutdown pattern generalized to
// ServerHandle so each binary's main wires the same few lines.
package cliutil

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kodegen/mcp-gateway/internal/serverhandle"
	"github.com/kodegen/mcp-gateway/pkg/config"
)

// WaitForShutdown blocks until SIGINT/SIGTERM, then cancels handle and
// waits (bounded by config.ShutdownTimeout) for its completion signal.
func WaitForShutdown(handle *serverhandle.Handle) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("[cliutil] received %s, shutting down", sig)

	handle.Cancel()
	if err := handle.WaitForCompletion(config.ShutdownTimeout()); err != nil {
		log.Printf("[cliutil] shutdown did not complete cleanly: %v", err)
	}
}
