// Command notion-mcp serves Notion workspace operations as MCP tools over
// stdio or HTTP+SSE.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "notion-mcp:", err)
		stop()
		os.Exit(1)
	}
}
