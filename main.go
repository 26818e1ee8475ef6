package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ecoledger/carbon-engine/cmd"
	"github.com/ecoledger/carbon-engine/internal/buildinfo"
	"github.com/ecoledger/carbon-engine/internal/config"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=...".
var (
	version   string
	buildDate string
)

func main() {
	ctx := config.NewContext(buildinfo.NewContext(version, buildDate))

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.RootCommand(ctx).ExecuteContext(sigCtx)
	stop()

	if closeErr := ctx.Close(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", closeErr)
	}
	if err != nil {
		os.Exit(1)
	}
}
