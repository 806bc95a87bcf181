// Package main provides the card bot HTTP server entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/garyellow/cardbot/internal/app"
	"github.com/garyellow/cardbot/internal/config"
)

const initTimeout = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	application, err := app.Initialize(ctx, cfg)
	cancel()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Server stopped with error: %v\n", err)
		os.Exit(1)
	}
}
