package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"just3sec/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// JUST3SEC_CONFIG points at an optional .json or .toml file
	app, cleanup, err := server.BuildApp(ctx, server.ConfigPath(os.Getenv("JUST3SEC_CONFIG")))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	err = server.Run(ctx, app)
	cleanup()
	if err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
