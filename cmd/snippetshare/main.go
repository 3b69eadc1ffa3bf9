// Package main is the snippetshare binary: the API server and the
// management commands that operate on its database.
//
//	snippetshare                    same as "serve"
//	snippetshare serve              run the HTTP API
//	snippetshare migrate            create missing tables
//	snippetshare reset-db --yes     drop and recreate every table
//	snippetshare create-superuser   bootstrap an admin account
//	snippetshare set-active NAME    enable (or --disable) an account
//	snippetshare deploy [--reset]   migrate + superuser, for release scripts
//
// Configuration comes from the environment and an optional .env file (see
// internal/config).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sakif/snippetshare/internal/config"
	"github.com/sakif/snippetshare/internal/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// SIGINT/SIGTERM cancel ctx; "serve" treats that as the shutdown signal.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := NewRunner(RunnerOpts{Config: cfg, Logger: logger})
	if err := newApp(runner).Run(ctx, os.Args); err != nil {
		logger.Error("command failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}
