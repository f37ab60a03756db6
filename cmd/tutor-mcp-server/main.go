package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/codex-k8s/tutor-mcp/internal/app"
	"github.com/codex-k8s/tutor-mcp/internal/config"
	"github.com/codex-k8s/tutor-mcp/internal/constants"
	"github.com/codex-k8s/tutor-mcp/internal/log"
)

func main() {
	embeddedCatalog := flag.String("embedded-catalog", "", "Use embedded catalog from configs/ (filename)")
	transport := flag.String("transport", "", "Override catalog transport (stdio or http)")
	flag.Parse()

	cfg, err := config.LoadServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(cfg.LogLevel, os.Stderr)

	cat, err := app.LoadCatalog(cfg.CatalogPath, *embeddedCatalog)
	if err != nil {
		logger.Error("load catalog failed", "error", err)
		os.Exit(1)
	}
	switch *transport {
	case "":
	case constants.TransportStdio, constants.TransportHTTP:
		cat.Server.Transport = *transport
	default:
		logger.Error("unsupported transport", "transport", *transport)
		os.Exit(1)
	}

	server, err := app.NewServer(app.ServerOptions{Env: cfg, Catalog: cat, Logger: logger})
	if err != nil {
		logger.Error("build server failed", "error", err)
		os.Exit(1)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	go func() {
		sig := <-sigCh
		logger.Warn("shutdown requested", "signal", sig.String())
		cancel()
	}()

	if err := server.Serve(baseCtx); err != nil && baseCtx.Err() == nil {
		logger.Error("runtime error", "error", err)
		os.Exit(1)
	}
}
