package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codex-k8s/tutor-mcp/internal/app"
	"github.com/codex-k8s/tutor-mcp/internal/config"
	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
	"github.com/codex-k8s/tutor-mcp/internal/llm"
	"github.com/codex-k8s/tutor-mcp/internal/log"
	"github.com/codex-k8s/tutor-mcp/internal/orchestrator"
	"github.com/codex-k8s/tutor-mcp/internal/shell"
	"github.com/codex-k8s/tutor-mcp/internal/transport"
)

const version = "1.0.0"

func main() {
	check := flag.Bool("check", false, "Connect, list the server's tools and exit")
	inProcess := flag.Bool("in-process", false, "Run the tool server inside this process")
	embeddedCatalog := flag.String("embedded-catalog", "", "Embedded catalog for -in-process (filename)")
	flag.Parse()

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := log.New(cfg.LogLevel, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, logger, *check, *inProcess, *embeddedCatalog))
}

func run(ctx context.Context, cfg config.Client, logger *slog.Logger, check, inProcess bool, embeddedCatalog string) int {
	model, err := llm.NewOpenAIClient(llm.OpenAIOptions{
		APIKey:  cfg.Model.APIKey,
		BaseURL: cfg.Model.BaseURL,
		Model:   cfg.Model.Name,
		Timeout: cfg.CallTimeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	var clientTransport mcp.Transport
	if inProcess {
		server, err := embeddedServer(embeddedCatalog, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		defer server.Close()
		clientTransport, err = server.InProcess(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	} else {
		clientTransport, err = transport.CommandTransport(cfg.ServerCommand)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
	client, err := transport.Connect(connectCtx, clientTransport, transport.Options{Name: "tutor-chat", Version: version, Logger: logger})
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot reach tool server: %v\n", err)
		return 1
	}
	defer client.Close()

	orch := orchestrator.New(model, client, orchestrator.Options{
		MaxRounds:      cfg.MaxRounds,
		CallTimeout:    cfg.CallTimeout,
		SessionTimeout: cfg.SessionTimeout,
		CallRetries:    cfg.CallRetries,
		Temperature:    0.7,
		Logger:         logger,
	})
	tools, err := orch.Discover(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: tool discovery failed: %v\n", err)
		return 1
	}

	if check {
		fmt.Printf("Connected. %d tools available:\n", len(tools))
		for _, t := range tools {
			fmt.Printf("  • %s: %s\n", t.Name, t.Description)
		}
		return 0
	}

	sh := shell.New(orch, shell.Options{
		In:      os.Stdin,
		Out:     os.Stdout,
		Version: version,
		Banner:  true,
		Color:   true,
		Done:    client.Done(),
		Logger:  logger,
	})
	if err := sh.Run(ctx); err != nil {
		if errorsx.Is(err, errorsx.KindConnectionLost) {
			return 1
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func embeddedServer(catalogName string, logger *slog.Logger) (*app.Server, error) {
	env, err := config.LoadServer()
	if err != nil {
		return nil, err
	}
	cat, err := app.LoadCatalog(env.CatalogPath, catalogName)
	if err != nil {
		return nil, err
	}
	return app.NewServer(app.ServerOptions{Env: env, Catalog: cat, Logger: logger})
}
