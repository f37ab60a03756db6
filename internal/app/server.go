package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codex-k8s/tutor-mcp/configs"
	"github.com/codex-k8s/tutor-mcp/internal/audit"
	"github.com/codex-k8s/tutor-mcp/internal/catalog"
	"github.com/codex-k8s/tutor-mcp/internal/config"
	"github.com/codex-k8s/tutor-mcp/internal/constants"
	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
	"github.com/codex-k8s/tutor-mcp/internal/idempotency"
	"github.com/codex-k8s/tutor-mcp/internal/limits"
	"github.com/codex-k8s/tutor-mcp/internal/llm"
	"github.com/codex-k8s/tutor-mcp/internal/metrics"
	"github.com/codex-k8s/tutor-mcp/internal/news"
	"github.com/codex-k8s/tutor-mcp/internal/registry"
	"github.com/codex-k8s/tutor-mcp/internal/runtime"
	"github.com/codex-k8s/tutor-mcp/internal/templates"
	"github.com/codex-k8s/tutor-mcp/internal/tools"
	"github.com/codex-k8s/tutor-mcp/internal/transport"
)

// LoadCatalog reads the catalog from path, or the named embedded catalog when path is empty.
func LoadCatalog(path, embedded string) (*catalog.Config, error) {
	var (
		cfg *catalog.Config
		err error
	)
	if path != "" && embedded == "" {
		cfg, err = catalog.LoadFile(path)
	} else {
		var raw []byte
		raw, err = configs.Load(embedded)
		if err == nil {
			if embedded == "" {
				embedded = configs.DefaultCatalog
			}
			cfg, err = catalog.Load(embedded, raw)
		}
	}
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("load catalog: %w", err), errorsx.KindConfiguration)
	}
	return cfg, nil
}

// ServerOptions assembles a tool server.
type ServerOptions struct {
	// Env is the environment configuration.
	Env config.Server
	// Catalog declares the exposed tools.
	Catalog *catalog.Config
	// Logger is used by every component.
	Logger *slog.Logger
	// Model replaces the OpenAI client built from Env.
	Model llm.Model
	// News replaces the NewsAPI client built from Env.
	News news.Searcher
}

// Server is an assembled tool server ready to serve one transport.
type Server struct {
	MCP       *mcp.Server
	Catalog   *catalog.Config
	Registry  *registry.Registry
	Metrics   *metrics.Metrics
	Lifecycle *runtime.Lifecycle

	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// NewServer wires capabilities, handlers, registry and runtime into an MCP server.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Catalog == nil {
		return nil, errorsx.New(errorsx.KindConfiguration, "catalog is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cat := opts.Catalog

	model := opts.Model
	if model == nil {
		client, err := llm.NewOpenAIClient(llm.OpenAIOptions{
			APIKey:     opts.Env.Model.APIKey,
			BaseURL:    opts.Env.Model.BaseURL,
			Model:      opts.Env.Model.Name,
			Timeout:    opts.Env.ModelTimeout,
			RetryCount: 2,
		})
		if err != nil {
			return nil, err
		}
		model = client
	}
	searcher := opts.News
	if searcher == nil {
		if opts.Env.NewsAPIKey == "" {
			logger.Warn("NEWSAPI_KEY is not set, generate_news_newsletter will report a missing credential")
		}
		searcher = news.NewClient(news.Options{
			APIKey:        opts.Env.NewsAPIKey,
			BaseURL:       opts.Env.NewsBaseURL,
			Timeout:       opts.Env.NewsTimeout,
			RatePerMinute: opts.Env.NewsRatePerMinute,
		})
	}

	prompts, err := templates.Load()
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("load templates: %w", err), errorsx.KindConfiguration)
	}
	built, err := tools.Build(cat, tools.Deps{Model: model, News: searcher, Prompts: prompts})
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.KindConfiguration)
	}
	reg := registry.New()
	for _, tool := range built {
		if err := reg.Register(tool); err != nil {
			return nil, err
		}
	}

	var cache *idempotency.Cache
	strategy := constants.CacheKeyStrategyAuto
	if cat.Server.Idempotency.Enabled {
		ttl, err := time.ParseDuration(cat.Server.Idempotency.TTL)
		if err != nil {
			return nil, errorsx.New(errorsx.KindConfiguration, "invalid idempotency ttl: %w", err)
		}
		cache = idempotency.NewCache(ttl, cat.Server.Idempotency.MaxEntries)
		strategy = cat.Server.Idempotency.KeyStrategy
	}

	m := metrics.New()
	lifecycle := runtime.NewLifecycle()
	builder := runtime.Builder{
		Registry:         reg,
		Logger:           logger,
		Audit:            audit.New(logger),
		Metrics:          m,
		Cache:            cache,
		CacheKeyStrategy: strategy,
		Limits:           limits.NewGuard(policy(cat.Server.Limits), toolPolicies(cat)),
		Lifecycle:        lifecycle,
	}
	server, err := builder.Build(cat)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.KindConfiguration)
	}

	return &Server{
		MCP:             server,
		Catalog:         cat,
		Registry:        reg,
		Metrics:         m,
		Lifecycle:       lifecycle,
		logger:          logger,
		shutdownTimeout: opts.Env.ShutdownTimeout,
	}, nil
}

// Serve runs the catalog's transport until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("tool server starting",
		"name", s.Catalog.Server.Name,
		"transport", s.Catalog.Server.Transport,
		"tools", s.Registry.Len(),
	)
	return s.Lifecycle.Serve(ctx, func(ctx context.Context) error {
		if s.Catalog.Server.Transport == constants.TransportHTTP {
			return s.serveHTTP(ctx)
		}
		return s.MCP.Run(ctx, &mcp.StdioTransport{})
	})
}

// InProcess starts the lifecycle and returns a client transport bound to the server.
// Callers stop the lifecycle with Close.
func (s *Server) InProcess(ctx context.Context) (mcp.Transport, error) {
	if err := s.Lifecycle.Start(); err != nil {
		return nil, err
	}
	return transport.InProcess(ctx, s.MCP)
}

// Close moves the server to its terminal state.
func (s *Server) Close() {
	s.Lifecycle.Stop()
}

// HTTPApp builds the HTTP application serving MCP, health and metrics routes.
func (s *Server) HTTPApp(ctx context.Context) (*App, error) {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.MCP
	}, &mcp.StreamableHTTPOptions{
		Stateless: s.Catalog.Server.HTTP.Stateless,
	})
	extra := map[string]http.Handler{"/metrics": s.Metrics.Handler()}
	application, err := New(ctx, s.Catalog.Server, handler, extra, s.logger, s.shutdownTimeout)
	if err != nil {
		return nil, err
	}
	application.Health().SetCheck(func() error {
		switch state := s.Lifecycle.State(); state {
		case runtime.StateListening, runtime.StateHandling:
			return nil
		default:
			return fmt.Errorf("tool server is %s", state)
		}
	})
	return application, nil
}

func (s *Server) serveHTTP(ctx context.Context) error {
	application, err := s.HTTPApp(ctx)
	if err != nil {
		return err
	}
	return application.Run(ctx)
}

func policy(cfg catalog.LimitsConfig) limits.Policy {
	return limits.Policy{MaxTotal: cfg.MaxTotal, RatePerMinute: cfg.RatePerMinute}
}

func toolPolicies(cat *catalog.Config) map[string]limits.Policy {
	out := map[string]limits.Policy{}
	for _, tool := range cat.Tools {
		if tool.Limits != nil {
			out[tool.Name] = policy(*tool.Limits)
		}
	}
	return out
}
