package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codex-k8s/tutor-mcp/internal/audit"
	"github.com/codex-k8s/tutor-mcp/internal/catalog"
	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
	"github.com/codex-k8s/tutor-mcp/internal/idempotency"
	"github.com/codex-k8s/tutor-mcp/internal/limits"
	"github.com/codex-k8s/tutor-mcp/internal/metrics"
	"github.com/codex-k8s/tutor-mcp/internal/protocol"
	"github.com/codex-k8s/tutor-mcp/internal/registry"
	"github.com/codex-k8s/tutor-mcp/internal/security"
	"github.com/codex-k8s/tutor-mcp/internal/timeutil"
)

// Builder constructs an MCP server exposing the registry's tools.
type Builder struct {
	// Registry dispatches tool calls.
	Registry *registry.Registry
	// Logger is used for structured logging.
	Logger *slog.Logger
	// Audit records tool events.
	Audit audit.Logger
	// Metrics collects call counters; optional.
	Metrics *metrics.Metrics
	// Cache stores idempotent responses; optional.
	Cache *idempotency.Cache
	// CacheKeyStrategy selects how cache keys are computed.
	CacheKeyStrategy string
	// Uncached names tools whose results bypass Cache. Build fills it from the catalog.
	Uncached map[string]bool
	// Limits bounds call rates; optional.
	Limits *limits.Guard
	// Lifecycle tracks server state; optional.
	Lifecycle *Lifecycle
}

// Build creates an MCP server with one tool per registry entry.
func (b Builder) Build(cfg *catalog.Config) (*mcp.Server, error) {
	if b.Registry == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("catalog is nil")
	}
	server := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Server.Name,
		Version: cfg.Server.Version,
	}, &mcp.ServerOptions{Instructions: cfg.Server.Instructions})

	if b.Uncached == nil {
		b.Uncached = map[string]bool{}
		for _, tool := range cfg.Tools {
			if !tool.Cacheable() {
				b.Uncached[tool.Name] = true
			}
		}
	}

	for _, desc := range b.Registry.List() {
		toolCfg, _ := cfg.Tool(desc.Name)
		if desc.InputSchema == nil {
			return nil, fmt.Errorf("tool %s: input schema is required", desc.Name)
		}
		server.AddTool(&mcp.Tool{
			Name:        desc.Name,
			Title:       desc.Title,
			Description: desc.Description,
			InputSchema: desc.InputSchema,
			Annotations: buildAnnotations(toolCfg.Annotations),
		}, b.handler(toolCfg, desc.Name))
	}
	return server, nil
}

func (b Builder) handler(toolCfg catalog.ToolConfig, name string) mcp.ToolHandler {
	timeout := timeutil.ParseDurationOrDefault(toolCfg.Timeout, 0)
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := decodeArguments(req.Params.Arguments)
		if err != nil {
			res := protocol.Failure(newCorrelationID(), errorsx.KindInvalidArguments, err.Error())
			return toCallResult(res), nil
		}
		return toCallResult(b.Call(ctx, name, timeout, toolCfg.TimeoutMessage, args)), nil
	}
}

// Call runs one tool invocation through limits, cache, timeout and dispatch.
// It never fails: every problem becomes an error result.
func (b Builder) Call(ctx context.Context, name string, timeout time.Duration, timeoutMessage string, args map[string]any) protocol.ToolResult {
	callID, providedID := correlationID(args)
	if b.Lifecycle != nil {
		if err := b.Lifecycle.Begin(); err != nil {
			return protocol.Failure(callID, errorsx.KindToolDispatch, err.Error())
		}
		defer b.Lifecycle.End()
	}
	if b.Metrics != nil {
		b.Metrics.InFlight.Inc()
		defer b.Metrics.InFlight.Dec()
	}

	b.logInfo("tool call", "tool", name, "correlation_id", callID, "args", security.RedactArguments(args))
	b.record(ctx, audit.Event{Type: audit.EventToolCall, Tool: name, CorrelationID: callID})

	cacheKey := ""
	if b.Cache != nil && !b.Uncached[name] {
		key, err := idempotency.Key(name, callID, providedID, args, b.CacheKeyStrategy)
		if err != nil {
			b.logWarn("cache key build failed", "tool", name, "error", err)
		} else {
			cacheKey = key
		}
	}
	if cacheKey != "" {
		if cached, ok := b.Cache.Get(cacheKey, callID); ok {
			b.logInfo("tool cache hit", "tool", name, "correlation_id", callID)
			b.record(ctx, audit.Event{Type: audit.EventCacheHit, Tool: name, CorrelationID: callID})
			b.Metrics.ObserveCacheHit(name)
			return cached
		}
	}

	if err := b.Limits.Allow(name); err != nil {
		b.record(ctx, audit.Event{Type: audit.EventRejected, Tool: name, CorrelationID: callID, Reason: err.Error()})
		b.Metrics.ObserveCall(name, protocol.StatusError, string(errorsx.KindToolDispatch), 0)
		return protocol.Failure(callID, errorsx.KindToolDispatch, err.Error())
	}

	ctxTool := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctxTool, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	res := b.Registry.Dispatch(ctxTool, protocol.ToolInvocation{CallID: callID, ToolName: name, Arguments: args})
	took := time.Since(start)

	if res.IsError() && errors.Is(ctxTool.Err(), context.DeadlineExceeded) {
		res = protocol.Failure(callID, errorsx.KindTimeout, timeoutText(name, timeout, timeoutMessage))
	}

	if res.IsError() {
		kind := string(res.Error.Kind)
		b.logWarn("tool failed", "tool", name, "correlation_id", callID, "kind", kind, "error", res.Error.Message)
		b.record(ctx, audit.Event{Type: audit.EventToolError, Tool: name, CorrelationID: callID, Kind: kind, Reason: res.Error.Message, Duration: took})
		b.Metrics.ObserveCall(name, protocol.StatusError, kind, took)
		return res
	}

	b.record(ctx, audit.Event{Type: audit.EventToolOK, Tool: name, CorrelationID: callID, Duration: took})
	b.Metrics.ObserveCall(name, protocol.StatusSuccess, "", took)
	if cacheKey != "" {
		b.Cache.Set(cacheKey, res)
		b.record(ctx, audit.Event{Type: audit.EventCacheStore, Tool: name, CorrelationID: callID})
	}
	return res
}

func (b Builder) record(ctx context.Context, event audit.Event) {
	if b.Audit != nil {
		b.Audit.Record(ctx, event)
	}
}

func (b Builder) logInfo(msg string, args ...any) {
	if b.Logger != nil {
		b.Logger.Info(msg, args...)
	}
}

func (b Builder) logWarn(msg string, args ...any) {
	if b.Logger != nil {
		b.Logger.Warn(msg, args...)
	}
}

func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	if len(raw) == 0 || string(raw) == "null" {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func toCallResult(res protocol.ToolResult) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: res.ModelContent()}},
		StructuredContent: res,
		IsError:           res.IsError(),
	}
}

func buildAnnotations(cfg *catalog.ToolAnnotationsConfig) *mcp.ToolAnnotations {
	if cfg == nil {
		return nil
	}
	return &mcp.ToolAnnotations{
		ReadOnlyHint:   cfg.ReadOnlyHint,
		IdempotentHint: cfg.IdempotentHint,
		OpenWorldHint:  cfg.OpenWorldHint,
	}
}

func correlationID(args map[string]any) (string, bool) {
	if args != nil {
		if raw, ok := args[protocol.ArgCorrelationID].(string); ok && raw != "" {
			return raw, true
		}
		if raw, ok := args[protocol.ArgRequestID].(string); ok && raw != "" {
			return raw, true
		}
	}
	return newCorrelationID(), false
}

func timeoutText(name string, timeout time.Duration, message string) string {
	if message != "" {
		return message
	}
	return fmt.Sprintf("tool %s timed out after %s", name, timeout)
}

func newCorrelationID() string {
	return "corr-" + uuid.NewString()
}
