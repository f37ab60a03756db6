package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/tutor-mcp/internal/catalog"
	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
	"github.com/codex-k8s/tutor-mcp/internal/idempotency"
	"github.com/codex-k8s/tutor-mcp/internal/limits"
	"github.com/codex-k8s/tutor-mcp/internal/metrics"
	"github.com/codex-k8s/tutor-mcp/internal/protocol"
	"github.com/codex-k8s/tutor-mcp/internal/registry"
	"github.com/codex-k8s/tutor-mcp/internal/tools"
)

type echoTool struct {
	name  string
	calls atomic.Int32
	delay time.Duration
	fail  error
}

func (e *echoTool) Descriptor() protocol.ToolDescriptor {
	return protocol.ToolDescriptor{
		Name:        e.name,
		Description: "echo",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"topic": map[string]any{"type": "string"}},
			"required":   []any{"topic"},
		},
	}
}

func (e *echoTool) Invoke(ctx context.Context, args map[string]any) (tools.Output, error) {
	e.calls.Add(1)
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return tools.Output{}, ctx.Err()
		}
	}
	if e.fail != nil {
		return tools.Output{}, e.fail
	}
	return tools.Output{Result: args["topic"], Metadata: tools.Metadata{Tool: e.name}}, nil
}

func newBuilder(t *testing.T, tool registry.Tool) Builder {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Register(tool))
	lc := NewLifecycle()
	require.NoError(t, lc.Start())
	return Builder{Registry: reg, Lifecycle: lc, Metrics: metrics.New()}
}

func TestCallSuccess(t *testing.T) {
	tool := &echoTool{name: "echo"}
	b := newBuilder(t, tool)

	res := b.Call(context.Background(), "echo", 0, "", map[string]any{"topic": "go", protocol.ArgCorrelationID: "call-1"})
	require.False(t, res.IsError())
	assert.Equal(t, "call-1", res.CallID)

	var out tools.Output
	require.NoError(t, json.Unmarshal(res.Payload, &out))
	assert.Equal(t, "go", out.Result)
	assert.Equal(t, StateListening, b.Lifecycle.State())
	assert.Zero(t, b.Lifecycle.InFlight())
}

func TestCallGeneratesCorrelationID(t *testing.T) {
	b := newBuilder(t, &echoTool{name: "echo"})
	res := b.Call(context.Background(), "echo", 0, "", map[string]any{"topic": "go"})
	assert.Contains(t, res.CallID, "corr-")
}

func TestCallTimeout(t *testing.T) {
	b := newBuilder(t, &echoTool{name: "slow", delay: time.Second})

	res := b.Call(context.Background(), "slow", 20*time.Millisecond, "", map[string]any{"topic": "go"})
	require.True(t, res.IsError())
	assert.Equal(t, errorsx.KindTimeout, res.Error.Kind)
	assert.Contains(t, res.Error.Message, "timed out")

	res = b.Call(context.Background(), "slow", 20*time.Millisecond, "model took too long", map[string]any{"topic": "go"})
	assert.Equal(t, "model took too long", res.Error.Message)
}

func TestCallCachesSuccessOnly(t *testing.T) {
	tool := &echoTool{name: "echo"}
	b := newBuilder(t, tool)
	b.Cache = idempotency.NewCache(time.Minute, 8)
	b.CacheKeyStrategy = "arguments_hash"

	first := b.Call(context.Background(), "echo", 0, "", map[string]any{"topic": "go", protocol.ArgCorrelationID: "a"})
	second := b.Call(context.Background(), "echo", 0, "", map[string]any{"topic": "go", protocol.ArgCorrelationID: "b"})
	require.False(t, second.IsError())
	assert.Equal(t, "b", second.CallID)
	assert.Equal(t, first.Payload, second.Payload)
	assert.EqualValues(t, 1, tool.calls.Load())

	failing := &echoTool{name: "bad", fail: errors.New("boom")}
	b = newBuilder(t, failing)
	b.Cache = idempotency.NewCache(time.Minute, 8)
	b.Call(context.Background(), "bad", 0, "", map[string]any{"topic": "go"})
	b.Call(context.Background(), "bad", 0, "", map[string]any{"topic": "go"})
	assert.EqualValues(t, 2, failing.calls.Load())
}

func TestCallSkipsCacheForUncachedTool(t *testing.T) {
	tool := &echoTool{name: "echo"}
	b := newBuilder(t, tool)
	b.Cache = idempotency.NewCache(time.Minute, 8)
	b.CacheKeyStrategy = "arguments_hash"
	b.Uncached = map[string]bool{"echo": true}

	b.Call(context.Background(), "echo", 0, "", map[string]any{"topic": "go"})
	b.Call(context.Background(), "echo", 0, "", map[string]any{"topic": "go"})
	assert.EqualValues(t, 2, tool.calls.Load())
	assert.Zero(t, b.Cache.Len())
}

func TestBuildHonoursCatalogCacheOptOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tool := &echoTool{name: "echo"}
	b := newBuilder(t, tool)
	b.Cache = idempotency.NewCache(time.Minute, 8)
	b.CacheKeyStrategy = "arguments_hash"
	noCache := false
	server, err := b.Build(&catalog.Config{
		Server: catalog.ServerConfig{Name: "test", Version: "0.0.1"},
		Tools:  []catalog.ToolConfig{{Name: "echo", Description: "echo", Cache: &noCache}},
	})
	require.NoError(t, err)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	for range 2 {
		res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"topic": "maps"}})
		require.NoError(t, err)
		require.False(t, res.IsError)
	}
	assert.EqualValues(t, 2, tool.calls.Load())
}

func TestCallLimits(t *testing.T) {
	tool := &echoTool{name: "echo"}
	b := newBuilder(t, tool)
	b.Limits = limits.NewGuard(limits.Policy{MaxTotal: 1}, nil)

	require.False(t, b.Call(context.Background(), "echo", 0, "", map[string]any{"topic": "go"}).IsError())
	res := b.Call(context.Background(), "echo", 0, "", map[string]any{"topic": "go"})
	require.True(t, res.IsError())
	assert.Equal(t, errorsx.KindToolDispatch, res.Error.Kind)
	assert.EqualValues(t, 1, tool.calls.Load())
}

func TestCallRejectedWhenStopped(t *testing.T) {
	tool := &echoTool{name: "echo"}
	b := newBuilder(t, tool)
	b.Lifecycle.Stop()

	res := b.Call(context.Background(), "echo", 0, "", map[string]any{"topic": "go"})
	require.True(t, res.IsError())
	assert.Zero(t, tool.calls.Load())
}

func TestServerOverInMemoryTransport(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tool := &echoTool{name: "echo"}
	b := newBuilder(t, tool)
	server, err := b.Build(&catalog.Config{
		Server: catalog.ServerConfig{Name: "test", Version: "0.0.1"},
		Tools:  []catalog.ToolConfig{{Name: "echo", Description: "echo", Timeout: "5s"}},
	})
	require.NoError(t, err)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	listed, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	require.Len(t, listed.Tools, 1)
	assert.Equal(t, "echo", listed.Tools[0].Name)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"topic": "maps", protocol.ArgCorrelationID: "call-9"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)

	var result protocol.ToolResult
	require.NoError(t, json.Unmarshal([]byte(text.Text), &result))
	assert.Equal(t, "call-9", result.CallID)
	assert.Equal(t, protocol.StatusSuccess, result.Status)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestLifecycleTransitions(t *testing.T) {
	lc := NewLifecycle()
	assert.Equal(t, StateIdle, lc.State())
	require.Error(t, lc.Begin())

	require.NoError(t, lc.Start())
	require.Error(t, lc.Start())
	require.NoError(t, lc.Begin())
	require.NoError(t, lc.Begin())
	assert.Equal(t, StateHandling, lc.State())
	lc.End()
	assert.Equal(t, StateHandling, lc.State())
	lc.End()
	assert.Equal(t, StateListening, lc.State())

	lc.Stop()
	assert.Equal(t, StateStopped, lc.State())
	var transition *InvalidTransitionError
	require.ErrorAs(t, lc.Begin(), &transition)
	assert.Equal(t, "STOPPED", transition.From.String())
}

func TestLifecycleServe(t *testing.T) {
	lc := NewLifecycle()
	err := lc.Serve(context.Background(), func(context.Context) error {
		assert.Equal(t, StateListening, lc.State())
		return errors.New("stream closed")
	})
	require.EqualError(t, err, "stream closed")
	assert.Equal(t, StateStopped, lc.State())
}
