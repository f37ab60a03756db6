package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
	"github.com/codex-k8s/tutor-mcp/internal/protocol"
)

// Options configures the client identity.
type Options struct {
	// Name is reported to the server on initialize.
	Name string
	// Version is reported to the server on initialize.
	Version string
	// Logger receives connection events; optional.
	Logger *slog.Logger
}

// Client is a connected MCP client session.
type Client struct {
	session *mcp.ClientSession
	logger  *slog.Logger
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

// CommandTransport starts the server as a child process speaking MCP over stdio.
func CommandTransport(command string) (mcp.Transport, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errorsx.New(errorsx.KindConfiguration, "server command is empty")
	}
	path, err := exec.LookPath(fields[0])
	if err != nil {
		return nil, errorsx.New(errorsx.KindConfiguration, "server command %q not found: %w", fields[0], err)
	}
	return &mcp.CommandTransport{Command: exec.Command(path, fields[1:]...)}, nil
}

// InProcess connects server to an in-memory transport and returns the client end.
func InProcess(ctx context.Context, server *mcp.Server) (mcp.Transport, error) {
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	if _, err := server.Connect(ctx, serverTransport, nil); err != nil {
		return nil, errorsx.New(errorsx.KindConfiguration, "start in-process server: %w", err)
	}
	return clientTransport, nil
}

// Connect performs the MCP handshake over t.
func Connect(ctx context.Context, t mcp.Transport, opts Options) (*Client, error) {
	if opts.Name == "" {
		opts.Name = "tutor-chat"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	client := mcp.NewClient(&mcp.Implementation{Name: opts.Name, Version: opts.Version}, nil)
	session, err := client.Connect(ctx, t, nil)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("connect to tool server: %w", err), errorsx.KindConnectionLost)
	}

	c := &Client{session: session, logger: opts.Logger, done: make(chan struct{})}
	go func() {
		err := session.Wait()
		if c.logger != nil {
			c.logger.Debug("tool server session ended", "error", err)
		}
		close(c.done)
	}()
	return c, nil
}

// Alive reports whether the session is still open.
func (c *Client) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Done is closed when the session ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ListTools discovers the server's tools.
func (c *Client) ListTools(ctx context.Context) ([]protocol.ToolDescriptor, error) {
	var out []protocol.ToolDescriptor
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, c.classify(ctx, fmt.Errorf("list tools: %w", err))
		}
		schema, err := schemaMap(tool.InputSchema)
		if err != nil {
			return nil, errorsx.Wrap(fmt.Errorf("tool %s: %w", tool.Name, err), errorsx.KindToolDispatch)
		}
		out = append(out, protocol.ToolDescriptor{
			Name:        tool.Name,
			Title:       tool.Title,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return out, nil
}

// Call forwards an invocation. Server-side failures come back as error
// results; the error return is reserved for timeouts and a lost connection.
func (c *Client) Call(ctx context.Context, inv protocol.ToolInvocation) (protocol.ToolResult, error) {
	args := make(map[string]any, len(inv.Arguments)+1)
	for k, v := range inv.Arguments {
		args[k] = v
	}
	args[protocol.ArgCorrelationID] = inv.CallID

	res, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: inv.ToolName, Arguments: args})
	if err != nil {
		classified := c.classify(ctx, err)
		if errorsx.Is(classified, errorsx.KindToolDispatch) {
			return protocol.Failure(inv.CallID, errorsx.KindToolDispatch, err.Error()), nil
		}
		return protocol.ToolResult{}, classified
	}
	return decodeResult(inv.CallID, res), nil
}

// Close ends the session. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.session.Close()
}

func (c *Client) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return errorsx.Wrap(err, errorsx.KindTimeout)
	case errors.Is(err, mcp.ErrConnectionClosed), errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), !c.Alive():
		return errorsx.Wrap(err, errorsx.KindConnectionLost)
	default:
		return errorsx.Wrap(err, errorsx.KindToolDispatch)
	}
}

func decodeResult(callID string, res *mcp.CallToolResult) protocol.ToolResult {
	var text strings.Builder
	for _, content := range res.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			text.WriteString(tc.Text)
		}
	}

	var decoded protocol.ToolResult
	if err := json.Unmarshal([]byte(text.String()), &decoded); err == nil && decoded.Status != "" {
		decoded.CallID = callID
		return decoded
	}

	if res.IsError {
		return protocol.Failure(callID, errorsx.KindToolDispatch, text.String())
	}
	payload, err := json.Marshal(map[string]any{"result": text.String()})
	if err != nil {
		return protocol.Failure(callID, errorsx.KindOutputParse, err.Error())
	}
	return protocol.Success(callID, payload)
}

func schemaMap(schema any) (map[string]any, error) {
	switch v := schema.(type) {
	case nil:
		return map[string]any{"type": "object"}, nil
	case map[string]any:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode input schema: %w", err)
		}
		var out map[string]any
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("decode input schema: %w", err)
		}
		return out, nil
	}
}
