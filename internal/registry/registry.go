package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
	"github.com/codex-k8s/tutor-mcp/internal/protocol"
	"github.com/codex-k8s/tutor-mcp/internal/tools"
)

// Tool is the capability every registered handler implements.
type Tool interface {
	Descriptor() protocol.ToolDescriptor
	Invoke(ctx context.Context, args map[string]any) (tools.Output, error)
}

// Registry keeps the mapping between tool names and implementations.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register inserts a tool when its name is not in use.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return errorsx.New(errorsx.KindConfiguration, "tool is nil")
	}
	name := tool.Descriptor().Name
	if name == "" {
		return errorsx.New(errorsx.KindConfiguration, "tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return errorsx.New(errorsx.KindConfiguration, "tool %s already registered", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// List returns the descriptors of all tools in registration order.
func (r *Registry) List() []protocol.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Descriptor())
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Dispatch routes an invocation to its tool. It always returns a result;
// failures are reported as error results.
func (r *Registry) Dispatch(ctx context.Context, inv protocol.ToolInvocation) protocol.ToolResult {
	r.mu.RLock()
	tool, ok := r.tools[inv.ToolName]
	r.mu.RUnlock()
	if !ok {
		return protocol.Failure(inv.CallID, errorsx.KindToolDispatch, fmt.Sprintf("unknown tool %q", inv.ToolName))
	}

	desc := tool.Descriptor()
	args := stripReserved(inv.Arguments)
	for _, field := range desc.RequiredFields() {
		if v, ok := args[field]; !ok || v == nil {
			return protocol.Failure(inv.CallID, errorsx.KindInvalidArguments,
				fmt.Sprintf("tool %s: missing required argument %q", desc.Name, field))
		}
	}

	out, err := invoke(ctx, tool, args)
	if err != nil {
		return failure(inv.CallID, desc.Name, err)
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return protocol.Failure(inv.CallID, errorsx.KindToolDispatch, fmt.Sprintf("tool %s: encode result: %v", desc.Name, err))
	}
	return protocol.Success(inv.CallID, payload)
}

func invoke(ctx context.Context, tool Tool, args map[string]any) (out tools.Output, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errorsx.New(errorsx.KindToolDispatch, "tool %s panicked: %v", tool.Descriptor().Name, rec)
		}
	}()
	return tool.Invoke(ctx, args)
}

func failure(callID, name string, err error) protocol.ToolResult {
	kind := errorsx.KindOf(err)
	switch kind {
	case errorsx.KindOutputParse, errorsx.KindExternalCapability, errorsx.KindTimeout, errorsx.KindInvalidArguments:
	default:
		kind = errorsx.KindToolDispatch
	}
	result := protocol.Failure(callID, kind, fmt.Sprintf("tool %s: %v", name, err))
	result.Error.Capability = errorsx.CapabilityOf(err)
	return result
}

func stripReserved(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if k == protocol.ArgCorrelationID || k == protocol.ArgRequestID {
			continue
		}
		out[k] = v
	}
	return out
}
