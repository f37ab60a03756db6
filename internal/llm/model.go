package llm

import (
	"context"
	"errors"
)

// Role is a chat message role.
type Role string

// Chat roles understood by the model.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Format selects the completion output mode.
type Format string

// Completion formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ResponseKind tells whether the model answered or asked for tools.
type ResponseKind string

// Response kinds.
const (
	KindFinal    ResponseKind = "final"
	KindToolCall ResponseKind = "tool_call"
)

// Capability is the name reported in errors raised by the model.
const Capability = "model"

// Sentinel errors classifying model failures.
var (
	ErrUnauthorized = errors.New("model credential rejected")
	ErrRateLimited  = errors.New("model rate limit exceeded")
	ErrUnavailable  = errors.New("model unavailable")
)

// Message is one entry of the chat history sent to the model.
type Message struct {
	Role    Role
	Content string
	// ToolCalls is set on assistant messages that requested tools.
	ToolCalls []ToolCall
	// ToolCallID links a tool message to the call it answers.
	ToolCallID string
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
	// RawArguments keeps the undecoded argument text as returned by the model.
	RawArguments string
}

// ToolSpec advertises a callable tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is a single completion request.
type Request struct {
	Messages    []Message
	Tools       []ToolSpec
	Format      Format
	Temperature float64
}

// Response is the model's reply.
type Response struct {
	Kind  ResponseKind
	Text  string
	Calls []ToolCall
}

// Model completes chat requests.
type Model interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, req Request) (Response, error)

// Complete calls f.
func (f ModelFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
