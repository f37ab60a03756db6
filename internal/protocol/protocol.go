package protocol

import (
	"encoding/json"

	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
)

// Tool result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Reserved argument keys carrying the invocation call id across the transport.
const (
	ArgCorrelationID = "correlation_id"
	ArgRequestID     = "request_id"
)

// ToolDescriptor is what discovery returns for a single tool.
type ToolDescriptor struct {
	// Name is the unique tool name.
	Name string `json:"name"`
	// Title is an optional display title.
	Title string `json:"title,omitempty"`
	// Description explains the tool for the model.
	Description string `json:"description"`
	// InputSchema is the JSON Schema of accepted arguments.
	InputSchema map[string]any `json:"input_schema"`
}

// RequiredFields returns the schema's required argument names.
func (d ToolDescriptor) RequiredFields() []string {
	raw, ok := d.InputSchema["required"]
	if !ok {
		return nil
	}
	var out []string
	switch v := raw.(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// ToolInvocation is a single tool call requested by the model.
type ToolInvocation struct {
	// CallID is unique per request.
	CallID string `json:"call_id"`
	// ToolName is the requested tool.
	ToolName string `json:"tool_name"`
	// Arguments are the decoded call arguments.
	Arguments map[string]any `json:"arguments"`
}

// ErrorPayload describes a failed invocation.
type ErrorPayload struct {
	// Kind is the error category.
	Kind errorsx.Kind `json:"kind"`
	// Message is a human-readable reason.
	Message string `json:"message"`
	// Capability names the unavailable external capability, if any.
	Capability string `json:"capability,omitempty"`
}

// ToolResult is the fixed JSON response returned for every invocation.
type ToolResult struct {
	// CallID links the result to its invocation.
	CallID string `json:"call_id"`
	// Status is success or error.
	Status string `json:"status"`
	// Payload is the handler output on success.
	Payload json.RawMessage `json:"payload,omitempty"`
	// Error is set when Status is error.
	Error *ErrorPayload `json:"error,omitempty"`
}

// Success builds a success result.
func Success(callID string, payload json.RawMessage) ToolResult {
	return ToolResult{CallID: callID, Status: StatusSuccess, Payload: payload}
}

// Failure builds an error result.
func Failure(callID string, kind errorsx.Kind, message string) ToolResult {
	return ToolResult{CallID: callID, Status: StatusError, Error: &ErrorPayload{Kind: kind, Message: message}}
}

// IsError reports whether the result carries an error.
func (r ToolResult) IsError() bool {
	return r.Status == StatusError
}

// ModelContent renders the result as the text fed back to the model.
func (r ToolResult) ModelContent() string {
	data, err := json.Marshal(r)
	if err != nil {
		return `{"status":"error","error":{"kind":"tool_dispatch","message":"unencodable tool result"}}`
	}
	return string(data)
}
