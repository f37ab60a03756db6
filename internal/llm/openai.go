package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
	"github.com/codex-k8s/tutor-mcp/internal/timeutil"
)

const defaultBaseURL = "https://api.openai.com/v1"

// OpenAIOptions configures the OpenAI-compatible client.
type OpenAIOptions struct {
	// APIKey is sent as a bearer token.
	APIKey string
	// BaseURL is the API root, e.g. https://api.openai.com/v1.
	BaseURL string
	// Model is the chat model name.
	Model string
	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration
	// RetryCount is the number of retries for 429 and 5xx responses.
	RetryCount int
	// RetryWait is the initial wait between retries.
	RetryWait time.Duration
}

// OpenAIClient talks to an OpenAI-compatible chat completions API.
type OpenAIClient struct {
	model   string
	apiKey  string
	baseURL string
	client  *resty.Client
}

// NewOpenAIClient creates a chat completions client.
func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errorsx.New(errorsx.KindConfiguration, "model api key is required")
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	opts.Timeout = timeutil.OrDefault(opts.Timeout, 120*time.Second)
	opts.RetryWait = timeutil.OrDefault(opts.RetryWait, time.Second)

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetRetryCount(opts.RetryCount)
	client.SetRetryWaitTime(opts.RetryWait)
	client.SetRetryMaxWaitTime(5 * opts.RetryWait)
	client.AddRetryCondition(func(resp *resty.Response, err error) bool {
		if err != nil || resp == nil {
			return false
		}
		code := resp.StatusCode()
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	})

	return &OpenAIClient{
		model:   opts.Model,
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  client,
	}, nil
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Tools          []chatTool      `json:"tools,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatCallFunction `json:"function"`
}

type chatCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   *string        `json:"content"`
			ToolCalls []chatToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	body, err := c.buildRequest(req)
	if err != nil {
		return Response{}, err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(body).
		Post(c.baseURL + "/chat/completions")
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return Response{}, fmt.Errorf("model call: %w", ctx.Err())
		}
		if isTimeout(ctx, err) {
			return Response{}, errorsx.Capability(errorsx.New(errorsx.KindTimeout, "model call timed out: %w", err), Capability, errorsx.KindTimeout)
		}
		return Response{}, errorsx.Capability(fmt.Errorf("%w: %v", ErrUnavailable, err), Capability, errorsx.KindExternalCapability)
	}

	if err := classifyStatus(resp); err != nil {
		return Response{}, errorsx.Capability(err, Capability, errorsx.KindExternalCapability)
	}

	var parsed chatResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return Response{}, errorsx.Capability(fmt.Errorf("%w: decode response: %v", ErrUnavailable, err), Capability, errorsx.KindExternalCapability)
	}
	if len(parsed.Choices) == 0 {
		return Response{}, errorsx.Capability(fmt.Errorf("%w: empty choices", ErrUnavailable), Capability, errorsx.KindExternalCapability)
	}

	msg := parsed.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		calls := make([]ToolCall, 0, len(msg.ToolCalls))
		for _, call := range msg.ToolCalls {
			calls = append(calls, decodeToolCall(call))
		}
		out := Response{Kind: KindToolCall, Calls: calls}
		if msg.Content != nil {
			out.Text = *msg.Content
		}
		return out, nil
	}

	out := Response{Kind: KindFinal}
	if msg.Content != nil {
		out.Text = *msg.Content
	}
	return out, nil
}

func (c *OpenAIClient) buildRequest(req Request) (chatRequest, error) {
	body := chatRequest{
		Model:       c.model,
		Temperature: req.Temperature,
		Messages:    make([]chatMessage, 0, len(req.Messages)),
	}
	if req.Format == FormatJSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	for _, msg := range req.Messages {
		out := chatMessage{Role: string(msg.Role), ToolCallID: msg.ToolCallID}
		content := msg.Content
		if content != "" || len(msg.ToolCalls) == 0 {
			out.Content = &content
		}
		for _, call := range msg.ToolCalls {
			args := call.RawArguments
			if args == "" {
				data, err := json.Marshal(call.Arguments)
				if err != nil {
					return chatRequest{}, fmt.Errorf("encode tool call %s arguments: %w", call.Name, err)
				}
				args = string(data)
			}
			out.ToolCalls = append(out.ToolCalls, chatToolCall{
				ID:       call.ID,
				Type:     "function",
				Function: chatCallFunction{Name: call.Name, Arguments: args},
			})
		}
		body.Messages = append(body.Messages, out)
	}
	for _, tool := range req.Tools {
		body.Tools = append(body.Tools, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return body, nil
}

func decodeToolCall(call chatToolCall) ToolCall {
	out := ToolCall{ID: call.ID, Name: call.Function.Name, RawArguments: call.Function.Arguments}
	raw := strings.TrimSpace(call.Function.Arguments)
	if raw == "" {
		out.Arguments = map[string]any{}
		return out
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		out.Arguments = args
	}
	return out
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func classifyStatus(resp *resty.Response) error {
	code := resp.StatusCode()
	if code == http.StatusOK {
		return nil
	}
	detail := upstreamMessage(resp.Body())
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w (status %d): %s", ErrUnauthorized, code, detail)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w (status %d): %s", ErrRateLimited, code, detail)
	default:
		return fmt.Errorf("%w (status %d): %s", ErrUnavailable, code, detail)
	}
}

func upstreamMessage(body []byte) string {
	var parsed struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
