package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
	"github.com/codex-k8s/tutor-mcp/internal/llm"
	"github.com/codex-k8s/tutor-mcp/internal/templates"
)

const maxAttempts = 2

var errModelNotConfigured = errors.New("model is not configured")

// shapeFunc validates a decoded reply and extracts the result.
type shapeFunc func(obj map[string]any) (any, error)

func wholeObject(obj map[string]any) (any, error) {
	return obj, nil
}

// prompt renders the tool's own template.
func (c *call) prompt(data map[string]any) (string, error) {
	text, err := c.tool.deps.Prompts.Render(c.tool.cfg.Name, data)
	if err != nil {
		return "", errorsx.Wrap(fmt.Errorf("render prompt: %w", err), errorsx.KindToolDispatch)
	}
	return text, nil
}

// completeJSON asks the model for a JSON object and validates it. A reply that
// cannot be used is retried once with a stricter instruction.
func (c *call) completeJSON(ctx context.Context, prompt, requiredKey string, shape shapeFunc) (any, error) {
	model := c.tool.deps.Model
	if model == nil {
		return nil, errorsx.Capability(errModelNotConfigured, llm.Capability, errorsx.KindExternalCapability)
	}
	if shape == nil {
		shape = wholeObject
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: prompt}}
	var problem error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c.meta.Attempts = attempt
		resp, err := model.Complete(ctx, llm.Request{
			Messages:    messages,
			Format:      llm.FormatJSON,
			Temperature: c.tool.cfg.Temperature,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, errorsx.Wrap(err, errorsx.KindTimeout)
			}
			return nil, errorsx.Capability(err, llm.Capability, errorsx.KindExternalCapability)
		}

		result, err := parseReply(resp.Text, requiredKey, shape)
		if err == nil {
			return result, nil
		}
		problem = err
		if attempt == maxAttempts {
			break
		}

		retry, err := c.tool.deps.Prompts.Render(templates.KeyJSONRetry, map[string]any{
			"Problem":     problem.Error(),
			"RequiredKey": requiredKey,
		})
		if err != nil {
			return nil, errorsx.Wrap(fmt.Errorf("render retry prompt: %w", err), errorsx.KindToolDispatch)
		}
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Text},
			llm.Message{Role: llm.RoleUser, Content: retry},
		)
	}
	return nil, errorsx.New(errorsx.KindOutputParse, "%s: model reply is not the expected JSON after %d attempts: %v", c.tool.cfg.Name, maxAttempts, problem)
}

func parseReply(text, requiredKey string, shape shapeFunc) (any, error) {
	text = stripFences(text)
	if text == "" {
		return nil, errors.New("reply is empty")
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, errors.New("reply is not a JSON object")
	}
	if obj == nil {
		return nil, errors.New("reply is not a JSON object")
	}
	if requiredKey != "" {
		if _, ok := obj[requiredKey]; !ok {
			return nil, fmt.Errorf("reply has no %q key", requiredKey)
		}
	}
	return shape(obj)
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// objectList returns obj[key] as a non-empty list of objects.
func objectList(obj map[string]any, key string) ([]any, error) {
	items, ok := obj[key].([]any)
	if !ok {
		return nil, fmt.Errorf("%q must be an array", key)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%q is empty", key)
	}
	for i, item := range items {
		if _, ok := item.(map[string]any); !ok {
			return nil, fmt.Errorf("%q[%d] must be an object", key, i)
		}
	}
	return items, nil
}
