package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
)

func TestRequiredFields(t *testing.T) {
	desc := ToolDescriptor{InputSchema: map[string]any{"required": []any{"topic", 3, "code"}}}
	assert.Equal(t, []string{"topic", "code"}, desc.RequiredFields())

	desc = ToolDescriptor{InputSchema: map[string]any{"required": []string{"topic"}}}
	assert.Equal(t, []string{"topic"}, desc.RequiredFields())

	assert.Nil(t, ToolDescriptor{}.RequiredFields())
}

func TestModelContent(t *testing.T) {
	res := Failure("c1", errorsx.KindToolDispatch, "unknown tool \"x\"")
	var decoded ToolResult
	require.NoError(t, json.Unmarshal([]byte(res.ModelContent()), &decoded))
	assert.Equal(t, res, decoded)
	assert.True(t, decoded.IsError())

	ok := Success("c2", json.RawMessage(`{"result":[1,2]}`))
	assert.JSONEq(t, `{"call_id":"c2","status":"success","payload":{"result":[1,2]}}`, ok.ModelContent())
}
