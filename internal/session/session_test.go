package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
	"github.com/codex-k8s/tutor-mcp/internal/protocol"
)

func sampleState() *State {
	var s State
	s.AddUser("Plan 4 weeks of recursion")
	s.AddInvocation(protocol.ToolInvocation{
		CallID:    "call_1",
		ToolName:  "generate_learning_path",
		Arguments: map[string]any{"topic": "recursion", "week_count": 4.0},
	})
	s.AddResult(protocol.Success("call_1", json.RawMessage(`{"result":[{"week":1}],"metadata":{"tool":"generate_learning_path"}}`)))
	s.AddInvocation(protocol.ToolInvocation{CallID: "call_2", ToolName: "nope", Arguments: map[string]any{}})
	s.AddResult(protocol.Failure("call_2", errorsx.KindToolDispatch, `unknown tool "nope"`))
	s.AddAssistant("Here is your plan.")
	return &s
}

func TestRoundTrip(t *testing.T) {
	original := sampleState()
	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded State
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, original.Len(), decoded.Len())

	again, err := json.Marshal(&decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))

	turns := decoded.Turns()
	assert.Equal(t, TurnUser, turns[0].Kind)
	assert.Equal(t, "call_1", turns[1].Invocation.CallID)
	assert.Equal(t, errorsx.KindToolDispatch, turns[4].Result.Error.Kind)
	assert.Equal(t, "Here is your plan.", turns[5].Text)
}

func TestEmptyStateEncoding(t *testing.T) {
	data, err := json.Marshal(State{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"turns":[]}`, string(data))
}

func TestUnmarshalRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"version":      `{"version":2,"turns":[]}`,
		"unknown kind": `{"version":1,"turns":[{"kind":"system","text":"x"}]}`,
		"no result":    `{"version":1,"turns":[{"kind":"tool_result"}]}`,
		"no call":      `{"version":1,"turns":[{"kind":"tool_invocation"}]}`,
		"not json":     `{`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			var s State
			require.Error(t, json.Unmarshal([]byte(input), &s))
		})
	}
}

func TestPendingAndReset(t *testing.T) {
	var s State
	s.AddInvocation(protocol.ToolInvocation{CallID: "a", ToolName: "x"})
	s.AddInvocation(protocol.ToolInvocation{CallID: "b", ToolName: "x"})
	s.AddResult(protocol.Success("a", nil))
	assert.Equal(t, []string{"b"}, s.Pending())

	s.Reset()
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Pending())
}
