package session

import (
	"encoding/json"
	"fmt"

	"github.com/codex-k8s/tutor-mcp/internal/protocol"
)

// WireVersion is the only encoding version Unmarshal accepts.
const WireVersion = 1

// TurnKind labels an entry of the conversation.
type TurnKind string

// Turn kinds.
const (
	TurnUser           TurnKind = "user"
	TurnAssistant      TurnKind = "assistant"
	TurnToolInvocation TurnKind = "tool_invocation"
	TurnToolResult     TurnKind = "tool_result"
)

// Turn is one entry of the conversation.
type Turn struct {
	Kind       TurnKind                 `json:"kind"`
	Text       string                   `json:"text,omitempty"`
	Invocation *protocol.ToolInvocation `json:"invocation,omitempty"`
	Result     *protocol.ToolResult     `json:"result,omitempty"`
}

// State is the ordered conversation history. The zero value is empty and ready to use.
type State struct {
	turns []Turn
}

// AddUser appends a user message.
func (s *State) AddUser(text string) {
	s.turns = append(s.turns, Turn{Kind: TurnUser, Text: text})
}

// AddAssistant appends a final assistant message.
func (s *State) AddAssistant(text string) {
	s.turns = append(s.turns, Turn{Kind: TurnAssistant, Text: text})
}

// AddInvocation appends a tool invocation requested by the model.
func (s *State) AddInvocation(inv protocol.ToolInvocation) {
	s.turns = append(s.turns, Turn{Kind: TurnToolInvocation, Invocation: &inv})
}

// AddResult appends the result of an earlier invocation.
func (s *State) AddResult(res protocol.ToolResult) {
	s.turns = append(s.turns, Turn{Kind: TurnToolResult, Result: &res})
}

// Turns returns a copy of the history.
func (s *State) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns.
func (s *State) Len() int {
	return len(s.turns)
}

// Reset clears the history.
func (s *State) Reset() {
	s.turns = nil
}

// Pending returns the call ids of invocations that have no result yet.
func (s *State) Pending() []string {
	answered := map[string]struct{}{}
	for _, turn := range s.turns {
		if turn.Kind == TurnToolResult && turn.Result != nil {
			answered[turn.Result.CallID] = struct{}{}
		}
	}
	var out []string
	for _, turn := range s.turns {
		if turn.Kind != TurnToolInvocation || turn.Invocation == nil {
			continue
		}
		if _, ok := answered[turn.Invocation.CallID]; !ok {
			out = append(out, turn.Invocation.CallID)
		}
	}
	return out
}

type wireState struct {
	Version int    `json:"version"`
	Turns   []Turn `json:"turns"`
}

// MarshalJSON encodes the state as {"version":1,"turns":[...]}.
func (s State) MarshalJSON() ([]byte, error) {
	turns := s.turns
	if turns == nil {
		turns = []Turn{}
	}
	return json.Marshal(wireState{Version: WireVersion, Turns: turns})
}

// UnmarshalJSON decodes a state, rejecting unknown versions and turn kinds.
func (s *State) UnmarshalJSON(data []byte) error {
	var wire wireState
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode session state: %w", err)
	}
	if wire.Version != WireVersion {
		return fmt.Errorf("unsupported session state version %d", wire.Version)
	}
	for i, turn := range wire.Turns {
		if err := validateTurn(turn); err != nil {
			return fmt.Errorf("turns[%d]: %w", i, err)
		}
	}
	s.turns = wire.Turns
	return nil
}

func validateTurn(turn Turn) error {
	switch turn.Kind {
	case TurnUser, TurnAssistant:
		return nil
	case TurnToolInvocation:
		if turn.Invocation == nil {
			return fmt.Errorf("tool_invocation turn without invocation")
		}
		return nil
	case TurnToolResult:
		if turn.Result == nil {
			return fmt.Errorf("tool_result turn without result")
		}
		return nil
	default:
		return fmt.Errorf("unknown turn kind %q", turn.Kind)
	}
}
