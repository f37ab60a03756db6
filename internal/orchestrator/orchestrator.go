package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
	"github.com/codex-k8s/tutor-mcp/internal/llm"
	"github.com/codex-k8s/tutor-mcp/internal/protocol"
	"github.com/codex-k8s/tutor-mcp/internal/session"
	"github.com/codex-k8s/tutor-mcp/internal/timeutil"
)

// DefaultInstructions is the system prompt preceding the tool list.
const DefaultInstructions = `You are an AI expert teacher with access to educational tools.

When helping users:
- Choose the most appropriate tool for their request
- Use sensible defaults
- Present information clearly and encouragingly
- Ask clarifying questions if needed

Be helpful, patient, and educational!`

// ToolCaller discovers and invokes tools on the server.
type ToolCaller interface {
	ListTools(ctx context.Context) ([]protocol.ToolDescriptor, error)
	Call(ctx context.Context, inv protocol.ToolInvocation) (protocol.ToolResult, error)
}

// Options tunes the control loop. Zero values take defaults.
type Options struct {
	// MaxRounds bounds the tool rounds of one turn.
	MaxRounds int
	// CallTimeout bounds each model and tool call.
	CallTimeout time.Duration
	// SessionTimeout bounds a whole turn.
	SessionTimeout time.Duration
	// CallRetries is how many times a timed-out call is retried.
	CallRetries int
	// Temperature is used for conversational model calls.
	Temperature float64
	// Instructions replaces DefaultInstructions.
	Instructions string
	// Logger receives loop events; optional.
	Logger *slog.Logger
	// NewCallID generates ids for tool calls the model left unnamed.
	NewCallID func() string
}

func (o Options) withDefaults() Options {
	if o.MaxRounds <= 0 {
		o.MaxRounds = 10
	}
	o.CallTimeout = timeutil.OrDefault(o.CallTimeout, 120*time.Second)
	o.SessionTimeout = timeutil.OrDefault(o.SessionTimeout, 5*time.Minute)
	if o.CallRetries < 0 {
		o.CallRetries = 0
	}
	if o.Instructions == "" {
		o.Instructions = DefaultInstructions
	}
	if o.NewCallID == nil {
		o.NewCallID = func() string { return "call_" + uuid.NewString() }
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Orchestrator owns one conversation and drives the model/tool loop.
// Send calls are serialized.
type Orchestrator struct {
	model llm.Model
	tools ToolCaller
	opts  Options

	mu          sync.Mutex
	state       session.State
	descriptors []protocol.ToolDescriptor
	known       map[string]struct{}
	dead        error
}

// New creates an orchestrator.
func New(model llm.Model, tools ToolCaller, opts Options) *Orchestrator {
	return &Orchestrator{model: model, tools: tools, opts: opts.withDefaults()}
}

// Discover lists the server's tools and caches them for later turns.
func (o *Orchestrator) Discover(ctx context.Context) ([]protocol.ToolDescriptor, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.discover(ctx); err != nil {
		return nil, err
	}
	return o.toolsCopy(), nil
}

// Tools returns the cached discovery result without contacting the server.
func (o *Orchestrator) Tools() []protocol.ToolDescriptor {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.toolsCopy()
}

// Reset clears the conversation.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Reset()
}

// Snapshot encodes the conversation state.
func (o *Orchestrator) Snapshot() ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return json.Marshal(o.state)
}

// Send runs one user turn and returns the final answer.
func (o *Orchestrator) Send(ctx context.Context, text string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.dead != nil {
		return "", errorsx.Wrap(fmt.Errorf("session ended: %w", o.dead), errorsx.KindConnectionLost)
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.SessionTimeout)
	defer cancel()

	if o.descriptors == nil {
		if err := o.discover(ctx); err != nil {
			return "", err
		}
	}

	o.state.AddUser(text)
	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return "", errorsx.New(errorsx.KindTimeout, "turn exceeded %s: %w", o.opts.SessionTimeout, err)
		}

		resp, err := o.complete(ctx)
		if err != nil {
			return "", err
		}
		if resp.Kind != llm.KindToolCall || len(resp.Calls) == 0 {
			o.state.AddAssistant(resp.Text)
			return resp.Text, nil
		}
		if round >= o.opts.MaxRounds {
			answer := degradedAnswer(o.opts.MaxRounds, resp.Text)
			o.opts.Logger.Warn("tool round limit reached", "max_rounds", o.opts.MaxRounds)
			o.state.AddAssistant(answer)
			return answer, nil
		}

		if err := o.runRound(ctx, resp.Calls); err != nil {
			return "", err
		}
	}
}

// runRound records every invocation of the round, then resolves each one.
// Results are independent: one failure does not skip the others.
func (o *Orchestrator) runRound(ctx context.Context, calls []llm.ToolCall) error {
	invocations := make([]protocol.ToolInvocation, 0, len(calls))
	for _, call := range calls {
		id := call.ID
		if id == "" {
			id = o.opts.NewCallID()
		}
		inv := protocol.ToolInvocation{CallID: id, ToolName: call.Name, Arguments: call.Arguments}
		if inv.Arguments == nil && strings.TrimSpace(call.RawArguments) == "" {
			inv.Arguments = map[string]any{}
		}
		invocations = append(invocations, inv)
		o.state.AddInvocation(inv)
	}

	var lost error
	for _, inv := range invocations {
		if lost != nil {
			o.state.AddResult(protocol.Failure(inv.CallID, errorsx.KindConnectionLost, lost.Error()))
			continue
		}
		res, err := o.invoke(ctx, inv)
		if err != nil {
			lost = err
			o.dead = err
			o.state.AddResult(protocol.Failure(inv.CallID, errorsx.KindConnectionLost, err.Error()))
			continue
		}
		o.state.AddResult(res)
	}
	return lost
}

// invoke resolves one invocation. The error return is reserved for a lost connection.
func (o *Orchestrator) invoke(ctx context.Context, inv protocol.ToolInvocation) (protocol.ToolResult, error) {
	if _, ok := o.known[inv.ToolName]; !ok {
		o.opts.Logger.Warn("model requested unknown tool", "tool", inv.ToolName, "call_id", inv.CallID)
		return protocol.Failure(inv.CallID, errorsx.KindToolDispatch, fmt.Sprintf("unknown tool %q", inv.ToolName)), nil
	}
	if inv.Arguments == nil {
		return protocol.Failure(inv.CallID, errorsx.KindInvalidArguments, "tool arguments are not a valid JSON object"), nil
	}

	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
		start := time.Now()
		res, err := o.tools.Call(callCtx, inv)
		cancel()
		if err == nil {
			o.opts.Logger.Debug("tool call finished", "tool", inv.ToolName, "call_id", inv.CallID, "status", res.Status, "took", time.Since(start))
			return res, nil
		}

		switch errorsx.KindOf(err) {
		case errorsx.KindConnectionLost:
			o.opts.Logger.Error("tool server connection lost", "tool", inv.ToolName, "error", err)
			return protocol.ToolResult{}, err
		case errorsx.KindTimeout:
			if attempt < o.opts.CallRetries && ctx.Err() == nil {
				o.opts.Logger.Warn("tool call timed out, retrying", "tool", inv.ToolName, "attempt", attempt+1)
				continue
			}
			return protocol.Failure(inv.CallID, errorsx.KindTimeout,
				fmt.Sprintf("tool %s timed out after %s", inv.ToolName, o.opts.CallTimeout)), nil
		default:
			return protocol.Failure(inv.CallID, errorsx.KindToolDispatch, err.Error()), nil
		}
	}
}

func (o *Orchestrator) complete(ctx context.Context) (llm.Response, error) {
	req := llm.Request{
		Messages:    o.messages(),
		Tools:       o.toolSpecs(),
		Format:      llm.FormatText,
		Temperature: o.opts.Temperature,
	}
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
		resp, err := o.model.Complete(callCtx, req)
		timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
		cancel()
		if err == nil {
			return resp, nil
		}
		if errorsx.Is(err, errorsx.KindTimeout) || timedOut {
			if attempt < o.opts.CallRetries && ctx.Err() == nil {
				o.opts.Logger.Warn("model call timed out, retrying", "attempt", attempt+1)
				continue
			}
			return llm.Response{}, errorsx.New(errorsx.KindTimeout, "model call timed out: %w", err)
		}
		return llm.Response{}, errorsx.Wrap(fmt.Errorf("model call: %w", err), errorsx.KindExternalCapability)
	}
}

func (o *Orchestrator) discover(ctx context.Context) error {
	descs, err := o.tools.ListTools(ctx)
	if err != nil {
		if errorsx.Is(err, errorsx.KindConnectionLost) {
			o.dead = err
		}
		return err
	}
	o.descriptors = descs
	if o.descriptors == nil {
		o.descriptors = []protocol.ToolDescriptor{}
	}
	o.known = make(map[string]struct{}, len(descs))
	for _, d := range descs {
		o.known[d.Name] = struct{}{}
	}
	return nil
}

func (o *Orchestrator) toolsCopy() []protocol.ToolDescriptor {
	out := make([]protocol.ToolDescriptor, len(o.descriptors))
	copy(out, o.descriptors)
	return out
}

func (o *Orchestrator) toolSpecs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(o.descriptors))
	for _, d := range o.descriptors {
		specs = append(specs, llm.ToolSpec{Name: d.Name, Description: d.Description, Parameters: d.InputSchema})
	}
	return specs
}

// messages renders the history for the model. Consecutive invocations form
// one assistant message; each result becomes a tool message.
func (o *Orchestrator) messages() []llm.Message {
	turns := o.state.Turns()
	out := make([]llm.Message, 0, len(turns)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: o.systemPrompt()})

	for i := 0; i < len(turns); i++ {
		turn := turns[i]
		switch turn.Kind {
		case session.TurnUser:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: turn.Text})
		case session.TurnAssistant:
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: turn.Text})
		case session.TurnToolInvocation:
			msg := llm.Message{Role: llm.RoleAssistant}
			for ; i < len(turns) && turns[i].Kind == session.TurnToolInvocation; i++ {
				inv := turns[i].Invocation
				args := inv.Arguments
				if args == nil {
					args = map[string]any{}
				}
				msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{ID: inv.CallID, Name: inv.ToolName, Arguments: args})
			}
			i--
			out = append(out, msg)
		case session.TurnToolResult:
			out = append(out, llm.Message{Role: llm.RoleTool, ToolCallID: turn.Result.CallID, Content: turn.Result.ModelContent()})
		}
	}
	return out
}

func (o *Orchestrator) systemPrompt() string {
	var b strings.Builder
	b.WriteString(o.opts.Instructions)
	if len(o.descriptors) > 0 {
		b.WriteString("\n\nAvailable tools:\n")
		for _, d := range o.descriptors {
			fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
		}
	}
	return b.String()
}

func degradedAnswer(maxRounds int, partial string) string {
	answer := fmt.Sprintf("I stopped after %d rounds of tool calls without reaching a final answer. Try narrowing the request.", maxRounds)
	if partial = strings.TrimSpace(partial); partial != "" {
		answer = partial + "\n\n" + answer
	}
	return answer
}
