package runtime

import (
	"context"
	"fmt"
	"sync"
)

// State is the server lifecycle state.
type State int

const (
	StateIdle State = iota
	StateListening
	StateHandling
	StateStopped
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateListening:
		return "LISTENING"
	case StateHandling:
		return "HANDLING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// InvalidTransitionError reports a disallowed state change.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid lifecycle transition %s -> %s", e.From, e.To)
}

// Lifecycle tracks the server state. The server is Handling while at least
// one call is in flight.
type Lifecycle struct {
	mu       sync.RWMutex
	state    State
	inFlight int
}

// NewLifecycle returns a lifecycle in the Idle state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// InFlight returns the number of calls being handled.
func (l *Lifecycle) InFlight() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.inFlight
}

// Start moves Idle to Listening.
func (l *Lifecycle) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateIdle {
		return &InvalidTransitionError{From: l.state, To: StateListening}
	}
	l.state = StateListening
	return nil
}

// Begin records a new call.
func (l *Lifecycle) Begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateListening, StateHandling:
	default:
		return &InvalidTransitionError{From: l.state, To: StateHandling}
	}
	l.inFlight++
	l.state = StateHandling
	return nil
}

// End records a finished call.
func (l *Lifecycle) End() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight > 0 {
		l.inFlight--
	}
	if l.state == StateHandling && l.inFlight == 0 {
		l.state = StateListening
	}
}

// Stop moves any state to the terminal Stopped state.
func (l *Lifecycle) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateStopped
}

// Serve runs serve between Start and Stop. The lifecycle is Stopped once serve returns.
func (l *Lifecycle) Serve(ctx context.Context, serve func(context.Context) error) error {
	if err := l.Start(); err != nil {
		return err
	}
	defer l.Stop()
	return serve(ctx)
}
