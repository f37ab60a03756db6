package limits

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
)

// Rejection reasons.
var (
	ErrMaxTotal  = errors.New("maximum number of calls exceeded")
	ErrRateLimit = errors.New("rate limit exceeded")
)

// Policy bounds how often a tool may be called. Zero values disable a bound.
type Policy struct {
	// MaxTotal limits total calls per server process.
	MaxTotal int
	// RatePerMinute limits calls per minute.
	RatePerMinute int
}

type toolState struct {
	count   int
	limiter *rate.Limiter
}

// Guard keeps per-tool counters.
type Guard struct {
	mu       sync.Mutex
	defaults Policy
	perTool  map[string]Policy
	byTool   map[string]*toolState
}

// NewGuard creates a guard; perTool overrides defaults for the named tools.
func NewGuard(defaults Policy, perTool map[string]Policy) *Guard {
	return &Guard{
		defaults: defaults,
		perTool:  perTool,
		byTool:   make(map[string]*toolState),
	}
}

// Allow records a call to tool or returns a tool_dispatch error when a bound is hit.
func (g *Guard) Allow(tool string) error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	policy := g.policy(tool)
	state := g.byTool[tool]
	if state == nil {
		state = &toolState{}
		if policy.RatePerMinute > 0 {
			state.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(policy.RatePerMinute)), policy.RatePerMinute)
		}
		g.byTool[tool] = state
	}

	if policy.MaxTotal > 0 && state.count >= policy.MaxTotal {
		return errorsx.Wrap(fmt.Errorf("tool %s: %w (%d)", tool, ErrMaxTotal, policy.MaxTotal), errorsx.KindToolDispatch)
	}
	if state.limiter != nil && !state.limiter.Allow() {
		return errorsx.Wrap(fmt.Errorf("tool %s: %w (%d per minute)", tool, ErrRateLimit, policy.RatePerMinute), errorsx.KindToolDispatch)
	}
	state.count++
	return nil
}

// Count returns how many calls to tool were allowed.
func (g *Guard) Count(tool string) int {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if state := g.byTool[tool]; state != nil {
		return state.count
	}
	return 0
}

func (g *Guard) policy(tool string) Policy {
	if p, ok := g.perTool[tool]; ok {
		return p
	}
	return g.defaults
}
