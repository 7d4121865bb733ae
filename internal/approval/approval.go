// Package approval implements the async request/response boundary for
// tool invocations that need authorization before they proceed.
package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Verdict is the outcome of an approval request.
type Verdict string

const (
	Approved Verdict = "approved"
	Denied   Verdict = "denied"
	Errored  Verdict = "errored"
)

// Decision is a verdict plus its reason. A Decision with any verdict
// other than Approved is treated as a denial downstream so a run can
// always make forward progress.
type Decision struct {
	Verdict Verdict
	Reason  string
}

// Allowed reports whether the gated tool call may proceed.
func (d Decision) Allowed() bool { return d.Verdict == Approved }

// Request is the ephemeral correlation record for one gated tool call.
type Request struct {
	ID        string
	ToolName  string
	ToolInput json.RawMessage
	CreatedAt time.Time
}

// Pending is an unresolved request. It resolves exactly once; later
// resolutions are no-ops.
type Pending struct {
	req      Request
	decision chan Decision
	once     sync.Once
}

// Request returns the correlation record.
func (p *Pending) Request() Request { return p.req }

// Resolve records the decision if the request is still open. It
// returns false when the request was already resolved.
func (p *Pending) Resolve(d Decision) bool {
	resolved := false
	p.once.Do(func() {
		p.decision <- d
		resolved = true
	})
	return resolved
}

// Wait suspends until the request resolves or ctx ends. A deadline or
// cancellation resolves the request as Errored, so an approval that
// never arrives cannot hang the run. A Resolve that lands at the
// deadline still wins: its decision is honored, never overridden by a
// synthesized error.
func (p *Pending) Wait(ctx context.Context) Decision {
	select {
	case d := <-p.decision:
		return d
	case <-ctx.Done():
		// Synchronize with a racing Resolve; once.Do blocks until an
		// in-flight resolution has finished its send, and marks the
		// request resolved so a later Resolve becomes a no-op.
		p.once.Do(func() {})
		select {
		case d := <-p.decision:
			return d
		default:
		}
		return Decision{Verdict: Errored, Reason: fmt.Sprintf("approval not resolved: %v", ctx.Err())}
	}
}

// Gate tracks pending approval requests for one run and applies the
// configured policy. Normalizers submit requests; an external arbiter
// (the TUI, a service) resolves them.
type Gate struct {
	policy Policy

	mu      sync.Mutex
	pending map[string]*Pending

	// notify carries newly pending requests to an interactive arbiter.
	// Sends never block; an absent arbiter just leaves requests to the
	// caller's deadline.
	notify chan *Pending
}

// NewGate creates a gate with the given policy.
func NewGate(policy Policy) *Gate {
	return &Gate{
		policy:  policy,
		pending: map[string]*Pending{},
		notify:  make(chan *Pending, 16),
	}
}

// Requires reports whether a tool invocation must pass the gate.
func (g *Gate) Requires(toolName string) bool {
	return g.policy.requires(toolName)
}

// Submit registers a request for the given tool call. If the policy
// auto-approves it the returned Pending is already resolved; otherwise
// the request is exposed via Notifications and Resolve until the
// caller's Wait deadline passes.
func (g *Gate) Submit(toolName string, input json.RawMessage) *Pending {
	p := &Pending{
		req: Request{
			ID:        uuid.NewString(),
			ToolName:  toolName,
			ToolInput: input,
			CreatedAt: time.Now().UTC(),
		},
		decision: make(chan Decision, 1),
	}

	if d, ok := g.policy.autoDecide(toolName, input); ok {
		p.Resolve(d)
		return p
	}

	g.mu.Lock()
	g.pending[p.req.ID] = p
	g.mu.Unlock()

	select {
	case g.notify <- p:
	default:
	}
	return p
}

// Resolve resolves the pending request with the given id. It returns
// false when the id is unknown or the request already resolved.
func (g *Gate) Resolve(id string, d Decision) bool {
	g.mu.Lock()
	p, ok := g.pending[id]
	if ok {
		delete(g.pending, id)
	}
	g.mu.Unlock()
	if !ok {
		return false
	}
	return p.Resolve(d)
}

// Pending returns the requests still awaiting a verdict.
func (g *Gate) Pending() []Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Request, 0, len(g.pending))
	for _, p := range g.pending {
		out = append(out, p.req)
	}
	return out
}

// Notifications returns the channel of newly pending requests.
func (g *Gate) Notifications() <-chan *Pending { return g.notify }

// forget drops a request that timed out on the waiter's side.
func (g *Gate) forget(id string) {
	g.mu.Lock()
	delete(g.pending, id)
	g.mu.Unlock()
}

// Decide submits the request and waits for its resolution under ctx.
// This is the one call normalizers use.
func (g *Gate) Decide(ctx context.Context, toolName string, input json.RawMessage) Decision {
	p := g.Submit(toolName, input)
	d := p.Wait(ctx)
	g.forget(p.req.ID)
	return d
}
