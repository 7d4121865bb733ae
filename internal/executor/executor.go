// Package executor defines the contract every agent adapter implements
// and the shared pieces adapters build on: argument assembly, the
// execution environment, and availability introspection. The harness
// is agnostic to an adapter's output grammar; adapters wire their own
// normalizers in NormalizeLogs.
package executor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loomhq/loom/internal/approval"
	"github.com/loomhq/loom/internal/config"
	"github.com/loomhq/loom/internal/process"
	"github.com/loomhq/loom/internal/store"
)

// Capability tags describe what an adapter can do.
type Capability string

const (
	// CapabilityFollowUp marks native session resumption. Adapters
	// without it approximate follow-ups and must document how.
	CapabilityFollowUp Capability = "follow_up"

	// CapabilityStreamJSON marks structured stream output.
	CapabilityStreamJSON Capability = "stream_json"

	// CapabilityGatedTools marks approval-gate support.
	CapabilityGatedTools Capability = "gated_tools"
)

// AvailabilityState classifies whether an agent is usable locally.
type AvailabilityState string

const (
	NotFound          AvailabilityState = "not_found"
	InstallationFound AvailabilityState = "installation_found"
	LoginDetected     AvailabilityState = "login_detected"
)

// Availability is the result of a local introspection probe. It never
// has side effects beyond filesystem metadata reads.
type Availability struct {
	State AvailabilityState

	// LastAuth is set for LoginDetected.
	LastAuth time.Time
}

// Executor is the polymorphic interface one adapter family implements.
type Executor interface {
	// Name identifies the adapter family.
	Name() string

	// Spawn starts a new session in dir with the given prompt. The
	// prompt is fed to stdin once and the write side is closed before
	// Spawn returns.
	Spawn(ctx context.Context, dir, prompt string) (*process.Handle, error)

	// SpawnFollowUp continues the session identified by sessionID.
	SpawnFollowUp(ctx context.Context, dir, prompt, sessionID string) (*process.Handle, error)

	// NormalizeLogs attaches the adapter's normalizers to the
	// handle's output streams and the given store. Both streams share
	// one index provider started from the store's current tail, so
	// reattachment never collides with prior sequence numbers.
	NormalizeLogs(ctx context.Context, h *process.Handle, st *store.MsgStore, dir string) *Drain

	// Capabilities reports the adapter's capability tags.
	Capabilities() []Capability

	// Availability probes for a local installation or login.
	Availability() Availability
}

// Drain tracks the concurrent normalizer goroutines for one run.
type Drain struct {
	eg        *errgroup.Group
	sessionID func() string
	sawResult func() bool
}

// NewDrain wraps an errgroup plus the adapter's session/result probes.
func NewDrain(eg *errgroup.Group, sessionID func() string, sawResult func() bool) *Drain {
	return &Drain{eg: eg, sessionID: sessionID, sawResult: sawResult}
}

// Wait blocks until both streams are fully drained.
func (d *Drain) Wait() error { return d.eg.Wait() }

// SessionID returns the session announced by the agent, if any.
func (d *Drain) SessionID() string {
	if d.sessionID == nil {
		return ""
	}
	return d.sessionID()
}

// SawResult reports whether the agent emitted its own terminal result.
func (d *Drain) SawResult() bool {
	if d.sawResult == nil {
		return false
	}
	return d.sawResult()
}

// New builds the adapter for a profile. The adapter set is closed and
// known at build time; selection happens here rather than through an
// open registry.
func New(name string, profile config.Profile, gate *approval.Gate, approvalTimeout time.Duration, env *Env) (Executor, error) {
	switch profile.Kind(name) {
	case "claude":
		return NewClaude(profile, gate, approvalTimeout, env), nil
	default:
		return nil, fmt.Errorf("unknown agent kind: %s", profile.Kind(name))
	}
}
