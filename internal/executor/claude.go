package executor

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loomhq/loom/internal/approval"
	"github.com/loomhq/loom/internal/config"
	"github.com/loomhq/loom/internal/logs"
	"github.com/loomhq/loom/internal/process"
	"github.com/loomhq/loom/internal/store"
)

const (
	claudeBaseCommand = "claude"

	// claudeCredentialsFile is probed (metadata only) for login
	// detection.
	claudeCredentialsFile = ".claude.json"
)

// Claude runs the claude CLI in non-interactive print mode with
// stream-json output. Follow-ups are a native protocol-level resume
// via --resume <session-id>.
type Claude struct {
	profile         config.Profile
	gate            *approval.Gate
	approvalTimeout time.Duration
	env             *Env
}

// NewClaude creates the claude adapter for a profile.
func NewClaude(profile config.Profile, gate *approval.Gate, approvalTimeout time.Duration, env *Env) *Claude {
	if env == nil {
		env = &Env{}
	}
	if len(profile.Env) > 0 {
		merged := map[string]string{}
		for k, v := range env.Overlay {
			merged[k] = v
		}
		for k, v := range profile.Env {
			merged[k] = v
		}
		env = &Env{Lookup: env.Lookup, Overlay: merged}
	}
	return &Claude{profile: profile, gate: gate, approvalTimeout: approvalTimeout, env: env}
}

// Name implements Executor.
func (c *Claude) Name() string { return "claude" }

func (c *Claude) builder() CommandBuilder {
	b := NewCommandBuilder(claudeBaseCommand).
		Params("-p", "--output-format", "stream-json", "--verbose")
	if c.profile.Model != "" {
		b = b.Params("--model", c.profile.Model)
	}
	return b.Apply(Overrides{
		BaseOverride:     c.profile.Binary,
		AdditionalParams: c.profile.AdditionalParams,
	})
}

// combinePrompt appends the profile's append_prompt to the user prompt.
func (c *Claude) combinePrompt(prompt string) string {
	return prompt + c.profile.AppendPrompt
}

func (c *Claude) spawn(dir, prompt string, argv []string) (*process.Handle, error) {
	h, err := process.Spawn(argv, dir, c.env.Environ())
	if err != nil {
		return nil, err
	}
	// Feed the prompt in, then close the pipe so the agent sees EOF.
	if err := h.FeedStdin(c.combinePrompt(prompt)); err != nil {
		_ = h.Close()
		return nil, err
	}
	return h, nil
}

// Spawn implements Executor.
func (c *Claude) Spawn(ctx context.Context, dir, prompt string) (*process.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	argv, err := c.builder().BuildInitial()
	if err != nil {
		return nil, err
	}
	return c.spawn(dir, prompt, argv)
}

// SpawnFollowUp implements Executor.
func (c *Claude) SpawnFollowUp(ctx context.Context, dir, prompt, sessionID string) (*process.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	argv, err := c.builder().BuildFollowUp("--resume", sessionID)
	if err != nil {
		return nil, err
	}
	return c.spawn(dir, prompt, argv)
}

// NormalizeLogs implements Executor: the stream-json normalizer on
// stdout, the raw monitor on stderr, one shared index provider started
// from the store's tail.
func (c *Claude) NormalizeLogs(ctx context.Context, h *process.Handle, st *store.MsgStore, dir string) *Drain {
	index := store.StartFrom(st)
	stdout := logs.NewClaudeNormalizer(st, index, c.gate, c.approvalTimeout)
	stderr := logs.NewStderrMonitor(st, index)

	// A plain group, not WithContext: a parse failure on one stream
	// must not abort draining the other.
	var eg errgroup.Group
	eg.Go(func() error { return stdout.Normalize(ctx, h.Stdout()) })
	eg.Go(func() error { return stderr.Normalize(ctx, h.Stderr()) })
	return NewDrain(&eg, stdout.SessionID, stdout.SawResult)
}

// Capabilities implements Executor.
func (c *Claude) Capabilities() []Capability {
	return []Capability{CapabilityFollowUp, CapabilityStreamJSON, CapabilityGatedTools}
}

// Availability implements Executor. A credentials file under the home
// directory counts as a login; a binary on PATH counts as an
// installation.
func (c *Claude) Availability() Availability {
	if home, err := c.env.Home(); err == nil {
		if info, err := os.Stat(filepath.Join(home, claudeCredentialsFile)); err == nil {
			return Availability{State: LoginDetected, LastAuth: info.ModTime()}
		}
	}
	binary := c.profile.Binary
	if binary == "" {
		binary = claudeBaseCommand
	}
	if _, err := exec.LookPath(binary); err == nil {
		return Availability{State: InstallationFound}
	}
	return Availability{State: NotFound}
}
