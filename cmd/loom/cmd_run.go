package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loomhq/loom/internal/approval"
	"github.com/loomhq/loom/internal/config"
	"github.com/loomhq/loom/internal/entry"
	"github.com/loomhq/loom/internal/executor"
	"github.com/loomhq/loom/internal/logging"
	"github.com/loomhq/loom/internal/process"
	"github.com/loomhq/loom/internal/run"
	"github.com/loomhq/loom/internal/ui"
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("agent", "a", "", "agent profile to use")
	runCmd.Flags().Bool("no-ui", false, "print the timeline instead of the interactive viewer")
	runCmd.Flags().Bool("no-log", false, "skip writing the JSONL timeline file")
}

var runCmd = &cobra.Command{
	Use:   "run <prompt>",
	Short: "Start a new agent session with a prompt",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(cmd, strings.Join(args, " "), "")
	},
}

// runAgent drives one invocation end to end: spawn, record, display,
// terminal result. A non-empty sessionID makes it a follow-up.
func runAgent(cmd *cobra.Command, prompt, sessionID string) error {
	cfg, dir, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	name, profile, err := cfg.Profile(flagString(cmd, "agent"))
	if err != nil {
		return err
	}

	policy, err := approval.CompilePolicy(profile.GatedTools, profile.InputSchemas)
	if err != nil {
		return err
	}
	gate := approval.NewGate(policy)

	ex, err := executor.New(name, profile, gate, cfg.ApprovalTimeout(), nil)
	if err != nil {
		return err
	}
	if avail := ex.Availability(); avail.State == executor.NotFound {
		return fmt.Errorf("agent %s is not installed (no binary on PATH, no credentials)", name)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	r, err := run.Start(ctx, ex, run.Options{
		Dir:       dir,
		Prompt:    prompt,
		SessionID: sessionID,
		Grace:     cfg.Grace(),
	})
	if err != nil {
		return err
	}

	var recordDone chan error
	if !flagBool(cmd, "no-log") {
		logger, err := logging.NewRunLogger(cfg.ExpandLogDir(), dir, r.ID)
		if err != nil {
			return err
		}
		defer logger.Close()
		recordDone = make(chan error, 1)
		go func() { recordDone <- logger.Record(ctx, r.Store()) }()
	}

	// SIGINT / SIGTERM cancel the run: cooperative first, process-group
	// kill after the grace window.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		_ = r.Cancel(context.Background())
	}()

	if !flagBool(cmd, "no-ui") && ui.IsTTY(os.Stdout) {
		if err := ui.RunTimeline(ctx, r.Store(), gate, func() {
			_ = r.Cancel(context.Background())
		}); err != nil {
			return err
		}
	} else {
		printTimeline(ctx, r, gate, cfg)
	}

	res, err := r.Wait(ctx)
	if err != nil {
		return err
	}
	// The store is closed now, but the recorder drains its queue
	// asynchronously; join it before the deferred Close takes the file
	// away from under it.
	if recordDone != nil {
		if rerr := <-recordDone; rerr != nil {
			fmt.Fprintf(os.Stderr, "log recording error: %v\n", rerr)
		}
	}
	if sid := r.SessionID(); sid != "" {
		fmt.Fprintf(os.Stderr, "session: %s\n", sid)
	}
	if !res.Success() {
		return fmt.Errorf("agent exited: %s", exitDetail(res))
	}
	return nil
}

// printTimeline streams entries to stdout until the store closes.
// Pending approvals are announced; without an interactive arbiter they
// resolve at the configured deadline.
func printTimeline(ctx context.Context, r *run.Run, gate *approval.Gate, cfg *config.Config) {
	go func() {
		for p := range gate.Notifications() {
			req := p.Request()
			fmt.Fprintf(os.Stderr, "approval required for %s (denied in %s without a verdict)\n",
				req.ToolName, cfg.ApprovalTimeout())
		}
	}()
	for e := range r.Store().Subscribe(ctx) {
		fmt.Println(formatEntry(e))
	}
}

func formatEntry(e entry.Entry) string {
	prefix := fmt.Sprintf("[%4d %-6s]", e.Seq, e.Origin)
	switch e.Kind {
	case entry.KindInit:
		return fmt.Sprintf("%s session %s agent %s", prefix, e.SessionID, e.AgentID)
	case entry.KindMessage:
		return fmt.Sprintf("%s %s: %s", prefix, e.Role, e.Content)
	case entry.KindToolUse:
		return fmt.Sprintf("%s tool %s %s", prefix, e.ToolName, string(e.ToolInput))
	case entry.KindToolResult:
		if e.IsError {
			return fmt.Sprintf("%s tool error: %s", prefix, e.Content)
		}
		return fmt.Sprintf("%s tool result: %s", prefix, e.Content)
	case entry.KindResult:
		return fmt.Sprintf("%s result %s: %s", prefix, e.Status, e.Summary)
	default:
		return fmt.Sprintf("%s %s", prefix, e.Content)
	}
}

func exitDetail(res process.ExitResult) string {
	if res.Signal != "" {
		return fmt.Sprintf("killed by signal %s", res.Signal)
	}
	return fmt.Sprintf("exit code %d", res.Code)
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func flagBool(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Flags().GetBool(name)
	return v
}
