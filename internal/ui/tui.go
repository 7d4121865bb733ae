// Package ui provides an optional terminal viewer for a live run: the
// entry timeline as it lands in the store, plus interactive resolution
// of pending tool approvals.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/loomhq/loom/internal/approval"
	"github.com/loomhq/loom/internal/entry"
	"github.com/loomhq/loom/internal/store"
)

// maxVisibleEntries bounds how many timeline rows are rendered; the
// full history stays in the store and the JSONL log.
const maxVisibleEntries = 30

// RunTimeline shows the live timeline for st until the store closes or
// the user quits. gate may be nil when nothing is gated; cancel is
// invoked when the user aborts the run and may be nil for replay.
func RunTimeline(ctx context.Context, st *store.MsgStore, gate *approval.Gate, cancel func()) error {
	if !IsTTY(os.Stdout) {
		return fmt.Errorf("timeline ui requires a TTY")
	}
	model := newTimelineModel(ctx, st, gate, cancel)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

type timelineModel struct {
	entries  []entry.Entry
	pending  []*approval.Pending
	entryCh  <-chan entry.Entry
	notifyCh <-chan *approval.Pending
	done     bool
	cancel   func()
}

type entryMsg struct{ e entry.Entry }

type timelineClosedMsg struct{}

type approvalMsg struct{ p *approval.Pending }

func newTimelineModel(ctx context.Context, st *store.MsgStore, gate *approval.Gate, cancel func()) *timelineModel {
	m := &timelineModel{
		entryCh: st.Subscribe(ctx),
		cancel:  cancel,
	}
	if gate != nil {
		m.notifyCh = gate.Notifications()
	}
	return m
}

func (m *timelineModel) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForEntry(m.entryCh)}
	if m.notifyCh != nil {
		cmds = append(cmds, waitForApproval(m.notifyCh))
	}
	return tea.Batch(cmds...)
}

func (m *timelineModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.cancel != nil && !m.done {
				m.cancel()
			}
			return m, tea.Quit
		case "y":
			m.resolveFirst(approval.Decision{Verdict: approval.Approved, Reason: "approved interactively"})
			return m, nil
		case "n":
			m.resolveFirst(approval.Decision{Verdict: approval.Denied, Reason: "denied interactively"})
			return m, nil
		}
	case entryMsg:
		m.entries = append(m.entries, msg.e)
		if len(m.entries) > maxVisibleEntries {
			m.entries = m.entries[len(m.entries)-maxVisibleEntries:]
		}
		return m, waitForEntry(m.entryCh)
	case timelineClosedMsg:
		m.done = true
		return m, nil
	case approvalMsg:
		m.pending = append(m.pending, msg.p)
		return m, waitForApproval(m.notifyCh)
	}
	return m, nil
}

func (m *timelineModel) resolveFirst(d approval.Decision) {
	for len(m.pending) > 0 {
		p := m.pending[0]
		m.pending = m.pending[1:]
		if p.Resolve(d) {
			return
		}
		// Already resolved elsewhere (deadline, auto policy); try the
		// next one.
	}
}

func (m *timelineModel) View() string {
	var b strings.Builder
	b.WriteString("loom timeline\n\n")

	for _, e := range m.entries {
		b.WriteString(formatEntry(e))
		b.WriteString("\n")
	}

	if len(m.pending) > 0 {
		req := m.pending[0].Request()
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("approval required: %s %s\n", req.ToolName, truncate(string(req.ToolInput), 120)))
		b.WriteString("  y approve / n deny\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString("run complete, q to exit\n")
	} else {
		b.WriteString("q to cancel and exit\n")
	}
	return b.String()
}

func formatEntry(e entry.Entry) string {
	prefix := fmt.Sprintf("%4d %-6s", e.Seq, e.Origin)
	switch e.Kind {
	case entry.KindInit:
		return fmt.Sprintf("%s session %s (%s)", prefix, e.SessionID, e.AgentID)
	case entry.KindMessage:
		return fmt.Sprintf("%s %s: %s", prefix, e.Role, truncate(e.Content, 100))
	case entry.KindToolUse:
		return fmt.Sprintf("%s tool %s %s", prefix, e.ToolName, truncate(string(e.ToolInput), 80))
	case entry.KindToolResult:
		marker := "ok"
		if e.IsError {
			marker = "error"
		}
		return fmt.Sprintf("%s tool result (%s): %s", prefix, marker, truncate(e.Content, 80))
	case entry.KindResult:
		return fmt.Sprintf("%s result %s: %s", prefix, e.Status, truncate(e.Summary, 100))
	default:
		return fmt.Sprintf("%s %s", prefix, truncate(e.Content, 100))
	}
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func waitForEntry(ch <-chan entry.Entry) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return timelineClosedMsg{}
		}
		return entryMsg{e: e}
	}
}

func waitForApproval(ch <-chan *approval.Pending) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return approvalMsg{p: p}
	}
}

// IsTTY returns true if the writer is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
