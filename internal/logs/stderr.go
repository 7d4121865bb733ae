package logs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/loomhq/loom/internal/entry"
	"github.com/loomhq/loom/internal/store"
)

// StderrMonitor commits every non-empty stderr line as a raw entry.
// Agents rarely frame stderr; diagnostics pass through verbatim.
type StderrMonitor struct {
	store *store.MsgStore
	index *store.IndexProvider
}

// NewStderrMonitor creates a stderr normalizer writing to st.
func NewStderrMonitor(st *store.MsgStore, index *store.IndexProvider) *StderrMonitor {
	return &StderrMonitor{store: st, index: index}
}

// Normalize drains r until EOF or ctx cancellation.
func (m *StderrMonitor) Normalize(ctx context.Context, r io.Reader) error {
	scanner := newScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		m.store.Append(m.index, entry.Raw(entry.OriginStderr, line))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stderr scanner error: %w", err)
	}
	return nil
}
