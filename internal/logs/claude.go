package logs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/loomhq/loom/internal/approval"
	"github.com/loomhq/loom/internal/entry"
	"github.com/loomhq/loom/internal/store"
)

// ClaudeNormalizer parses the stream-json output format used by the
// claude CLI family: NDJSON with system/assistant/user/result events.
// Lines that fail to parse become raw entries.
type ClaudeNormalizer struct {
	store           *store.MsgStore
	index           *store.IndexProvider
	gate            *approval.Gate
	approvalTimeout time.Duration

	mu        sync.Mutex
	sessionID string
	sawResult bool
}

// NewClaudeNormalizer creates a stdout normalizer writing to st. gate
// may be nil when no tool is gated. approvalTimeout bounds how long a
// gated tool_use may stay pending; zero means the caller's ctx is the
// only bound.
func NewClaudeNormalizer(st *store.MsgStore, index *store.IndexProvider, gate *approval.Gate, approvalTimeout time.Duration) *ClaudeNormalizer {
	return &ClaudeNormalizer{
		store:           st,
		index:           index,
		gate:            gate,
		approvalTimeout: approvalTimeout,
	}
}

// SessionID returns the session identifier announced by the agent's
// init event, if one has been seen.
func (n *ClaudeNormalizer) SessionID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sessionID
}

// SawResult reports whether the agent emitted its own terminal result.
func (n *ClaudeNormalizer) SawResult() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sawResult
}

// commit sequences and appends atomically. Sequencing happens here, at
// the moment the entry is ready, so a tool_use held at the approval
// gate sequences after the entries that arrived while it waited.
func (n *ClaudeNormalizer) commit(e entry.Entry) {
	n.store.Append(n.index, e)
}

// Normalize drains r until EOF or ctx cancellation. Gated tool calls
// suspend this stream only; the stderr drain runs independently.
func (n *ClaudeNormalizer) Normalize(ctx context.Context, r io.Reader) error {
	scanner := newScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		n.processLine(ctx, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stdout scanner error: %w", err)
	}
	return nil
}

func (n *ClaudeNormalizer) processLine(ctx context.Context, line string) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		n.commit(entry.Raw(entry.OriginStdout, line))
		return
	}

	msgType, _ := raw["type"].(string)
	switch msgType {
	case "system", "init":
		n.processInit(raw, line)
	case "assistant":
		n.processAssistant(ctx, raw, line)
	case "message":
		// Compact form used by some stream variants: content at the
		// top level instead of a nested message object.
		role, _ := raw["role"].(string)
		if role == "" {
			role = "assistant"
		}
		if text := blockText(raw["content"]); text != "" {
			n.commit(entry.Message(entry.OriginStdout, role, text))
		} else {
			n.commit(entry.Raw(entry.OriginStdout, line))
		}
	case "user":
		n.processUser(raw, line)
	case "result":
		n.processResult(raw)
	default:
		n.commit(entry.Raw(entry.OriginStdout, line))
	}
}

func (n *ClaudeNormalizer) processInit(raw map[string]any, line string) {
	if subtype, _ := raw["subtype"].(string); subtype != "" && subtype != "init" {
		// Non-init system events (status chatter) pass through raw.
		n.commit(entry.Raw(entry.OriginStdout, line))
		return
	}
	sessionID, _ := raw["session_id"].(string)
	agentID, _ := raw["model"].(string)
	if agentID == "" {
		agentID, _ = raw["agent_id"].(string)
	}
	n.mu.Lock()
	if sessionID != "" {
		n.sessionID = sessionID
	}
	n.mu.Unlock()
	n.commit(entry.Init(entry.OriginStdout, sessionID, agentID))
}

func (n *ClaudeNormalizer) processAssistant(ctx context.Context, raw map[string]any, line string) {
	message, ok := raw["message"].(map[string]any)
	if !ok {
		n.commit(entry.Raw(entry.OriginStdout, line))
		return
	}
	role, _ := message["role"].(string)
	if role == "" {
		role = "assistant"
	}

	content, ok := message["content"].([]any)
	if !ok {
		// Content may be a bare string in compact output modes.
		if text, ok := message["content"].(string); ok && text != "" {
			n.commit(entry.Message(entry.OriginStdout, role, text))
			return
		}
		n.commit(entry.Raw(entry.OriginStdout, line))
		return
	}

	var text strings.Builder
	for _, item := range content {
		block, ok := item.(map[string]any)
		if !ok {
			continue
		}
		switch blockType, _ := block["type"].(string); blockType {
		case "text":
			if t, ok := block["text"].(string); ok {
				text.WriteString(t)
			}
		case "tool_use":
			// Flush accumulated text first so the message precedes
			// the tool call it introduces.
			if text.Len() > 0 {
				n.commit(entry.Message(entry.OriginStdout, role, text.String()))
				text.Reset()
			}
			n.processToolUse(ctx, block)
		}
	}
	if text.Len() > 0 {
		n.commit(entry.Message(entry.OriginStdout, role, text.String()))
	}
}

func (n *ClaudeNormalizer) processToolUse(ctx context.Context, block map[string]any) {
	id, _ := block["id"].(string)
	name, _ := block["name"].(string)
	var input json.RawMessage
	if v, ok := block["input"]; ok {
		input, _ = json.Marshal(v)
	}

	if n.gate == nil || !n.gate.Requires(name) {
		n.commit(entry.ToolUse(entry.OriginStdout, id, name, input))
		return
	}

	dctx := ctx
	if n.approvalTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, n.approvalTimeout)
		defer cancel()
	}
	d := n.gate.Decide(dctx, name, input)

	n.commit(entry.ToolUse(entry.OriginStdout, id, name, input))
	if !d.Allowed() {
		n.commit(entry.ToolResult(entry.OriginSystem, id,
			fmt.Sprintf("tool call not approved: %s", d.Reason), true))
	}
}

func (n *ClaudeNormalizer) processUser(raw map[string]any, line string) {
	message, ok := raw["message"].(map[string]any)
	if !ok {
		n.commit(entry.Raw(entry.OriginStdout, line))
		return
	}
	content, ok := message["content"].([]any)
	if !ok {
		n.commit(entry.Raw(entry.OriginStdout, line))
		return
	}
	committed := false
	for _, item := range content {
		block, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if blockType, _ := block["type"].(string); blockType != "tool_result" {
			continue
		}
		toolUseID, _ := block["tool_use_id"].(string)
		isError, _ := block["is_error"].(bool)
		n.commit(entry.ToolResult(entry.OriginStdout, toolUseID, blockText(block["content"]), isError))
		committed = true
	}
	if !committed {
		n.commit(entry.Raw(entry.OriginStdout, line))
	}
}

func (n *ClaudeNormalizer) processResult(raw map[string]any) {
	status := entry.StatusSuccess
	if isErr, _ := raw["is_error"].(bool); isErr {
		status = entry.StatusFailure
	}
	if subtype, _ := raw["subtype"].(string); strings.HasPrefix(subtype, "error") {
		status = entry.StatusFailure
	}
	if s, ok := raw["status"].(string); ok && s != "" && s != "success" {
		status = entry.StatusFailure
	}
	summary, _ := raw["result"].(string)
	n.mu.Lock()
	n.sawResult = true
	n.mu.Unlock()
	n.commit(entry.Result(entry.OriginStdout, status, summary))
}

// blockText extracts readable text from a tool_result content value,
// which may be a string or a list of text blocks.
func blockText(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []any:
		var parts []string
		for _, item := range v {
			switch typed := item.(type) {
			case string:
				if typed != "" {
					parts = append(parts, typed)
				}
			case map[string]any:
				if text, ok := typed["text"].(string); ok && text != "" {
					parts = append(parts, text)
				}
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}
