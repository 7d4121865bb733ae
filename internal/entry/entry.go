// Package entry defines the normalized log entry model shared by all
// agent adapters. Every unit of agent output, from any origin, becomes
// exactly one Entry carrying a global sequence number.
package entry

import (
	"encoding/json"
	"time"
)

// Origin identifies which stream an entry came from.
type Origin string

const (
	OriginStdout Origin = "stdout"
	OriginStderr Origin = "stderr"

	// OriginSystem marks entries synthesized by the harness itself,
	// such as denial markers and terminal results for crashed runs.
	OriginSystem Origin = "system"
)

// Kind is the entry type discriminator used in the JSON encoding.
type Kind string

const (
	KindInit       Kind = "init"
	KindMessage    Kind = "message"
	KindToolUse    Kind = "tool_use"
	KindToolResult Kind = "tool_result"
	KindResult     Kind = "result"
	KindRaw        Kind = "raw"
)

// Result statuses for terminal entries.
const (
	StatusSuccess   = "success"
	StatusFailure   = "failure"
	StatusCancelled = "cancelled"
)

// Entry is one normalized unit of agent output. An Entry is immutable
// once it has been assigned a sequence number and pushed to a store.
type Entry struct {
	// Seq is the global, strictly increasing sequence number. It is
	// assigned at commit time, just before the entry enters a store.
	Seq uint64 `json:"seq"`

	// Origin is the stream the entry came from.
	Origin Origin `json:"origin"`

	// Timestamp records when the entry was created. It is cosmetic;
	// Seq is the ordering authority.
	Timestamp time.Time `json:"timestamp"`

	// Kind selects which of the payload fields below are meaningful.
	Kind Kind `json:"kind"`

	// SessionID and AgentID are set for init entries.
	SessionID string `json:"session_id,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`

	// Role is set for message entries (assistant, user).
	Role string `json:"role,omitempty"`

	// Content carries message text, tool result content, and raw lines.
	Content string `json:"content,omitempty"`

	// ToolID, ToolName and ToolInput are set for tool_use entries.
	ToolID    string          `json:"tool_id,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`

	// ToolUseID correlates a tool_result entry with its tool_use.
	ToolUseID string `json:"tool_use_id,omitempty"`

	// IsError marks failed tool results.
	IsError bool `json:"is_error,omitempty"`

	// Status and Summary are set for result entries.
	Status  string `json:"status,omitempty"`
	Summary string `json:"summary,omitempty"`
}

func base(origin Origin, kind Kind) Entry {
	return Entry{
		Origin:    origin,
		Timestamp: time.Now().UTC(),
		Kind:      kind,
	}
}

// Init builds a session-init entry.
func Init(origin Origin, sessionID, agentID string) Entry {
	e := base(origin, KindInit)
	e.SessionID = sessionID
	e.AgentID = agentID
	return e
}

// Message builds an assistant or user message entry.
func Message(origin Origin, role, content string) Entry {
	e := base(origin, KindMessage)
	e.Role = role
	e.Content = content
	return e
}

// ToolUse builds a tool invocation entry.
func ToolUse(origin Origin, id, name string, input json.RawMessage) Entry {
	e := base(origin, KindToolUse)
	e.ToolID = id
	e.ToolName = name
	e.ToolInput = input
	return e
}

// ToolResult builds a tool outcome entry correlated by toolUseID.
func ToolResult(origin Origin, toolUseID, content string, isError bool) Entry {
	e := base(origin, KindToolResult)
	e.ToolUseID = toolUseID
	e.Content = content
	e.IsError = isError
	return e
}

// Result builds a terminal entry. Every run's timeline ends in one.
func Result(origin Origin, status, summary string) Entry {
	e := base(origin, KindResult)
	e.Status = status
	e.Summary = summary
	return e
}

// Raw builds a passthrough entry for lines that did not parse. No input
// is ever discarded; it lands here instead.
func Raw(origin Origin, text string) Entry {
	e := base(origin, KindRaw)
	e.Content = text
	return e
}
