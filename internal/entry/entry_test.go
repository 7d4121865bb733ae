// Package entry tests for the normalized entry model.
package entry

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		entry  Entry
		kind   Kind
		origin Origin
	}{
		{"init", Init(OriginStdout, "sess-1", "model-a"), KindInit, OriginStdout},
		{"message", Message(OriginStdout, "assistant", "hello"), KindMessage, OriginStdout},
		{"tool use", ToolUse(OriginStdout, "t1", "bash", json.RawMessage(`{"command":"ls"}`)), KindToolUse, OriginStdout},
		{"tool result", ToolResult(OriginStdout, "t1", "ok", false), KindToolResult, OriginStdout},
		{"result", Result(OriginSystem, StatusFailure, "boom"), KindResult, OriginSystem},
		{"raw", Raw(OriginStderr, "noise"), KindRaw, OriginStderr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.entry.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", tt.entry.Kind, tt.kind)
			}
			if tt.entry.Origin != tt.origin {
				t.Errorf("Origin = %q, want %q", tt.entry.Origin, tt.origin)
			}
			if tt.entry.Timestamp.IsZero() {
				t.Error("Timestamp is zero")
			}
		})
	}
}

func TestJSONOmitsUnusedFields(t *testing.T) {
	e := Raw(OriginStderr, "warning: something")
	e.Seq = 7

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	s := string(data)

	for _, unwanted := range []string{"tool_name", "session_id", "status", "role"} {
		if strings.Contains(s, unwanted) {
			t.Errorf("raw entry JSON contains %q: %s", unwanted, s)
		}
	}
	for _, wanted := range []string{`"seq":7`, `"origin":"stderr"`, `"kind":"raw"`, `"content":"warning: something"`} {
		if !strings.Contains(s, wanted) {
			t.Errorf("raw entry JSON missing %q: %s", wanted, s)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	e := ToolUse(OriginStdout, "toolu_1", "bash", json.RawMessage(`{"command":"ls -la"}`))
	e.Seq = 3

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var back Entry
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if back.Seq != 3 || back.Kind != KindToolUse || back.ToolName != "bash" {
		t.Errorf("round trip lost fields: %+v", back)
	}
	if string(back.ToolInput) != `{"command":"ls -la"}` {
		t.Errorf("ToolInput = %s, want the original input", back.ToolInput)
	}
}
