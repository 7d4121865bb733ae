package main

import (
	"strings"
	"testing"

	"github.com/loomhq/loom/internal/entry"
)

func TestCommandsRegistered(t *testing.T) {
	want := []string{"run", "resume", "agents", "logs", "version"}
	for _, name := range want {
		found := false
		for _, cmd := range rootCmd.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestFormatEntry(t *testing.T) {
	e := entry.Result(entry.OriginSystem, entry.StatusFailure, "process exited with code 2")
	e.Seq = 9

	got := formatEntry(e)
	for _, want := range []string{"9", "system", "failure", "code 2"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatEntry() = %q, missing %q", got, want)
		}
	}
}
