package executor

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/loomhq/loom/internal/config"
)

// fakeLookup pins the home directory for availability probes.
type fakeLookup struct {
	home string
	env  map[string]string
}

func (f fakeLookup) Getenv(key string) string { return f.env[key] }
func (f fakeLookup) Home() (string, error)    { return f.home, nil }

func TestClaudeInitialArgv(t *testing.T) {
	c := NewClaude(config.Profile{Model: "opus"}, nil, 0, nil)
	got, err := c.builder().BuildInitial()
	if err != nil {
		t.Fatalf("BuildInitial() error = %v", err)
	}
	want := []string{"claude", "-p", "--output-format", "stream-json", "--verbose", "--model", "opus"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("argv = %v, want %v", got, want)
	}
}

func TestClaudeFollowUpArgv(t *testing.T) {
	c := NewClaude(config.Profile{}, nil, 0, nil)
	got, err := c.builder().BuildFollowUp("--resume", "sess-1")
	if err != nil {
		t.Fatalf("BuildFollowUp() error = %v", err)
	}
	if got[len(got)-2] != "--resume" || got[len(got)-1] != "sess-1" {
		t.Errorf("argv = %v, want --resume sess-1 at the end", got)
	}
}

func TestClaudeProfileOverrides(t *testing.T) {
	c := NewClaude(config.Profile{
		Binary:           "my-claude",
		AdditionalParams: []string{"--dangerously-skip-permissions"},
	}, nil, 0, nil)
	got, err := c.builder().BuildInitial()
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != "my-claude" {
		t.Errorf("argv[0] = %q, want the binary override", got[0])
	}
	if got[len(got)-1] != "--dangerously-skip-permissions" {
		t.Errorf("argv = %v, want additional params at the end", got)
	}
}

func TestClaudeCombinePrompt(t *testing.T) {
	c := NewClaude(config.Profile{AppendPrompt: "\nAlways run the tests."}, nil, 0, nil)
	got := c.combinePrompt("Fix the bug.")
	if got != "Fix the bug.\nAlways run the tests." {
		t.Errorf("combinePrompt() = %q", got)
	}

	plain := NewClaude(config.Profile{}, nil, 0, nil)
	if got := plain.combinePrompt("hi"); got != "hi" {
		t.Errorf("combinePrompt() without append = %q", got)
	}
}

func TestClaudeAvailability(t *testing.T) {
	t.Run("login detected", func(t *testing.T) {
		home := t.TempDir()
		credsPath := filepath.Join(home, claudeCredentialsFile)
		if err := os.WriteFile(credsPath, []byte(`{}`), 0600); err != nil {
			t.Fatal(err)
		}
		authTime := time.Now().Add(-2 * time.Hour)
		if err := os.Chtimes(credsPath, authTime, authTime); err != nil {
			t.Fatal(err)
		}

		c := NewClaude(config.Profile{}, nil, 0, &Env{Lookup: fakeLookup{home: home}})
		got := c.Availability()
		if got.State != LoginDetected {
			t.Fatalf("State = %q, want login_detected", got.State)
		}
		if got.LastAuth.IsZero() {
			t.Error("LastAuth is zero for a detected login")
		}
	})

	t.Run("installation found", func(t *testing.T) {
		// "sh" is on PATH wherever these tests run; an empty home means
		// no credentials.
		c := NewClaude(config.Profile{Binary: "sh"}, nil, 0, &Env{Lookup: fakeLookup{home: t.TempDir()}})
		got := c.Availability()
		if got.State != InstallationFound {
			t.Errorf("State = %q, want installation_found", got.State)
		}
	})

	t.Run("not found", func(t *testing.T) {
		c := NewClaude(config.Profile{Binary: "loom-no-such-binary-xyz"}, nil, 0, &Env{Lookup: fakeLookup{home: t.TempDir()}})
		got := c.Availability()
		if got.State != NotFound {
			t.Errorf("State = %q, want not_found", got.State)
		}
		if !got.LastAuth.IsZero() {
			t.Errorf("LastAuth = %v, want zero", got.LastAuth)
		}
	})
}

func TestClaudeCapabilities(t *testing.T) {
	c := NewClaude(config.Profile{}, nil, 0, nil)
	caps := c.Capabilities()
	for _, want := range []Capability{CapabilityFollowUp, CapabilityStreamJSON, CapabilityGatedTools} {
		found := false
		for _, got := range caps {
			if got == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Capabilities() = %v, missing %q", caps, want)
		}
	}
}

func TestNewClosedAdapterSet(t *testing.T) {
	if _, err := New("claude", config.Profile{}, nil, 0, nil); err != nil {
		t.Errorf("New(claude) error = %v", err)
	}
	// Profile kind wins over the registration name.
	if _, err := New("work", config.Profile{Agent: "claude"}, nil, 0, nil); err != nil {
		t.Errorf("New(work->claude) error = %v", err)
	}
	if _, err := New("gemini", config.Profile{}, nil, 0, nil); err == nil {
		t.Error("New(gemini) succeeded, want an unknown-kind error")
	}
}

func TestEnvEnviron(t *testing.T) {
	t.Setenv("LOOM_ENV_TEST", "parent")
	e := &Env{Overlay: map[string]string{"LOOM_ENV_TEST": "overlay", "LOOM_ENV_EXTRA": "added"}}

	environ := e.Environ()
	got := map[string]string{}
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i > 0 {
			got[kv[:i]] = kv[i+1:]
		}
	}
	if got["LOOM_ENV_TEST"] != "overlay" {
		t.Errorf("LOOM_ENV_TEST = %q, want the overlay to win", got["LOOM_ENV_TEST"])
	}
	if got["LOOM_ENV_EXTRA"] != "added" {
		t.Errorf("LOOM_ENV_EXTRA = %q, want added", got["LOOM_ENV_EXTRA"])
	}
	if !sortedStrings(environ) {
		t.Error("Environ() output is not sorted")
	}
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}
	return true
}

func TestNewClaudeMergesProfileEnv(t *testing.T) {
	env := &Env{Overlay: map[string]string{"A": "base", "B": "base"}}
	c := NewClaude(config.Profile{Env: map[string]string{"B": "profile", "C": "profile"}}, nil, 0, env)

	if c.env.Overlay["A"] != "base" || c.env.Overlay["B"] != "profile" || c.env.Overlay["C"] != "profile" {
		t.Errorf("merged overlay = %v, want the profile env to win on conflicts", c.env.Overlay)
	}
	if env.Overlay["B"] != "base" {
		t.Errorf("caller's Env mutated: %v", env.Overlay)
	}
}
