// Package config tests configuration loading and defaults.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.LogDir != DefaultLogDir {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, DefaultLogDir)
	}
	if cfg.DefaultAgent != DefaultAgent {
		t.Errorf("DefaultAgent = %q, want %q", cfg.DefaultAgent, DefaultAgent)
	}
	if _, ok := cfg.Profiles["claude"]; !ok {
		t.Error("default profiles missing claude")
	}
	if cfg.ApprovalTimeout() != time.Duration(DefaultApprovalSeconds)*time.Second {
		t.Errorf("ApprovalTimeout() = %v", cfg.ApprovalTimeout())
	}
	if cfg.Grace() != time.Duration(DefaultGraceSeconds)*time.Second {
		t.Errorf("Grace() = %v", cfg.Grace())
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loom.toml")
	content := `
log_dir = "/var/log/loom"
default_agent = "work"
approval_timeout_seconds = 30
grace_seconds = 2

[profiles.work]
agent = "claude"
model = "opus"
append_prompt = "\nBe careful."
additional_params = ["--dangerously-skip-permissions"]
gated_tools = ["bash"]

[profiles.work.env]
CLAUDE_CODE_ENTRYPOINT = "loom"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogDir != "/var/log/loom" {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if cfg.ApprovalTimeout() != 30*time.Second {
		t.Errorf("ApprovalTimeout() = %v, want 30s", cfg.ApprovalTimeout())
	}
	if cfg.Grace() != 2*time.Second {
		t.Errorf("Grace() = %v, want 2s", cfg.Grace())
	}

	name, p, err := cfg.Profile("")
	if err != nil {
		t.Fatalf("Profile(\"\") error = %v", err)
	}
	if name != "work" {
		t.Errorf("default profile name = %q, want work", name)
	}
	if p.Kind(name) != "claude" {
		t.Errorf("Kind() = %q, want claude", p.Kind(name))
	}
	if p.Model != "opus" || len(p.AdditionalParams) != 1 {
		t.Errorf("profile = %+v", p)
	}
	if p.Env["CLAUDE_CODE_ENTRYPOINT"] != "loom" {
		t.Errorf("profile env = %v", p.Env)
	}
	if len(p.GatedTools) != 1 || p.GatedTools[0] != "bash" {
		t.Errorf("GatedTools = %v", p.GatedTools)
	}

	// The default claude profile survives the merge.
	if _, _, err := cfg.Profile("claude"); err != nil {
		t.Errorf("Profile(claude) error = %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("Load() succeeded for a missing file")
	}
}

func TestLoadOrDefaultProjectFile(t *testing.T) {
	dir := t.TempDir()
	content := "default_agent = \"claude\"\nlog_dir = \"./logs\"\n"
	if err := os.WriteFile(filepath.Join(dir, ProjectFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadOrDefault("", dir)
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.LogDir != "./logs" {
		t.Errorf("LogDir = %q, want the project file value", cfg.LogDir)
	}
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := LoadOrDefault("", t.TempDir())
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.DefaultAgent != DefaultAgent {
		t.Errorf("DefaultAgent = %q, want the default", cfg.DefaultAgent)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOOM_LOG_DIR", "/tmp/loom-env")
	t.Setenv("LOOM_DEFAULT_AGENT", "claude")
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadOrDefault("", t.TempDir())
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.LogDir != "/tmp/loom-env" {
		t.Errorf("LogDir = %q, want the env override", cfg.LogDir)
	}
}

func TestProfileUnknown(t *testing.T) {
	cfg := Default()
	if _, _, err := cfg.Profile("nope"); err == nil {
		t.Error("Profile(nope) succeeded")
	}
}

func TestDurationFloors(t *testing.T) {
	cfg := &Config{ApprovalTimeoutSeconds: -1, GraceSeconds: 0}
	if cfg.ApprovalTimeout() != time.Duration(DefaultApprovalSeconds)*time.Second {
		t.Errorf("ApprovalTimeout() = %v, want the default floor", cfg.ApprovalTimeout())
	}
	if cfg.Grace() != time.Duration(DefaultGraceSeconds)*time.Second {
		t.Errorf("Grace() = %v, want the default floor", cfg.Grace())
	}
}

func TestExpandLogDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := &Config{LogDir: "~/.loom"}
	if got := cfg.ExpandLogDir(); got != filepath.Join(home, ".loom") {
		t.Errorf("ExpandLogDir() = %q", got)
	}

	cfg = &Config{LogDir: "/abs/path"}
	if got := cfg.ExpandLogDir(); got != "/abs/path" {
		t.Errorf("ExpandLogDir() = %q, want the path unchanged", got)
	}
}
