// Package config handles configuration loading and defaults. Settings
// come from a TOML file (project file first, then the user file) with
// environment overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Default values.
const (
	DefaultLogDir          = "~/.loom"
	DefaultAgent           = "claude"
	DefaultApprovalSeconds = 120
	DefaultGraceSeconds    = 5
)

// ProjectFileName is looked up in the working directory before falling
// back to the user file under the home directory.
const ProjectFileName = "loom.toml"

// UserFileRelPath is the user config path relative to the home dir.
const UserFileRelPath = ".loom/config.toml"

// Config holds the full configuration for loom.
type Config struct {
	// LogDir is where per-run JSONL timelines are written.
	LogDir string `toml:"log_dir"`

	// DefaultAgent names the profile used when none is requested.
	DefaultAgent string `toml:"default_agent"`

	// ApprovalTimeoutSeconds bounds how long a gated tool call stays
	// pending before it resolves as an error (denial-equivalent).
	ApprovalTimeoutSeconds int `toml:"approval_timeout_seconds"`

	// GraceSeconds is the cooperative-shutdown window before a
	// cancelled run's process group is killed.
	GraceSeconds int `toml:"grace_seconds"`

	// Profiles maps profile names to agent settings.
	Profiles map[string]Profile `toml:"profiles"`
}

// Profile configures one agent adapter instance.
type Profile struct {
	// Agent selects the adapter family. Defaults to the profile name.
	Agent string `toml:"agent"`

	// Binary overrides the adapter's base command.
	Binary string `toml:"binary"`

	// Model is passed through to the agent when set.
	Model string `toml:"model"`

	// AppendPrompt is combined with every user prompt before the
	// prompt is fed to the agent.
	AppendPrompt string `toml:"append_prompt"`

	// AdditionalParams are appended to the built argument vector.
	AdditionalParams []string `toml:"additional_params"`

	// Env is overlaid on the parent environment for the child.
	Env map[string]string `toml:"env"`

	// GatedTools lists tool names that require approval; "*" gates
	// every tool.
	GatedTools []string `toml:"gated_tools"`

	// InputSchemas maps a gated tool name to a JSON schema file; a
	// call whose input validates is auto-approved.
	InputSchemas map[string]string `toml:"input_schemas"`
}

// Kind returns the adapter family for the profile registered under
// name.
func (p Profile) Kind(name string) string {
	if p.Agent != "" {
		return p.Agent
	}
	return name
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogDir:                 DefaultLogDir,
		DefaultAgent:           DefaultAgent,
		ApprovalTimeoutSeconds: DefaultApprovalSeconds,
		GraceSeconds:           DefaultGraceSeconds,
		Profiles: map[string]Profile{
			"claude": {Agent: "claude"},
		},
	}
}

// Load reads the config file at path and merges it over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadOrDefault loads the first config file found (explicit path, then
// the project file in dir, then the user file) and falls back to the
// defaults when none exists.
func LoadOrDefault(explicit, dir string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	project := filepath.Join(dir, ProjectFileName)
	if _, err := os.Stat(project); err == nil {
		return Load(project)
	}
	if home, err := os.UserHomeDir(); err == nil {
		user := filepath.Join(home, filepath.FromSlash(UserFileRelPath))
		if _, err := os.Stat(user); err == nil {
			return Load(user)
		}
	}
	cfg := Default()
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides file values from LOOM_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("LOOM_LOG_DIR"); v != "" {
		c.LogDir = v
	}
	if v := os.Getenv("LOOM_DEFAULT_AGENT"); v != "" {
		c.DefaultAgent = v
	}
}

// Profile returns the named profile, or the default one when name is
// empty.
func (c *Config) Profile(name string) (string, Profile, error) {
	if name == "" {
		name = c.DefaultAgent
	}
	p, ok := c.Profiles[name]
	if !ok {
		return "", Profile{}, fmt.Errorf("unknown agent profile: %s", name)
	}
	return name, p, nil
}

// ApprovalTimeout returns the configured approval deadline.
func (c *Config) ApprovalTimeout() time.Duration {
	if c.ApprovalTimeoutSeconds <= 0 {
		return time.Duration(DefaultApprovalSeconds) * time.Second
	}
	return time.Duration(c.ApprovalTimeoutSeconds) * time.Second
}

// Grace returns the cooperative-shutdown window for cancellation.
func (c *Config) Grace() time.Duration {
	if c.GraceSeconds <= 0 {
		return time.Duration(DefaultGraceSeconds) * time.Second
	}
	return time.Duration(c.GraceSeconds) * time.Second
}

// ExpandLogDir resolves a leading ~ in LogDir against the home dir.
func (c *Config) ExpandLogDir() string {
	dir := c.LogDir
	if strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, dir[2:])
		}
	}
	return dir
}
