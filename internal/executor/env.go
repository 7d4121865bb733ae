package executor

import (
	"fmt"
	"os"
	"sort"
)

// Lookup abstracts process-wide environment reads (home directory,
// variables) so availability probes are testable without mutating real
// environment state.
type Lookup interface {
	Getenv(key string) string
	Home() (string, error)
}

// OSLookup reads the real process environment.
type OSLookup struct{}

func (OSLookup) Getenv(key string) string { return os.Getenv(key) }
func (OSLookup) Home() (string, error)    { return os.UserHomeDir() }

// Env is the execution environment handed to a spawn: the parent
// environment with a profile overlay applied.
type Env struct {
	// Lookup defaults to OSLookup when nil.
	Lookup Lookup

	// Overlay wins over inherited variables.
	Overlay map[string]string
}

func (e *Env) lookup() Lookup {
	if e == nil || e.Lookup == nil {
		return OSLookup{}
	}
	return e.Lookup
}

// Environ materializes the child environment: os.Environ plus the
// overlay, deterministically ordered.
func (e *Env) Environ() []string {
	merged := map[string]string{}
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				merged[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	if e != nil {
		for k, v := range e.Overlay {
			merged[k] = v
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, merged[k]))
	}
	return out
}

// Home returns the configured home directory.
func (e *Env) Home() (string, error) {
	return e.lookup().Home()
}
