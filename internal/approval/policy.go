package approval

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Policy decides which tools are gated and which gated calls may be
// approved without a human verdict.
//
// A tool listed in GatedTools always passes through the gate. If an
// input schema is configured for it, a call whose input validates
// against the schema is auto-approved; anything else stays pending for
// an external arbiter.
type Policy struct {
	gated   map[string]bool
	gateAll bool
	schemas map[string]*jsonschema.Schema
}

// CompilePolicy builds a policy from a list of gated tool names ("*"
// gates every tool) and a map of tool name to JSON schema file path.
func CompilePolicy(gatedTools []string, schemaFiles map[string]string) (Policy, error) {
	p := Policy{
		gated:   map[string]bool{},
		schemas: map[string]*jsonschema.Schema{},
	}
	for _, name := range gatedTools {
		if name == "*" {
			p.gateAll = true
			continue
		}
		p.gated[name] = true
	}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	for tool, file := range schemaFiles {
		absPath, err := filepath.Abs(file)
		if err != nil {
			return Policy{}, fmt.Errorf("schema path for tool %s: %w", tool, err)
		}
		schema, err := compiler.Compile(absPath)
		if err != nil {
			return Policy{}, fmt.Errorf("compile schema for tool %s: %w", tool, err)
		}
		p.schemas[tool] = schema
	}
	return p, nil
}

func (p Policy) requires(toolName string) bool {
	if p.gateAll {
		return true
	}
	return p.gated[toolName]
}

// autoDecide returns an immediate decision when one can be made without
// an arbiter. Invalid input is an immediate denial rather than a
// pending request; there is nothing a human could approve.
func (p Policy) autoDecide(toolName string, input json.RawMessage) (Decision, bool) {
	schema, ok := p.schemas[toolName]
	if !ok {
		return Decision{}, false
	}

	var value any
	if err := json.Unmarshal(input, &value); err != nil {
		return Decision{Verdict: Denied, Reason: fmt.Sprintf("tool input is not valid JSON: %v", err)}, true
	}
	if err := schema.Validate(value); err != nil {
		return Decision{Verdict: Denied, Reason: fmt.Sprintf("tool input rejected by schema: %v", err)}, true
	}
	return Decision{Verdict: Approved, Reason: "tool input accepted by schema"}, true
}
