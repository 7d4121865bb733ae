package executor

import (
	"errors"
	"strings"
)

// CommandBuilder assembles an agent argument vector from a base
// command, the adapter's fixed parameters, and per-profile overrides.
type CommandBuilder struct {
	base   []string
	params []string
}

// NewCommandBuilder parses a whitespace-separated base command such as
// "npx -y claude-flow".
func NewCommandBuilder(baseCmd string) CommandBuilder {
	return CommandBuilder{base: strings.Fields(baseCmd)}
}

// Params appends fixed parameters.
func (b CommandBuilder) Params(params ...string) CommandBuilder {
	b.params = append(b.params[:len(b.params):len(b.params)], params...)
	return b
}

// Overrides adjusts a built command per profile: a replacement base
// command and extra trailing parameters.
type Overrides struct {
	BaseOverride     string
	AdditionalParams []string
}

// Apply returns the builder with overrides applied.
func (b CommandBuilder) Apply(o Overrides) CommandBuilder {
	if o.BaseOverride != "" {
		b.base = strings.Fields(o.BaseOverride)
	}
	return b.Params(o.AdditionalParams...)
}

// BuildInitial returns the argv for a fresh session.
func (b CommandBuilder) BuildInitial() ([]string, error) {
	if len(b.base) == 0 {
		return nil, errors.New("empty base command")
	}
	argv := make([]string, 0, len(b.base)+len(b.params))
	argv = append(argv, b.base...)
	argv = append(argv, b.params...)
	return argv, nil
}

// BuildFollowUp returns the argv for continuing a prior session: the
// initial argv with the resume parameters appended at the end.
func (b CommandBuilder) BuildFollowUp(resume ...string) ([]string, error) {
	argv, err := b.BuildInitial()
	if err != nil {
		return nil, err
	}
	return append(argv, resume...), nil
}

// String renders the command line for logging and tests.
func (b CommandBuilder) String() string {
	argv, err := b.BuildInitial()
	if err != nil {
		return ""
	}
	return strings.Join(argv, " ")
}
