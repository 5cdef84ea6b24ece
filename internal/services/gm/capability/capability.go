// Package capability defines the tools a core may call while generating,
// and the static registry that maps capability names to callables.
package capability

import (
	"context"
	"strings"
)

// Parameter describes one string argument accepted by a capability.
type Parameter struct {
	Name        string
	Description string
	Required    bool
}

// Args carries the string arguments of one invocation.
type Args map[string]string

// Get returns the trimmed value of name.
func (a Args) Get(name string) string {
	return strings.TrimSpace(a[name])
}

// Capability is a named function a model may call mid-generation.
type Capability interface {
	Name() string
	Description() string
	Parameters() []Parameter
	Invoke(ctx context.Context, args Args) (string, error)
}

// InvokeFunc is the body of a function-backed capability.
type InvokeFunc func(ctx context.Context, args Args) (string, error)

type funcCapability struct {
	name        string
	description string
	parameters  []Parameter
	invoke      InvokeFunc
}

// New builds a capability from a function.
func New(name, description string, parameters []Parameter, invoke InvokeFunc) Capability {
	return &funcCapability{
		name:        strings.TrimSpace(name),
		description: strings.TrimSpace(description),
		parameters:  append([]Parameter(nil), parameters...),
		invoke:      invoke,
	}
}

func (c *funcCapability) Name() string        { return c.name }
func (c *funcCapability) Description() string { return c.description }

func (c *funcCapability) Parameters() []Parameter {
	return append([]Parameter(nil), c.parameters...)
}

func (c *funcCapability) Invoke(ctx context.Context, args Args) (string, error) {
	return c.invoke(ctx, args)
}
