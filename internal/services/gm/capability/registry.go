package capability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/integerman/jaimes/internal/platform/errors"
	"github.com/integerman/jaimes/internal/platform/timeouts"
)

var (
	// ErrUnknownCapability indicates a name that is not registered.
	ErrUnknownCapability = apperrors.New(apperrors.CodeCapabilityUnknown, "unknown capability")
	// ErrDuplicateCapability indicates a name registered twice.
	ErrDuplicateCapability = apperrors.New(apperrors.CodeCapabilityDuplicate, "capability already registered")
	// ErrMissingArgument indicates a required argument was not supplied.
	ErrMissingArgument = apperrors.New(apperrors.CodeCapabilityMissingArgument, "missing capability argument")
)

// Invocation reports one completed capability call.
type Invocation struct {
	Name     string
	Args     Args
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Observer receives a report for every capability invocation. Observers must
// not block; their outcome never affects the call.
type Observer interface {
	CapabilityInvoked(ctx context.Context, invocation Invocation)
}

// Observers fans invocation reports out to every non-nil observer.
type Observers []Observer

// CapabilityInvoked forwards invocation to each observer.
func (o Observers) CapabilityInvoked(ctx context.Context, invocation Invocation) {
	for _, observer := range o {
		if observer != nil {
			observer.CapabilityInvoked(ctx, invocation)
		}
	}
}

// Registry maps capability names to callables. It is filled at startup and
// read-only afterwards, so it can be shared across sessions.
type Registry struct {
	capabilities map[string]Capability
	observer     Observer
	timeout      time.Duration
	now          func() time.Time
}

// NewRegistry returns an empty registry reporting to observer (may be nil).
func NewRegistry(observer Observer) *Registry {
	return &Registry{
		capabilities: make(map[string]Capability),
		observer:     observer,
		timeout:      timeouts.CapabilityInvoke,
		now:          time.Now,
	}
}

// Register adds capabilities, rejecting blank or duplicate names.
func (r *Registry) Register(capabilities ...Capability) error {
	for _, c := range capabilities {
		if c == nil {
			return fmt.Errorf("register capability: capability is nil")
		}
		name := strings.TrimSpace(c.Name())
		if name == "" {
			return fmt.Errorf("register capability: name is required")
		}
		if _, exists := r.capabilities[name]; exists {
			return apperrors.WithMetadata(apperrors.CodeCapabilityDuplicate, fmt.Sprintf("capability %q already registered", name), map[string]string{"capability": name})
		}
		r.capabilities[name] = c
	}
	return nil
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.capabilities))
	for name := range r.capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the raw capability registered under name.
func (r *Registry) Lookup(name string) (Capability, bool) {
	c, ok := r.capabilities[strings.TrimSpace(name)]
	return c, ok
}

// Select resolves names into capabilities whose invocations are routed
// through the registry, so timing and observation apply no matter who calls
// them. Any unknown name fails the whole selection.
func (r *Registry) Select(names []string) ([]Capability, error) {
	selected := make([]Capability, 0, len(names))
	for _, name := range names {
		c, ok := r.Lookup(name)
		if !ok {
			return nil, apperrors.WithMetadata(apperrors.CodeCapabilityUnknown, fmt.Sprintf("unknown capability %q", name), map[string]string{"capability": name})
		}
		selected = append(selected, observed{Capability: c, registry: r})
	}
	return selected, nil
}

// Invoke calls the named capability with a bounded timeout and reports the
// outcome to the observer.
func (r *Registry) Invoke(ctx context.Context, name string, args Args) (string, error) {
	c, ok := r.Lookup(name)
	if !ok {
		return "", apperrors.WithMetadata(apperrors.CodeCapabilityUnknown, fmt.Sprintf("unknown capability %q", name), map[string]string{"capability": name})
	}
	return r.invoke(ctx, c, args)
}

func (r *Registry) invoke(ctx context.Context, c Capability, args Args) (result string, err error) {
	started := r.now()
	defer func() {
		if r.observer == nil {
			return
		}
		r.observer.CapabilityInvoked(ctx, Invocation{
			Name:     c.Name(),
			Args:     args,
			Started:  started,
			Duration: r.now().Sub(started),
			Err:      err,
		})
	}()

	for _, param := range c.Parameters() {
		if param.Required && args.Get(param.Name) == "" {
			return "", apperrors.WithMetadata(apperrors.CodeCapabilityMissingArgument, fmt.Sprintf("%s: %s is required", c.Name(), param.Name), map[string]string{"capability": c.Name(), "argument": param.Name})
		}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	result, err = c.Invoke(ctx, args)
	if err != nil {
		return "", apperrors.WrapWithMetadata(apperrors.CodeCapabilityFailed, fmt.Sprintf("capability %s failed", c.Name()), map[string]string{"capability": c.Name()}, err)
	}
	return result, nil
}

type observed struct {
	Capability
	registry *Registry
}

func (o observed) Invoke(ctx context.Context, args Args) (string, error) {
	return o.registry.invoke(ctx, o.Capability, args)
}
