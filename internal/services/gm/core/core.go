// Package core implements one pipeline stage: a model configuration plus the
// policy deciding which parts of the session a model sees.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/integerman/jaimes/internal/services/gm/capability"
	"github.com/integerman/jaimes/internal/services/gm/transcript"
	"github.com/integerman/jaimes/internal/services/gm/variables"
)

const (
	// HistoryMarker introduces the replayed session history.
	HistoryMarker = "prior session history follows"
	// PlayerInputPrefix introduces the player's most recent message.
	PlayerInputPrefix = "the player just said: "

	// DefaultMaxAttempts bounds the retries of one stage when unset.
	DefaultMaxAttempts = 5
)

var (
	// ErrEmptyName indicates a core without a name.
	ErrEmptyName = errors.New("core name is required")
	// ErrNilCompleter indicates a core without a model.
	ErrNilCompleter = errors.New("core completer is required")
)

// ToolChoice tells the model whether it may call tools.
type ToolChoice string

const (
	ToolChoiceNone ToolChoice = "none"
	ToolChoiceAuto ToolChoice = "auto"
)

// Request is one model invocation.
type Request struct {
	Stage      string
	Model      string
	Messages   []transcript.Turn
	Tools      []capability.Capability
	ToolChoice ToolChoice
}

// Response holds the content fragments a model produced.
type Response struct {
	Fragments []string
}

// Text concatenates the non-empty fragments.
func (r Response) Text() string {
	var b strings.Builder
	for _, fragment := range r.Fragments {
		if fragment == "" {
			continue
		}
		b.WriteString(fragment)
	}
	return b.String()
}

// Completer produces chat completions.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (Response, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Config is the immutable definition of a core.
type Config struct {
	Name               string
	Model              string
	Instructions       []string
	IncludeHistory     bool
	IncludePlayerInput bool
	Capabilities       []string
	// MaxAttempts bounds validation retries; zero means unbounded.
	MaxAttempts int
}

// Core is one configured pipeline stage.
type Core struct {
	cfg       Config
	completer Completer
	tools     []capability.Capability
	now       func() time.Time
}

// New builds a core, resolving its capability names against registry. An
// unknown capability name fails construction.
func New(cfg Config, completer Completer, registry *capability.Registry) (*Core, error) {
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" {
		return nil, ErrEmptyName
	}
	if completer == nil {
		return nil, fmt.Errorf("core %s: %w", cfg.Name, ErrNilCompleter)
	}
	if cfg.MaxAttempts < 0 {
		return nil, fmt.Errorf("core %s: max attempts must not be negative", cfg.Name)
	}
	cfg.Instructions = append([]string(nil), cfg.Instructions...)
	cfg.Capabilities = append([]string(nil), cfg.Capabilities...)

	var tools []capability.Capability
	if len(cfg.Capabilities) > 0 {
		if registry == nil {
			return nil, fmt.Errorf("core %s: capabilities configured without a registry", cfg.Name)
		}
		selected, err := registry.Select(cfg.Capabilities)
		if err != nil {
			return nil, fmt.Errorf("core %s: %w", cfg.Name, err)
		}
		tools = selected
	}
	return &Core{cfg: cfg, completer: completer, tools: tools, now: time.Now}, nil
}

// Name returns the core name.
func (c *Core) Name() string {
	return c.cfg.Name
}

// Config returns a copy of the core definition.
func (c *Core) Config() Config {
	cfg := c.cfg
	cfg.Instructions = append([]string(nil), c.cfg.Instructions...)
	cfg.Capabilities = append([]string(nil), c.cfg.Capabilities...)
	return cfg
}

// MaxAttempts returns the retry budget; zero means unbounded.
func (c *Core) MaxAttempts() int {
	return c.cfg.MaxAttempts
}

// Messages assembles the working history sent to the model.
//
// Instructions come first as system entries. With history enabled, the
// marker and every user/assistant turn of view follow; the most recent user
// turn is skipped there when it is repeated as player input. The message is
// always the last entry.
func (c *Core) Messages(message string, view transcript.View, vars variables.Context) []transcript.Turn {
	messages := make([]transcript.Turn, 0, len(c.cfg.Instructions)+view.Len()+3)
	for _, instruction := range c.cfg.Instructions {
		messages = append(messages, transcript.System(variables.Resolve(instruction, vars)))
	}

	lastUser := view.LastIndex(transcript.RoleUser)
	if c.cfg.IncludeHistory && view.Len() > 0 {
		messages = append(messages, transcript.System(HistoryMarker))
		for i := 0; i < view.Len(); i++ {
			turn := view.At(i)
			if turn.Role != transcript.RoleUser && turn.Role != transcript.RoleAssistant {
				continue
			}
			if c.cfg.IncludePlayerInput && i == lastUser {
				continue
			}
			messages = append(messages, turn)
		}
	}

	if c.cfg.IncludePlayerInput && lastUser >= 0 {
		messages = append(messages, transcript.User(PlayerInputPrefix+view.At(lastUser).Text))
	}

	return append(messages, transcript.User(message))
}

// Respond runs the model over the assembled context and returns its text.
// Model errors are returned unchanged.
func (c *Core) Respond(ctx context.Context, message string, view transcript.View, vars variables.Context) (string, error) {
	choice := ToolChoiceNone
	if len(c.tools) > 0 {
		choice = ToolChoiceAuto
	}
	resp, err := c.completer.Complete(ctx, Request{
		Stage:      c.cfg.Name,
		Model:      c.cfg.Model,
		Messages:   c.Messages(message, view, vars),
		Tools:      c.tools,
		ToolChoice: choice,
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Invoke runs Respond and classifies the output.
func (c *Core) Invoke(ctx context.Context, message string, view transcript.View, vars variables.Context) (StageResult, error) {
	started := c.now()
	text, err := c.Respond(ctx, message, view, vars)
	elapsed := c.now().Sub(started)
	if err != nil {
		return StageResult{Elapsed: elapsed}, err
	}
	return NewStageResult(text, elapsed), nil
}
