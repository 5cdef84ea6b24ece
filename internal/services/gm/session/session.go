// Package session runs one player's game: it owns the transcript, seeds the
// shared context from the adventure and feeds player messages through the
// pipeline until the player leaves.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/integerman/jaimes/internal/platform/errors"
	"github.com/integerman/jaimes/internal/platform/id"
	"github.com/integerman/jaimes/internal/services/gm/adventure"
	"github.com/integerman/jaimes/internal/services/gm/pipeline"
	"github.com/integerman/jaimes/internal/services/gm/transcript"
	"github.com/integerman/jaimes/internal/services/gm/variables"
)

// GreetingAuthor authors the opening turn.
const GreetingAuthor = "Game Master"

// Shared context keys seeded from session metadata.
const (
	KeyAdventureName      = "AdventureName"
	KeyAdventureAuthor    = "AdventureAuthor"
	KeySettingDescription = "SettingDescription"
	KeyBackstory          = "Backstory"
	KeyNarrativeNotes     = "NarrativeNotes"
	KeyCharacterName      = "CharacterName"
	KeyCharacterSummary   = "CharacterSummary"
	KeySessionID          = "SessionID"
)

// Runner performs one exchange. *pipeline.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input, tx *transcript.Transcript, shared variables.Context) (pipeline.Result, error)
}

// Output shows the session to the player.
type Output interface {
	Narrate(author, text string)
	Error(err error)
}

// LineReader supplies player messages. It returns io.EOF when input ends.
type LineReader interface {
	ReadLine(ctx context.Context) (string, error)
}

// Config holds session dependencies.
type Config struct {
	Adventure *adventure.Adventure
	Runner    Runner
	Output    Output
	// Script lists messages sent before interactive input.
	Script []string
	// ID identifies the session; a random one is generated when empty.
	ID string
}

// Session is one player's game.
type Session struct {
	id     string
	adv    *adventure.Adventure
	runner Runner
	out    Output
	script []string
	tx     *transcript.Transcript
}

// New builds a session.
func New(cfg Config) (*Session, error) {
	if cfg.Adventure == nil {
		return nil, fmt.Errorf("session adventure is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("session runner is required")
	}
	if cfg.Output == nil {
		return nil, fmt.Errorf("session output is required")
	}
	sessionID := strings.TrimSpace(cfg.ID)
	if sessionID == "" {
		generated, err := id.NewID()
		if err != nil {
			return nil, fmt.Errorf("generate session id: %w", err)
		}
		sessionID = generated
	}
	return &Session{
		id:     sessionID,
		adv:    cfg.Adventure,
		runner: cfg.Runner,
		out:    cfg.Output,
		script: append([]string(nil), cfg.Script...),
		tx:     transcript.New(),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Transcript returns a read-only view of the conversation so far.
func (s *Session) Transcript() transcript.View {
	return s.tx.View()
}

// Variables builds the shared context for one run: session metadata plus
// the last reply recorded in the transcript.
func (s *Session) Variables() variables.Context {
	vars := variables.Context{
		KeyAdventureName:         s.adv.Name,
		KeyAdventureAuthor:       s.adv.Author,
		KeySettingDescription:    s.adv.SettingDescription,
		KeyBackstory:             s.adv.Backstory,
		KeyNarrativeNotes:        s.adv.NarrativeNotes,
		KeySessionID:             s.id,
		KeyCharacterName:         "",
		KeyCharacterSummary:      "",
		pipeline.KeyInputMessage: "",
		pipeline.KeyPlayerInput:  "",
		pipeline.KeyLastReply:    "",
	}
	if player, ok := s.adv.PlayerCharacter(); ok {
		vars[KeyCharacterName] = player.Name
		vars[KeyCharacterSummary] = player.Summary()
	}
	if last, ok := s.tx.View().Last(transcript.RoleAssistant); ok {
		vars[pipeline.KeyLastReply] = last.Text
	}
	return vars
}

// Start records and shows the adventure greeting. An adventure without a
// greeting starts silently.
func (s *Session) Start() error {
	greeting := strings.TrimSpace(variables.Resolve(s.adv.Greeting, s.Variables()))
	if greeting == "" {
		return nil
	}
	if err := s.tx.Append(transcript.Turn{Role: transcript.RoleAssistant, Author: GreetingAuthor, Text: greeting}); err != nil {
		return fmt.Errorf("record greeting: %w", err)
	}
	s.out.Narrate(GreetingAuthor, greeting)
	return nil
}

// Exchange sends one message through the pipeline and shows the reply.
func (s *Session) Exchange(ctx context.Context, in pipeline.Input) (pipeline.Result, error) {
	result, err := s.runner.Run(ctx, in, s.tx, s.Variables())
	if err != nil {
		return pipeline.Result{}, err
	}
	if !result.Terminated {
		s.out.Narrate(result.Stage, result.Reply)
	}
	return result, nil
}

// Run plays the session: greeting, scripted messages, then player input
// until a termination message, end of input, cancellation or a fatal error.
// Other exchange errors are shown and the session continues.
func (s *Session) Run(ctx context.Context, input LineReader) error {
	if err := s.Start(); err != nil {
		return err
	}
	for _, message := range s.script {
		done, err := s.step(ctx, pipeline.Input{Text: message, Scripted: true})
		if done || err != nil {
			return err
		}
	}
	if input == nil {
		return nil
	}
	for {
		line, err := input.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read player input: %w", err)
		}
		done, err := s.step(ctx, pipeline.Input{Text: line})
		if done || err != nil {
			return err
		}
	}
}

// step runs one exchange and reports whether the session is over.
func (s *Session) step(ctx context.Context, in pipeline.Input) (bool, error) {
	result, err := s.Exchange(ctx, in)
	if err != nil {
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		if apperrors.IsFatal(err) {
			return true, err
		}
		s.out.Error(err)
		return false, nil
	}
	return result.Terminated, nil
}
