// Package transcript records a session's conversation as an append-only
// sequence of turns.
//
// A Transcript is owned by exactly one orchestrator. Pipeline stages receive
// a View, which cannot mutate the underlying record.
package transcript

import (
	"fmt"
	"slices"
	"strings"

	apperrors "github.com/integerman/jaimes/internal/platform/errors"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ErrUnknownRole signals a turn whose role is outside the data model.
var ErrUnknownRole = apperrors.New(apperrors.CodeUnknownRole, "unknown chat role")

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// ParseRole converts a role name, failing on anything unknown.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !role.Valid() {
		return "", apperrors.WithMetadata(apperrors.CodeUnknownRole, fmt.Sprintf("unknown chat role %q", value), map[string]string{"role": value})
	}
	return role, nil
}

// Turn is one entry of a conversation.
type Turn struct {
	Role   Role
	Author string
	Text   string
}

// System builds a system turn.
func System(text string) Turn { return Turn{Role: RoleSystem, Text: text} }

// User builds a user turn.
func User(text string) Turn { return Turn{Role: RoleUser, Text: text} }

// Assistant builds an assistant turn.
func Assistant(text string) Turn { return Turn{Role: RoleAssistant, Text: text} }

// Transcript is the authoritative record of a session.
type Transcript struct {
	turns []Turn
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// Append adds turns at the end of the transcript. The batch is validated
// first so a bad turn never leaves half a batch behind.
func (t *Transcript) Append(turns ...Turn) error {
	for _, turn := range turns {
		if !turn.Role.Valid() {
			return fmt.Errorf("append turn: %w", apperrors.WithMetadata(apperrors.CodeUnknownRole, fmt.Sprintf("unknown chat role %q", turn.Role), map[string]string{"role": string(turn.Role)}))
		}
	}
	t.turns = append(t.turns, turns...)
	return nil
}

// Len returns the number of committed turns.
func (t *Transcript) Len() int {
	return len(t.turns)
}

// View returns a read-only view of the committed turns.
func (t *Transcript) View() View {
	return View{turns: slices.Clip(t.turns)}
}

// ViewWith returns a view of the committed turns followed by pending turns
// that are not part of the transcript yet.
func (t *Transcript) ViewWith(pending ...Turn) View {
	return View{turns: append(slices.Clip(t.turns), pending...)}
}

// View is a read-only window over a sequence of turns.
type View struct {
	turns []Turn
}

// NewView builds a view over a copy of turns.
func NewView(turns ...Turn) View {
	return View{turns: slices.Clone(turns)}
}

// Len returns the number of turns in the view.
func (v View) Len() int {
	return len(v.turns)
}

// At returns the turn at index i.
func (v View) At(i int) Turn {
	return v.turns[i]
}

// Turns returns a copy of the turns in the view.
func (v View) Turns() []Turn {
	return slices.Clone(v.turns)
}

// LastIndex returns the index of the most recent turn with the given role, or
// -1 when there is none.
func (v View) LastIndex(role Role) int {
	for i := len(v.turns) - 1; i >= 0; i-- {
		if v.turns[i].Role == role {
			return i
		}
	}
	return -1
}

// Last returns the most recent turn with the given role.
func (v View) Last(role Role) (Turn, bool) {
	idx := v.LastIndex(role)
	if idx < 0 {
		return Turn{}, false
	}
	return v.turns[idx], true
}
