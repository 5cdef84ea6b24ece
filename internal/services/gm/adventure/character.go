package adventure

import (
	"fmt"
	"sort"
	"strings"
)

// Character is a pre-generated player character.
type Character struct {
	Name        string         `json:"name" yaml:"name"`
	Race        string         `json:"race,omitempty" yaml:"race,omitempty"`
	Class       string         `json:"class,omitempty" yaml:"class,omitempty"`
	Level       int            `json:"level,omitempty" yaml:"level,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Attributes  map[string]int `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Skills      []string       `json:"skills,omitempty" yaml:"skills,omitempty"`
	Equipment   []string       `json:"equipment,omitempty" yaml:"equipment,omitempty"`
}

// Summary is a one-line description of the character.
func (c Character) Summary() string {
	parts := []string{c.Name}
	var kind []string
	if c.Level > 0 {
		kind = append(kind, fmt.Sprintf("level %d", c.Level))
	}
	if c.Race != "" {
		kind = append(kind, c.Race)
	}
	if c.Class != "" {
		kind = append(kind, c.Class)
	}
	if len(kind) > 0 {
		parts = append(parts, strings.Join(kind, " "))
	}
	return strings.Join(parts, ", ")
}

// Sheet renders the character sheet as plain text.
func (c Character) Sheet() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", c.Name)
	if c.Race != "" {
		fmt.Fprintf(&b, "Race: %s\n", c.Race)
	}
	if c.Class != "" {
		fmt.Fprintf(&b, "Class: %s\n", c.Class)
	}
	if c.Level > 0 {
		fmt.Fprintf(&b, "Level: %d\n", c.Level)
	}
	if len(c.Attributes) > 0 {
		keys := make([]string, 0, len(c.Attributes))
		for key := range c.Attributes {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		b.WriteString("Attributes:\n")
		for _, key := range keys {
			fmt.Fprintf(&b, "  %s: %d\n", key, c.Attributes[key])
		}
	}
	if len(c.Skills) > 0 {
		fmt.Fprintf(&b, "Skills: %s\n", strings.Join(c.Skills, ", "))
	}
	if len(c.Equipment) > 0 {
		fmt.Fprintf(&b, "Equipment: %s\n", strings.Join(c.Equipment, ", "))
	}
	if c.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", c.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
