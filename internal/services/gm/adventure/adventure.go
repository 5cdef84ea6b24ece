// Package adventure holds the scripted content a session is grounded in:
// setting, locations, encounters and the characters a player may pick.
//
// An Adventure is read-only once loaded, except for the player character,
// which may be chosen exactly once.
package adventure

import (
	"fmt"
	"strings"
	"sync"

	apperrors "github.com/integerman/jaimes/internal/platform/errors"
	"golang.org/x/text/cases"
)

var (
	// ErrCharacterAlreadySelected indicates a second player character pick.
	ErrCharacterAlreadySelected = apperrors.New(apperrors.CodeCharacterAlreadySelected, "player character already selected")
	// ErrCharacterNotFound indicates an unknown character name.
	ErrCharacterNotFound = apperrors.New(apperrors.CodeCharacterNotFound, "character not found")
	// ErrNotFound indicates an unknown location or encounter.
	ErrNotFound = apperrors.New(apperrors.CodeNotFound, "not found")
)

// Location is a place the party can visit.
type Location struct {
	Name             string `json:"name" yaml:"name"`
	Description      string `json:"description" yaml:"description"`
	Appearance       string `json:"appearance,omitempty" yaml:"appearance,omitempty"`
	StorytellerNotes string `json:"storytellerNotes,omitempty" yaml:"storytellerNotes,omitempty"`
}

// Encounter is a scripted scene or fight.
type Encounter struct {
	Name        string   `json:"name" yaml:"name"`
	Location    string   `json:"location,omitempty" yaml:"location,omitempty"`
	Description string   `json:"description" yaml:"description"`
	Enemies     []string `json:"enemies,omitempty" yaml:"enemies,omitempty"`
	Notes       string   `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Adventure is one loaded adventure document.
type Adventure struct {
	Name               string      `json:"name" yaml:"name"`
	Author             string      `json:"author" yaml:"author"`
	Version            string      `json:"version" yaml:"version"`
	Backstory          string      `json:"backstory" yaml:"backstory"`
	SettingDescription string      `json:"settingDescription" yaml:"settingDescription"`
	NarrativeNotes     string      `json:"narrativeNotes,omitempty" yaml:"narrativeNotes,omitempty"`
	Greeting           string      `json:"greeting" yaml:"greeting"`
	Locations          []Location  `json:"locations" yaml:"locations"`
	Encounters         []Encounter `json:"encounters" yaml:"encounters"`
	Characters         []Character `json:"characters" yaml:"characters"`

	// Source is the file the adventure was loaded from.
	Source string `json:"-" yaml:"-"`

	mu     sync.Mutex
	player *Character
}

func fold(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Validate checks required fields and name uniqueness. Names are compared
// case-insensitively.
func (a *Adventure) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return invalid(a, "name is required")
	}
	if err := uniqueNames("location", len(a.Locations), func(i int) string { return a.Locations[i].Name }); err != nil {
		return invalid(a, err.Error())
	}
	if err := uniqueNames("encounter", len(a.Encounters), func(i int) string { return a.Encounters[i].Name }); err != nil {
		return invalid(a, err.Error())
	}
	if err := uniqueNames("character", len(a.Characters), func(i int) string { return a.Characters[i].Name }); err != nil {
		return invalid(a, err.Error())
	}
	return nil
}

func uniqueNames(kind string, n int, name func(int) string) error {
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		key := fold(name(i))
		if key == "" {
			return fmt.Errorf("%s %d has no name", kind, i+1)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate %s name %q", kind, name(i))
		}
		seen[key] = struct{}{}
	}
	return nil
}

func invalid(a *Adventure, message string) error {
	return apperrors.WithMetadata(apperrors.CodeAdventureInvalid, "invalid adventure: "+message, map[string]string{"source": a.Source})
}

// Location returns the location with the given name, ignoring case.
func (a *Adventure) Location(name string) (Location, bool) {
	key := fold(name)
	for _, location := range a.Locations {
		if fold(location.Name) == key {
			return location, true
		}
	}
	return Location{}, false
}

// Encounter returns the encounter with the given name, ignoring case.
func (a *Adventure) Encounter(name string) (Encounter, bool) {
	key := fold(name)
	for _, encounter := range a.Encounters {
		if fold(encounter.Name) == key {
			return encounter, true
		}
	}
	return Encounter{}, false
}

// Character returns the available character with the given name, ignoring case.
func (a *Adventure) Character(name string) (Character, bool) {
	key := fold(name)
	for _, character := range a.Characters {
		if fold(character.Name) == key {
			return character, true
		}
	}
	return Character{}, false
}

// CharacterNames lists the available characters in document order.
func (a *Adventure) CharacterNames() []string {
	names := make([]string, len(a.Characters))
	for i, character := range a.Characters {
		names[i] = character.Name
	}
	return names
}

// SetPlayerCharacter picks the player's character by name. It succeeds at
// most once per adventure.
func (a *Adventure) SetPlayerCharacter(name string) (Character, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.player != nil {
		return Character{}, apperrors.WithMetadata(apperrors.CodeCharacterAlreadySelected,
			fmt.Sprintf("player character already selected: %s", a.player.Name),
			map[string]string{"character": a.player.Name})
	}
	character, ok := a.Character(name)
	if !ok {
		return Character{}, apperrors.WithMetadata(apperrors.CodeCharacterNotFound,
			fmt.Sprintf("character %q not found, available: %s", name, strings.Join(a.CharacterNames(), ", ")),
			map[string]string{"character": name})
	}
	a.player = &character
	return character, nil
}

// AutoSelectCharacter picks the only available character when there is
// exactly one. It reports whether a character was selected.
func (a *Adventure) AutoSelectCharacter() (Character, bool, error) {
	if len(a.Characters) != 1 {
		return Character{}, false, nil
	}
	character, err := a.SetPlayerCharacter(a.Characters[0].Name)
	if err != nil {
		return Character{}, false, err
	}
	return character, true, nil
}

// PlayerCharacter returns the selected character, if any.
func (a *Adventure) PlayerCharacter() (Character, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.player == nil {
		return Character{}, false
	}
	return *a.player, true
}

// LocationNames lists location names in document order.
func (a *Adventure) LocationNames() []string {
	names := make([]string, len(a.Locations))
	for i, location := range a.Locations {
		names[i] = location.Name
	}
	return names
}

// EncounterNames lists encounter names in document order.
func (a *Adventure) EncounterNames() []string {
	names := make([]string, len(a.Encounters))
	for i, encounter := range a.Encounters {
		names[i] = encounter.Name
	}
	return names
}
