package adventure

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/integerman/jaimes/internal/platform/errors"
	"github.com/integerman/jaimes/internal/services/gm/capability"
)

// Capability names backed by adventure content.
const (
	CapabilityListLocations     = "list_locations"
	CapabilityGetLocation       = "get_location"
	CapabilityListEncounters    = "list_encounters"
	CapabilityGetEncounter      = "get_encounter"
	CapabilityGetCharacterSheet = "get_character_sheet"
	CapabilityGetAdventureNotes = "get_adventure_notes"
)

// Capabilities returns the lookups a game master may call for adv.
func Capabilities(adv *Adventure) []capability.Capability {
	nameParam := func(description string, required bool) []capability.Parameter {
		return []capability.Parameter{{Name: "name", Description: description, Required: required}}
	}
	return []capability.Capability{
		capability.New(CapabilityListLocations, "Lists the names of every location in the adventure.", nil,
			func(context.Context, capability.Args) (string, error) {
				return listing("locations", adv.LocationNames()), nil
			}),
		capability.New(CapabilityGetLocation, "Describes a location of the adventure by name.", nameParam("location name", true),
			func(_ context.Context, args capability.Args) (string, error) {
				location, ok := adv.Location(args.Get("name"))
				if !ok {
					return "", notFound("location", args.Get("name"), adv.LocationNames())
				}
				return describeLocation(location), nil
			}),
		capability.New(CapabilityListEncounters, "Lists the names of every encounter in the adventure.", nil,
			func(context.Context, capability.Args) (string, error) {
				return listing("encounters", adv.EncounterNames()), nil
			}),
		capability.New(CapabilityGetEncounter, "Describes an encounter of the adventure by name.", nameParam("encounter name", true),
			func(_ context.Context, args capability.Args) (string, error) {
				encounter, ok := adv.Encounter(args.Get("name"))
				if !ok {
					return "", notFound("encounter", args.Get("name"), adv.EncounterNames())
				}
				return describeEncounter(encounter), nil
			}),
		capability.New(CapabilityGetCharacterSheet, "Returns a character sheet. Without a name, returns the player's character.", nameParam("character name", false),
			func(_ context.Context, args capability.Args) (string, error) {
				name := args.Get("name")
				if name == "" {
					player, ok := adv.PlayerCharacter()
					if !ok {
						return "", apperrors.New(apperrors.CodeCharacterNotFound, "no player character selected")
					}
					return player.Sheet(), nil
				}
				character, ok := adv.Character(name)
				if !ok {
					return "", notFound("character", name, adv.CharacterNames())
				}
				return character.Sheet(), nil
			}),
		capability.New(CapabilityGetAdventureNotes, "Returns the backstory, setting and narrative notes of the adventure.", nil,
			func(context.Context, capability.Args) (string, error) {
				return adv.Notes(), nil
			}),
	}
}

// Notes renders the narrative background of the adventure.
func (a *Adventure) Notes() string {
	var b strings.Builder
	section := func(title, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(title)
		b.WriteString(":\n")
		b.WriteString(strings.TrimSpace(body))
	}
	section("Backstory", a.Backstory)
	section("Setting", a.SettingDescription)
	section("Narrative notes", a.NarrativeNotes)
	if b.Len() == 0 {
		return "The adventure has no notes."
	}
	return b.String()
}

func listing(kind string, names []string) string {
	if len(names) == 0 {
		return "The adventure has no " + kind + "."
	}
	return strings.Join(names, "\n")
}

func notFound(kind, name string, known []string) error {
	return apperrors.WithMetadata(apperrors.CodeNotFound,
		fmt.Sprintf("no %s named %q; known: %s", kind, name, strings.Join(known, ", ")),
		map[string]string{"kind": kind, "name": name})
}

func describeLocation(location Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s", location.Name, location.Description)
	if location.Appearance != "" {
		fmt.Fprintf(&b, "\nAppearance: %s", location.Appearance)
	}
	if location.StorytellerNotes != "" {
		fmt.Fprintf(&b, "\nStoryteller notes: %s", location.StorytellerNotes)
	}
	return b.String()
}

func describeEncounter(encounter Encounter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s", encounter.Name, encounter.Description)
	if encounter.Location != "" {
		fmt.Fprintf(&b, "\nLocation: %s", encounter.Location)
	}
	if len(encounter.Enemies) > 0 {
		fmt.Fprintf(&b, "\nEnemies: %s", strings.Join(encounter.Enemies, ", "))
	}
	if encounter.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s", encounter.Notes)
	}
	return b.String()
}
