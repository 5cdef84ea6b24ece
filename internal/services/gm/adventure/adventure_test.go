package adventure

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/integerman/jaimes/internal/platform/errors"
	"github.com/integerman/jaimes/internal/services/gm/capability"
)

func loadSample(t *testing.T) *Adventure {
	t.Helper()
	adv, err := Load(filepath.Join("testdata", "sunken_keep.json"))
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	return adv
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadSample(t *testing.T) {
	adv := loadSample(t)
	if adv.Name != "The Sunken Keep" || len(adv.Locations) != 2 || len(adv.Encounters) != 1 || len(adv.Characters) != 2 {
		t.Fatalf("adventure = %+v", adv)
	}
	if adv.Source != filepath.Join("testdata", "sunken_keep.json") {
		t.Fatalf("source = %q", adv.Source)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "keep.yaml", `name: Tiny Keep
author: Tester
greeting: Hello
locations:
  - name: Gate
    description: A gate.
characters:
  - name: Ash
    class: Fighter
`)
	adv, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if adv.Name != "Tiny Keep" || adv.Locations[0].Name != "Gate" || adv.Characters[0].Class != "Fighter" {
		t.Fatalf("adventure = %+v", adv)
	}
}

func TestLoadRejectsInvalidDocuments(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "malformed json", file: "bad.json", content: `{"name": "x"`},
		{name: "unknown field", file: "extra.json", content: `{"name": "x", "dragons": true}`},
		{name: "missing name", file: "anon.json", content: `{"author": "x"}`},
		{name: "duplicate location", file: "dup.json", content: `{"name": "x", "locations": [{"name": "Gate"}, {"name": "GATE"}]}`},
		{name: "duplicate encounter", file: "dupe.json", content: `{"name": "x", "encounters": [{"name": "Rats"}, {"name": "rats"}]}`},
		{name: "unnamed character", file: "char.json", content: `{"name": "x", "characters": [{"class": "Bard"}]}`},
		{name: "empty yaml", file: "empty.yaml", content: ""},
		{name: "trailing garbage", file: "tail.json", content: `{"name": "x"} trailing`},
		{name: "second object", file: "twice.json", content: `{"name": "x"}{"name": "y"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, dir, tc.file, tc.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !apperrors.IsCode(err, apperrors.CodeAdventureInvalid) {
				t.Fatalf("code = %s, want ADVENTURE_INVALID", apperrors.CodeOf(err))
			}
		})
	}
}

func TestLoadDirSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	sample, err := os.ReadFile(filepath.Join("testdata", "sunken_keep.json"))
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	writeFile(t, dir, "a_broken.json", "{")
	writeFile(t, dir, "b_keep.json", string(sample))
	writeFile(t, dir, "notes.txt", "not an adventure")

	var buf bytes.Buffer
	adventures, err := LoadDir(dir, log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if len(adventures) != 1 || adventures[0].Name != "The Sunken Keep" {
		t.Fatalf("adventures = %+v", adventures)
	}
	if !strings.Contains(buf.String(), "a_broken.json") {
		t.Fatalf("log = %q, want warning about broken file", buf.String())
	}
}

func TestLoadPath(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadPath(dir, nil); !apperrors.IsCode(err, apperrors.CodeAdventureInvalid) {
		t.Fatalf("empty dir error = %v", err)
	}
	if _, err := LoadPath(filepath.Join(dir, "missing.json"), nil); err == nil {
		t.Fatal("expected missing file error")
	}
	adv, err := LoadPath(filepath.Join("testdata", "sunken_keep.json"), nil)
	if err != nil || adv.Name != "The Sunken Keep" {
		t.Fatalf("load file = %+v, %v", adv, err)
	}
}

func TestLookupsIgnoreCase(t *testing.T) {
	adv := loadSample(t)
	if location, ok := adv.Location("  bell TOWER "); !ok || location.Name != "Bell Tower" {
		t.Fatalf("location lookup = %+v, %v", location, ok)
	}
	if encounter, ok := adv.Encounter("reed goblins"); !ok || encounter.Location != "Marsh Road" {
		t.Fatalf("encounter lookup = %+v, %v", encounter, ok)
	}
	if _, ok := adv.Character("nobody"); ok {
		t.Fatal("unexpected character")
	}
}

func TestSetPlayerCharacterOnce(t *testing.T) {
	adv := loadSample(t)
	if _, err := adv.SetPlayerCharacter("nobody"); !errors.Is(err, ErrCharacterNotFound) {
		t.Fatalf("unknown character error = %v", err)
	}
	character, err := adv.SetPlayerCharacter("mira vell")
	if err != nil || character.Name != "Mira Vell" {
		t.Fatalf("select = %+v, %v", character, err)
	}
	if _, err := adv.SetPlayerCharacter("Brother Oren"); !errors.Is(err, ErrCharacterAlreadySelected) {
		t.Fatalf("second select error = %v", err)
	}
	if player, ok := adv.PlayerCharacter(); !ok || player.Name != "Mira Vell" {
		t.Fatalf("player = %+v, %v", player, ok)
	}
}

func TestAutoSelectCharacter(t *testing.T) {
	adv := loadSample(t)
	if _, ok, err := adv.AutoSelectCharacter(); ok || err != nil {
		t.Fatalf("auto select with two characters = %v, %v", ok, err)
	}

	solo := &Adventure{Name: "Solo", Characters: []Character{{Name: "Ash"}}}
	character, ok, err := solo.AutoSelectCharacter()
	if err != nil || !ok || character.Name != "Ash" {
		t.Fatalf("auto select = %+v, %v, %v", character, ok, err)
	}
}

func TestCharacterSheet(t *testing.T) {
	adv := loadSample(t)
	character, _ := adv.Character("Mira Vell")
	sheet := character.Sheet()
	for _, want := range []string{"Name: Mira Vell", "Class: Ranger", "Level: 3", "  Dexterity: 16", "Skills: Survival, Stealth"} {
		if !strings.Contains(sheet, want) {
			t.Errorf("sheet missing %q:\n%s", want, sheet)
		}
	}
	if got := character.Summary(); got != "Mira Vell, level 3 Human Ranger" {
		t.Fatalf("summary = %q", got)
	}
}

func TestCapabilities(t *testing.T) {
	adv := loadSample(t)
	registry := capability.NewRegistry(nil)
	if err := registry.Register(Capabilities(adv)...); err != nil {
		t.Fatalf("register: %v", err)
	}
	ctx := context.Background()

	tests := []struct {
		name string
		args capability.Args
		want string
	}{
		{name: CapabilityListLocations, want: "Marsh Road\nBell Tower"},
		{name: CapabilityGetLocation, args: capability.Args{"name": "bell tower"}, want: "Ringing the bell frees the warden."},
		{name: CapabilityListEncounters, want: "Reed Goblins"},
		{name: CapabilityGetEncounter, args: capability.Args{"name": "Reed Goblins"}, want: "Enemies: goblin, goblin, goblin archer"},
		{name: CapabilityGetCharacterSheet, args: capability.Args{"name": "Brother Oren"}, want: "Class: Cleric"},
		{name: CapabilityGetAdventureNotes, want: "Narrative notes:\nThe keep's warden"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := registry.Invoke(ctx, tc.name, tc.args)
			if err != nil {
				t.Fatalf("invoke: %v", err)
			}
			if !strings.Contains(got, tc.want) {
				t.Fatalf("result = %q, want it to contain %q", got, tc.want)
			}
		})
	}

	if _, err := registry.Invoke(ctx, CapabilityGetCharacterSheet, nil); !apperrors.IsCode(err, apperrors.CodeCharacterNotFound) {
		t.Fatalf("sheet without player error = %v", err)
	}
	_, _ = adv.SetPlayerCharacter("Mira Vell")
	sheet, err := registry.Invoke(ctx, CapabilityGetCharacterSheet, nil)
	if err != nil || !strings.Contains(sheet, "Name: Mira Vell") {
		t.Fatalf("player sheet = %q, %v", sheet, err)
	}
	if _, err := registry.Invoke(ctx, CapabilityGetLocation, capability.Args{"name": "Moon"}); !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("unknown location error = %v", err)
	}
}
