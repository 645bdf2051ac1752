package loader

import (
	"strings"
	"testing"

	"github.com/nathoo/asterfall/npcforge"
)

// validWorld returns a minimal valid World for testing.
func validWorld() *World {
	return &World{
		Title: "Test",
		Start: "hall",
		Locations: []Location{
			{ID: "hall", Name: "Hall", Description: "A hall.", Aliases: []string{"h"}},
			{ID: "yard", Name: "Yard", Description: "A yard."},
		},
		NPCs: []NPC{
			{ID: "keeper", Name: "Keeper", Location: "hall", Key: true, Persona: "Keeps."},
		},
		Personas: []npcforge.Template{npcforge.DefaultTemplates[0]},
	}
}

func TestValidate_ValidWorld(t *testing.T) {
	if err := validate(validWorld()); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*World)
		want   string
	}{
		{"missing start", func(w *World) { w.Start = "nowhere" }, "start location"},
		{"empty title", func(w *World) { w.Title = "" }, "title"},
		{"npc location", func(w *World) { w.NPCs[0].Location = "attic" }, "undefined location \"attic\""},
		{"allowed location", func(w *World) { w.NPCs[0].AllowedLocations = []string{"hall", "moon"} }, "allows undefined location"},
		{"tier", func(w *World) { w.NPCs[0].Tier = 7 }, "tier"},
		{"no personas", func(w *World) { w.Personas = nil }, "Persona template"},
		{"bad alignment", func(w *World) { w.Personas[0].Alignment = "chaotic_hungry" }, "invalid alignment"},
		{"thin persona", func(w *World) { w.Personas[0].Background = []string{"only one"} }, "background_paragraphs"},
		{"alias shadows id", func(w *World) { w.Locations[1].Aliases = []string{"hall"} }, "shadows"},
		{"duplicate alias", func(w *World) { w.Locations[1].Aliases = []string{"h"} }, "used by both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := validWorld()
			w.Personas = append([]npcforge.Template{}, w.Personas...)
			tt.mutate(w)
			err := validate(w)
			if err == nil {
				t.Fatal("expected validation error")
			}
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			assertContains(t, ve.Errors, tt.want)
		})
	}
}

func TestWorld_SheetSpec(t *testing.T) {
	w := validWorld()
	w.NPCs = append(w.NPCs, NPC{ID: "cat", Name: "Cat", Location: "yard"})

	key := w.SheetSpec(w.NPCs[0])
	if key.Tier != 3 || len(key.AllowedLocations) != 1 || key.AllowedLocations[0] != "hall" {
		t.Errorf("key spec = %+v", key)
	}
	roamer := w.SheetSpec(w.NPCs[1])
	if roamer.Tier != 1 || len(roamer.AllowedLocations) != 2 {
		t.Errorf("roamer spec = %+v", roamer)
	}
}

func TestWorld_Prompt(t *testing.T) {
	w := validWorld()
	w.Locations[0].Prompt = "Try: sweep."
	if got := w.Prompt("hall"); got != "Try: sweep." {
		t.Errorf("Prompt(hall) = %q", got)
	}
	if got := w.Prompt("yard"); got != defaultPrompt {
		t.Errorf("Prompt(yard) = %q", got)
	}
}

// assertContains checks that at least one string in the slice contains substr.
func assertContains(t *testing.T, strs []string, substr string) {
	t.Helper()
	for _, s := range strs {
		if strings.Contains(s, substr) {
			return
		}
	}
	t.Errorf("expected one of %v to contain %q", strs, substr)
}
