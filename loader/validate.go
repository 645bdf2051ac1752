package loader

import (
	"fmt"
	"os"
	"strings"

	"github.com/nathoo/asterfall/npcforge"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

// validate checks the compiled world for referential integrity.
func validate(w *World) error {
	ve := &ValidationError{}

	if w.Title == "" {
		ve.Errors = append(ve.Errors, "World.title is required")
	}

	ids := w.LocationIDs()
	if w.Start == "" {
		ve.Errors = append(ve.Errors, "World.start is required")
	} else if !ids[w.Start] {
		ve.Errors = append(ve.Errors, fmt.Sprintf("start location %q is not defined", w.Start))
	}
	if len(w.Locations) == 0 {
		ve.Errors = append(ve.Errors, "at least one Location is required")
	}

	aliases := map[string]string{}
	for _, loc := range w.Locations {
		if loc.Name == "" {
			ve.Errors = append(ve.Errors, fmt.Sprintf("location %q has no name", loc.ID))
		}
		if loc.Description == "" {
			ve.Warnings = append(ve.Warnings, fmt.Sprintf("location %q has no description", loc.ID))
		}
		for _, a := range loc.Aliases {
			if ids[a] && a != loc.ID {
				ve.Errors = append(ve.Errors, fmt.Sprintf("location %q alias %q shadows a location id", loc.ID, a))
			}
			if other, dup := aliases[a]; dup {
				ve.Errors = append(ve.Errors, fmt.Sprintf("alias %q used by both %q and %q", a, other, loc.ID))
			}
			aliases[a] = loc.ID
		}
	}

	for _, n := range w.NPCs {
		if n.Name == "" {
			ve.Errors = append(ve.Errors, fmt.Sprintf("npc %q has no name", n.ID))
		}
		if !ids[n.Location] {
			ve.Errors = append(ve.Errors, fmt.Sprintf("npc %q is placed in undefined location %q", n.ID, n.Location))
		}
		for _, a := range n.AllowedLocations {
			if !ids[a] {
				ve.Errors = append(ve.Errors, fmt.Sprintf("npc %q allows undefined location %q", n.ID, a))
			}
		}
		if n.Tier < 0 || n.Tier > 3 {
			ve.Errors = append(ve.Errors, fmt.Sprintf("npc %q tier %d is outside 1..3", n.ID, n.Tier))
		}
		if n.Persona == "" {
			ve.Warnings = append(ve.Warnings, fmt.Sprintf("npc %q has no persona prompt", n.ID))
		}
	}

	if len(w.Personas) == 0 {
		ve.Errors = append(ve.Errors, "at least one Persona template is required")
	}
	for _, p := range w.Personas {
		if !p.Alignment.Valid() {
			ve.Errors = append(ve.Errors, fmt.Sprintf("persona %q has invalid alignment %q", p.ID, p.Alignment))
			continue
		}
		// A persona must generate a sheet that passes its own schema.
		probe, err := npcforge.GenerateSheet(npcforge.SheetSpec{NPCID: "probe", Name: "Probe", Tier: 1}, []npcforge.Template{p})
		if err == nil {
			err = probe.Validate()
		}
		if err != nil {
			ve.Errors = append(ve.Errors, fmt.Sprintf("persona %q: %v", p.ID, err))
		}
	}

	// Print warnings to stderr.
	for _, warn := range ve.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warn)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}
