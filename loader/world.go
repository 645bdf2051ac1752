package loader

import (
	"github.com/nathoo/asterfall/npcforge"
	"github.com/nathoo/asterfall/types"
)

// defaultPrompt is appended to exploration replies in locations with no
// prompt of their own.
const defaultPrompt = "Try: `look`, `investigate`, `move <place>`, `talk <name>`, or `!help`."

// World is the immutable world definition produced by Load.
type World struct {
	Title     string
	Start     string
	Intro     string
	Locations []Location
	NPCs      []NPC
	Personas  []npcforge.Template

	byID    map[string]int
	aliases map[string]string
}

// Location is a seeded place.
type Location struct {
	ID          string
	Name        string
	Description string
	Permanent   bool
	Prompt      string
	Aliases     []string
}

// Record returns the row stored for the location.
func (l Location) Record() types.Location {
	return types.Location{ID: l.ID, Name: l.Name, Description: l.Description, Permanent: l.Permanent}
}

// NPC is a seeded character.
type NPC struct {
	ID       string
	Name     string
	Location string
	Key      bool
	// Persona is the free-text profile prompt given to the content service.
	Persona          string
	Tier             int
	AllowedLocations []string
}

// index builds the id and alias lookups. Load calls it once.
func (w *World) index() {
	w.byID = make(map[string]int, len(w.Locations))
	w.aliases = map[string]string{}
	for i, loc := range w.Locations {
		w.byID[loc.ID] = i
		for _, a := range loc.Aliases {
			w.aliases[a] = loc.ID
		}
	}
}

// Location returns the location with id.
func (w *World) Location(id string) (Location, bool) {
	if w.byID == nil {
		w.index()
	}
	i, ok := w.byID[id]
	if !ok {
		return Location{}, false
	}
	return w.Locations[i], true
}

// Prompt returns the exploration prompt for a location.
func (w *World) Prompt(id string) string {
	if loc, ok := w.Location(id); ok && loc.Prompt != "" {
		return loc.Prompt
	}
	return defaultPrompt
}

// Destination resolves a MOVE target to a location id. Unknown targets
// resolve to the start location.
func (w *World) Destination(target string) string {
	if w.byID == nil {
		w.index()
	}
	if _, ok := w.byID[target]; ok {
		return target
	}
	if id, ok := w.aliases[target]; ok {
		return id
	}
	return w.Start
}

// LocationIDs returns the set of known location ids.
func (w *World) LocationIDs() map[string]bool {
	ids := make(map[string]bool, len(w.Locations))
	for _, loc := range w.Locations {
		ids[loc.ID] = true
	}
	return ids
}

// NPC returns the seeded definition for id.
func (w *World) NPC(id string) (NPC, bool) {
	for _, n := range w.NPCs {
		if n.ID == id {
			return n, true
		}
	}
	return NPC{}, false
}

// SheetSpec is the generator input for an NPC. Key NPCs are tier 3 and
// stay in their own location unless an allowed list says otherwise;
// everyone else may roam the whole world.
func (w *World) SheetSpec(n NPC) npcforge.SheetSpec {
	tier := n.Tier
	if n.Key {
		tier = 3
	} else if tier <= 0 {
		tier = 1
	}
	allowed := append([]string{}, n.AllowedLocations...)
	if len(allowed) == 0 {
		if n.Key {
			allowed = []string{n.Location}
		} else {
			for _, loc := range w.Locations {
				allowed = append(allowed, loc.ID)
			}
		}
	}
	return npcforge.SheetSpec{NPCID: n.ID, Name: n.Name, Tier: tier, AllowedLocations: allowed}
}

// SheetSpecFor looks up the generator input for a persisted NPC row. NPCs
// that the world no longer defines get a tier-1 sheet pinned to their
// current location.
func (w *World) SheetSpecFor(row types.NPC) npcforge.SheetSpec {
	if n, ok := w.NPC(row.ID); ok {
		return w.SheetSpec(n)
	}
	return npcforge.SheetSpec{NPCID: row.ID, Name: row.Name, Tier: 1, AllowedLocations: []string{row.LocationID}}
}

// Templates returns the persona templates, falling back to the defaults.
func (w *World) Templates() []npcforge.Template {
	if len(w.Personas) == 0 {
		return npcforge.DefaultTemplates
	}
	return w.Personas
}
