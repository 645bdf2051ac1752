package loader

import (
	"fmt"

	"github.com/nathoo/asterfall/npcforge"
	lua "github.com/yuin/gopher-lua"
)

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getBool returns a bool field from a Lua table, or the default if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	v := tbl.RawGetString(key)
	if b, ok := v.(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getInt returns an int field from a Lua table, or 0 if missing.
func getInt(tbl *lua.LTable, key string) int {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return int(n)
	}
	return 0
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

// getStrings returns the string elements of an array field. A bare string
// is read as a one-element list.
func getStrings(tbl *lua.LTable, key string) []string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return []string{string(s)}
	}
	arr, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	var out []string
	for i := 1; i <= arr.MaxN(); i++ {
		if s, ok := arr.RawGetInt(i).(lua.LString); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// compile converts all collected Lua data into a World.
func compile(coll *collector) (*World, error) {
	if coll.world == nil {
		return nil, fmt.Errorf("no World{} definition found")
	}
	w := &World{
		Title: getString(coll.world, "title"),
		Start: getString(coll.world, "start"),
		Intro: getString(coll.world, "intro"),
	}

	seen := map[string]string{}
	claim := func(kind, id string) error {
		key := kind + ":" + id
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate %s id %q", kind, id)
		}
		seen[key] = id
		return nil
	}

	for _, raw := range coll.locations {
		if err := claim("location", raw.id); err != nil {
			return nil, err
		}
		w.Locations = append(w.Locations, compileLocation(raw))
	}
	for _, raw := range coll.npcs {
		if err := claim("npc", raw.id); err != nil {
			return nil, err
		}
		w.NPCs = append(w.NPCs, compileNPC(raw))
	}
	for _, raw := range coll.personas {
		if err := claim("persona", raw.id); err != nil {
			return nil, err
		}
		w.Personas = append(w.Personas, compilePersona(raw))
	}
	return w, nil
}

func compileLocation(raw rawDef) Location {
	tbl := raw.table
	return Location{
		ID:          raw.id,
		Name:        getString(tbl, "name"),
		Description: getString(tbl, "description"),
		Permanent:   getBool(tbl, "permanent", true),
		Prompt:      getString(tbl, "prompt"),
		Aliases:     getStrings(tbl, "aliases"),
	}
}

func compileNPC(raw rawDef) NPC {
	tbl := raw.table
	return NPC{
		ID:               raw.id,
		Name:             getString(tbl, "name"),
		Location:         getString(tbl, "location"),
		Key:              getBool(tbl, "key", false),
		Persona:          getString(tbl, "persona"),
		Tier:             getInt(tbl, "tier"),
		AllowedLocations: getStrings(tbl, "allowed_locations"),
	}
}

func compilePersona(raw rawDef) npcforge.Template {
	tbl := raw.table
	return npcforge.Template{
		ID:         raw.id,
		Alignment:  npcforge.Alignment(getString(tbl, "alignment")),
		Background: getStrings(tbl, "background"),
		Ideals:     getStrings(tbl, "ideals"),
		Bonds:      getStrings(tbl, "bonds"),
		Flaws:      getStrings(tbl, "flaws"),
		Motivation: getString(tbl, "motivation"),
		Fear:       getString(tbl, "fear"),
		Archetype:  getString(tbl, "archetype"),
		Skills:     getStrings(tbl, "skills"),
		Voice:      getString(tbl, "voice"),
	}
}
