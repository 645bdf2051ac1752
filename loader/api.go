package loader

import (
	lua "github.com/yuin/gopher-lua"
)

// registerAPI registers the world constructors as globals.
func registerAPI(L *lua.LState, coll *collector) {
	// World { title = "...", start = "...", intro = "..." }
	L.SetGlobal("World", L.NewFunction(func(L *lua.LState) int {
		coll.world = L.CheckTable(1)
		return 0
	}))

	// Location "id" { ... }, NPC "id" { ... } and Persona "id" { ... } are
	// curried: the first call takes the id and returns a function that
	// takes the table.
	L.SetGlobal("Location", curried(L, func(d rawDef) { coll.locations = append(coll.locations, d) }))
	L.SetGlobal("NPC", curried(L, func(d rawDef) { coll.npcs = append(coll.npcs, d) }))
	L.SetGlobal("Persona", curried(L, func(d rawDef) { coll.personas = append(coll.personas, d) }))
}

func curried(L *lua.LState, add func(rawDef)) *lua.LFunction {
	return L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			add(rawDef{id: id, table: L.CheckTable(1)})
			return 0
		}))
		return 1
	})
}
