// Package loader loads the Lua world definition into Go structs at startup.
// The Lua VM is discarded after loading.
package loader

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

//go:embed world/*.lua
var embedded embed.FS

// collector accumulates Lua definitions during file execution.
type collector struct {
	world     *lua.LTable
	locations []rawDef
	npcs      []rawDef
	personas  []rawDef
}

// rawDef holds an id-keyed constructor table before compilation.
type rawDef struct {
	id    string
	table *lua.LTable
}

type source struct {
	name string
	code string
}

// Load reads all .lua files from dir, compiles them into a World and
// validates references. An empty dir loads the embedded world.
func Load(dir string) (*World, error) {
	if dir == "" {
		return LoadEmbedded()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading world directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".lua") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no .lua files found in %s", dir)
	}

	var srcs []source
	for _, name := range sortedLuaFiles(names) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		srcs = append(srcs, source{name: name, code: string(data)})
	}
	return run(srcs)
}

// LoadEmbedded loads the world compiled into the binary.
func LoadEmbedded() (*World, error) {
	entries, err := embedded.ReadDir("world")
	if err != nil {
		return nil, fmt.Errorf("reading embedded world: %w", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	var srcs []source
	for _, name := range sortedLuaFiles(names) {
		data, err := embedded.ReadFile("world/" + name)
		if err != nil {
			return nil, fmt.Errorf("reading embedded %s: %w", name, err)
		}
		srcs = append(srcs, source{name: name, code: string(data)})
	}
	return run(srcs)
}

func run(srcs []source) (*World, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	openSafeLibs(L)
	sandbox(L)

	coll := &collector{}
	registerAPI(L, coll)

	for _, src := range srcs {
		fn, err := L.LoadString(src.code)
		if err != nil {
			return nil, fmt.Errorf("executing %s: %w", src.name, err)
		}
		L.Push(fn)
		if err := L.PCall(0, lua.MultRet, nil); err != nil {
			return nil, fmt.Errorf("executing %s: %w", src.name, err)
		}
	}

	w, err := compile(coll)
	if err != nil {
		return nil, fmt.Errorf("compiling world: %w", err)
	}
	if err := validate(w); err != nil {
		return nil, err
	}
	w.index()
	return w, nil
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes dangerous globals and functions.
func sandbox(L *lua.LState) {
	dangerous := []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage",
	}
	for _, name := range dangerous {
		L.SetGlobal(name, lua.LNil)
	}

	// World content must not depend on Lua randomness.
	if mathTbl := L.GetGlobal("math"); mathTbl != lua.LNil {
		if tbl, ok := mathTbl.(*lua.LTable); ok {
			tbl.RawSetString("random", lua.LNil)
			tbl.RawSetString("randomseed", lua.LNil)
		}
	}
}

// sortedLuaFiles returns .lua files with world.lua first and the rest
// sorted alphabetically.
func sortedLuaFiles(files []string) []string {
	var first string
	var others []string
	for _, f := range files {
		if !strings.HasSuffix(f, ".lua") {
			continue
		}
		if f == "world.lua" {
			first = f
		} else {
			others = append(others, f)
		}
	}
	sort.Strings(others)
	if first != "" {
		return append([]string{first}, others...)
	}
	return others
}
