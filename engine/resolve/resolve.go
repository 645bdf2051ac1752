// Package resolve maps talk targets from parsed intents to NPCs present at
// the player's location.
package resolve

import (
	"fmt"
	"strings"

	"github.com/nathoo/asterfall/types"
)

// AmbiguityError indicates multiple NPCs matched a name.
type AmbiguityError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	names := strings.Join(e.Candidates, ", ")
	return fmt.Sprintf("which %s? (%s)", e.Name, names)
}

// NotFoundError indicates no NPC matched a name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no one called %q is here", e.Name)
}

// keywords map role words players use to the word that appears in the
// NPC's name. Checked in order.
var keywords = []struct {
	key  string
	hint string
}{
	{"traveler", "traveler"},
	{"travellers", "traveler"},
	{"scholar", "scholar"},
	{"merchant", "quartermaster"},
	{"quartermaster", "quartermaster"},
	{"warden", "warden"},
}

// SelectNPC picks the NPC in npcs that target refers to. An empty target
// selects the first NPC. Resolution tries, in order: exact id, role
// keyword, name substring, then any name word appearing in the target.
func SelectNPC(npcs []types.NPC, target string) (types.NPC, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	if len(npcs) == 0 {
		return types.NPC{}, &NotFoundError{Name: target}
	}
	if target == "" {
		return npcs[0], nil
	}

	// 1. Exact id, with underscore normalization ("scholar ione").
	for _, n := range npcs {
		id := strings.ToLower(n.ID)
		if id == target || id == strings.ReplaceAll(target, " ", "_") {
			return n, nil
		}
	}

	// 2. Role keyword.
	for _, k := range keywords {
		if !strings.Contains(target, k.key) {
			continue
		}
		if n, ok, err := pick(target, npcs, func(name string) bool { return strings.Contains(name, k.hint) }); ok || err != nil {
			return n, err
		}
	}

	// 3. Target is part of the name.
	if n, ok, err := pick(target, npcs, func(name string) bool { return strings.Contains(name, target) }); ok || err != nil {
		return n, err
	}

	// 4. A word of the name appears in the target.
	if n, ok, err := pick(target, npcs, func(name string) bool {
		for _, word := range strings.Fields(name) {
			if strings.Contains(target, word) {
				return true
			}
		}
		return false
	}); ok || err != nil {
		return n, err
	}

	return types.NPC{}, &NotFoundError{Name: target}
}

// pick applies match to each NPC's lowercased name. One hit resolves, more
// than one is ambiguous, none defers to the next strategy.
func pick(target string, npcs []types.NPC, match func(name string) bool) (types.NPC, bool, error) {
	var hits []types.NPC
	for _, n := range npcs {
		if match(strings.ToLower(n.Name)) {
			hits = append(hits, n)
		}
	}
	switch len(hits) {
	case 0:
		return types.NPC{}, false, nil
	case 1:
		return hits[0], true, nil
	default:
		return types.NPC{}, false, &AmbiguityError{Name: target, Candidates: Names(hits)}
	}
}

// Names returns the display names of npcs in order.
func Names(npcs []types.NPC) []string {
	out := make([]string, len(npcs))
	for i, n := range npcs {
		out[i] = n.Name
	}
	return out
}
