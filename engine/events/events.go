// Package events names the event log's entry types and renders entries as
// prose for recaps.
package events

import (
	"fmt"
	"strings"

	"github.com/nathoo/asterfall/engine/continuity"
	"github.com/nathoo/asterfall/types"
)

// Event types written to the log.
const (
	WorldInitialized    = "WORLD_INITIALIZED"
	PlayerStarted       = "PLAYER_STARTED"
	PlayerMoved         = "PLAYER_MOVED"
	Investigated        = "INVESTIGATED"
	RestShort           = "REST_SHORT"
	RestLong            = "REST_LONG"
	NPCDialogue         = continuity.EventNPCDialogue
	NPCSpoke            = continuity.EventNPCSpoke
	CombatTriggered     = "COMBAT_TRIGGERED"
	CombatProgress      = "COMBAT_PROGRESS"
	CombatResolved      = "COMBAT_RESOLVED"
	CombatDisengaged    = "COMBAT_DISENGAGED"
	CombatRescued       = "COMBAT_RESCUED"
	NPCTick             = "NPC_TICK"
	NPCMoved            = "NPC_MOVED"
	NPCAvailability     = "NPC_AVAILABILITY_CHANGED"
	FlavorOnly          = "FLAVOR_ONLY"
	NPCStateRegenerated = "NPC_STATE_REGENERATED"
)

// SystemActor is the actor id for events not caused by a player.
const SystemActor = "system"

// TagNPCTick tags events written by the autonomous planner.
const TagNPCTick = "npc_tick"

// Describe renders one event as a line of prose. Unknown types fall back to
// the raw type name.
func Describe(rec types.EventRecord) string {
	p := rec.Payload
	switch rec.Type {
	case PlayerStarted:
		return "You arrived in the world."
	case PlayerMoved:
		return fmt.Sprintf("You traveled to %s.", str(p, "to"))
	case Investigated:
		return fmt.Sprintf("You investigated and found %s (roll %d).", str(p, "discovery"), num(p, "roll"))
	case RestShort:
		return "You took a short rest."
	case RestLong:
		return "You took a long rest."
	case NPCDialogue, NPCSpoke:
		return fmt.Sprintf("You spoke with %s.", firstOf(p, "npc_name", "npc_id"))
	case CombatTriggered:
		return fmt.Sprintf("A fight broke out at %s.", str(p, "location_id"))
	case CombatProgress:
		return fmt.Sprintf("The fight dragged on to turn %d.", num(p, "turn"))
	case CombatResolved:
		return fmt.Sprintf("You won a fight (roll %d).", num(p, "roll"))
	case CombatDisengaged:
		return "You broke away from a fight."
	case CombatRescued:
		return "You were overwhelmed and dragged to safety."
	case NPCMoved:
		return fmt.Sprintf("%s moved to %s.", str(p, "npc_id"), str(p, "target_location_id"))
	default:
		return strings.ToLower(strings.ReplaceAll(rec.Type, "_", " ")) + "."
	}
}

// Recap renders recs as one line per event, oldest first. recs is expected
// newest first, as the store returns it.
func Recap(recs []types.EventRecord) string {
	if len(recs) == 0 {
		return "Nothing has happened yet."
	}
	lines := make([]string, 0, len(recs)+1)
	lines = append(lines, "Recently:")
	for i := len(recs) - 1; i >= 0; i-- {
		lines = append(lines, "- "+Describe(recs[i]))
	}
	return strings.Join(lines, "\n")
}

func str(p map[string]any, key string) string {
	if s, ok := p[key].(string); ok && s != "" {
		return s
	}
	return "somewhere"
}

func firstOf(p map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := p[k].(string); ok && s != "" {
			return s
		}
	}
	return "someone"
}

// num reads an integer payload field. JSON round-trips numbers as float64.
func num(p map[string]any, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
