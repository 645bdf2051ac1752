package events

import (
	"strings"
	"testing"

	"github.com/nathoo/asterfall/types"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		rec  types.EventRecord
		want string
	}{
		{types.EventRecord{Type: PlayerMoved, Payload: map[string]any{"to": "ruin_upper"}}, "You traveled to ruin_upper."},
		{types.EventRecord{Type: Investigated, Payload: map[string]any{"discovery": "old mortar dust", "roll": float64(4)}}, "You investigated and found old mortar dust (roll 4)."},
		{types.EventRecord{Type: NPCDialogue, Payload: map[string]any{"npc_id": "scholar_ione", "npc_name": "Scholar Ione"}}, "You spoke with Scholar Ione."},
		{types.EventRecord{Type: NPCSpoke, Payload: map[string]any{"npc_id": "scholar_ione"}}, "You spoke with scholar_ione."},
		{types.EventRecord{Type: CombatProgress, Payload: map[string]any{"turn": 3}}, "The fight dragged on to turn 3."},
		{types.EventRecord{Type: PlayerMoved, Payload: map[string]any{}}, "You traveled to somewhere."},
		{types.EventRecord{Type: "SOMETHING_ODD"}, "something odd."},
	}
	for _, tt := range tests {
		if got := Describe(tt.rec); got != tt.want {
			t.Errorf("Describe(%s) = %q, want %q", tt.rec.Type, got, tt.want)
		}
	}
}

func TestRecapOrdersOldestFirst(t *testing.T) {
	newestFirst := []types.EventRecord{
		{ID: 3, Type: RestShort},
		{ID: 2, Type: PlayerMoved, Payload: map[string]any{"to": "ruin_upper"}},
		{ID: 1, Type: PlayerStarted},
	}
	got := Recap(newestFirst)
	lines := strings.Split(got, "\n")
	if len(lines) != 4 {
		t.Fatalf("recap lines = %d: %q", len(lines), got)
	}
	if lines[1] != "- You arrived in the world." || lines[3] != "- You took a short rest." {
		t.Errorf("recap = %q", got)
	}
}

func TestRecapEmpty(t *testing.T) {
	if got := Recap(nil); got != "Nothing has happened yet." {
		t.Errorf("Recap(nil) = %q", got)
	}
}
