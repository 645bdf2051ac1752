package continuity

import (
	"strings"
	"testing"

	"github.com/nathoo/asterfall/types"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello   World", "hello world"},
		{"  tabs\tand\nnewlines ", "tabs and newlines"},
		{"ＦＵＬＬ width", "full width"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAntiRepeat(t *testing.T) {
	msg := "Commands: !help"

	got, count := AntiRepeat("", 0, msg)
	if got != msg || count != 0 {
		t.Fatalf("first message changed: %q, %d", got, count)
	}

	got, count = AntiRepeat(msg, count, "commands:   !HELP")
	if count != 1 || !strings.Contains(got, "New development:") {
		t.Fatalf("repeat not nudged: %q, %d", got, count)
	}
	first := got

	got, count = AntiRepeat(msg, count, msg)
	if count != 2 || got == first {
		t.Fatalf("nudge did not rotate: %q, %d", got, count)
	}

	got, count = AntiRepeat(msg, count, "Something else")
	if got != "Something else" || count != 0 {
		t.Fatalf("distinct message not reset: %q, %d", got, count)
	}
}

func TestContinuation(t *testing.T) {
	spoke := types.EventRecord{Type: EventNPCDialogue, Payload: map[string]any{"npc_id": "scholar_ione", "location_id": "town_square"}}
	tests := []struct {
		name      string
		text      string
		latest    types.EventRecord
		hasLatest bool
		location  string
		wantNPC   string
		wantOK    bool
	}{
		{"follow-up question", "what do the sigils mean?", spoke, true, "town_square", "scholar_ione", true},
		{"npc spoke event", "tell me more", types.EventRecord{Type: EventNPCSpoke, Payload: spoke.Payload}, true, "town_square", "scholar_ione", true},
		{"empty", "   ", spoke, true, "town_square", "", false},
		{"command prefix", "!look", spoke, true, "town_square", "", false},
		{"meta prefix", "/export", spoke, true, "town_square", "", false},
		{"movement word", "let's go now", spoke, true, "town_square", "", false},
		{"rest word", "I should rest.", spoke, true, "town_square", "", false},
		{"other event", "tell me more", types.EventRecord{Type: "PLAYER_MOVED", Payload: spoke.Payload}, true, "town_square", "", false},
		{"no events", "tell me more", types.EventRecord{}, false, "town_square", "", false},
		{"different location", "tell me more", spoke, true, "ruin_upper", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			npc, ok := Continuation(tt.text, tt.latest, tt.hasLatest, tt.location)
			if npc != tt.wantNPC || ok != tt.wantOK {
				t.Errorf("Continuation = (%q, %v), want (%q, %v)", npc, ok, tt.wantNPC, tt.wantOK)
			}
		})
	}
}

func TestMode(t *testing.T) {
	if Mode(true, true) != types.ModeCombat {
		t.Error("encounter should force combat")
	}
	if Mode(false, true) != types.ModeDialogue {
		t.Error("talking should be dialogue")
	}
	if Mode(false, false) != types.ModeExplore {
		t.Error("default should be explore")
	}
}

func TestScopeThread(t *testing.T) {
	tests := []struct {
		name   string
		scope  Scope
		wantID string
	}{
		{"combat", Scope{Action: types.ActionLook, LocationID: "ruin_upper", EncounterID: "01H", NPCID: "warden_lyra"}, "combat:01H"},
		{"npc", Scope{Action: types.ActionTalk, LocationID: "town_square", NPCID: "scholar_ione", NPCName: "Scholar Ione"}, "npc:scholar_ione"},
		{"travel", Scope{Action: types.ActionMove, LocationID: "ruin_upper"}, "travel:ruin_upper"},
		{"mystery", Scope{Action: types.ActionInvestigate, LocationID: "ruin_upper"}, "mystery:ruin_upper"},
		{"explore", Scope{Action: types.ActionLook, LocationID: "town_square"}, "explore:town_square"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, title := tt.scope.Thread()
			if id != tt.wantID {
				t.Errorf("id = %q, want %q", id, tt.wantID)
			}
			if title == "" {
				t.Error("empty title")
			}
		})
	}
	if ThreadType("travel:ruin_upper") != "travel" || ThreadType("bare") != "bare" {
		t.Error("ThreadType did not split on ':'")
	}
}

func TestScenePatchTracksVisits(t *testing.T) {
	scene := map[string]any{"visited_locations": []any{"town_square"}}

	patch := ScenePatch(scene, SceneFields{Mode: types.ModeExplore, Action: types.ActionMove, LocationID: "ruin_upper", ThreadID: "travel:ruin_upper", Message: "You move."})
	visited, ok := patch["visited_locations"].([]string)
	if !ok || len(visited) != 2 || visited[1] != "ruin_upper" {
		t.Fatalf("visited = %#v", patch["visited_locations"])
	}
	if patch["active_thread_id"] != "travel:ruin_upper" || patch["mode"] != "explore" {
		t.Errorf("patch = %v", patch)
	}
	if _, ok := patch["last_narration"]; ok {
		t.Error("last_narration should be omitted without narration")
	}

	patch = ScenePatch(scene, SceneFields{LocationID: "town_square", Message: strings.Repeat("x", 500)})
	if _, ok := patch["visited_locations"]; ok {
		t.Error("known location should not rewrite visited_locations")
	}
	if got := patch["message_excerpt"].(string); len(got) != MaxExcerpt {
		t.Errorf("excerpt length = %d", len(got))
	}
}
