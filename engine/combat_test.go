package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/nathoo/asterfall/engine/events"
	"github.com/nathoo/asterfall/store"
	"github.com/nathoo/asterfall/types"
)

func TestCombatRoll(t *testing.T) {
	tests := []struct {
		name string
		die  int
		p    types.Player
		want int
	}{
		{"plain", 12, types.Player{}, 12},
		{"experience bonus", 12, types.Player{XP: 25}, 14},
		{"injury penalty", 12, types.Player{Injury: 3}, 9},
		{"clamped low", 1, types.Player{Injury: 5}, 1},
		{"clamped high", 20, types.Player{XP: 90}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := combatRoll(tt.die, tt.p); got != tt.want {
				t.Errorf("combatRoll(%d, %+v) = %d, want %d", tt.die, tt.p, got, tt.want)
			}
		})
	}
}

func countEncounters(t *testing.T, s *store.Store, actor string) int {
	t.Helper()
	var n int
	if err := s.View(context.Background(), func(tx *store.Tx) error {
		var err error
		n, err = tx.CountEncounters(actor)
		return err
	}); err != nil {
		t.Fatalf("count encounters: %v", err)
	}
	return n
}

func TestInvestigateWithoutDanger(t *testing.T) {
	e, s := newTestEngine(t, engineOpts{dice: &fakeDice{rolls: []int{12}}})
	mustStart(t, e, "p1")

	res := send(t, e, "p1", "!investigate")
	if !strings.HasPrefix(res.Message, "You investigate and find constellation sigil.") {
		t.Errorf("investigate = %q", res.Message)
	}
	if countEncounters(t, s, "p1") != 0 {
		t.Error("encounter created below the danger roll")
	}
}

func TestCombatWin(t *testing.T) {
	e, s := newTestEngine(t, engineOpts{dice: &fakeDice{rolls: []int{15, 12}}})
	mustStart(t, e, "p1")

	res := send(t, e, "p1", "!investigate")
	if !strings.Contains(res.Message, "Combat starts") || res.Mode != types.ModeCombat {
		t.Fatalf("trigger = %+v", res)
	}
	if countEncounters(t, s, "p1") != 1 {
		t.Fatal("no encounter row")
	}

	status := send(t, e, "p1", "!look")
	if !strings.HasPrefix(status.Message, "Combat is active against a skirmisher (turn 1).") {
		t.Errorf("status = %q", status.Message)
	}

	res = send(t, e, "p1", "!investigate")
	if !strings.HasPrefix(res.Message, "You outmaneuver the skirmisher") {
		t.Fatalf("engage = %q", res.Message)
	}
	if res.Mode != types.ModeExplore {
		t.Errorf("mode after win = %s", res.Mode)
	}
	if len(res.Events) != 1 || res.Events[0].Type != events.CombatResolved {
		t.Errorf("events = %+v", res.Events)
	}
	if p := readPlayer(t, s, "p1"); p.XP != combatXPReward {
		t.Errorf("xp = %d", p.XP)
	}
	if countEncounters(t, s, "p1") != 0 {
		t.Error("encounter row survived the win")
	}
}

func TestCombatProgressAndRescue(t *testing.T) {
	e, s := newTestEngine(t, engineOpts{dice: &fakeDice{rolls: []int{15}}})
	mustStart(t, e, "p1")
	send(t, e, "p1", "!investigate")

	res := send(t, e, "p1", "!investigate")
	if !strings.HasPrefix(res.Message, "The skirmisher presses in. Combat continues (turn 2).") {
		t.Fatalf("progress = %q", res.Message)
	}

	// Every later roll is a 1; the tenth lost round empties HP.
	for i := 0; i < MaxHP/combatDamage-2; i++ {
		send(t, e, "p1", "!investigate")
	}
	res = send(t, e, "p1", "!investigate")
	if !strings.HasPrefix(res.Message, "The skirmisher overwhelms you.") {
		t.Fatalf("rescue = %q", res.Message)
	}
	if len(res.Events) != 1 || res.Events[0].Type != events.CombatRescued {
		t.Errorf("events = %+v", res.Events)
	}
	p := readPlayer(t, s, "p1")
	if p.HP != 1 || p.XP != 0 {
		t.Errorf("player after rescue = %+v", p)
	}
	if countEncounters(t, s, "p1") != 0 {
		t.Error("encounter row survived the rescue")
	}
}

func TestCombatDisengage(t *testing.T) {
	e, s := newTestEngine(t, engineOpts{dice: &fakeDice{rolls: []int{15}}})
	mustStart(t, e, "p1")
	send(t, e, "p1", "!investigate")

	res := send(t, e, "p1", "!move ruin")
	if !strings.HasPrefix(res.Message, "You break away and disengage from combat.") {
		t.Fatalf("disengage = %q", res.Message)
	}
	if p := readPlayer(t, s, "p1"); p.LocationID != "town_square" {
		t.Errorf("disengage moved the player to %q", p.LocationID)
	}
	if countEncounters(t, s, "p1") != 0 {
		t.Error("encounter row survived disengage")
	}
}

func TestCombatIsPerActor(t *testing.T) {
	e, _ := newTestEngine(t, engineOpts{dice: &fakeDice{rolls: []int{15}}})
	mustStart(t, e, "p1")
	send(t, e, "p1", "!investigate")
	mustStart(t, e, "p2")

	res := send(t, e, "p2", "!look")
	if strings.Contains(res.Message, "Combat is active") || res.Mode != types.ModeExplore {
		t.Errorf("p2 was pulled into p1's fight: %+v", res)
	}
	if res := send(t, e, "p1", "!stats"); !strings.Contains(res.Message, "Mode combat") {
		t.Errorf("p1 stats = %q", res.Message)
	}
}
