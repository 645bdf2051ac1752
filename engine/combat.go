package engine

import (
	"fmt"

	"github.com/nathoo/asterfall/engine/events"
	"github.com/nathoo/asterfall/types"
)

const combatPrompt = "Try: `investigate` to engage carefully, `move` to disengage, or `look` for status."

const (
	defaultEnemyRole = "skirmisher"
	combatThreshold  = 10
	combatXPReward   = 3
	combatDamage     = 2
)

// combat handles a turn taken while the actor's encounter at their
// location is live.
func (t *turn) combat(p *types.Player, enc types.Encounter) (outcome, error) {
	role := enc.State.EnemyRole
	if role == "" {
		role = "threat"
	}
	round := max(1, enc.State.Turn)

	switch t.plan.intent.Action {
	case types.ActionLook, types.ActionUnknown:
		return reply(fmt.Sprintf("Combat is active against a %s (turn %d). %s", role, round, combatPrompt)), nil

	case types.ActionMove:
		if err := t.tx.DeleteEncounter(enc.ID); err != nil {
			return outcome{}, err
		}
		if err := t.emit(events.CombatDisengaged, map[string]any{
			"encounter_id": enc.ID, "location_id": enc.LocationID,
		}); err != nil {
			return outcome{}, err
		}
		return reply("You break away and disengage from combat.\n" + t.prompt(p.LocationID)), nil

	case types.ActionInvestigate:
		return t.engage(p, enc, role, round)

	case types.ActionStats:
		return t.stats(p, types.ModeCombat), nil

	case types.ActionRecap:
		return t.recap()

	default:
		return reply("Combat is active. " + combatPrompt), nil
	}
}

// combatRoll is a d20 plus experience, less injury, kept on the die.
func combatRoll(die int, p types.Player) int {
	return min(20, max(1, die+p.XP/10-p.Injury))
}

func (t *turn) engage(p *types.Player, enc types.Encounter, role string, round int) (outcome, error) {
	roll := combatRoll(t.e.rng.Roll(20), *p)

	if roll >= combatThreshold {
		if err := t.tx.DeleteEncounter(enc.ID); err != nil {
			return outcome{}, err
		}
		p.XP += combatXPReward
		if err := t.tx.UpdatePlayer(*p); err != nil {
			return outcome{}, err
		}
		if err := t.emit(events.CombatResolved, map[string]any{
			"encounter_id": enc.ID, "location_id": enc.LocationID,
			"roll": roll, "result": "won", "xp_gained": combatXPReward,
		}); err != nil {
			return outcome{}, err
		}
		return reply(fmt.Sprintf("You outmaneuver the %s and end the fight.\n%s", role, t.prompt(p.LocationID))), nil
	}

	p.HP -= combatDamage
	p.Injury++
	if p.HP <= 0 {
		// Lost: no reward, the player is pulled out at 1 hp.
		p.HP = 1
		if err := t.tx.DeleteEncounter(enc.ID); err != nil {
			return outcome{}, err
		}
		if err := t.tx.UpdatePlayer(*p); err != nil {
			return outcome{}, err
		}
		if err := t.emit(events.CombatRescued, map[string]any{
			"encounter_id": enc.ID, "location_id": enc.LocationID, "roll": roll,
		}); err != nil {
			return outcome{}, err
		}
		return reply(fmt.Sprintf("The %s overwhelms you. Someone drags you clear of the fight.\n%s", role, t.prompt(p.LocationID))), nil
	}

	enc.State.Turn = round + 1
	if err := t.tx.UpdateEncounterState(enc.ID, enc.State); err != nil {
		return outcome{}, err
	}
	if err := t.tx.UpdatePlayer(*p); err != nil {
		return outcome{}, err
	}
	if err := t.emit(events.CombatProgress, map[string]any{
		"encounter_id": enc.ID, "location_id": enc.LocationID,
		"roll": roll, "turn": enc.State.Turn, "hp": p.HP,
	}); err != nil {
		return outcome{}, err
	}
	return reply(fmt.Sprintf("The %s presses in. Combat continues (turn %d).", role, enc.State.Turn)), nil
}
