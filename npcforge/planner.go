package npcforge

import "strings"

// Rand is the randomness source used by PlanTick.
type Rand interface {
	// Float returns a value in [0, 1).
	Float() float64
	// Choice returns an index in [0, n).
	Choice(n int) int
}

// TickKind is an action kind an NPC may take on its own. PlanTick can only
// build actions of these kinds.
type TickKind string

const (
	TickMove                    TickKind = TickKind(KindMove)
	TickRumor                   TickKind = TickKind(KindRumor)
	TickSeekHelp                TickKind = TickKind(KindSeekHelp)
	TickSpeakToOtherNPC         TickKind = TickKind(KindSpeakToOtherNPC)
	TickChangeAvailability      TickKind = TickKind(KindChangeAvailability)
	TickOfferReconciliationHook TickKind = TickKind(KindOfferReconciliationHook)
)

func (k TickKind) action(target, content string, metadata map[string]any) CandidateAction {
	return CandidateAction{Kind: ActionKind(k), Target: target, Content: content, Intensity: 1, Metadata: metadata}
}

// MaxTickActions bounds the actions proposed per tick.
const MaxTickActions = 3

type bias struct {
	lawChaos int
	moral    int
}

func alignmentBias(a Alignment) bias {
	var b bias
	s := string(a)
	switch {
	case strings.HasPrefix(s, "lawful"):
		b.lawChaos = 2
	case strings.HasPrefix(s, "chaotic"):
		b.lawChaos = -2
	}
	switch {
	case strings.HasSuffix(s, "good"):
		b.moral = 2
	case strings.HasSuffix(s, "evil"):
		b.moral = -2
	}
	return b
}

// MoveChance returns the per-tick probability that an NPC proposes a move.
func MoveChance(a Alignment) float64 {
	chance := 0.15 - 0.08
	if alignmentBias(a).lawChaos < 0 {
		chance = 0.15 + 0.2
	}
	return min(0.45, max(0.02, chance))
}

// PlanTick runs the autonomous policy for one tick.
func PlanTick(sheet Sheet, st State, obs Observation, rng Rand) Output {
	b := alignmentBias(sheet.Alignment)
	var actions []CandidateAction

	if rng.Float() < MoveChance(sheet.Alignment) {
		choices := sheet.AllowedLocations
		if len(choices) == 0 {
			choices = []string{obs.LocationID}
		}
		target := choices[rng.Choice(len(choices))]
		if target != obs.LocationID {
			actions = append(actions, TickMove.action(target, "Relocate to "+target+" to pursue current goals.", nil))
		}
	}

	switch {
	case b.moral >= 1:
		actions = append(actions, TickSeekHelp.action("", "Check if anyone nearby needs assistance.", nil))
	case b.moral <= -1:
		actions = append(actions, TickRumor.action("", "Spread a self-serving version of recent events.", nil))
	default:
		actions = append(actions, TickSpeakToOtherNPC.action("", "Exchange practical updates with another local.", nil))
	}

	if st.Availability == Open && rng.Float() < 0.2 {
		actions = append(actions, TickChangeAvailability.action("", "Take a brief break before returning.",
			map[string]any{"availability": string(Busy), "duration_minutes": 15}))
	}

	if len(actions) > MaxTickActions {
		actions = actions[:MaxTickActions]
	}
	goal := st.CurrentGoal
	if len(actions) > 0 {
		goal = "Follow through on: " + string(actions[0].Kind) + "."
	}
	return Output{
		Intent:  "npc_tick",
		Actions: actions,
		Updates: Updates{CurrentGoal: &goal},
	}
}
