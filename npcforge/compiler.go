package npcforge

import (
	"fmt"
	"strings"
)

// EffectType is the kind of a compiled action.
type EffectType string

const (
	EffectMoveNPC            EffectType = "MOVE_NPC"
	EffectChangeAvailability EffectType = "CHANGE_AVAILABILITY"
	EffectFlavorOnly         EffectType = "FLAVOR_ONLY"
)

// Flavor reasons.
const (
	ReasonInvalidMoveTarget = "invalid_move_target"
	ReasonKeyNPCMoveBlocked = "key_npc_move_blocked"
	ReasonAlreadyThere      = "already_there"
	ReasonUnsupportedKind   = "unsupported_kind"
)

// Availability durations in minutes.
const (
	DefaultAvailabilityMinutes = 15
	MaxAvailabilityMinutes     = 240
)

// Compiled is a candidate action checked against world rules. Only
// MOVE_NPC and CHANGE_AVAILABILITY change state.
type Compiled struct {
	Type             EffectType
	TargetLocationID string
	Reason           string
	Availability     Availability
	DurationMinutes  int
	Candidate        *CandidateAction
}

// Executable reports whether the compiled action mutates state.
func (c Compiled) Executable() bool {
	return c.Type == EffectMoveNPC || c.Type == EffectChangeAvailability
}

// Payload returns the event payload describing the compiled action.
func (c Compiled) Payload() map[string]any {
	p := map[string]any{}
	switch c.Type {
	case EffectMoveNPC:
		p["target_location_id"] = c.TargetLocationID
		p["reason"] = c.Reason
	case EffectChangeAvailability:
		p["availability"] = string(c.Availability)
		p["duration_minutes"] = c.DurationMinutes
	default:
		if c.Reason != "" {
			p["reason"] = c.Reason
		}
		if c.Candidate != nil {
			p["candidate"] = map[string]any{
				"kind":      string(c.Candidate.Kind),
				"target":    c.Candidate.Target,
				"content":   c.Candidate.Content,
				"intensity": c.Candidate.Intensity,
				"metadata":  c.Candidate.Metadata,
			}
		}
	}
	return p
}

// CompileInput is the world context a candidate is checked against.
type CompileInput struct {
	Sheet           Sheet
	CurrentLocation string
	WorldLocations  map[string]bool
	KeyNPC          bool
}

// Compile turns one candidate into an effect.
func Compile(a CandidateAction, in CompileInput) Compiled {
	switch a.Kind {
	case KindMove:
		target := strings.TrimSpace(a.Target)
		if target == "" || !in.WorldLocations[target] {
			return flavor(ReasonInvalidMoveTarget, nil)
		}
		if in.KeyNPC && !in.Sheet.Allows(target) {
			c := a
			return flavor(ReasonKeyNPCMoveBlocked, &c)
		}
		if target == in.CurrentLocation {
			return flavor(ReasonAlreadyThere, nil)
		}
		reason := a.Content
		if reason == "" {
			reason = "npc_relocation"
		}
		return Compiled{Type: EffectMoveNPC, TargetLocationID: target, Reason: reason}

	case KindChangeAvailability:
		availability := Availability(fmt.Sprint(a.Metadata["availability"]))
		if !availability.Valid() {
			availability = Busy
		}
		minutes := DefaultAvailabilityMinutes
		if v, ok := intValue(a.Metadata["duration_minutes"]); ok {
			minutes = v
		}
		return Compiled{
			Type:            EffectChangeAvailability,
			Availability:    availability,
			DurationMinutes: clamp(minutes, 1, MaxAvailabilityMinutes),
		}

	case KindSpeak, KindRumor, KindRefuseService, KindOffer, KindHelp,
		KindSeekHelp, KindSpeakToOtherNPC, KindOfferReconciliationHook:
		c := a
		return flavor("", &c)
	}
	return flavor(ReasonUnsupportedKind, nil)
}

// CompileAll compiles each candidate in order.
func CompileAll(actions []CandidateAction, in CompileInput) []Compiled {
	out := make([]Compiled, 0, len(actions))
	for _, a := range actions {
		out = append(out, Compile(a, in))
	}
	return out
}

func flavor(reason string, candidate *CandidateAction) Compiled {
	return Compiled{Type: EffectFlavorOnly, Reason: reason, Candidate: candidate}
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
