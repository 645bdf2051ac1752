package npcforge

import (
	"fmt"
	"strings"
)

// StubPrefix marks deterministic placeholder text from the stub content
// provider. Such text never replaces a computed line.
const StubPrefix = "[stub]"

const longAbsence = 7 * 24 * 3600

// Greeting returns the opening beat for playerID given the relationship.
func Greeting(sheet Sheet, st State, obs Observation, playerID string) string {
	stage := st.GreetingStage[playerID]
	trust := st.Trust[playerID]
	affinity := st.Affinity[playerID]
	last := st.LastInteraction[playerID]

	switch {
	case stage == 0:
		return fmt.Sprintf("%s sizes you up before offering a formal nod.", sheet.Name)
	case last > 0 && obs.Now-last > longAbsence:
		return "It's been a while, and they make that clear with a measured pause."
	case len(st.GrudgeFlags[playerID]) > 0 || trust < 20:
		return fmt.Sprintf("%s's tone is curt, and old friction sits between you.", sheet.Name)
	case trust >= 65 && affinity >= 40:
		return fmt.Sprintf("%s greets you warmly, already connecting today to your past efforts.", sheet.Name)
	default:
		return fmt.Sprintf("%s greets you with familiar restraint.", sheet.Name)
	}
}

// Refused reports whether the NPC withholds service from playerID.
func Refused(st State, playerID string) bool {
	return len(st.GrudgeFlags[playerID]) > 0 || st.Trust[playerID] < 20
}

func reply(st State, obs Observation, playerID string) (string, []CandidateAction) {
	lower := strings.ToLower(strings.TrimSpace(obs.Utterance))

	if Refused(st, playerID) {
		return "Not today. Earn back some trust, then we can speak plainly.", []CandidateAction{
			{
				Kind: KindRefuseService, Intensity: 1,
				Content:  "I don't trust this exchange yet.",
				Metadata: map[string]any{"reason": "grudge_or_low_trust"},
			},
			{
				Kind: KindOfferReconciliationHook, Intensity: 1,
				Content:  "Bring proof you can be relied on: deliver a sealed letter to the watch post.",
				Metadata: map[string]any{"hook_type": "repair"},
			},
		}
	}

	var candidates []CandidateAction
	if strings.Contains(lower, "help") || strings.Contains(lower, "can you") {
		candidates = append(candidates, CandidateAction{
			Kind: KindHelp, Intensity: 1,
			Content:  "Offer practical assistance that fits the NPC role.",
			Metadata: map[string]any{"topic": "requested_help"},
		})
	}
	if strings.Contains(lower, "rumor") || strings.Contains(lower, "heard") || strings.Contains(lower, "news") {
		candidates = append(candidates, CandidateAction{
			Kind: KindRumor, Intensity: 1,
			Content: "Share one rumor that may or may not be complete.",
		})
	}

	trust := st.Trust[playerID]
	switch {
	case trust >= 60 && (contains(st.BondFlags[playerID], "saved_me") || st.Affinity[playerID] >= 45):
		return "For you, I'll be direct: the safer route is through the market arches, not the open lane.", candidates
	case st.Respect[playerID] >= 60:
		return "You ask like someone who plans ahead. I'll give you the short version and the risk behind it.", candidates
	default:
		return "I'll answer what I can, but keep your expectations practical.", candidates
	}
}

// UsableLine reports whether generated text may replace a computed line.
func UsableLine(text string) bool {
	text = strings.TrimSpace(text)
	return text != "" && !strings.HasPrefix(text, StubPrefix)
}

// Produce runs the reactive policy for one player interaction. generated is
// an optional line from the content service; when usable it replaces the
// computed greeting and reply.
func Produce(sheet Sheet, st State, obs Observation, generated string) Output {
	player := obs.PlayerID
	if player == "" {
		player = "system"
	}
	greeting := Greeting(sheet, st, obs, player)
	line, candidates := reply(st, obs, player)

	dialogue := greeting + " " + line
	if UsableLine(generated) {
		dialogue = strings.TrimSpace(generated)
	}

	lower := strings.ToLower(obs.Utterance)
	reaction := "Caution"
	if len(candidates) > 0 && candidates[0].Kind != KindRefuseService {
		reaction = "Guarded optimism"
	}
	affinity, trust := 1, 1
	if strings.Contains(lower, "help") {
		affinity = 2
	}
	mood := st.Mood
	if strings.Contains(lower, "thank") {
		trust = 2
		mood++
	}
	mood = clamp(mood, -100, 100)

	return Output{
		Dialogue: truncate(dialogue, MaxDialogueLen),
		Intent:   "maintain_relationship",
		Actions:  candidates,
		Updates: Updates{
			PlayerID:        player,
			Mood:            &mood,
			GreetingStage:   map[string]int{player: min(MaxGreetStage, st.GreetingStage[player]+1)},
			LastInteraction: map[string]int64{player: obs.Now},
		},
		Feedback: &Feedback{
			WhatHappened:      fmt.Sprintf("Spoke with %s in %s.", player, obs.LocationName),
			EmotionalReaction: reaction,
			Success:           true,
			DeltaAffinity:     affinity,
			DeltaTrust:        trust,
			DeltaRespect:      1,
			TS:                obs.Now,
		},
	}
}

// DialoguePrompt is the content request for an in-character NPC line.
func DialoguePrompt(sheet Sheet, st State, obs Observation) string {
	var b strings.Builder
	b.WriteString("You are an NPC in a grounded fantasy world. Reply in-character in 1-3 sentences without game mechanics.\n")
	fmt.Fprintf(&b, "Name: %s\n", sheet.Name)
	fmt.Fprintf(&b, "Voice: %s\n", sheet.VoiceStyle)
	fmt.Fprintf(&b, "Alignment: %s\n", sheet.Alignment)
	fmt.Fprintf(&b, "Motivation: %s\n", sheet.Motivation)
	fmt.Fprintf(&b, "Fear: %s\n", sheet.Fear)
	fmt.Fprintf(&b, "Current goal: %s\n", st.CurrentGoal)
	fmt.Fprintf(&b, "Memory summary: %s\n", st.MemorySummary)
	fmt.Fprintf(&b, "Player said: %s\n", obs.Utterance)
	b.WriteString("Respond only with the NPC dialogue.")
	return b.String()
}
