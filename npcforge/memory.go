package npcforge

import (
	"strings"
	"unicode/utf8"
)

// CompactThreshold is the summary length at which compaction is requested.
const CompactThreshold = MaxSummaryLen * 9 / 10

// DecayMood moves mood one point per step toward baseline without
// overshooting it.
func DecayMood(s State, steps int) State {
	out := s.Clone()
	for i := 0; i < steps; i++ {
		switch {
		case out.Mood > out.BaselineMood:
			out.Mood--
		case out.Mood < out.BaselineMood:
			out.Mood++
		}
	}
	out.Mood = clamp(out.Mood, -100, 100)
	return out
}

// ExpireAvailability reopens an NPC whose unavailable-until time has passed.
func ExpireAvailability(s State, now int64) State {
	if s.UnavailableUntil == nil || now < *s.UnavailableUntil {
		return s
	}
	out := s.Clone()
	out.Availability = Open
	out.UnavailableUntil = nil
	return out
}

// SetUnavailable sets availability, lasting minutes from now unless it is Open.
func SetUnavailable(s State, availability Availability, now int64, minutes int) State {
	out := s.Clone()
	out.Availability = availability
	if availability == Open {
		out.UnavailableUntil = nil
		return out
	}
	until := now + int64(minutes)*60
	out.UnavailableUntil = &until
	return out
}

// ApplyFeedback merges an interaction outcome into the state for playerID.
func ApplyFeedback(s State, playerID string, fb Feedback) State {
	out := s.Clone()
	out.Affinity[playerID] = clamp(out.Affinity[playerID]+clamp(fb.DeltaAffinity, -MaxFeedbackStep, MaxFeedbackStep), -100, 100)
	out.Trust[playerID] = clamp(out.Trust[playerID]+clamp(fb.DeltaTrust, -MaxFeedbackStep, MaxFeedbackStep), 0, 100)
	out.Respect[playerID] = clamp(out.Respect[playerID]+clamp(fb.DeltaRespect, -MaxFeedbackStep, MaxFeedbackStep), 0, 100)
	out.BondFlags[playerID] = mergeFlags(out.BondFlags[playerID], fb.NewBondFlags)
	out.GrudgeFlags[playerID] = mergeFlags(out.GrudgeFlags[playerID], fb.NewGrudgeFlags)
	out.LastInteraction[playerID] = fb.TS

	out.MemorySummary = AppendSummary(out.MemorySummary, fb.WhatHappened+" Reaction: "+fb.EmotionalReaction+".")
	if what := strings.TrimSpace(fb.WhatHappened); what != "" {
		out.PinnedMemories = pin(out.PinnedMemories, truncate(what, MaxPinnedLen))
	}
	return out
}

// ApplyOutput merges a policy output's state patch and feedback.
func ApplyOutput(s State, o Output) State {
	out := s.Clone()
	u := o.Updates
	if u.Mood != nil {
		out.Mood = clamp(*u.Mood, -100, 100)
	}
	if u.CurrentGoal != nil {
		out.CurrentGoal = truncate(*u.CurrentGoal, MaxGoalLen)
	}
	if u.MemorySummary != nil {
		out.MemorySummary = tail(*u.MemorySummary, MaxSummaryLen)
	}
	for player, stage := range u.GreetingStage {
		if stage = clamp(stage, 0, MaxGreetStage); stage > out.GreetingStage[player] {
			out.GreetingStage[player] = stage
		}
	}
	for player, ts := range u.LastInteraction {
		out.LastInteraction[player] = ts
	}
	if o.Feedback != nil {
		player := u.PlayerID
		if player == "" {
			player = "system"
		}
		out = ApplyFeedback(out, player, *o.Feedback)
	}
	return out
}

// AppendSummary appends line to summary, keeping the newest MaxSummaryLen
// bytes.
func AppendSummary(summary, line string) string {
	text := strings.TrimSpace(strings.TrimSpace(summary) + " " + strings.TrimSpace(line))
	return tail(text, MaxSummaryLen)
}

// NeedsCompaction reports whether summary is long enough to compact.
func NeedsCompaction(summary string) bool {
	return len(summary) >= CompactThreshold
}

// CompactionPrompt is the content request used to shorten a summary.
func CompactionPrompt(name, summary string) string {
	return "Condense these notes an NPC named " + name + " keeps about recent encounters into at most " +
		"four short sentences. Keep names and unresolved tensions. Return only the notes.\n\n" + summary
}

// ApplyCompaction replaces the summary with a compacted one. An empty
// result leaves the state unchanged and reports false.
func ApplyCompaction(s State, compacted string) (State, bool) {
	compacted = strings.TrimSpace(compacted)
	if compacted == "" || strings.HasPrefix(compacted, StubPrefix) {
		return s, false
	}
	out := s.Clone()
	out.MemorySummary = tail(compacted, MaxSummaryLen)
	return out, true
}

func mergeFlags(existing, add []string) []string {
	out := append([]string{}, existing...)
	for _, f := range add {
		f = strings.TrimSpace(f)
		if f == "" || contains(out, f) {
			continue
		}
		out = append(out, f)
	}
	if len(out) > MaxFlags {
		out = out[len(out)-MaxFlags:]
	}
	return out
}

func pin(pinned []string, memory string) []string {
	out := make([]string, 0, len(pinned)+1)
	for _, p := range pinned {
		if p != "" {
			out = append(out, p)
		}
	}
	if !contains(out, memory) {
		out = append(out, memory)
	}
	if len(out) > MaxPinned {
		out = out[len(out)-MaxPinned:]
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// truncate keeps at most n bytes from the front of s on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// tail keeps at most n bytes from the end of s on a rune boundary.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	for len(s) > 0 && !utf8.RuneStart(s[0]) {
		s = s[1:]
	}
	return s
}
