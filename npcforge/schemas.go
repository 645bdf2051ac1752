// Package npcforge models NPC personas and relationship state, and decides
// what an NPC says or does in reaction to a player or on an autonomous tick.
//
// It is pure: nothing here reads the store or calls the content service.
// The engine loads a Sheet and State, asks this package for an Output and
// writes the merged State back in the same transaction.
package npcforge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Record versions written by this package.
const (
	SheetVersion = 1
	StateVersion = 1
)

// Bounds on state fields.
const (
	MaxFlags        = 10
	MaxPinned       = 10
	MaxPinnedLen    = 120
	MaxGoalLen      = 220
	MaxSummaryLen   = 600
	MaxDialogueLen  = 500
	MaxGreetStage   = 3
	MaxFeedbackStep = 30
)

// Alignment is one of the nine classic alignments.
type Alignment string

const (
	LawfulGood     Alignment = "lawful_good"
	NeutralGood    Alignment = "neutral_good"
	ChaoticGood    Alignment = "chaotic_good"
	LawfulNeutral  Alignment = "lawful_neutral"
	TrueNeutral    Alignment = "true_neutral"
	ChaoticNeutral Alignment = "chaotic_neutral"
	LawfulEvil     Alignment = "lawful_evil"
	NeutralEvil    Alignment = "neutral_evil"
	ChaoticEvil    Alignment = "chaotic_evil"
)

// Valid reports whether a is one of the nine alignments.
func (a Alignment) Valid() bool {
	switch a {
	case LawfulGood, NeutralGood, ChaoticGood,
		LawfulNeutral, TrueNeutral, ChaoticNeutral,
		LawfulEvil, NeutralEvil, ChaoticEvil:
		return true
	}
	return false
}

// Availability is whether an NPC can be engaged right now.
type Availability string

const (
	Open Availability = "open"
	Busy Availability = "busy"
	Away Availability = "away"
)

// Valid reports whether a is a known availability.
func (a Availability) Valid() bool {
	return a == Open || a == Busy || a == Away
}

// ActionKind names a candidate action an NPC may propose.
type ActionKind string

const (
	KindSpeak                   ActionKind = "speak"
	KindMove                    ActionKind = "move"
	KindRumor                   ActionKind = "rumor"
	KindRefuseService           ActionKind = "refuse_service"
	KindOffer                   ActionKind = "offer"
	KindHelp                    ActionKind = "help"
	KindChangeAvailability      ActionKind = "change_availability"
	KindOfferReconciliationHook ActionKind = "offer_reconciliation_hook"
	KindSeekHelp                ActionKind = "seek_help"
	KindSpeakToOtherNPC         ActionKind = "speak_to_other_npc"
)

// CandidateAction is a proposal from a policy. It has no effect until the
// compiler turns it into an effect.
type CandidateAction struct {
	Kind      ActionKind     `json:"kind"`
	Target    string         `json:"target,omitempty"`
	Content   string         `json:"content,omitempty"`
	Intensity int            `json:"intensity"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Sheet is an NPC's persona. It is immutable once generated.
type Sheet struct {
	Version          int       `json:"version"`
	NPCID            string    `json:"npc_id"`
	Name             string    `json:"name"`
	Alignment        Alignment `json:"alignment"`
	Background       []string  `json:"background_paragraphs"`
	Ideals           []string  `json:"ideals"`
	Bonds            []string  `json:"bonds"`
	Flaws            []string  `json:"flaws"`
	Motivation       string    `json:"motivation"`
	Fear             string    `json:"fear"`
	Archetype        string    `json:"archetype"`
	Skills           []string  `json:"skills"`
	VoiceStyle       string    `json:"voice_style"`
	BaselineMood     int       `json:"baseline_mood"`
	AllowedLocations []string  `json:"allowed_locations"`
	Tier             int       `json:"tier"`
}

// IsKey reports whether the sheet belongs to a key NPC.
func (s Sheet) IsKey() bool { return s.Tier >= 3 }

// Allows reports whether locationID is in the sheet's allowed set.
func (s Sheet) Allows(locationID string) bool {
	for _, id := range s.AllowedLocations {
		if id == locationID {
			return true
		}
	}
	return false
}

// State is an NPC's mutable relationship and mood record. Per-player maps
// are keyed by player id.
type State struct {
	Version          int                 `json:"version"`
	Mood             int                 `json:"mood"`
	BaselineMood     int                 `json:"baseline_mood"`
	Affinity         map[string]int      `json:"affinity_by_player"`
	Trust            map[string]int      `json:"trust_by_player"`
	Respect          map[string]int      `json:"respect_by_player"`
	BondFlags        map[string][]string `json:"bond_flags_by_player"`
	GrudgeFlags      map[string][]string `json:"grudge_flags_by_player"`
	LastInteraction  map[string]int64    `json:"last_interaction_ts_by_player"`
	GreetingStage    map[string]int      `json:"greeting_stage_by_player"`
	CurrentGoal      string              `json:"current_goal"`
	MemorySummary    string              `json:"memory_summary"`
	PinnedMemories   []string            `json:"pinned_memories"`
	Availability     Availability        `json:"availability"`
	UnavailableUntil *int64              `json:"unavailable_until_ts,omitempty"`
}

// DefaultState returns a State with every field at its default.
func DefaultState() State {
	return State{
		Version:         StateVersion,
		Affinity:        map[string]int{},
		Trust:           map[string]int{},
		Respect:         map[string]int{},
		BondFlags:       map[string][]string{},
		GrudgeFlags:     map[string][]string{},
		LastInteraction: map[string]int64{},
		GreetingStage:   map[string]int{},
		CurrentGoal:     "Maintain routine and gather local information.",
		PinnedMemories:  []string{},
		Availability:    Open,
	}
}

// Observation is what an NPC perceives when a policy runs.
type Observation struct {
	Now          int64
	PlayerID     string
	Utterance    string
	LocationID   string
	LocationName string
	WorldSummary string
	RecentEvents []string
}

// Feedback records the outcome of one interaction with a player.
type Feedback struct {
	WhatHappened      string   `json:"what_happened"`
	EmotionalReaction string   `json:"emotional_reaction"`
	Success           bool     `json:"success"`
	DeltaAffinity     int      `json:"delta_affinity"`
	DeltaTrust        int      `json:"delta_trust"`
	DeltaRespect      int      `json:"delta_respect"`
	NewBondFlags      []string `json:"new_bond_flags,omitempty"`
	NewGrudgeFlags    []string `json:"new_grudge_flags,omitempty"`
	TS                int64    `json:"ts"`
}

// Updates is the state patch carried by an Output. Nil fields leave the
// state unchanged.
type Updates struct {
	PlayerID        string
	Mood            *int
	CurrentGoal     *string
	MemorySummary   *string
	GreetingStage   map[string]int
	LastInteraction map[string]int64
}

// Output is a policy's decision.
type Output struct {
	Dialogue string
	Intent   string
	Actions  []CandidateAction
	Updates  Updates
	Feedback *Feedback
}

// ValidationError reports a persisted record that does not satisfy its
// schema.
type ValidationError struct {
	Record string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s: %s", e.Record, e.Field, e.Reason)
}

func invalid(record, field, format string, args ...any) error {
	return &ValidationError{Record: record, Field: field, Reason: fmt.Sprintf(format, args...)}
}

func checkLen(record, field string, items []string, min, max int) error {
	if len(items) < min || len(items) > max {
		return invalid(record, field, "want %d..%d entries, got %d", min, max, len(items))
	}
	return nil
}

func checkRange(record, field string, v, min, max int) error {
	if v < min || v > max {
		return invalid(record, field, "%d outside %d..%d", v, min, max)
	}
	return nil
}

// Validate checks the sheet against its schema.
func (s Sheet) Validate() error {
	const rec = "npc sheet"
	if s.Version != SheetVersion {
		return invalid(rec, "version", "unsupported version %d", s.Version)
	}
	if strings.TrimSpace(s.NPCID) == "" {
		return invalid(rec, "npc_id", "required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return invalid(rec, "name", "required")
	}
	if !s.Alignment.Valid() {
		return invalid(rec, "alignment", "unknown alignment %q", s.Alignment)
	}
	if err := checkLen(rec, "background_paragraphs", s.Background, 2, 4); err != nil {
		return err
	}
	if err := checkLen(rec, "ideals", s.Ideals, 1, 4); err != nil {
		return err
	}
	if err := checkLen(rec, "bonds", s.Bonds, 1, 4); err != nil {
		return err
	}
	if err := checkLen(rec, "flaws", s.Flaws, 1, 4); err != nil {
		return err
	}
	if err := checkLen(rec, "skills", s.Skills, 2, 8); err != nil {
		return err
	}
	for field, v := range map[string]string{
		"motivation": s.Motivation, "fear": s.Fear, "archetype": s.Archetype, "voice_style": s.VoiceStyle,
	} {
		if strings.TrimSpace(v) == "" {
			return invalid(rec, field, "required")
		}
	}
	if err := checkRange(rec, "baseline_mood", s.BaselineMood, -100, 100); err != nil {
		return err
	}
	return checkRange(rec, "tier", s.Tier, 1, 3)
}

// Validate checks the state against its schema.
func (s State) Validate() error {
	const rec = "npc state"
	if s.Version != StateVersion {
		return invalid(rec, "version", "unsupported version %d", s.Version)
	}
	if err := checkRange(rec, "mood", s.Mood, -100, 100); err != nil {
		return err
	}
	if err := checkRange(rec, "baseline_mood", s.BaselineMood, -100, 100); err != nil {
		return err
	}
	for _, m := range []struct {
		field    string
		values   map[string]int
		min, max int
	}{
		{"affinity_by_player", s.Affinity, -100, 100},
		{"trust_by_player", s.Trust, 0, 100},
		{"respect_by_player", s.Respect, 0, 100},
		{"greeting_stage_by_player", s.GreetingStage, 0, MaxGreetStage},
	} {
		for player, v := range m.values {
			if err := checkRange(rec, m.field+"."+player, v, m.min, m.max); err != nil {
				return err
			}
		}
	}
	for field, flags := range map[string]map[string][]string{
		"bond_flags_by_player": s.BondFlags, "grudge_flags_by_player": s.GrudgeFlags,
	} {
		for player, list := range flags {
			if err := checkLen(rec, field+"."+player, list, 0, MaxFlags); err != nil {
				return err
			}
		}
	}
	if len(s.CurrentGoal) > MaxGoalLen {
		return invalid(rec, "current_goal", "longer than %d", MaxGoalLen)
	}
	if len(s.MemorySummary) > MaxSummaryLen {
		return invalid(rec, "memory_summary", "longer than %d", MaxSummaryLen)
	}
	if err := checkLen(rec, "pinned_memories", s.PinnedMemories, 0, MaxPinned); err != nil {
		return err
	}
	if !s.Availability.Valid() {
		return invalid(rec, "availability", "unknown availability %q", s.Availability)
	}
	return nil
}

// DecodeSheet parses and validates a persisted sheet. A missing version is
// read as the current one.
func DecodeSheet(blob string) (Sheet, error) {
	var s Sheet
	if err := json.Unmarshal([]byte(blob), &s); err != nil {
		return Sheet{}, invalid("npc sheet", "json", "%v", err)
	}
	if s.Version == 0 {
		s.Version = SheetVersion
	}
	if err := s.Validate(); err != nil {
		return Sheet{}, err
	}
	return s, nil
}

// DecodeState parses and validates a persisted state. Fields absent from
// the blob take their defaults.
func DecodeState(blob string) (State, error) {
	s := DefaultState()
	s.Version = 0
	if err := json.Unmarshal([]byte(blob), &s); err != nil {
		return State{}, invalid("npc state", "json", "%v", err)
	}
	if s.Version == 0 {
		s.Version = StateVersion
	}
	s.fillMaps()
	if err := s.Validate(); err != nil {
		return State{}, err
	}
	return s, nil
}

// Encode returns the JSON form of the sheet.
func (s Sheet) Encode() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode npc sheet: %w", err)
	}
	return string(b), nil
}

// Encode returns the JSON form of the state.
func (s State) Encode() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode npc state: %w", err)
	}
	return string(b), nil
}

func (s *State) fillMaps() {
	if s.Affinity == nil {
		s.Affinity = map[string]int{}
	}
	if s.Trust == nil {
		s.Trust = map[string]int{}
	}
	if s.Respect == nil {
		s.Respect = map[string]int{}
	}
	if s.BondFlags == nil {
		s.BondFlags = map[string][]string{}
	}
	if s.GrudgeFlags == nil {
		s.GrudgeFlags = map[string][]string{}
	}
	if s.LastInteraction == nil {
		s.LastInteraction = map[string]int64{}
	}
	if s.GreetingStage == nil {
		s.GreetingStage = map[string]int{}
	}
	if s.PinnedMemories == nil {
		s.PinnedMemories = []string{}
	}
	if s.Availability == "" {
		s.Availability = Open
	}
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.Affinity = cloneInts(s.Affinity)
	out.Trust = cloneInts(s.Trust)
	out.Respect = cloneInts(s.Respect)
	out.GreetingStage = cloneInts(s.GreetingStage)
	out.BondFlags = cloneFlags(s.BondFlags)
	out.GrudgeFlags = cloneFlags(s.GrudgeFlags)
	out.LastInteraction = make(map[string]int64, len(s.LastInteraction))
	for k, v := range s.LastInteraction {
		out.LastInteraction[k] = v
	}
	out.PinnedMemories = append([]string{}, s.PinnedMemories...)
	if s.UnavailableUntil != nil {
		until := *s.UnavailableUntil
		out.UnavailableUntil = &until
	}
	return out
}

func cloneInts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneFlags(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = append([]string{}, v...)
	}
	return out
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
