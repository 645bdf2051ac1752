package npcforge

import (
	"errors"
	"strings"
	"testing"
)

type seqRand struct {
	floats  []float64
	choices []int
}

func (r *seqRand) Float() float64 {
	if len(r.floats) == 0 {
		return 0.99
	}
	f := r.floats[0]
	r.floats = r.floats[1:]
	return f
}

func (r *seqRand) Choice(n int) int {
	if len(r.choices) == 0 {
		return 0
	}
	c := r.choices[0]
	r.choices = r.choices[1:]
	return c % n
}

func testSheet(t *testing.T, alignment Alignment) Sheet {
	t.Helper()
	tpl := DefaultTemplates[0]
	tpl.Alignment = alignment
	sheet, err := GenerateSheet(SheetSpec{
		NPCID: "scholar_ione", Name: "Scholar Ione", Tier: 3,
		AllowedLocations: []string{"town_square", "ruin_upper"},
	}, []Template{tpl})
	if err != nil {
		t.Fatalf("generate sheet: %v", err)
	}
	return sheet
}

func TestSheetAndStateRoundTrip(t *testing.T) {
	sheet := testSheet(t, NeutralGood)
	blob, err := sheet.Encode()
	if err != nil {
		t.Fatalf("encode sheet: %v", err)
	}
	got, err := DecodeSheet(blob)
	if err != nil {
		t.Fatalf("decode sheet: %v", err)
	}
	if got.Name != sheet.Name || got.Alignment != sheet.Alignment || got.Tier != 3 || !got.IsKey() {
		t.Fatalf("sheet round trip mismatch: %+v", got)
	}

	st := InitialState(sheet)
	st.Trust["p1"] = 40
	st.GrudgeFlags["p1"] = []string{"stole_bread"}
	until := int64(99)
	st.UnavailableUntil = &until
	stBlob, err := st.Encode()
	if err != nil {
		t.Fatalf("encode state: %v", err)
	}
	back, err := DecodeState(stBlob)
	if err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if back.Trust["p1"] != 40 || len(back.GrudgeFlags["p1"]) != 1 || back.UnavailableUntil == nil || *back.UnavailableUntil != 99 {
		t.Fatalf("state round trip mismatch: %+v", back)
	}
	if back.CurrentGoal != "Advance day-to-day goals as a caretaker." {
		t.Errorf("goal = %q", back.CurrentGoal)
	}
}

func TestDecodeStateDefaultsMissingFields(t *testing.T) {
	st, err := DecodeState(`{"mood": 5}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Mood != 5 || st.Availability != Open || st.Version != StateVersion || st.Trust == nil {
		t.Fatalf("unexpected defaults: %+v", st)
	}
}

func TestDecodeRejectsInvalidRecords(t *testing.T) {
	tests := []struct {
		name  string
		sheet bool
		blob  string
	}{
		{"bad alignment", true, `{"npc_id":"a","name":"A","alignment":"sideways"}`},
		{"sheet not json", true, `{{`},
		{"mood out of range", false, `{"mood": 400}`},
		{"trust negative", false, `{"trust_by_player": {"p1": -5}}`},
		{"bad availability", false, `{"availability": "asleep"}`},
		{"future version", false, `{"version": 7}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.sheet {
				_, err = DecodeSheet(tt.blob)
			} else {
				_, err = DecodeState(tt.blob)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestMaterializeHealsInvalidBlobs(t *testing.T) {
	spec := SheetSpec{NPCID: "traveler_sera", Name: "Traveler Sera", Tier: 1}
	m, err := Materialize(spec, `{"alignment":"nope"}`, "", DefaultTemplates)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if !m.Healed {
		t.Fatal("expected healed")
	}
	var ve *ValidationError
	if !errors.As(m.Err, &ve) {
		t.Fatalf("expected validation cause, got %v", m.Err)
	}
	if err := m.Sheet.Validate(); err != nil {
		t.Fatalf("regenerated sheet invalid: %v", err)
	}

	sheetBlob, _ := m.Sheet.Encode()
	stateBlob, _ := m.State.Encode()
	again, err := Materialize(spec, sheetBlob, stateBlob, DefaultTemplates)
	if err != nil {
		t.Fatalf("materialize again: %v", err)
	}
	if again.Healed {
		t.Fatal("valid blobs should not be healed")
	}
}

func TestTemplateForIsStable(t *testing.T) {
	a, err := TemplateFor("warden_lyra", DefaultTemplates)
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	for i := 0; i < 5; i++ {
		b, _ := TemplateFor("warden_lyra", DefaultTemplates)
		if b.ID != a.ID {
			t.Fatalf("template pick changed: %s vs %s", a.ID, b.ID)
		}
	}
	if _, err := TemplateFor("x", nil); !errors.Is(err, ErrNoTemplates) {
		t.Fatalf("expected ErrNoTemplates, got %v", err)
	}
}

func TestGreetingTiers(t *testing.T) {
	sheet := testSheet(t, TrueNeutral)
	now := int64(10_000_000)
	tests := []struct {
		name string
		edit func(*State)
		want string
	}{
		{"first meeting", func(s *State) {}, "Scholar Ione sizes you up before offering a formal nod."},
		{"long absence", func(s *State) {
			s.GreetingStage["p1"] = 2
			s.Trust["p1"] = 80
			s.LastInteraction["p1"] = now - 8*24*3600
		}, "It's been a while, and they make that clear with a measured pause."},
		{"grudge", func(s *State) {
			s.GreetingStage["p1"] = 1
			s.Trust["p1"] = 80
			s.GrudgeFlags["p1"] = []string{"lied"}
		}, "Scholar Ione's tone is curt, and old friction sits between you."},
		{"warm", func(s *State) {
			s.GreetingStage["p1"] = 3
			s.Trust["p1"] = 70
			s.Affinity["p1"] = 50
		}, "Scholar Ione greets you warmly, already connecting today to your past efforts."},
		{"familiar", func(s *State) {
			s.GreetingStage["p1"] = 1
			s.Trust["p1"] = 30
		}, "Scholar Ione greets you with familiar restraint."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := InitialState(sheet)
			tt.edit(&st)
			got := Greeting(sheet, st, Observation{Now: now}, "p1")
			if got != tt.want {
				t.Errorf("greeting = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProduceGrudgeRefusesWithOneHook(t *testing.T) {
	sheet := testSheet(t, TrueNeutral)
	st := InitialState(sheet)
	st.Trust["p1"] = 90
	st.GrudgeFlags["p1"] = []string{"broke_oath"}

	out := Produce(sheet, st, Observation{Now: 1, PlayerID: "p1", Utterance: "can you help me?", LocationName: "Asterfall Commons"}, "")
	var refuse, hooks int
	for _, a := range out.Actions {
		switch a.Kind {
		case KindRefuseService:
			refuse++
		case KindOfferReconciliationHook:
			hooks++
		case KindHelp:
			t.Error("refused NPC should not offer help")
		}
	}
	if refuse != 1 || hooks != 1 {
		t.Fatalf("refuse=%d hooks=%d, want 1/1", refuse, hooks)
	}
	if !strings.Contains(out.Dialogue, "Not today. Earn back some trust") {
		t.Errorf("dialogue = %q", out.Dialogue)
	}
	if out.Feedback.EmotionalReaction != "Caution" {
		t.Errorf("reaction = %q, want Caution", out.Feedback.EmotionalReaction)
	}
}

func TestProduceKeywordCandidatesAndFeedback(t *testing.T) {
	sheet := testSheet(t, TrueNeutral)
	st := InitialState(sheet)
	st.Trust["p1"] = 30

	out := Produce(sheet, st, Observation{Now: 50, PlayerID: "p1", Utterance: "Thank you. Heard any rumor? I need help.", LocationName: "Asterfall Commons"}, "")
	kinds := map[ActionKind]bool{}
	for _, a := range out.Actions {
		kinds[a.Kind] = true
	}
	if !kinds[KindHelp] || !kinds[KindRumor] {
		t.Fatalf("expected help and rumor candidates, got %+v", out.Actions)
	}
	fb := out.Feedback
	if fb.DeltaAffinity != 2 || fb.DeltaTrust != 2 || fb.DeltaRespect != 1 || fb.EmotionalReaction != "Guarded optimism" {
		t.Errorf("feedback = %+v", fb)
	}
	if fb.WhatHappened != "Spoke with p1 in Asterfall Commons." {
		t.Errorf("what happened = %q", fb.WhatHappened)
	}
	if *out.Updates.Mood != st.Mood+1 || out.Updates.GreetingStage["p1"] != 1 {
		t.Errorf("updates = %+v", out.Updates)
	}
}

func TestProduceGeneratedLineOverride(t *testing.T) {
	sheet := testSheet(t, TrueNeutral)
	st := InitialState(sheet)
	obs := Observation{PlayerID: "p1", Utterance: "hello"}

	if out := Produce(sheet, st, obs, "[stub] placeholder"); strings.Contains(out.Dialogue, "placeholder") {
		t.Errorf("stub text should be rejected: %q", out.Dialogue)
	}
	if out := Produce(sheet, st, obs, "   "); !strings.HasPrefix(out.Dialogue, "Scholar Ione sizes you up") {
		t.Errorf("empty text should be rejected: %q", out.Dialogue)
	}
	long := strings.Repeat("stars ", 200)
	out := Produce(sheet, st, obs, long)
	if len(out.Dialogue) > MaxDialogueLen || !strings.HasPrefix(out.Dialogue, "stars") {
		t.Errorf("dialogue len = %d", len(out.Dialogue))
	}
}

func TestClampsHoldAfterFeedbackSequence(t *testing.T) {
	st := DefaultState()
	for i := 0; i < 50; i++ {
		delta := 30
		if i%3 == 0 {
			delta = -30
		}
		st = ApplyFeedback(st, "p1", Feedback{
			WhatHappened: "Round " + strings.Repeat("x", i), EmotionalReaction: "Calm",
			DeltaAffinity: delta * 2, DeltaTrust: delta, DeltaRespect: -delta,
			NewBondFlags: []string{"flag" + string(rune('a'+i%26))}, TS: int64(i),
		})
		if err := st.Validate(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if len(st.BondFlags["p1"]) != MaxFlags {
		t.Errorf("bond flags = %d, want %d", len(st.BondFlags["p1"]), MaxFlags)
	}
	if len(st.PinnedMemories) != MaxPinned {
		t.Errorf("pinned = %d, want %d", len(st.PinnedMemories), MaxPinned)
	}
	for _, p := range st.PinnedMemories {
		if len(p) > MaxPinnedLen {
			t.Errorf("pinned memory too long: %d", len(p))
		}
	}
	if len(st.MemorySummary) > MaxSummaryLen {
		t.Errorf("summary too long: %d", len(st.MemorySummary))
	}
}

func TestGreetingStageNeverDecreases(t *testing.T) {
	st := DefaultState()
	for _, stage := range []int{1, 3, 0, 2, 9, -4} {
		before := st.GreetingStage["p1"]
		st = ApplyOutput(st, Output{Updates: Updates{GreetingStage: map[string]int{"p1": stage}}})
		after := st.GreetingStage["p1"]
		if after < before || after > MaxGreetStage {
			t.Fatalf("stage %d: %d -> %d", stage, before, after)
		}
	}
	if st.GreetingStage["p1"] != MaxGreetStage {
		t.Fatalf("final stage = %d", st.GreetingStage["p1"])
	}
}

func TestMemorySummaryRecordsInteraction(t *testing.T) {
	sheet := testSheet(t, TrueNeutral)
	st := InitialState(sheet)
	out := Produce(sheet, st, Observation{Now: 5, PlayerID: "p1", Utterance: "hi", LocationName: "Upper Chamber"}, "")
	st = ApplyOutput(st, out)
	if !strings.Contains(st.MemorySummary, "Spoke with p1") {
		t.Fatalf("summary = %q", st.MemorySummary)
	}
	if st.LastInteraction["p1"] != 5 || st.Trust["p1"] != 1 {
		t.Errorf("state = %+v", st)
	}
}

func TestDecayMoodStopsAtBaseline(t *testing.T) {
	st := DefaultState()
	st.BaselineMood = 4
	st.Mood = 6
	st = DecayMood(st, 10)
	if st.Mood != 4 {
		t.Fatalf("mood = %d, want 4", st.Mood)
	}
	st.Mood = -3
	st = DecayMood(st, 2)
	if st.Mood != -1 {
		t.Fatalf("mood = %d, want -1", st.Mood)
	}
}

func TestCompaction(t *testing.T) {
	st := DefaultState()
	st.MemorySummary = strings.Repeat("a", CompactThreshold)
	if !NeedsCompaction(st.MemorySummary) {
		t.Fatal("expected compaction at threshold")
	}
	if _, ok := ApplyCompaction(st, "  "); ok {
		t.Error("empty compaction should be rejected")
	}
	got, ok := ApplyCompaction(st, "Met p1 twice.")
	if !ok || got.MemorySummary != "Met p1 twice." {
		t.Errorf("compaction = %q ok=%v", got.MemorySummary, ok)
	}
}

func TestAvailabilityExpires(t *testing.T) {
	st := SetUnavailable(DefaultState(), Busy, 100, 15)
	if st.Availability != Busy || *st.UnavailableUntil != 100+15*60 {
		t.Fatalf("state = %+v", st)
	}
	if still := ExpireAvailability(st, 200); still.Availability != Busy {
		t.Error("expired too early")
	}
	if open := ExpireAvailability(st, 100+15*60); open.Availability != Open || open.UnavailableUntil != nil {
		t.Errorf("expected open, got %+v", open)
	}
}

func TestPlanTickUsesAllowList(t *testing.T) {
	allowed := map[ActionKind]bool{}
	for _, k := range []TickKind{TickMove, TickRumor, TickSeekHelp, TickSpeakToOtherNPC, TickChangeAvailability, TickOfferReconciliationHook} {
		allowed[ActionKind(k)] = true
	}
	for _, a := range []Alignment{LawfulGood, TrueNeutral, ChaoticEvil} {
		sheet := testSheet(t, a)
		st := InitialState(sheet)
		out := PlanTick(sheet, st, Observation{LocationID: "town_square"}, &seqRand{floats: []float64{0, 0}, choices: []int{1}})
		if len(out.Actions) == 0 || len(out.Actions) > MaxTickActions {
			t.Fatalf("%s: %d actions", a, len(out.Actions))
		}
		for _, act := range out.Actions {
			if !allowed[act.Kind] {
				t.Errorf("%s: kind %q outside tick allow-list", a, act.Kind)
			}
		}
		if out.Intent != "npc_tick" || *out.Updates.CurrentGoal != "Follow through on: "+string(out.Actions[0].Kind)+"." {
			t.Errorf("%s: intent=%q goal=%q", a, out.Intent, *out.Updates.CurrentGoal)
		}
	}
}

func TestPlanTickMoralChoice(t *testing.T) {
	tests := []struct {
		alignment Alignment
		want      ActionKind
	}{
		{NeutralGood, KindSeekHelp},
		{NeutralEvil, KindRumor},
		{LawfulNeutral, KindSpeakToOtherNPC},
	}
	for _, tt := range tests {
		sheet := testSheet(t, tt.alignment)
		out := PlanTick(sheet, InitialState(sheet), Observation{LocationID: "town_square"}, &seqRand{floats: []float64{0.99, 0.99}})
		if len(out.Actions) != 1 || out.Actions[0].Kind != tt.want {
			t.Errorf("%s: actions = %+v, want %s", tt.alignment, out.Actions, tt.want)
		}
	}
}

func TestMoveChanceBounds(t *testing.T) {
	if got := MoveChance(ChaoticNeutral); got < 0.349 || got > 0.351 {
		t.Errorf("chaotic chance = %v", got)
	}
	if got := MoveChance(LawfulGood); got < 0.069 || got > 0.071 {
		t.Errorf("lawful chance = %v", got)
	}
}

func TestCompile(t *testing.T) {
	sheet := testSheet(t, TrueNeutral)
	sheet.AllowedLocations = []string{"town_square"}
	world := map[string]bool{"town_square": true, "ruin_upper": true}

	tests := []struct {
		name       string
		action     CandidateAction
		key        bool
		wantType   EffectType
		wantReason string
	}{
		{"unknown target", CandidateAction{Kind: KindMove, Target: "moon"}, false, EffectFlavorOnly, ReasonInvalidMoveTarget},
		{"key npc blocked", CandidateAction{Kind: KindMove, Target: "ruin_upper"}, true, EffectFlavorOnly, ReasonKeyNPCMoveBlocked},
		{"already there", CandidateAction{Kind: KindMove, Target: "town_square"}, false, EffectFlavorOnly, ReasonAlreadyThere},
		{"move", CandidateAction{Kind: KindMove, Target: "ruin_upper", Content: "go"}, false, EffectMoveNPC, "go"},
		{"rumor", CandidateAction{Kind: KindRumor}, false, EffectFlavorOnly, ""},
		{"unsupported", CandidateAction{Kind: "dance"}, false, EffectFlavorOnly, ReasonUnsupportedKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compile(tt.action, CompileInput{Sheet: sheet, CurrentLocation: "town_square", WorldLocations: world, KeyNPC: tt.key})
			if got.Type != tt.wantType || got.Reason != tt.wantReason {
				t.Errorf("got %s/%q, want %s/%q", got.Type, got.Reason, tt.wantType, tt.wantReason)
			}
		})
	}
}

func TestCompileChangeAvailabilitySanitizes(t *testing.T) {
	tests := []struct {
		metadata     map[string]any
		wantAvail    Availability
		wantDuration int
	}{
		{nil, Busy, DefaultAvailabilityMinutes},
		{map[string]any{"availability": "away", "duration_minutes": 30}, Away, 30},
		{map[string]any{"availability": "napping", "duration_minutes": 9999.0}, Busy, MaxAvailabilityMinutes},
		{map[string]any{"availability": "open", "duration_minutes": -3}, Open, 1},
	}
	for _, tt := range tests {
		got := Compile(CandidateAction{Kind: KindChangeAvailability, Metadata: tt.metadata}, CompileInput{})
		if got.Type != EffectChangeAvailability || got.Availability != tt.wantAvail || got.DurationMinutes != tt.wantDuration {
			t.Errorf("metadata %v: got %+v", tt.metadata, got)
		}
		if !got.Executable() {
			t.Error("change_availability should be executable")
		}
	}
}
