package npcforge

import (
	"errors"
	"hash/fnv"
	"strings"
)

// Template is a persona skeleton a sheet is generated from.
type Template struct {
	ID         string
	Alignment  Alignment
	Background []string
	Ideals     []string
	Bonds      []string
	Flaws      []string
	Motivation string
	Fear       string
	Archetype  string
	Skills     []string
	Voice      string
}

// ErrNoTemplates is returned when a sheet is requested with no templates.
var ErrNoTemplates = errors.New("npcforge: no persona templates")

// DefaultTemplates is used when a world defines no persona templates.
var DefaultTemplates = []Template{
	{
		ID:        "steady_local",
		Alignment: LawfulNeutral,
		Background: []string{
			"Grew up in the settlement and knows most faces by name.",
			"Keeps a ledger of favours owed and repaid.",
		},
		Ideals:     []string{"Order keeps people alive."},
		Bonds:      []string{"The settlement and its walls."},
		Flaws:      []string{"Slow to trust outsiders."},
		Motivation: "Keep daily life running without surprises.",
		Fear:       "Losing the settlement to carelessness.",
		Archetype:  "Caretaker",
		Skills:     []string{"bargaining", "local lore"},
		Voice:      "Measured and plain.",
	},
	{
		ID:        "wandering_hand",
		Alignment: ChaoticGood,
		Background: []string{
			"Arrived with a caravan and never left.",
			"Trades stories for meals and meals for stories.",
		},
		Ideals:     []string{"Freedom to roam."},
		Bonds:      []string{"Fellow travellers on the road."},
		Flaws:      []string{"Promises more than can be delivered."},
		Motivation: "See what lies past the next ridge.",
		Fear:       "Being tied to one place forever.",
		Archetype:  "Wanderer",
		Skills:     []string{"scouting", "storytelling", "campcraft"},
		Voice:      "Warm and quick to laugh.",
	},
}

// TemplateFor picks the template for npcID. The pick depends only on the
// id, so it is stable across processes.
func TemplateFor(npcID string, templates []Template) (Template, error) {
	if len(templates) == 0 {
		return Template{}, ErrNoTemplates
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(npcID))
	return templates[int(h.Sum32()%uint32(len(templates)))], nil
}

// SheetSpec identifies the NPC a sheet is generated for.
type SheetSpec struct {
	NPCID            string
	Name             string
	Tier             int
	AllowedLocations []string
}

// GenerateSheet builds a sheet for spec from its template.
func GenerateSheet(spec SheetSpec, templates []Template) (Sheet, error) {
	tpl, err := TemplateFor(spec.NPCID, templates)
	if err != nil {
		return Sheet{}, err
	}
	tier := clamp(spec.Tier, 1, 3)
	return Sheet{
		Version:          SheetVersion,
		NPCID:            spec.NPCID,
		Name:             spec.Name,
		Alignment:        tpl.Alignment,
		Background:       capList(tpl.Background, 4),
		Ideals:           capList(tpl.Ideals, 4),
		Bonds:            capList(tpl.Bonds, 4),
		Flaws:            capList(tpl.Flaws, 4),
		Motivation:       tpl.Motivation,
		Fear:             tpl.Fear,
		Archetype:        tpl.Archetype,
		Skills:           capList(tpl.Skills, 8),
		VoiceStyle:       tpl.Voice,
		AllowedLocations: append([]string{}, spec.AllowedLocations...),
		Tier:             tier,
	}, nil
}

// InitialState returns the starting state for a freshly generated sheet.
func InitialState(sheet Sheet) State {
	st := DefaultState()
	st.Mood = sheet.BaselineMood
	st.BaselineMood = sheet.BaselineMood
	st.CurrentGoal = truncate("Advance day-to-day goals as a "+strings.ToLower(sheet.Archetype)+".", MaxGoalLen)
	return st
}

// Materialized is the decoded persona and state for one NPC.
type Materialized struct {
	Sheet Sheet
	State State
	// Healed is set when either blob was missing or invalid and had to be
	// regenerated. The caller should persist both.
	Healed bool
	// Err holds the validation failure that caused regeneration, if any.
	Err error
}

// Materialize decodes the persisted blobs for an NPC, regenerating any
// blob that is missing or fails validation.
func Materialize(spec SheetSpec, sheetBlob, stateBlob string, templates []Template) (Materialized, error) {
	var m Materialized

	sheet, err := DecodeSheet(sheetBlob)
	if strings.TrimSpace(sheetBlob) == "" || err != nil {
		if strings.TrimSpace(sheetBlob) != "" {
			m.Err = err
		}
		if sheet, err = GenerateSheet(spec, templates); err != nil {
			return Materialized{}, err
		}
		m.Healed = true
	}
	m.Sheet = sheet

	state, err := DecodeState(stateBlob)
	if strings.TrimSpace(stateBlob) == "" || err != nil {
		if strings.TrimSpace(stateBlob) != "" && m.Err == nil {
			m.Err = err
		}
		state = InitialState(sheet)
		m.Healed = true
	}
	m.State = state
	return m, nil
}

func capList(in []string, n int) []string {
	if len(in) > n {
		in = in[:n]
	}
	return append([]string{}, in...)
}
