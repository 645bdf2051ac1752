package engine

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nathoo/asterfall/content"
	"github.com/nathoo/asterfall/engine/continuity"
	"github.com/nathoo/asterfall/engine/dialogue"
	"github.com/nathoo/asterfall/engine/events"
	"github.com/nathoo/asterfall/engine/parser"
	"github.com/nathoo/asterfall/engine/resolve"
	"github.com/nathoo/asterfall/npcforge"
	"github.com/nathoo/asterfall/store"
	"github.com/nathoo/asterfall/types"
)

// narratorSystem frames the content service as the scene narrator.
const narratorSystem = "You narrate a persistent fantasy world shared by many players. " +
	"Describe the scene in 1-3 sentences, grounded in the given description. " +
	"Respond only with a JSON object: {\"text\": \"...\"}."

// snapshot is the read-only view a turn plans against. Resolution re-reads
// everything it writes.
type snapshot struct {
	player      types.Player
	started     bool
	location    types.Location
	hasLocation bool
	npcs        []types.NPC
	recent      []types.EventRecord
	inCombat    bool
}

func (s snapshot) latest() (types.EventRecord, bool) {
	if len(s.recent) == 0 {
		return types.EventRecord{}, false
	}
	return s.recent[0], true
}

// plan is the outcome of the phase that runs outside the store lock.
type plan struct {
	intent types.Intent
	// continued is set when free text was read as a reply to the NPC the
	// actor spoke with last.
	continued bool
	draft     *draft
	narration string
}

// draft is a generated NPC line, valid only for the NPC it was made for.
type draft struct {
	npcID string
	line  string
}

func (e *Engine) snapshot(ctx context.Context, actorID string) (snapshot, error) {
	var s snapshot
	err := e.store.View(ctx, func(tx *store.Tx) error {
		p, ok, err := tx.Player(actorID)
		if err != nil {
			return err
		}
		s.player, s.started = p, ok
		if s.recent, err = tx.RecentEvents(actorID, recentContext); err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if s.location, s.hasLocation, err = tx.Location(p.LocationID); err != nil {
			return err
		}
		if s.npcs, err = tx.NPCsAt(p.LocationID); err != nil {
			return err
		}
		_, s.inCombat, err = tx.EncounterFor(actorID, p.LocationID)
		return err
	})
	return s, err
}

func (e *Engine) plan(ctx context.Context, actorID, text string, snap snapshot) plan {
	p := plan{intent: parser.Parse(text)}
	freeText := p.intent.Action == types.ActionUnknown
	if freeText {
		p.intent = e.classify(ctx, actorID, text, snap)
	}

	if !snap.started || snap.inCombat {
		return p
	}
	// Only text the rule table could not classify may continue a
	// conversation, and only with an NPC still in the room.
	if freeText && (p.intent.Action == types.ActionLook || p.intent.Action == types.ActionUnknown) {
		latest, ok := snap.latest()
		if npcID, yes := continuity.Continuation(text, latest, ok, snap.player.LocationID); yes && present(snap.npcs, npcID) {
			p.intent = types.Intent{Action: types.ActionTalk, Target: npcID, RawText: text, Confidence: 1}
			p.continued = true
		}
	}

	switch p.intent.Action {
	case types.ActionTalk:
		p.draft = e.draftLine(ctx, actorID, text, p.intent.Target, snap)
	case types.ActionLook:
		p.narration = e.narrate(ctx, actorID, snap)
	}
	return p
}

func present(npcs []types.NPC, id string) bool {
	for _, n := range npcs {
		if n.ID == id {
			return true
		}
	}
	return false
}

// classify asks the content service for an intent the rule table could
// not produce.
func (e *Engine) classify(ctx context.Context, actorID, text string, snap snapshot) types.Intent {
	c := parser.Context{PlayerStarted: snap.started}
	if snap.hasLocation {
		c.Location = &parser.LocationContext{
			ID:          snap.location.ID,
			Name:        snap.location.Name,
			Description: snap.location.Description,
		}
	}
	c.NearbyNPCs = resolve.Names(snap.npcs)
	c.RecentEvents = describe(snap.recent)

	req, err := parser.LLMRequest(text, actorID, c)
	if err != nil {
		e.log.Warn("intent request failed", "actor", actorID, "error", err)
		return types.Intent{Action: types.ActionUnknown, RawText: text}
	}
	res := e.content.Generate(ctx, req)
	if !res.Ok() {
		e.log.Warn("intent fallback", "actor", actorID, "status", res.Status.String())
	}
	return parser.FromResult(text, res)
}

// draftLine generates what the addressed NPC would say. It returns nil
// when the NPC cannot be resolved or is not taking visitors.
func (e *Engine) draftLine(ctx context.Context, actorID, text, target string, snap snapshot) *draft {
	npc, err := resolve.SelectNPC(snap.npcs, target)
	if err != nil {
		return nil
	}

	var dc dialogue.Context
	err = e.store.View(ctx, func(tx *store.Tx) error {
		m, err := npcforge.Materialize(e.world.SheetSpecFor(npc), npc.Persona, npc.State, e.world.Templates())
		if err != nil {
			return err
		}
		if dc.History, err = tx.DialogueHistory(npc.ID, actorID, dialogue.HistoryLimit); err != nil {
			return err
		}
		if dc.Summary, err = tx.DialogueSummary(npc.ID, actorID); err != nil {
			return err
		}
		if dc.Persona, err = tx.NPCProfile(npc.ID); err != nil {
			return err
		}
		dc.Sheet = m.Sheet
		dc.State = npcforge.ExpireAvailability(m.State, tx.Now().Unix())
		dc.Observation = observation(actorID, text, snap.location, snap.recent, tx.Now().Unix())
		return nil
	})
	if err != nil {
		e.log.Warn("dialogue context failed", "actor", actorID, "npc", npc.ID, "error", err)
		return nil
	}
	if dc.State.Availability != npcforge.Open {
		return nil
	}

	dc.NPCName = npc.Name
	dc.LocationName = snap.location.Name
	dc.LocationDescription = snap.location.Description
	dc.PlayerMessage = text
	req, err := dialogue.Request(actorID, dc)
	if err != nil {
		e.log.Warn("dialogue request failed", "actor", actorID, "npc", npc.ID, "error", err)
		return nil
	}
	res := e.content.Generate(ctx, req)
	line := dialogue.Line(res)
	if line == "" {
		e.log.Warn("npc line fallback", "actor", actorID, "npc", npc.ID, "status", res.Status.String())
	}
	return &draft{npcID: npc.ID, line: line}
}

// narrate asks for a description of the actor's location. An empty result
// means the stored description is used.
func (e *Engine) narrate(ctx context.Context, actorID string, snap snapshot) string {
	if !snap.hasLocation {
		return ""
	}
	payload, err := json.Marshal(map[string]any{
		"scene":         snap.location.Description,
		"location":      snap.location.Name,
		"action":        "look",
		"recent_events": describe(snap.recent),
	})
	if err != nil {
		return ""
	}
	res := e.content.Generate(ctx, content.Request{
		Kind:        content.KindJSON,
		System:      narratorSystem,
		Prompt:      string(payload),
		Temperature: 0.7,
		UserID:      actorID,
	})
	text := narrationText(res)
	if text == "" {
		e.log.Warn("narration fallback", "actor", actorID, "status", res.Status.String())
	}
	return text
}

func narrationText(res content.Result) string {
	if !res.Ok() {
		return ""
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := content.DecodeJSON(res.Text, &out); err != nil {
		return ""
	}
	text := strings.TrimSpace(out.Text)
	if !npcforge.UsableLine(text) {
		return ""
	}
	return text
}

func observation(actorID, text string, loc types.Location, recent []types.EventRecord, now int64) npcforge.Observation {
	return npcforge.Observation{
		Now:          now,
		PlayerID:     actorID,
		Utterance:    text,
		LocationID:   loc.ID,
		LocationName: loc.Name,
		WorldSummary: loc.Description,
		RecentEvents: describe(recent),
	}
}

func describe(recs []types.EventRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, events.Describe(r))
	}
	return out
}
