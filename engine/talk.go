package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nathoo/asterfall/content"
	"github.com/nathoo/asterfall/engine/dialogue"
	"github.com/nathoo/asterfall/engine/events"
	"github.com/nathoo/asterfall/engine/resolve"
	"github.com/nathoo/asterfall/npcforge"
	"github.com/nathoo/asterfall/store"
	"github.com/nathoo/asterfall/types"
)

const compactionSystem = "You keep an NPC's private notes short and factual."

// compaction is a memory summary to fold once the turn has committed.
type compaction struct {
	npcID   string
	name    string
	summary string
}

func (t *turn) talk(p *types.Player) (outcome, error) {
	tx := t.tx
	npcs, err := tx.NPCsAt(p.LocationID)
	if err != nil {
		return outcome{}, err
	}
	if len(npcs) == 0 {
		return reply("No one here is available to talk right now."), nil
	}
	npc, err := resolve.SelectNPC(npcs, t.plan.intent.Target)
	if err != nil {
		var amb *resolve.AmbiguityError
		var nf *resolve.NotFoundError
		if errors.As(err, &amb) || errors.As(err, &nf) {
			return reply(fmt.Sprintf("I couldn't tell who you meant. Try one of: %s.", strings.Join(resolve.Names(npcs), ", "))), nil
		}
		return outcome{}, err
	}

	m, err := t.materialize(npc)
	if err != nil {
		return outcome{}, err
	}

	now := tx.Now().Unix()
	loc, _, err := tx.Location(p.LocationID)
	if err != nil {
		return outcome{}, err
	}
	recent, err := tx.RecentEvents(t.actorID, recentContext)
	if err != nil {
		return outcome{}, err
	}

	st := npcforge.ExpireAvailability(m.State, now)
	line := dialogue.Fallback(npc.Name)
	intent := "unavailable"
	var kinds []string
	if st.Availability == npcforge.Open {
		// A generated line replaces the computed one even when the NPC
		// refuses; the refusal and hook candidates are still recorded.
		generated := ""
		if d := t.plan.draft; d != nil && d.npcID == npc.ID {
			generated = d.line
		}
		out := npcforge.Produce(m.Sheet, st, observation(t.actorID, t.text, loc, recent, now), generated)
		st = npcforge.ApplyOutput(st, out)
		line = out.Dialogue
		intent = out.Intent
		for _, a := range out.Actions {
			kinds = append(kinds, string(a.Kind))
		}
	}

	blob, err := st.Encode()
	if err != nil {
		return outcome{}, fmt.Errorf("encode npc state: %w", err)
	}
	if err := tx.SetNPCState(npc.ID, blob); err != nil {
		return outcome{}, err
	}
	if err := tx.AppendDialogue(npc.ID, t.actorID, "player", t.text); err != nil {
		return outcome{}, err
	}
	if err := tx.AppendDialogue(npc.ID, t.actorID, "npc", line); err != nil {
		return outcome{}, err
	}
	if _, err := tx.AppendDialogueSummary(npc.ID, t.actorID, dialogue.SummaryLine(t.text, line)); err != nil {
		return outcome{}, err
	}

	eventType := events.NPCDialogue
	if t.plan.continued {
		eventType = events.NPCSpoke
	}
	if err := t.emit(eventType, map[string]any{
		"npc_id":      npc.ID,
		"npc_name":    npc.Name,
		"location_id": p.LocationID,
		"intent":      intent,
		"actions":     kinds,
	}); err != nil {
		return outcome{}, err
	}

	if npcforge.NeedsCompaction(st.MemorySummary) {
		t.compact = &compaction{npcID: npc.ID, name: npc.Name, summary: st.MemorySummary}
	}
	return outcome{
		ok:      true,
		msg:     fmt.Sprintf("%s: %s\n%s", npc.Name, line, t.prompt(p.LocationID)),
		npcID:   npc.ID,
		npcName: npc.Name,
	}, nil
}

// materialize decodes an NPC's persona and state, persisting regenerated
// blobs in the current transaction.
func (t *turn) materialize(npc types.NPC) (npcforge.Materialized, error) {
	return materialize(t.tx, t.e, npc)
}

func materialize(tx *store.Tx, e *Engine, npc types.NPC) (npcforge.Materialized, error) {
	m, err := npcforge.Materialize(e.world.SheetSpecFor(npc), npc.Persona, npc.State, e.world.Templates())
	if err != nil {
		return npcforge.Materialized{}, fmt.Errorf("materialize %s: %w", npc.ID, err)
	}
	if !m.Healed {
		return m, nil
	}
	if m.Err != nil {
		e.log.Warn("npc record regenerated", "npc", npc.ID, "error", m.Err)
	}
	sheet, err := m.Sheet.Encode()
	if err != nil {
		return npcforge.Materialized{}, fmt.Errorf("encode npc sheet: %w", err)
	}
	state, err := m.State.Encode()
	if err != nil {
		return npcforge.Materialized{}, fmt.Errorf("encode npc state: %w", err)
	}
	if err := tx.SetNPCPersona(npc.ID, sheet); err != nil {
		return npcforge.Materialized{}, err
	}
	if err := tx.SetNPCState(npc.ID, state); err != nil {
		return npcforge.Materialized{}, err
	}
	if m.Err != nil {
		if _, err := tx.AppendEvent(events.SystemActor, events.NPCStateRegenerated, map[string]any{
			"npc_id": npc.ID, "reason": m.Err.Error(),
		}); err != nil {
			return npcforge.Materialized{}, err
		}
	}
	return m, nil
}

// compactMemory folds an NPC's memory summary. The write only lands if the
// summary is still the one that was sent for compaction.
func (e *Engine) compactMemory(ctx context.Context, actorID string, c compaction) {
	res := e.content.Generate(ctx, content.Request{
		Kind:        content.KindText,
		System:      compactionSystem,
		Prompt:      npcforge.CompactionPrompt(c.name, c.summary),
		Temperature: 0.2,
		UserID:      actorID,
	})
	if !res.Ok() {
		e.log.Warn("memory compaction skipped", "npc", c.npcID, "status", res.Status.String())
		return
	}
	applied := false
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		npc, ok, err := tx.NPC(c.npcID)
		if err != nil || !ok {
			return err
		}
		st, err := npcforge.DecodeState(npc.State)
		if err != nil || st.MemorySummary != c.summary {
			return nil
		}
		next, changed := npcforge.ApplyCompaction(st, res.Text)
		if !changed {
			return nil
		}
		blob, err := next.Encode()
		if err != nil {
			return fmt.Errorf("encode npc state: %w", err)
		}
		applied = true
		return tx.SetNPCState(c.npcID, blob)
	})
	if err != nil {
		e.log.Warn("memory compaction failed", "npc", c.npcID, "error", err)
		return
	}
	if applied {
		e.log.Info("memory_compacted", "npc", c.npcID)
	}
}
