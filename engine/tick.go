package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nathoo/asterfall/engine/effects"
	"github.com/nathoo/asterfall/engine/events"
	"github.com/nathoo/asterfall/npcforge"
	"github.com/nathoo/asterfall/store"
	"github.com/nathoo/asterfall/types"
)

// RunNPCTick lets up to maxNPCs NPCs act on their own, least recently
// ticked first. Each NPC is resolved in its own transaction; a failing NPC
// stops the tick and leaves the ones before it applied. It returns the
// number of NPCs that acted.
func (e *Engine) RunNPCTick(ctx context.Context, now time.Time, maxNPCs int) (int, error) {
	ctx, span := e.tracer.Start(ctx, "engine.tick")
	defer span.End()

	var due []types.NPC
	if err := e.store.View(ctx, func(tx *store.Tx) error {
		var err error
		due, err = tx.NPCsForTick(maxNPCs)
		return err
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list npcs")
		return 0, fmt.Errorf("list npcs for tick: %w", err)
	}

	acted := 0
	for _, npc := range due {
		if err := ctx.Err(); err != nil {
			return acted, err
		}
		if err := e.store.Update(ctx, func(tx *store.Tx) error {
			return e.tickNPC(tx, npc.ID, now)
		}); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "tick npc")
			return acted, fmt.Errorf("tick %s: %w", npc.ID, err)
		}
		acted++
	}
	span.SetAttributes(attribute.Int("npcs", acted))
	return acted, nil
}

func (e *Engine) tickNPC(tx *store.Tx, npcID string, now time.Time) error {
	// 1. Re-read the NPC; it may have moved since the listing.
	npc, ok, err := tx.NPC(npcID)
	if err != nil || !ok {
		return err
	}
	m, err := materialize(tx, e, npc)
	if err != nil {
		return err
	}

	// 2. Let time pass.
	st := npcforge.DecayMood(m.State, 1)
	st = npcforge.ExpireAvailability(st, now.Unix())

	// 3. Plan and compile against the world.
	loc, _ := e.world.Location(npc.LocationID)
	obs := npcforge.Observation{
		Now:          now.Unix(),
		LocationID:   npc.LocationID,
		LocationName: loc.Name,
		WorldSummary: loc.Description,
	}
	out := npcforge.PlanTick(m.Sheet, st, obs, e.rng)
	st = npcforge.ApplyOutput(st, out)
	compiled := npcforge.CompileAll(out.Actions, npcforge.CompileInput{
		Sheet:           m.Sheet,
		CurrentLocation: npc.LocationID,
		WorldLocations:  e.world.LocationIDs(),
		KeyNPC:          m.Sheet.IsKey(),
	})

	// 4. Apply effects under the move budget.
	st, evs, err := effects.Apply(tx, st, compiled, effects.Context{
		NPCID:        npc.ID,
		LocationID:   npc.LocationID,
		Now:          now,
		MovesPerHour: e.movesPerHour,
		Tags:         []string{events.TagNPCTick},
	})
	if err != nil {
		return err
	}

	// 5. Log and persist.
	kinds := make([]string, 0, len(out.Actions))
	for _, a := range out.Actions {
		kinds = append(kinds, string(a.Kind))
	}
	if _, err := tx.AppendEvent(events.SystemActor, events.NPCTick, map[string]any{
		"npc_id":  npc.ID,
		"intent":  out.Intent,
		"actions": kinds,
		"tags":    []string{events.TagNPCTick},
	}); err != nil {
		return err
	}
	for _, ev := range evs {
		if _, err := tx.AppendEvent(events.SystemActor, ev.Type, ev.Data); err != nil {
			return err
		}
	}
	blob, err := st.Encode()
	if err != nil {
		return fmt.Errorf("encode npc state: %w", err)
	}
	if err := tx.SetNPCState(npc.ID, blob); err != nil {
		return err
	}
	if err := tx.SetNPCTickTS(npc.ID, now.Unix()); err != nil {
		return err
	}

	e.log.Info("npc_tick", "npc", npc.ID, "intent", out.Intent, "actions", len(out.Actions), "effects", len(evs))
	return nil
}
