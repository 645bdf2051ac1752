package engine

import (
	"context"
	"fmt"

	"github.com/nathoo/asterfall/engine/events"
	"github.com/nathoo/asterfall/engine/save"
	"github.com/nathoo/asterfall/store"
	"github.com/nathoo/asterfall/types"
)

// InitializeWorld seeds locations, NPCs and their profile prompts. It is
// idempotent: NPC position, persona and state survive a rerun, and only
// missing or invalid blobs are regenerated.
func (e *Engine) InitializeWorld(ctx context.Context) error {
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		for _, loc := range e.world.Locations {
			if err := tx.UpsertLocation(loc.Record()); err != nil {
				return err
			}
		}
		for _, def := range e.world.NPCs {
			if err := tx.UpsertNPC(types.NPC{ID: def.ID, Name: def.Name, LocationID: def.Location, IsKey: def.Key}); err != nil {
				return err
			}
			if def.Persona != "" {
				if err := tx.UpsertNPCProfile(def.ID, def.Persona); err != nil {
					return err
				}
			}
			row, ok, err := tx.NPC(def.ID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("seeded npc %s not found", def.ID)
			}
			if _, err := materialize(tx, e, row); err != nil {
				return err
			}
		}
		_, err := tx.AppendEvent(events.SystemActor, events.WorldInitialized, map[string]any{
			"locations": len(e.world.Locations),
			"npcs":      len(e.world.NPCs),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("initialize world: %w", err)
	}
	e.log.Info("world_initialized", "title", e.world.Title, "locations", len(e.world.Locations), "npcs", len(e.world.NPCs))
	return nil
}

// Export builds the JSON snapshot of one player's durable record.
func (e *Engine) Export(ctx context.Context, playerID string) ([]byte, error) {
	var ex *save.Export
	err := e.store.View(ctx, func(tx *store.Tx) error {
		var err error
		ex, err = save.Build(tx, playerID, e.world.Title, tx.Now(), save.DefaultEventLimit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", playerID, err)
	}
	return save.Marshal(ex)
}
