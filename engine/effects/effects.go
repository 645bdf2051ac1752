// Package effects applies compiled NPC actions to the world. Only MOVE_NPC
// and CHANGE_AVAILABILITY mutate anything; every action yields exactly one
// event describing what happened.
package effects

import (
	"fmt"
	"time"

	"github.com/nathoo/asterfall/engine/events"
	"github.com/nathoo/asterfall/npcforge"
	"github.com/nathoo/asterfall/types"
)

// ReasonRateLimited marks a move refused by the hourly move budget.
const ReasonRateLimited = "rate limited"

// DefaultMovesPerHour is the global NPC move budget when none is set.
const DefaultMovesPerHour = 6

// World is the part of a store transaction effects write through.
type World interface {
	TryConsumeNPCMove(bucket int64, limit int) (bool, error)
	SetNPCLocation(id, locationID string) error
}

// Context carries the acting NPC and the tick's parameters.
type Context struct {
	NPCID        string
	LocationID   string
	Now          time.Time
	MovesPerHour int
	Tags         []string
}

// HourBucket is the move-budget bucket for t.
func HourBucket(t time.Time) int64 {
	return t.Unix() / 3600
}

// Apply executes compiled in order and returns the NPC's updated state and
// the events to log. A move over budget degrades to FLAVOR_ONLY and leaves
// the NPC where it is.
func Apply(w World, st npcforge.State, compiled []npcforge.Compiled, ctx Context) (npcforge.State, []types.Event, error) {
	limit := ctx.MovesPerHour
	if limit <= 0 {
		limit = DefaultMovesPerHour
	}
	location := ctx.LocationID
	var out []types.Event

	for _, c := range compiled {
		payload := c.Payload()
		payload["npc_id"] = ctx.NPCID
		if len(ctx.Tags) > 0 {
			payload["tags"] = append([]string{}, ctx.Tags...)
		}

		switch c.Type {
		case npcforge.EffectMoveNPC:
			ok, err := w.TryConsumeNPCMove(HourBucket(ctx.Now), limit)
			if err != nil {
				return st, nil, fmt.Errorf("consume npc move: %w", err)
			}
			if !ok {
				payload["reason"] = ReasonRateLimited
				out = append(out, types.Event{Type: events.FlavorOnly, Data: payload})
				continue
			}
			if err := w.SetNPCLocation(ctx.NPCID, c.TargetLocationID); err != nil {
				return st, nil, fmt.Errorf("move npc: %w", err)
			}
			payload["from_location_id"] = location
			location = c.TargetLocationID
			out = append(out, types.Event{Type: events.NPCMoved, Data: payload})

		case npcforge.EffectChangeAvailability:
			st = npcforge.SetUnavailable(st, c.Availability, ctx.Now.Unix(), c.DurationMinutes)
			out = append(out, types.Event{Type: events.NPCAvailability, Data: payload})

		default:
			out = append(out, types.Event{Type: events.FlavorOnly, Data: payload})
		}
	}
	return st, out, nil
}
