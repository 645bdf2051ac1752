package store

import (
	"encoding/json"
	"fmt"

	"github.com/nathoo/asterfall/types"
)

type eventRow struct {
	ID      int64  `db:"event_id"`
	ActorID string `db:"actor_id"`
	Type    string `db:"event_type"`
	Payload string `db:"payload_json"`
	TS      int64  `db:"ts"`
}

func (r eventRow) record() (types.EventRecord, error) {
	rec := types.EventRecord{ID: r.ID, ActorID: r.ActorID, Type: r.Type, TS: r.TS}
	if err := json.Unmarshal([]byte(r.Payload), &rec.Payload); err != nil {
		return types.EventRecord{}, fail("decode event payload", err)
	}
	if rec.Payload == nil {
		rec.Payload = map[string]any{}
	}
	return rec, nil
}

// AppendEvent appends an event to the log and returns its id.
func (t *Tx) AppendEvent(actorID, eventType string, payload map[string]any) (int64, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	blob, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode event payload: %w", err)
	}
	res, err := t.exec("append event",
		`INSERT INTO events (actor_id, event_type, payload_json, ts) VALUES (?, ?, ?, ?)`,
		actorID, eventType, string(blob), t.Now().Unix())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fail("append event", err)
	}
	return id, nil
}

// RecentEvents returns up to limit of actorID's newest events, newest first.
func (t *Tx) RecentEvents(actorID string, limit int) ([]types.EventRecord, error) {
	return t.listEvents("recent events",
		`SELECT event_id, actor_id, event_type, payload_json, ts FROM events
		 WHERE actor_id = ? ORDER BY event_id DESC LIMIT ?`, actorID, limit)
}

// LatestEvent returns actorID's newest event.
func (t *Tx) LatestEvent(actorID string) (types.EventRecord, bool, error) {
	recs, err := t.RecentEvents(actorID, 1)
	if err != nil || len(recs) == 0 {
		return types.EventRecord{}, false, err
	}
	return recs[0], true, nil
}

// EventsOfType returns up to limit of actorID's newest events of eventType.
func (t *Tx) EventsOfType(actorID, eventType string, limit int) ([]types.EventRecord, error) {
	return t.listEvents("events of type",
		`SELECT event_id, actor_id, event_type, payload_json, ts FROM events
		 WHERE actor_id = ? AND event_type = ? ORDER BY event_id DESC LIMIT ?`, actorID, eventType, limit)
}

func (t *Tx) listEvents(op, query string, args ...any) ([]types.EventRecord, error) {
	var rows []eventRow
	if err := t.selectRows(op, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]types.EventRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
