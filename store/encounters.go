package store

import (
	"encoding/json"
	"fmt"

	"github.com/nathoo/asterfall/types"
)

type encounterRow struct {
	ID         string `db:"encounter_id"`
	ActorID    string `db:"actor_id"`
	LocationID string `db:"location_id"`
	StateJSON  string `db:"state_json"`
}

// CreateEncounter inserts a new encounter. The (actor, location) unique
// index rejects a second live encounter for the same pair.
func (t *Tx) CreateEncounter(enc types.Encounter) error {
	blob, err := json.Marshal(enc.State)
	if err != nil {
		return fmt.Errorf("encode encounter state: %w", err)
	}
	_, err = t.exec("create encounter",
		`INSERT INTO encounters (encounter_id, actor_id, location_id, state_json) VALUES (?, ?, ?, ?)`,
		enc.ID, enc.ActorID, enc.LocationID, string(blob))
	return err
}

// EncounterFor returns the live encounter owned by actorID at locationID.
func (t *Tx) EncounterFor(actorID, locationID string) (types.Encounter, bool, error) {
	var row encounterRow
	ok, err := t.get("get encounter", &row,
		`SELECT encounter_id, actor_id, location_id, state_json FROM encounters
		 WHERE actor_id = ? AND location_id = ?`, actorID, locationID)
	if err != nil || !ok {
		return types.Encounter{}, ok, err
	}
	enc := types.Encounter{ID: row.ID, ActorID: row.ActorID, LocationID: row.LocationID}
	if err := json.Unmarshal([]byte(row.StateJSON), &enc.State); err != nil {
		return types.Encounter{}, false, fail("decode encounter state", err)
	}
	return enc, true, nil
}

// UpdateEncounterState replaces an encounter's state blob.
func (t *Tx) UpdateEncounterState(id string, state types.EncounterState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode encounter state: %w", err)
	}
	_, err = t.exec("update encounter", `UPDATE encounters SET state_json = ? WHERE encounter_id = ?`, string(blob), id)
	return err
}

// DeleteEncounter removes an encounter.
func (t *Tx) DeleteEncounter(id string) error {
	_, err := t.exec("delete encounter", `DELETE FROM encounters WHERE encounter_id = ?`, id)
	return err
}

// CountEncounters returns the number of live encounters owned by actorID.
func (t *Tx) CountEncounters(actorID string) (int, error) {
	var n int
	if _, err := t.get("count encounters", &n, `SELECT COUNT(*) FROM encounters WHERE actor_id = ?`, actorID); err != nil {
		return 0, err
	}
	return n, nil
}
