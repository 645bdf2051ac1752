package store

import (
	"github.com/nathoo/asterfall/types"
)

type locationRow struct {
	ID          string `db:"location_id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Permanent   bool   `db:"is_permanent"`
}

type npcRow struct {
	ID         string `db:"npc_id"`
	Name       string `db:"name"`
	LocationID string `db:"location_id"`
	IsKey      bool   `db:"is_key"`
	Alive      bool   `db:"alive"`
	Persona    string `db:"persona_json"`
	State      string `db:"state_json"`
	LastTickTS int64  `db:"last_tick_ts"`
}

func (r npcRow) npc() types.NPC {
	return types.NPC{
		ID: r.ID, Name: r.Name, LocationID: r.LocationID, IsKey: r.IsKey, Alive: r.Alive,
		Persona: r.Persona, State: r.State, LastTickTS: r.LastTickTS,
	}
}

const npcColumns = `npc_id, name, location_id, is_key, alive, persona_json, state_json, last_tick_ts`

// UpsertLocation inserts or refreshes a seeded location.
func (t *Tx) UpsertLocation(loc types.Location) error {
	_, err := t.exec("upsert location",
		`INSERT INTO locations (location_id, name, description, is_permanent) VALUES (?, ?, ?, ?)
		 ON CONFLICT(location_id) DO UPDATE SET name = excluded.name, description = excluded.description,
		 is_permanent = excluded.is_permanent`,
		loc.ID, loc.Name, loc.Description, loc.Permanent)
	return err
}

// Location returns the location with id.
func (t *Tx) Location(id string) (types.Location, bool, error) {
	var row locationRow
	ok, err := t.get("get location", &row,
		`SELECT location_id, name, description, is_permanent FROM locations WHERE location_id = ?`, id)
	if err != nil || !ok {
		return types.Location{}, ok, err
	}
	return types.Location(row), true, nil
}

// Locations returns every location in seed order.
func (t *Tx) Locations() ([]types.Location, error) {
	var rows []locationRow
	if err := t.selectRows("list locations", &rows,
		`SELECT location_id, name, description, is_permanent FROM locations ORDER BY rowid`); err != nil {
		return nil, err
	}
	out := make([]types.Location, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.Location(r))
	}
	return out, nil
}

// UpsertNPC inserts a seeded NPC, or refreshes its name and key flag.
// Location, persona, state and tick time are never overwritten, so seeding
// is idempotent and does not undo autonomous movement.
func (t *Tx) UpsertNPC(npc types.NPC) error {
	_, err := t.exec("upsert npc",
		`INSERT INTO npcs (npc_id, name, location_id, is_key, alive) VALUES (?, ?, ?, ?, 1)
		 ON CONFLICT(npc_id) DO UPDATE SET name = excluded.name, is_key = excluded.is_key`,
		npc.ID, npc.Name, npc.LocationID, npc.IsKey)
	return err
}

// UpsertNPCProfile stores the free-text persona prompt used for dialogue.
func (t *Tx) UpsertNPCProfile(npcID, prompt string) error {
	_, err := t.exec("upsert npc profile",
		`INSERT INTO npc_profiles (npc_id, persona_prompt) VALUES (?, ?)
		 ON CONFLICT(npc_id) DO UPDATE SET persona_prompt = excluded.persona_prompt`,
		npcID, prompt)
	return err
}

// NPCProfile returns the persona prompt for npcID, or "" if none.
func (t *Tx) NPCProfile(npcID string) (string, error) {
	var prompt string
	if _, err := t.get("get npc profile", &prompt,
		`SELECT persona_prompt FROM npc_profiles WHERE npc_id = ?`, npcID); err != nil {
		return "", err
	}
	return prompt, nil
}

// NPC returns the NPC with id, alive or not.
func (t *Tx) NPC(id string) (types.NPC, bool, error) {
	var row npcRow
	ok, err := t.get("get npc", &row, `SELECT `+npcColumns+` FROM npcs WHERE npc_id = ?`, id)
	if err != nil || !ok {
		return types.NPC{}, ok, err
	}
	return row.npc(), true, nil
}

// NPCsAt returns the living NPCs at locationID in seed order.
func (t *Tx) NPCsAt(locationID string) ([]types.NPC, error) {
	return t.listNPCs("list npcs at location",
		`SELECT `+npcColumns+` FROM npcs WHERE alive = 1 AND location_id = ? ORDER BY rowid`, locationID)
}

// NPCsForTick returns up to limit living NPCs, least recently ticked first.
func (t *Tx) NPCsForTick(limit int) ([]types.NPC, error) {
	if limit <= 0 {
		limit = 1
	}
	return t.listNPCs("list npcs for tick",
		`SELECT `+npcColumns+` FROM npcs WHERE alive = 1 ORDER BY last_tick_ts ASC, rowid ASC LIMIT ?`, limit)
}

// NPCs returns every living NPC in seed order.
func (t *Tx) NPCs() ([]types.NPC, error) {
	return t.listNPCs("list npcs", `SELECT `+npcColumns+` FROM npcs WHERE alive = 1 ORDER BY rowid`)
}

func (t *Tx) listNPCs(op, query string, args ...any) ([]types.NPC, error) {
	var rows []npcRow
	if err := t.selectRows(op, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]types.NPC, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.npc())
	}
	return out, nil
}

// SetNPCLocation moves an NPC.
func (t *Tx) SetNPCLocation(id, locationID string) error {
	_, err := t.exec("move npc", `UPDATE npcs SET location_id = ? WHERE npc_id = ?`, locationID, id)
	return err
}

// SetNPCPersona replaces the serialized persona sheet.
func (t *Tx) SetNPCPersona(id, blob string) error {
	_, err := t.exec("set npc persona", `UPDATE npcs SET persona_json = ? WHERE npc_id = ?`, blob, id)
	return err
}

// SetNPCState replaces the whole serialized state blob.
func (t *Tx) SetNPCState(id, blob string) error {
	_, err := t.exec("set npc state", `UPDATE npcs SET state_json = ? WHERE npc_id = ?`, blob, id)
	return err
}

// SetNPCTickTS records the time of an NPC's last autonomous tick.
func (t *Tx) SetNPCTickTS(id string, ts int64) error {
	_, err := t.exec("set npc tick", `UPDATE npcs SET last_tick_ts = ? WHERE npc_id = ?`, ts, id)
	return err
}
