package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nathoo/asterfall/types"
)

type sessionRow struct {
	PlayerID          string `db:"player_id"`
	Mode              string `db:"mode"`
	ActiveNPCID       string `db:"active_npc_id"`
	ActiveEncounterID string `db:"active_encounter_id"`
	ActiveThreadID    string `db:"active_thread_id"`
	LastBotMessage    string `db:"last_bot_message"`
	RepeatCount       int    `db:"repeat_count"`
}

type threadRow struct {
	PlayerID    string `db:"player_id"`
	ThreadID    string `db:"thread_id"`
	Type        string `db:"thread_type"`
	Title       string `db:"title"`
	Status      string `db:"status"`
	LastMessage string `db:"last_message"`
}

// SessionState returns playerID's session, or a fresh explore session.
func (t *Tx) SessionState(playerID string) (types.SessionState, error) {
	var row sessionRow
	ok, err := t.get("get session", &row,
		`SELECT player_id, mode, active_npc_id, active_encounter_id, active_thread_id, last_bot_message, repeat_count
		 FROM player_session_state WHERE player_id = ?`, playerID)
	if err != nil {
		return types.SessionState{}, err
	}
	if !ok {
		return types.SessionState{PlayerID: playerID, Mode: types.ModeExplore}, nil
	}
	return types.SessionState{
		PlayerID:          row.PlayerID,
		Mode:              types.Mode(row.Mode),
		ActiveNPCID:       row.ActiveNPCID,
		ActiveEncounterID: row.ActiveEncounterID,
		ActiveThreadID:    row.ActiveThreadID,
		LastBotMessage:    row.LastBotMessage,
		RepeatCount:       row.RepeatCount,
	}, nil
}

// UpsertSessionState writes a player's whole session record.
func (t *Tx) UpsertSessionState(s types.SessionState) error {
	if s.Mode == "" {
		s.Mode = types.ModeExplore
	}
	_, err := t.exec("upsert session",
		`INSERT INTO player_session_state
		   (player_id, mode, active_npc_id, active_encounter_id, active_thread_id, last_bot_message, repeat_count, updated_ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(player_id) DO UPDATE SET
		   mode = excluded.mode,
		   active_npc_id = excluded.active_npc_id,
		   active_encounter_id = excluded.active_encounter_id,
		   active_thread_id = excluded.active_thread_id,
		   last_bot_message = excluded.last_bot_message,
		   repeat_count = excluded.repeat_count,
		   updated_ts = excluded.updated_ts`,
		s.PlayerID, string(s.Mode), s.ActiveNPCID, s.ActiveEncounterID, s.ActiveThreadID,
		s.LastBotMessage, s.RepeatCount, t.Now().Unix())
	return err
}

// SceneMemory returns playerID's scene snapshot; empty if none.
func (t *Tx) SceneMemory(playerID string) (map[string]any, error) {
	var blob string
	ok, err := t.get("get scene memory", &blob,
		`SELECT scene_json FROM player_scene_memory WHERE player_id = ?`, playerID)
	if err != nil {
		return nil, err
	}
	scene := map[string]any{}
	if !ok || strings.TrimSpace(blob) == "" {
		return scene, nil
	}
	if err := json.Unmarshal([]byte(blob), &scene); err != nil {
		return nil, fail("decode scene memory", err)
	}
	return scene, nil
}

// MergeSceneMemory merges patch into playerID's scene snapshot key by key
// and returns the merged result. Keys absent from patch are preserved.
func (t *Tx) MergeSceneMemory(playerID string, patch map[string]any) (map[string]any, error) {
	scene, err := t.SceneMemory(playerID)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		scene[k] = v
	}
	blob, err := json.Marshal(scene)
	if err != nil {
		return nil, fmt.Errorf("encode scene memory: %w", err)
	}
	_, err = t.exec("merge scene memory",
		`INSERT INTO player_scene_memory (player_id, scene_json, updated_ts) VALUES (?, ?, ?)
		 ON CONFLICT(player_id) DO UPDATE SET scene_json = excluded.scene_json, updated_ts = excluded.updated_ts`,
		playerID, string(blob), t.Now().Unix())
	if err != nil {
		return nil, err
	}
	return scene, nil
}

// UpsertThread inserts or refreshes a continuity thread.
func (t *Tx) UpsertThread(th types.Thread) error {
	if th.Status == "" {
		th.Status = "ACTIVE"
	}
	_, err := t.exec("upsert thread",
		`INSERT INTO player_threads (player_id, thread_id, thread_type, title, status, last_message, updated_ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(player_id, thread_id) DO UPDATE SET
		   thread_type = excluded.thread_type,
		   title = excluded.title,
		   status = excluded.status,
		   last_message = excluded.last_message,
		   updated_ts = excluded.updated_ts`,
		th.PlayerID, th.ThreadID, th.Type, th.Title, th.Status, th.LastMessage, t.Now().Unix())
	return err
}

// Thread returns one of playerID's threads.
func (t *Tx) Thread(playerID, threadID string) (types.Thread, bool, error) {
	var row threadRow
	ok, err := t.get("get thread", &row,
		`SELECT player_id, thread_id, thread_type, title, status, last_message FROM player_threads
		 WHERE player_id = ? AND thread_id = ?`, playerID, threadID)
	if err != nil || !ok {
		return types.Thread{}, ok, err
	}
	return types.Thread(row), true, nil
}

// Threads returns playerID's threads, most recently updated first.
func (t *Tx) Threads(playerID string) ([]types.Thread, error) {
	var rows []threadRow
	if err := t.selectRows("list threads", &rows,
		`SELECT player_id, thread_id, thread_type, title, status, last_message FROM player_threads
		 WHERE player_id = ? ORDER BY updated_ts DESC, rowid DESC`, playerID); err != nil {
		return nil, err
	}
	out := make([]types.Thread, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.Thread(r))
	}
	return out, nil
}
