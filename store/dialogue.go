package store

import (
	"strings"

	"github.com/nathoo/asterfall/types"
)

// MaxDialogueSummary bounds the per-(npc, player) running summary.
const MaxDialogueSummary = 1200

// AppendDialogue logs one line of an NPC conversation.
func (t *Tx) AppendDialogue(npcID, playerID, role, content string) error {
	_, err := t.exec("append dialogue",
		`INSERT INTO npc_dialogue_memory (npc_id, player_id, role, content, ts) VALUES (?, ?, ?, ?, ?)`,
		npcID, playerID, role, content, t.Now().Unix())
	return err
}

// DialogueHistory returns up to limit of the latest lines between npcID and
// playerID, oldest first.
func (t *Tx) DialogueHistory(npcID, playerID string, limit int) ([]types.DialogueLine, error) {
	var rows []types.DialogueLine
	if err := t.selectRows("dialogue history", &rows,
		`SELECT role, content FROM (
		   SELECT memory_id, role, content FROM npc_dialogue_memory
		   WHERE npc_id = ? AND player_id = ? ORDER BY memory_id DESC LIMIT ?
		 ) ORDER BY memory_id ASC`, npcID, playerID, limit); err != nil {
		return nil, err
	}
	return rows, nil
}

// DialogueSummary returns the running summary for (npcID, playerID).
func (t *Tx) DialogueSummary(npcID, playerID string) (string, error) {
	var summary string
	if _, err := t.get("get dialogue summary", &summary,
		`SELECT summary_text FROM npc_dialogue_summaries WHERE npc_id = ? AND player_id = ?`,
		npcID, playerID); err != nil {
		return "", err
	}
	return summary, nil
}

// AppendDialogueSummary appends line to the running summary, keeping only
// the newest MaxDialogueSummary bytes.
func (t *Tx) AppendDialogueSummary(npcID, playerID, line string) (string, error) {
	summary, err := t.DialogueSummary(npcID, playerID)
	if err != nil {
		return "", err
	}
	summary = strings.TrimSpace(summary + "\n" + strings.TrimSpace(line))
	if len(summary) > MaxDialogueSummary {
		summary = summary[len(summary)-MaxDialogueSummary:]
	}
	_, err = t.exec("append dialogue summary",
		`INSERT INTO npc_dialogue_summaries (npc_id, player_id, summary_text, updated_ts) VALUES (?, ?, ?, ?)
		 ON CONFLICT(npc_id, player_id) DO UPDATE SET summary_text = excluded.summary_text, updated_ts = excluded.updated_ts`,
		npcID, playerID, summary, t.Now().Unix())
	if err != nil {
		return "", err
	}
	return summary, nil
}

// CountDialogue returns the number of logged lines between npcID and playerID.
func (t *Tx) CountDialogue(npcID, playerID string) (int, error) {
	var n int
	if _, err := t.get("count dialogue", &n,
		`SELECT COUNT(*) FROM npc_dialogue_memory WHERE npc_id = ? AND player_id = ?`, npcID, playerID); err != nil {
		return 0, err
	}
	return n, nil
}
