// Package save exports one player's durable record as JSON.
package save

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nathoo/asterfall/npcforge"
	"github.com/nathoo/asterfall/types"
)

// Version is the export format version.
const Version = 1

// DefaultEventLimit is how many recent events an export carries.
const DefaultEventLimit = 50

// ErrNoPlayer is returned when exporting an actor who never started.
var ErrNoPlayer = errors.New("player has not started")

// Reader is the read side of a store transaction.
type Reader interface {
	Player(id string) (types.Player, bool, error)
	SessionState(playerID string) (types.SessionState, error)
	SceneMemory(playerID string) (map[string]any, error)
	Threads(playerID string) ([]types.Thread, error)
	RecentEvents(actorID string, limit int) ([]types.EventRecord, error)
	NPCs() ([]types.NPC, error)
}

// Export is the JSON-serializable snapshot of one player.
type Export struct {
	Version       int            `json:"version"`
	Game          string         `json:"game"`
	ExportedAt    int64          `json:"exported_at"`
	Player        Player         `json:"player"`
	Session       Session        `json:"session"`
	Scene         map[string]any `json:"scene"`
	Threads       []Thread       `json:"threads"`
	Events        []Event        `json:"events"`
	Relationships []Relationship `json:"relationships"`
}

// Player is the exported player record.
type Player struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	LocationID string `json:"location_id"`
	HP         int    `json:"hp"`
	XP         int    `json:"xp"`
	Injury     int    `json:"injury"`
}

// Session is the exported session state.
type Session struct {
	Mode              string `json:"mode"`
	ActiveNPCID       string `json:"active_npc_id,omitempty"`
	ActiveEncounterID string `json:"active_encounter_id,omitempty"`
	ActiveThreadID    string `json:"active_thread_id,omitempty"`
	RepeatCount       int    `json:"repeat_count"`
}

// Thread is an exported thread.
type Thread struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	LastMessage string `json:"last_message"`
}

// Event is an exported event log entry.
type Event struct {
	ID      int64          `json:"id"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
	TS      int64          `json:"ts"`
}

// Relationship is what one NPC holds about the player.
type Relationship struct {
	NPCID           string   `json:"npc_id"`
	NPCName         string   `json:"npc_name"`
	Affinity        int      `json:"affinity"`
	Trust           int      `json:"trust"`
	Respect         int      `json:"respect"`
	Bonds           []string `json:"bonds"`
	Grudges         []string `json:"grudges"`
	GreetingStage   int      `json:"greeting_stage"`
	LastInteraction int64    `json:"last_interaction"`
}

// Build reads playerID's record through r. NPCs that have never met the
// player, or whose state does not decode, contribute no relationship.
func Build(r Reader, playerID, game string, now time.Time, eventLimit int) (*Export, error) {
	p, ok, err := r.Player(playerID)
	if err != nil {
		return nil, fmt.Errorf("read player: %w", err)
	}
	if !ok {
		return nil, ErrNoPlayer
	}
	if eventLimit <= 0 {
		eventLimit = DefaultEventLimit
	}

	sess, err := r.SessionState(playerID)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	scene, err := r.SceneMemory(playerID)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	threads, err := r.Threads(playerID)
	if err != nil {
		return nil, fmt.Errorf("read threads: %w", err)
	}
	recent, err := r.RecentEvents(playerID, eventLimit)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	npcs, err := r.NPCs()
	if err != nil {
		return nil, fmt.Errorf("read npcs: %w", err)
	}

	ex := &Export{
		Version:    Version,
		Game:       game,
		ExportedAt: now.Unix(),
		Player: Player{
			ID: p.ID, Name: p.Name, LocationID: p.LocationID,
			HP: p.HP, XP: p.XP, Injury: p.Injury,
		},
		Session: Session{
			Mode:              string(sess.Mode),
			ActiveNPCID:       sess.ActiveNPCID,
			ActiveEncounterID: sess.ActiveEncounterID,
			ActiveThreadID:    sess.ActiveThreadID,
			RepeatCount:       sess.RepeatCount,
		},
		Scene:         scene,
		Threads:       []Thread{},
		Events:        []Event{},
		Relationships: []Relationship{},
	}
	if ex.Scene == nil {
		ex.Scene = map[string]any{}
	}
	for _, th := range threads {
		ex.Threads = append(ex.Threads, Thread{
			ID: th.ThreadID, Type: th.Type, Title: th.Title,
			Status: th.Status, LastMessage: th.LastMessage,
		})
	}
	for _, ev := range recent {
		ex.Events = append(ex.Events, Event{ID: ev.ID, Type: ev.Type, Payload: ev.Payload, TS: ev.TS})
	}
	for _, n := range npcs {
		if n.State == "" {
			continue
		}
		st, err := npcforge.DecodeState(n.State)
		if err != nil {
			continue
		}
		if rel, ok := relationship(n, st, playerID); ok {
			ex.Relationships = append(ex.Relationships, rel)
		}
	}
	return ex, nil
}

func relationship(n types.NPC, st npcforge.State, playerID string) (Relationship, bool) {
	_, met := st.LastInteraction[playerID]
	_, staged := st.GreetingStage[playerID]
	if !met && !staged {
		return Relationship{}, false
	}
	return Relationship{
		NPCID:           n.ID,
		NPCName:         n.Name,
		Affinity:        st.Affinity[playerID],
		Trust:           st.Trust[playerID],
		Respect:         st.Respect[playerID],
		Bonds:           append([]string{}, st.BondFlags[playerID]...),
		Grudges:         append([]string{}, st.GrudgeFlags[playerID]...),
		GreetingStage:   st.GreetingStage[playerID],
		LastInteraction: st.LastInteraction[playerID],
	}, true
}

// Marshal serializes an export to indented JSON.
func Marshal(ex *Export) ([]byte, error) {
	return json.MarshalIndent(ex, "", "  ")
}

// Load deserializes an export.
func Load(data []byte) (*Export, error) {
	var ex Export
	if err := json.Unmarshal(data, &ex); err != nil {
		return nil, err
	}
	if ex.Version != Version {
		return nil, fmt.Errorf("unsupported export version %d", ex.Version)
	}
	// Ensure collections are never nil after load.
	if ex.Scene == nil {
		ex.Scene = map[string]any{}
	}
	if ex.Threads == nil {
		ex.Threads = []Thread{}
	}
	if ex.Events == nil {
		ex.Events = []Event{}
	}
	if ex.Relationships == nil {
		ex.Relationships = []Relationship{}
	}
	return &ex, nil
}
