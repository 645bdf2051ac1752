// Package types defines the shared data structures for the Asterfall engine.
// This package contains only type definitions, no logic.
package types

// Action is the classified verb of a player utterance.
type Action string

const (
	ActionLook        Action = "LOOK"
	ActionMove        Action = "MOVE"
	ActionInvestigate Action = "INVESTIGATE"
	ActionTalk        Action = "TALK"
	ActionRestShort   Action = "REST_SHORT"
	ActionRestLong    Action = "REST_LONG"
	ActionHelp        Action = "HELP"
	ActionStart       Action = "START"
	ActionStats       Action = "STATS"
	ActionRecap       Action = "RECAP"
	ActionUnknown     Action = "UNKNOWN"
)

// Intent is the parsed representation of a player utterance.
type Intent struct {
	Action          Action
	Target          string  // optional
	RawText         string
	Confidence      float64 // 1 for rule matches
	ClarifyQuestion string  // optional
}

// Mode is the per-player session mode.
type Mode string

const (
	ModeExplore  Mode = "explore"
	ModeDialogue Mode = "dialogue"
	ModeCombat   Mode = "combat"
)

// Event is emitted by a handler during a turn and appended to the event log.
type Event struct {
	Type string
	Data map[string]any
}

// Result is the output of a single turn.
type Result struct {
	OK      bool
	Message string
	Mode    Mode
	Events  []Event
}

// Player holds a player's durable record.
type Player struct {
	ID         string
	Name       string
	LocationID string
	HP         int
	XP         int
	Injury     int
}

// Location is a seeded place in the world.
type Location struct {
	ID          string
	Name        string
	Description string
	Permanent   bool
}

// NPC is the durable row of a non-player character. Persona and State hold
// serialized blobs; empty means not yet materialized.
type NPC struct {
	ID         string
	Name       string
	LocationID string
	IsKey      bool
	Alive      bool
	Persona    string
	State      string
	LastTickTS int64
}

// Encounter is a combat session scoped to one actor and one location.
type Encounter struct {
	ID         string
	ActorID    string
	LocationID string
	State      EncounterState
}

// EncounterState is the mutable part of an encounter.
type EncounterState struct {
	EnemyRole string   `json:"enemy_role"`
	Turn      int      `json:"turn"`
	Zone      []string `json:"zone,omitempty"`
}

// SessionState is the per-player continuity record, upserted every turn.
type SessionState struct {
	PlayerID          string
	Mode              Mode
	ActiveNPCID       string
	ActiveEncounterID string
	ActiveThreadID    string
	LastBotMessage    string
	RepeatCount       int
}

// Thread is a lightweight pointer grouping related turns.
type Thread struct {
	PlayerID    string
	ThreadID    string
	Type        string
	Title       string
	Status      string
	LastMessage string
}

// EventRecord is a persisted event log entry.
type EventRecord struct {
	ID      int64
	ActorID string
	Type    string
	Payload map[string]any
	TS      int64
}

// DialogueLine is one entry of an NPC's conversation log with a player.
type DialogueLine struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
