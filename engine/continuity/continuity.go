// Package continuity keeps a player's session coherent across turns: mode
// transitions, thread identities, scene-memory patches, dialogue
// continuation and repeated-reply detection.
package continuity

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/nathoo/asterfall/types"
)

// Event types that mark the actor's last turn as spoken dialogue.
const (
	EventNPCSpoke    = "NPC_SPOKE"
	EventNPCDialogue = "NPC_DIALOGUE"
)

var lower = cases.Lower(language.Und)

// Normalize folds s for comparison: NFKC, lowercase, and collapsed
// whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(lower.String(norm.NFKC.String(s))), " ")
}

var nudges = []string{
	"New development: a low chime rolls up from the ruin, and heads turn toward the sound.",
	"New development: fresh bootprints cut across the dust and lead somewhere you have not looked.",
	"New development: someone nearby mutters your name, then goes quiet when you glance over.",
	"New development: the star-metal underfoot warms for a heartbeat, as if answering you.",
}

// AntiRepeat compares msg with the previously sent message. A repeat
// increments count and returns msg with a rotating nudge appended; any other
// message resets count to 0 and is returned unchanged.
func AntiRepeat(previous string, count int, msg string) (string, int) {
	if previous == "" || Normalize(previous) != Normalize(msg) {
		return msg, 0
	}
	count++
	return msg + "\n" + nudges[(count-1)%len(nudges)], count
}

var movementWords = map[string]bool{
	"move": true, "go": true, "rest": true, "investigate": true,
	"travel": true, "walk": true, "head": true,
}

// Continuation reports whether text continues the conversation recorded by
// latest, returning the NPC being spoken to. It favours false negatives: a
// command prefix, a movement word, or any other latest event means no.
func Continuation(text string, latest types.EventRecord, hasLatest bool, locationID string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" || strings.HasPrefix(text, "!") || strings.HasPrefix(text, "/") {
		return "", false
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if movementWords[w] {
			return "", false
		}
	}
	if !hasLatest || (latest.Type != EventNPCSpoke && latest.Type != EventNPCDialogue) {
		return "", false
	}
	npcID, _ := latest.Payload["npc_id"].(string)
	loc, _ := latest.Payload["location_id"].(string)
	if npcID == "" || loc != locationID {
		return "", false
	}
	return npcID, true
}

// Mode is the session mode after a turn. A live encounter always wins.
func Mode(encounterLive, talking bool) types.Mode {
	switch {
	case encounterLive:
		return types.ModeCombat
	case talking:
		return types.ModeDialogue
	default:
		return types.ModeExplore
	}
}

// Scope is what a turn was about, used to name its thread.
type Scope struct {
	Action       types.Action
	LocationID   string
	LocationName string
	NPCID        string
	NPCName      string
	EncounterID  string
}

// Thread returns the thread id and title for the scope. Combat beats
// dialogue, which beats travel, investigation and exploration.
func (s Scope) Thread() (id, title string) {
	place := s.LocationName
	if place == "" {
		place = s.LocationID
	}
	switch {
	case s.EncounterID != "":
		return ThreadID("combat", s.EncounterID), "Fight at " + place
	case s.NPCID != "":
		name := s.NPCName
		if name == "" {
			name = s.NPCID
		}
		return ThreadID("npc", s.NPCID), "Talking with " + name
	case s.Action == types.ActionMove:
		return ThreadID("travel", s.LocationID), "Journey to " + place
	case s.Action == types.ActionInvestigate:
		return ThreadID("mystery", s.LocationID), "Mysteries of " + place
	default:
		return ThreadID("explore", s.LocationID), "Exploring " + place
	}
}

// ThreadID joins a thread type and subject id.
func ThreadID(kind, id string) string {
	return kind + ":" + id
}

// ThreadType returns the type prefix of a thread id.
func ThreadType(id string) string {
	kind, _, _ := strings.Cut(id, ":")
	return kind
}

// MaxExcerpt bounds the message excerpt kept in scene memory.
const MaxExcerpt = 240

// SceneFields are the values a turn writes into scene memory.
type SceneFields struct {
	Mode       types.Mode
	Action     types.Action
	LocationID string
	ThreadID   string
	Message    string
	Narration  string
}

// ScenePatch builds the scene-memory merge for a turn. Keys absent from the
// patch are left alone by the store. visited_locations grows by the
// current location when it is new.
func ScenePatch(scene map[string]any, f SceneFields) map[string]any {
	patch := map[string]any{
		"mode":             string(f.Mode),
		"last_action":      string(f.Action),
		"location_id":      f.LocationID,
		"active_thread_id": f.ThreadID,
		"message_excerpt":  excerpt(f.Message, MaxExcerpt),
	}
	if f.Narration != "" {
		patch["last_narration"] = excerpt(f.Narration, MaxExcerpt)
	}
	if f.LocationID != "" && !Visited(scene, f.LocationID) {
		patch["visited_locations"] = append(VisitedLocations(scene), f.LocationID)
	}
	return patch
}

// VisitedLocations returns the visited_locations list from scene memory.
func VisitedLocations(scene map[string]any) []string {
	var out []string
	switch v := scene["visited_locations"].(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// Visited reports whether locationID is in scene's visited_locations.
func Visited(scene map[string]any, locationID string) bool {
	for _, id := range VisitedLocations(scene) {
		if id == locationID {
			return true
		}
	}
	return false
}

func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return fmt.Sprintf("%s...", string(r[:n-3]))
}
