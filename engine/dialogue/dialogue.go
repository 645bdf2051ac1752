// Package dialogue builds the content request for an NPC's spoken reply
// and reads the line back out of the result.
package dialogue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nathoo/asterfall/content"
	"github.com/nathoo/asterfall/npcforge"
	"github.com/nathoo/asterfall/types"
)

// SystemPrompt frames the content service as the NPC.
const SystemPrompt = "You are roleplaying an NPC in a persistent multiplayer world. " +
	"Stay in-character. Keep responses to 1-4 sentences. " +
	"Be specific and reactive to player intent. " +
	"Do not narrate as a game master; speak as the NPC directly."

// HistoryLimit is how many past dialogue lines go into a prompt.
const HistoryLimit = 10

// maxSummaryQuote bounds each side of a summary line.
const maxSummaryQuote = 160

// Context is everything the prompt says about the exchange.
type Context struct {
	NPCName             string
	Persona             string
	LocationName        string
	LocationDescription string
	PlayerMessage       string
	Summary             string
	History             []types.DialogueLine
	Sheet               npcforge.Sheet
	State               npcforge.State
	Observation         npcforge.Observation
}

// Request builds the text request for c, charged to userID.
func Request(userID string, c Context) (content.Request, error) {
	history := c.History
	if len(history) > HistoryLimit {
		history = history[len(history)-HistoryLimit:]
	}
	persona := c.Persona
	if persona == "" {
		persona = c.NPCName + " is a local resident."
	}
	payload, err := json.Marshal(map[string]any{
		"npc_name":             c.NPCName,
		"npc_persona":          persona,
		"npc_brief":            npcforge.DialoguePrompt(c.Sheet, c.State, c.Observation),
		"location_name":        c.LocationName,
		"location_description": c.LocationDescription,
		"conversation_summary": c.Summary,
		"conversation_history": history,
		"player_message":       c.PlayerMessage,
	})
	if err != nil {
		return content.Request{}, fmt.Errorf("encode dialogue request: %w", err)
	}
	return content.Request{
		Kind:        content.KindText,
		System:      SystemPrompt,
		Prompt:      string(payload),
		Temperature: 0.7,
		UserID:      userID,
	}, nil
}

// Line extracts the spoken line from res, or "" when there is none. A
// provider that answers with a JSON object is read through its text,
// reply or message field.
func Line(res content.Result) string {
	if !res.Ok() {
		return ""
	}
	text := strings.TrimSpace(res.Text)
	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "```") {
		var obj map[string]any
		if err := content.DecodeJSON(text, &obj); err == nil {
			for _, key := range []string{"text", "reply", "message"} {
				if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
			return ""
		}
	}
	return text
}

// Fallback is said when no line could be produced.
func Fallback(npcName string) string {
	return npcName + " studies you carefully but offers no clear reply."
}

// SummaryLine is the running-summary entry for one exchange.
func SummaryLine(playerMessage, reply string) string {
	return fmt.Sprintf("Player asked: %s NPC replied: %s", quote(playerMessage), quote(reply))
}

func quote(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > maxSummaryQuote {
		s = string(r[:maxSummaryQuote-3]) + "..."
	}
	return s
}
