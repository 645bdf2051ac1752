package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nathoo/asterfall/content"
	"github.com/nathoo/asterfall/types"
)

// SystemPrompt instructs the content service to classify free text.
const SystemPrompt = "You convert player text into a strict game intent JSON object. " +
	"Return only valid JSON with keys action, target, confidence, clarify_question. " +
	"action must be one of LOOK,MOVE,INVESTIGATE,TALK,REST_SHORT,REST_LONG,HELP,START,STATS,RECAP,UNKNOWN. " +
	"target must be string or null. confidence must be number 0..1. " +
	"clarify_question must be string or null. " +
	"Map social interactions (talk/speak/approach/ask) to TALK, not LOOK."

// Clarifications returned when the classifier cannot be used.
const (
	ParseFailure  = "I could not parse that. Try rephrasing your action."
	LowConfidence = "I'm not sure what you mean. Try `look`, `investigate`, `move`, `talk`, or `rest short`."
	NotFound404   = "The intent model returned 404. Check the configured model name and base URL."
)

// MinConfidence is the lowest classifier confidence acted on without
// asking the player to clarify.
const MinConfidence = 0.5

// defaultConfidence applies when the classifier omits confidence.
const defaultConfidence = 0.75

// KnownActions are the actions the classifier may return.
var KnownActions = []types.Action{
	types.ActionLook, types.ActionMove, types.ActionInvestigate, types.ActionTalk,
	types.ActionRestShort, types.ActionRestLong, types.ActionHelp, types.ActionStart,
	types.ActionStats, types.ActionRecap,
}

// Context describes the actor's situation to the classifier.
type Context struct {
	PlayerStarted bool             `json:"player_started"`
	Location      *LocationContext `json:"location,omitempty"`
	NearbyNPCs    []string         `json:"nearby_npcs,omitempty"`
	RecentEvents  []string         `json:"recent_events,omitempty"`
}

// LocationContext is the location part of Context.
type LocationContext struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LLMRequest builds the classification request for text.
func LLMRequest(text, userID string, c Context) (content.Request, error) {
	known := make([]string, len(KnownActions))
	for i, a := range KnownActions {
		known[i] = string(a)
	}
	payload, err := json.Marshal(map[string]any{
		"player_message": text,
		"known_actions":  known,
		"context":        c,
	})
	if err != nil {
		return content.Request{}, fmt.Errorf("encode intent request: %w", err)
	}
	return content.Request{
		Kind:        content.KindJSON,
		System:      SystemPrompt,
		Prompt:      string(payload),
		Temperature: 0,
		UserID:      userID,
	}, nil
}

type llmIntent struct {
	Action          string   `json:"action"`
	Target          *string  `json:"target"`
	Confidence      *float64 `json:"confidence"`
	ClarifyQuestion *string  `json:"clarify_question"`
}

// FromResult converts a classification result into an Intent. Every
// non-OK variant becomes an UNKNOWN intent carrying a clarification.
func FromResult(text string, res content.Result) types.Intent {
	unknown := func(conf float64, clarify string) types.Intent {
		return types.Intent{Action: types.ActionUnknown, RawText: text, Confidence: conf, ClarifyQuestion: clarify}
	}

	switch res.Status {
	case content.StatusBudgetExhausted:
		return unknown(0, content.BudgetMessage)
	case content.StatusProviderUnavailable:
		var se *content.StatusError
		if errors.As(res.Err, &se) && se.Code == http.StatusNotFound {
			return unknown(0, NotFound404)
		}
		return unknown(0, content.StubClarify)
	case content.StatusInvalid:
		return unknown(0.1, ParseFailure)
	}

	var raw llmIntent
	if err := content.DecodeJSON(res.Text, &raw); err != nil {
		return unknown(0.1, ParseFailure)
	}

	intent := types.Intent{
		Action:     normalizeAction(raw.Action),
		RawText:    text,
		Confidence: defaultConfidence,
	}
	if raw.Target != nil {
		intent.Target = capRunes(strings.ToLower(strings.TrimSpace(*raw.Target)), MaxTargetLen)
	}
	if raw.Confidence != nil {
		intent.Confidence = min(1, max(0, *raw.Confidence))
	}
	if raw.ClarifyQuestion != nil {
		intent.ClarifyQuestion = strings.TrimSpace(*raw.ClarifyQuestion)
	}
	if intent.Confidence < MinConfidence && intent.ClarifyQuestion == "" {
		intent.ClarifyQuestion = LowConfidence
	}
	return intent
}

// NeedsClarification reports whether intent should be answered with its
// clarify question instead of being acted on.
func NeedsClarification(intent types.Intent) bool {
	return intent.ClarifyQuestion != "" || intent.Confidence < MinConfidence
}

func normalizeAction(s string) types.Action {
	a := types.Action(strings.ToUpper(strings.TrimSpace(s)))
	for _, k := range KnownActions {
		if a == k {
			return a
		}
	}
	return types.ActionUnknown
}
