package content

import (
	"context"
	"encoding/json"
)

// StubClarify is the clarification the stub returns for JSON requests.
const StubClarify = "LLM unavailable; using basic parser."

// Stub is the deterministic offline provider.
type Stub struct{}

// Name implements Provider.
func (Stub) Name() string { return "stub" }

// Complete implements Provider. Text requests echo the start of the prompt
// behind a "[stub] " marker; JSON requests always classify as UNKNOWN.
func (Stub) Complete(_ context.Context, req Request) (string, error) {
	if req.Kind == KindJSON {
		b, err := json.Marshal(map[string]any{
			"action":           "UNKNOWN",
			"target":           nil,
			"confidence":       0.0,
			"clarify_question": StubClarify,
		})
		return string(b), err
	}
	return StubText(req.Prompt), nil
}

// StubText is the stub's text output for prompt.
func StubText(prompt string) string {
	return "[stub] " + truncate(prompt, 80)
}
