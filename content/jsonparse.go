package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when no JSON object can be found in model output.
var ErrNoJSON = errors.New("no json object in output")

// ExtractJSON pulls a JSON object out of model output. Markdown code fences
// and surrounding prose are tolerated: the span from the first '{' to the
// last '}' must parse as an object.
func ExtractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.HasPrefix(strings.TrimSpace(s[:nl]), "{") {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	s = s[start : end+1]
	var probe map[string]any
	if err := json.Unmarshal([]byte(s), &probe); err != nil {
		return "", fmt.Errorf("parse json object: %w", err)
	}
	return s, nil
}

// DecodeJSON extracts a JSON object from raw and decodes it into v.
func DecodeJSON(raw string, v any) error {
	obj, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("decode json object: %w", err)
	}
	return nil
}
