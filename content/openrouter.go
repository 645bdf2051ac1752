package content

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// OpenRouter calls an OpenAI-compatible chat completions endpoint.
type OpenRouter struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
}

// Name implements Provider.
func (o *OpenRouter) Name() string { return "openrouter" }

// Complete implements Provider.
func (o *OpenRouter) Complete(ctx context.Context, req Request) (string, error) {
	if o.APIKey == "" {
		return "", ErrUnavailable
	}
	body := map[string]any{
		"model":       o.Model,
		"messages":    messages(req),
		"temperature": req.Temperature,
	}
	if req.Kind == KindJSON {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	headers := map[string]string{
		"Authorization": "Bearer " + o.APIKey,
		"HTTP-Referer":  "http://localhost",
		"X-Title":       "asterfall",
	}
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := postJSON(ctx, o.HTTP, strings.TrimRight(o.BaseURL, "/")+"/chat/completions", headers, body, &resp); err != nil {
		return "", fmt.Errorf("openrouter chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openrouter chat: no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
