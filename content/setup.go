package content

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nathoo/asterfall/config"
)

// FromConfig builds a Client for the configured backends. The returned
// close func releases provider connections.
func FromConfig(ctx context.Context, cfg config.Config, budget Budget, logger *slog.Logger) (*Client, func() error, error) {
	httpClient := &http.Client{Timeout: cfg.LLMTimeout}
	var gemini *Gemini

	build := func(name string) (Provider, error) {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "ollama":
			return &Ollama{BaseURL: cfg.OllamaBaseURL, Model: cfg.OllamaModel, HTTP: httpClient}, nil
		case "openrouter":
			return &OpenRouter{APIKey: cfg.OpenRouterAPIKey, Model: cfg.OpenRouterModel, BaseURL: cfg.OpenRouterBaseURL, HTTP: httpClient}, nil
		case "gemini":
			if gemini == nil {
				g, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
				if err != nil {
					return nil, err
				}
				gemini = g
			}
			return gemini, nil
		default:
			return Stub{}, nil
		}
	}

	jsonProvider, err := build(cfg.LLMJSONBackend)
	if err != nil {
		return nil, nil, err
	}
	textProvider, err := build(cfg.LLMTextBackend)
	if err != nil {
		return nil, nil, err
	}

	client := New(Options{
		JSON:          jsonProvider,
		Text:          textProvider,
		Metered:       map[string]bool{"openrouter": true, "gemini": true},
		Budget:        budget,
		MaxPerDay:     cfg.LLMMaxCallsPerDay,
		MaxPerUser:    cfg.LLMMaxCallsPerUser,
		MaxInputChars: cfg.LLMMaxInputChars,
		Timeout:       cfg.LLMTimeout,
		Logger:        logger,
	})
	closeFn := func() error {
		if gemini != nil {
			return gemini.Close()
		}
		return nil
	}
	return client, closeFn, nil
}
