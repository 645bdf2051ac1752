package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini calls Google's Gemini models.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini connects a Gemini client. An empty key yields a provider that
// always reports ErrUnavailable.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return &Gemini{model: model}, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Name implements Provider.
func (g *Gemini) Name() string { return "gemini" }

// Close releases the client connection.
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Complete implements Provider.
func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	if g.client == nil {
		return "", ErrUnavailable
	}
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(float32(req.Temperature))
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.Kind == KindJSON {
		model.ResponseMIMEType = "application/json"
	}
	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini generate: no candidates")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String()), nil
}
