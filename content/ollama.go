package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Ollama calls a local Ollama server's chat API.
type Ollama struct {
	BaseURL string
	Model   string
	HTTP    *http.Client
}

// Name implements Provider.
func (o *Ollama) Name() string { return "ollama" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func messages(req Request) []chatMessage {
	var out []chatMessage
	if req.System != "" {
		out = append(out, chatMessage{Role: "system", Content: req.System})
	}
	return append(out, chatMessage{Role: "user", Content: req.Prompt})
}

// Complete implements Provider.
func (o *Ollama) Complete(ctx context.Context, req Request) (string, error) {
	if o.BaseURL == "" || o.Model == "" {
		return "", ErrUnavailable
	}
	body := map[string]any{
		"model":    o.Model,
		"messages": messages(req),
		"stream":   false,
		"options":  map[string]any{"temperature": req.Temperature},
	}
	if req.Kind == KindJSON {
		body["format"] = "json"
	}
	var resp struct {
		Message *struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := postJSON(ctx, o.HTTP, strings.TrimRight(o.BaseURL, "/")+"/api/chat", nil, body, &resp); err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	if resp.Message == nil {
		return "", fmt.Errorf("ollama chat: unexpected response")
	}
	return strings.TrimSpace(resp.Message.Content), nil
}

// StatusError is a non-2xx HTTP response from a provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	if client == nil {
		client = http.DefaultClient
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
