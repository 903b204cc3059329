package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pageza/nutrisnap/backend/config"
)

// Message represents a message in the chat
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []ContentPart
}

// ContentPart is one element of a multi-part user message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// Request represents a request to an OpenAI-compatible chat completions API
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatClient talks to an OpenAI-compatible chat completions endpoint
// (Gemini, Groq, OpenRouter and OpenAI all speak it).
type ChatClient struct {
	provider string
	apiKey   string
	apiURL   string
	model    string
	client   *http.Client
}

// NewChatClient creates a client for one provider. The per-call deadline comes
// from the caller's context; the http timeout is only a backstop.
func NewChatClient(provider string, cfg config.ProviderConfig) *ChatClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatClient{
		provider: provider,
		apiKey:   cfg.APIKey,
		apiURL:   cfg.APIURL,
		model:    cfg.Model,
		client:   &http.Client{Timeout: timeout},
	}
}

// Complete sends messages and returns the first choice's content, untrimmed.
func (c *ChatClient) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	reqBody := Request{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.client.Do(req)
	if err != nil {
		return "", unavailable(c.provider, 0, fmt.Errorf("failed to send request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", unavailable(c.provider, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", unavailable(c.provider, resp.StatusCode, fmt.Errorf("API request failed: %s", truncate(string(body), 200)))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", schemaError(c.provider, fmt.Errorf("failed to decode response: %w", err))
	}
	if len(result.Choices) == 0 {
		return "", schemaError(c.provider, fmt.Errorf("no choices in API response"))
	}

	return result.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
