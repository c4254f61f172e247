// internal/provider/chat.go
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// ChatMessage is the payload handed to the chat provider.
type ChatMessage struct {
	Phone      string            `json:"phone"`
	Body       string            `json:"body"`
	TemplateID string            `json:"template_id,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`
}

// ChatClient talks to the chat provider's HTTP API.
type ChatClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewChatClient(baseURL, apiKey string) *ChatClient {
	return &ChatClient{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Send posts the message and returns the provider's message id.
func (c *ChatClient) Send(ctx context.Context, msg ChatMessage) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal chat message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Warn().
			Str("component", "provider").
			Int("status", resp.StatusCode).
			Msg("chat provider rejected message")
		return "", fmt.Errorf("chat provider returned %d: %s", resp.StatusCode, snippet)
	}

	var out struct {
		MessageID string `json:"message_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	return out.MessageID, nil
}
