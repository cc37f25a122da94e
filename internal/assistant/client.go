// Package assistant talks to an external text-generation service. The
// service is treated as unreliable: every caller keeps a local fallback.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	apperr "jibber/pkg/errors"
)

// DefaultTimeout bounds how long a reply can stall before the caller's
// fallback kicks in.
const DefaultTimeout = 10 * time.Second

// Turn is one entry of the short conversation context sent with a prompt.
type Turn struct {
	Role    string `json:"role"` // "user" | "assistant" | "system"
	Content string `json:"content"`
}

type Client struct {
	BaseURL string
	Model   string
	httpc   *http.Client
}

func NewClient(baseURL, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: baseURL,
		Model:   model,
		httpc:   &http.Client{Timeout: timeout},
	}
}

type chatReq struct {
	Model    string `json:"model"`
	Messages []Turn `json:"messages"`
	Stream   bool   `json:"stream"`
}

type chatResp struct {
	Message Turn   `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Generate produces a reply to the conversation context. The last turn is
// the triggering user message. Errors are EXTERNAL_SERVICE-coded.
func (c *Client) Generate(ctx context.Context, turns []Turn) (string, error) {
	b, err := json.Marshal(chatReq{Model: c.Model, Messages: turns, Stream: false})
	if err != nil {
		return "", apperr.ErrGenerationFailed(err)
	}

	url := fmt.Sprintf("%s/api/chat", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", apperr.ErrGenerationFailed(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", apperr.ErrGenerationFailed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperr.ErrGenerationFailed(fmt.Errorf("status %d", resp.StatusCode))
	}

	var decoded chatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", apperr.ErrGenerationFailed(err)
	}
	if decoded.Error != "" {
		return "", apperr.ErrGenerationFailed(errors.New(decoded.Error))
	}
	if decoded.Message.Content == "" {
		return "", apperr.ErrGenerationFailed(errors.New("empty completion"))
	}
	return decoded.Message.Content, nil
}
