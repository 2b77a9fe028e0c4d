package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/deepresearch/provider"
)

const defaultBaseURL = "https://api.openai.com/v1"

// client implements provider.Provider using OpenAI's chat completions API
type client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new OpenAI client
func NewClient(apiKey, baseURL string, timeout time.Duration) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &client{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *client) Name() string { return "openai" }

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate sends a single-message chat completion request. TopK is not part
// of the chat completions API and is ignored here.
func (c *client) Generate(ctx context.Context, prompt string, params provider.Params) (string, error) {
	if err := params.Validate(); err != nil {
		return "", fmt.Errorf("invalid params: %w", err)
	}

	body, err := json.Marshal(request{
		Model:       params.Model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		TopP:        params.TopP,
	})
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &provider.Error{Kind: provider.KindOther, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		var out response
		if json.Unmarshal(raw, &out) == nil && out.Error != nil {
			msg = out.Error.Message
		}
		return "", &provider.Error{
			Kind:    provider.KindFromStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Message: msg,
		}
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", &provider.Error{Kind: provider.KindOther, Message: "no choices in response"}
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
