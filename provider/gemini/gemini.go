package gemini_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammad-safakhou/deepresearch/provider"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// client implements provider.Provider against the Gemini REST API
type client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Gemini client
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

func (c *client) Name() string { return "gemini" }

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	TopK            int     `json:"topK,omitempty"`
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type request struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type response struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate sends a single-turn generation request and returns the text of
// the first candidate.
func (c *client) Generate(ctx context.Context, prompt string, params provider.Params) (string, error) {
	if err := params.Validate(); err != nil {
		return "", fmt.Errorf("invalid params: %w", err)
	}

	body, err := json.Marshal(request{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     params.Temperature,
			MaxOutputTokens: params.MaxTokens,
			TopP:            params.TopP,
			TopK:            params.TopK,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(params.Model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

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
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", &provider.Error{Kind: provider.KindOther, Message: "no candidates in response"}
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}
