// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/clashops/internal/breaker"
)

// BreakerName labels the completion breaker in metrics and logs.
const BreakerName = "analysis-llm"

// Completion is one chat-completions request.
type Completion struct {
	Model     string
	System    string
	User      string
	MaxTokens int
}

// ChatClient sends a completion and returns the first choice's content.
type ChatClient interface {
	Complete(ctx context.Context, c Completion) (string, error)
}

// ClientConfig configures HTTPClient.
type ClientConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	MaxTokens int
	Breaker   breaker.Config
}

// StatusError is a non-2xx answer from the completions endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completions http %d: %s", e.StatusCode, e.Body)
}

// ErrEmptyCompletion means the endpoint answered without any content.
var ErrEmptyCompletion = errors.New("completion has no content")

// HTTPClient is a ChatClient for OpenAI-compatible endpoints.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	maxTokens  int
	httpClient *http.Client
	breaker    *breaker.Breaker[string]
}

// NewHTTPClient validates cfg and builds a client.
func NewHTTPClient(cfg ClientConfig) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("analysis: missing API key")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://api.openai.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 6000
	}
	return &HTTPClient{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		maxTokens:  cfg.MaxTokens,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker.New[string](BreakerName, cfg.Breaker, isClientError),
	}, nil
}

func isClientError(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode >= 400 && se.StatusCode < 500 &&
		se.StatusCode != http.StatusRequestTimeout && se.StatusCode != http.StatusTooManyRequests
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string            `json:"model"`
	Messages            []chatMessage     `json:"messages"`
	ResponseFormat      map[string]string `json:"response_format,omitempty"`
	MaxCompletionTokens int               `json:"max_completion_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete implements ChatClient.
func (c *HTTPClient) Complete(ctx context.Context, comp Completion) (string, error) {
	return c.breaker.Execute(func() (string, error) {
		return c.complete(ctx, comp)
	})
}

func (c *HTTPClient) complete(ctx context.Context, comp Completion) (string, error) {
	maxTokens := comp.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	body, err := json.Marshal(chatRequest{
		Model: comp.Model,
		Messages: []chatMessage{
			{Role: "system", Content: comp.System},
			{Role: "user", Content: comp.User},
		},
		ResponseFormat:      map[string]string{"type": "json_object"},
		MaxCompletionTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completions request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("read completion: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return out.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
