package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1"

// ChatMessage is one message of an LLM chat request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMClient talks to an OpenAI-compatible chat completions API (OpenRouter).
type LLMClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	log     zerolog.Logger
}

// NewLLMClient creates a new chat completions client.
func NewLLMClient(apiKey, model string, log zerolog.Logger) *LLMClient {
	return &LLMClient{
		baseURL: defaultOpenRouterURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
		log:     log.With().Str("client", "openrouter").Logger(),
	}
}

// SetBaseURL overrides the API base URL (used in tests).
func (c *LLMClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete performs a non-streaming chat completion and returns the full
// response text.
func (c *LLMClient) Complete(ctx context.Context, messages []ChatMessage, temperature float64) (string, error) {
	body, err := c.send(ctx, chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var decoded chatResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("completion error: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	return decoded.Choices[0].Message.Content, nil
}

// StreamCompletion performs a streaming chat completion, invoking onDelta
// for every content delta. Emission stops when onDelta returns an error or
// the context is cancelled.
func (c *LLMClient) StreamCompletion(ctx context.Context, messages []ChatMessage, temperature float64, onDelta func(delta string) error) error {
	body, err := c.send(ctx, chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		Stream:      true,
	})
	if err != nil {
		return err
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var decoded chatResponse
		if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
			c.log.Warn().Err(err).Msg("Skipping malformed stream chunk")
			continue
		}
		if len(decoded.Choices) == 0 {
			continue
		}
		if delta := decoded.Choices[0].Delta.Content; delta != "" {
			if err := onDelta(delta); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}

	return nil
}

// send issues the request and returns the raw response body on HTTP 200.
func (c *LLMClient) send(ctx context.Context, request chatRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return resp.Body, nil
}

// CheckKey validates the configured key against the OpenRouter key endpoint.
func (c *LLMClient) CheckKey(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/key", nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("OpenRouter validation failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("OpenRouter validation failed: unauthorized, check OPENROUTER_API_KEY")
	default:
		return fmt.Errorf("OpenRouter validation failed: HTTP %d", resp.StatusCode)
	}
}
