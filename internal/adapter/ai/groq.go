package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bblog/blogbot/internal/port"
)

// GroqProvider implements port.LLMProvider against Groq's
// OpenAI-compatible chat completions API.
type GroqProvider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewGroqProvider creates a Groq-backed LLM provider.
func NewGroqProvider(baseURL, apiKey, model string) *GroqProvider {
	return &GroqProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
	}
}

// MaskedKey returns a redacted form of the API key for diagnostics.
func (g *GroqProvider) MaskedKey() string {
	if g.apiKey == "" {
		return "no API key configured"
	}
	if len(g.apiKey) < 10 {
		return fmt.Sprintf("API key too short: %d chars", len(g.apiKey))
	}
	return fmt.Sprintf("%s...%s (length: %d)", g.apiKey[:4], g.apiKey[len(g.apiKey)-4:], len(g.apiKey))
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Complete sends a chat completion request and returns the full response text.
func (g *GroqProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	resp, err := g.send(ctx, g.buildRequest(systemPrompt, userPrompt, temperature, maxTokens, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("groq chat decode: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("groq chat: empty choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

// CompleteStream sends a streaming chat completion request and forwards
// each content delta over the returned channel in arrival order.
func (g *GroqProvider) CompleteStream(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (<-chan string, error) {
	resp, err := g.send(ctx, g.buildRequest(systemPrompt, userPrompt, temperature, maxTokens, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan string, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var chunk struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				select {
				case ch <- chunk.Choices[0].Delta.Content:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

func (g *GroqProvider) buildRequest(systemPrompt, userPrompt string, temperature float64, maxTokens int, stream bool) chatRequest {
	return chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      stream,
	}
}

// send posts the request and classifies HTTP failures into the port's
// sentinel errors so callers can pick the right user-facing message.
func (g *GroqProvider) send(ctx context.Context, payload chatRequest) (*http.Response, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("groq chat: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("groq chat: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		msg := strings.TrimSpace(string(body))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("groq API error (%d): %s: %w", resp.StatusCode, msg, port.ErrLLMUnauthorized)
		case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
			return nil, fmt.Errorf("groq API error (%d): %s: %w", resp.StatusCode, msg, port.ErrLLMBadRequest)
		case http.StatusTooManyRequests:
			return nil, fmt.Errorf("groq API error (%d): %s: %w", resp.StatusCode, msg, port.ErrLLMRateLimited)
		default:
			return nil, fmt.Errorf("groq API error (%d): %s", resp.StatusCode, msg)
		}
	}

	return resp, nil
}
