package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OllamaEmbedder implements port.EmbeddingModel using the Ollama REST
// API. The model name is chosen per call because the embedder service
// picks a tier only after resolving the index dimension.
type OllamaEmbedder struct {
	baseURL    string
	token      string // Bearer token for Ollama Cloud (empty = no auth)
	httpClient *http.Client
}

// NewOllamaEmbedder creates a new Ollama-backed embedding model client.
func NewOllamaEmbedder(baseURL, token string) *OllamaEmbedder {
	return &OllamaEmbedder{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{},
	}
}

// Encode generates the model's native vector embedding for the given text.
func (o *OllamaEmbedder) Encode(ctx context.Context, model, text string) ([]float32, error) {
	payload := map[string]interface{}{
		"model": model,
		"input": text,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embed", bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("ollama embed: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(body))
	}

	var decoded struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("ollama embed decode: %w", err)
	}

	if len(decoded.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama embed: empty response")
	}

	return decoded.Embeddings[0], nil
}
