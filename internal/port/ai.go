package port

import "context"

// EmbeddingModel is the hosted embedding model: text in, the model's
// native fixed-length vector out. Model selection happens per call so
// the embedder can switch tiers after resolving the index dimension.
type EmbeddingModel interface {
	Encode(ctx context.Context, model, text string) ([]float32, error)
}

// Embedder produces vectors whose length always equals the vector
// index's declared dimensionality, padding or truncating the model's
// native output as needed.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension(ctx context.Context) (int, error)
}

// LLMProvider abstracts the hosted chat-completion API.
type LLMProvider interface {
	// Complete returns the full response text.
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)

	// CompleteStream streams the response token-by-token; the channel
	// is closed when the underlying stream ends.
	CompleteStream(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (<-chan string, error)

	// MaskedKey returns a redacted form of the API key for health
	// reporting and diagnostics.
	MaskedKey() string
}
