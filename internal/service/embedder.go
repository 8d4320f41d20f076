package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bblog/blogbot/internal/port"
)

// Embedding models and vector indexes are provisioned independently and
// can disagree on dimensionality. Indexes at or above this threshold
// get the higher-fidelity model tier; below it, the faster one. The
// pad/truncate safety net in Embed applies either way.
const dimensionThreshold = 768

// Embedder wraps the hosted embedding model and guarantees that every
// output vector has exactly the index's declared length.
type Embedder struct {
	model      port.EmbeddingModel
	index      port.VectorIndex
	largeModel string
	smallModel string

	mu          sync.Mutex
	initialized bool
	dimension   int
	modelName   string
}

// NewEmbedder creates an embedder over the given model client and
// vector index. Model tier selection is deferred to first use.
func NewEmbedder(model port.EmbeddingModel, index port.VectorIndex, largeModel, smallModel string) *Embedder {
	return &Embedder{
		model:      model,
		index:      index,
		largeModel: largeModel,
		smallModel: smallModel,
	}
}

// init resolves the index dimension and picks the model tier. At most
// one initialization executes; concurrent callers block on the mutex
// and observe the initialized state. A failed attempt is retried on the
// next call.
func (e *Embedder) init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}

	dim, err := e.index.Dimension(ctx)
	if err != nil {
		return fmt.Errorf("resolve index dimension: %w", err)
	}

	e.dimension = dim
	if dim >= dimensionThreshold {
		e.modelName = e.largeModel
	} else {
		e.modelName = e.smallModel
	}
	e.initialized = true

	slog.Info("embedder initialized", "model", e.modelName, "dimension", e.dimension)
	return nil
}

// Embed returns a vector of exactly the index dimension for the given
// text, padding with zeros or truncating the model's native output.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.init(ctx); err != nil {
		return nil, err
	}

	raw, err := e.model.Encode(ctx, e.modelName, text)
	if err != nil {
		return nil, fmt.Errorf("encode text: %w", err)
	}

	return fitDimension(raw, e.dimension), nil
}

// Dimension returns the resolved index dimensionality.
func (e *Embedder) Dimension(ctx context.Context) (int, error) {
	if err := e.init(ctx); err != nil {
		return 0, err
	}
	return e.dimension, nil
}

// fitDimension reconciles a native model vector against the target
// length: pad with zeros when short, truncate when long.
func fitDimension(v []float32, dim int) []float32 {
	switch {
	case len(v) == dim:
		return v
	case len(v) < dim:
		padded := make([]float32, dim)
		copy(padded, v)
		return padded
	default:
		return v[:dim]
	}
}
