package port

import (
	"context"

	"github.com/bblog/blogbot/internal/domain"
)

// VectorIndex abstracts the external vector database, scoped to a
// single named collection.
type VectorIndex interface {
	// Dimension resolves the collection's declared dimensionality,
	// creating the collection with the adapter's default dimension if
	// it does not exist yet. The result is memoized.
	Dimension(ctx context.Context) (int, error)

	// Upsert inserts or replaces entries keyed by id. Idempotent.
	Upsert(ctx context.Context, entries []domain.VectorEntry) error

	// Query returns up to topK nearest entries by cosine similarity,
	// highest first. An empty result is valid, not an error.
	Query(ctx context.Context, vector []float32, topK int) ([]domain.VectorMatch, error)

	// DeleteAll clears the collection. A "collection missing or already
	// empty" failure is swallowed as a no-op.
	DeleteAll(ctx context.Context) error

	// Count returns the approximate total entry count.
	Count(ctx context.Context) (int, error)
}
