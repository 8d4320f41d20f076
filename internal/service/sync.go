package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/bblog/blogbot/internal/domain"
	"github.com/bblog/blogbot/internal/port"
)

const (
	// upsertBatchSize bounds a single upsert request's payload and keeps
	// us under the index's rate limits.
	upsertBatchSize = 100

	// existingIDsProbeTopK is how many matches the zero-vector probe
	// asks for when reconstructing the set of indexed ids. Under-counts
	// if the index holds more entries than this.
	existingIDsProbeTopK = 10000
)

// SyncService keeps the vector index consistent with the blog table.
// All three entry paths (full rebuild, incremental, single record)
// share the same entry construction and idempotent upsert.
type SyncService struct {
	store    port.BlogStore
	embedder port.Embedder
	index    port.VectorIndex
}

// NewSyncService creates a synchronization engine.
func NewSyncService(store port.BlogStore, embedder port.Embedder, index port.VectorIndex) *SyncService {
	return &SyncService{store: store, embedder: embedder, index: index}
}

// entryFor embeds a blog's title and contents into one index entry.
// The vector is a pure function of (title, contents) at this moment; a
// later content edit leaves the stored vector stale until re-synced.
func (s *SyncService) entryFor(ctx context.Context, blog domain.Blog) (domain.VectorEntry, error) {
	vec, err := s.embedder.Embed(ctx, blog.Title+" "+blog.Contents)
	if err != nil {
		return domain.VectorEntry{}, fmt.Errorf("embed blog %d: %w", blog.ID, err)
	}
	return domain.VectorEntry{
		ID:     strconv.FormatInt(blog.ID, 10),
		Values: vec,
		Metadata: domain.EntryMetadata{
			Title:  blog.Title,
			BlogID: blog.ID,
		},
	}, nil
}

// SyncOne indexes a single blog immediately. Idempotent: re-syncing the
// same blog overwrites its prior vector.
func (s *SyncService) SyncOne(ctx context.Context, blog domain.Blog) error {
	entry, err := s.entryFor(ctx, blog)
	if err != nil {
		return err
	}
	if err := s.index.Upsert(ctx, []domain.VectorEntry{entry}); err != nil {
		return fmt.Errorf("upsert blog %d: %w", blog.ID, err)
	}
	slog.Info("indexed blog", "id", blog.ID, "title", blog.Title)
	return nil
}

// RebuildAll clears the index and re-populates it from the given
// snapshot, upserting in batches. progress may be nil.
func (s *SyncService) RebuildAll(ctx context.Context, blogs []domain.Blog, progress func(done, total int)) error {
	if err := s.index.DeleteAll(ctx); err != nil {
		// Opportunistic clear; a brand-new index has nothing to delete.
		slog.Warn("could not clear vector index", "error", err)
	}

	if err := s.upsertBlogs(ctx, blogs, progress); err != nil {
		return err
	}

	slog.Info("rebuilt vector index", "blogs", len(blogs))
	return nil
}

// ResyncBlogs re-embeds the given blogs in place, overwriting their
// stored vectors without touching the rest of the index. This is the
// targeted remedy for vectors left stale by content edits, cheaper
// than a full rebuild. progress may be nil.
func (s *SyncService) ResyncBlogs(ctx context.Context, blogs []domain.Blog, progress func(done, total int)) error {
	if len(blogs) == 0 {
		return nil
	}
	if err := s.upsertBlogs(ctx, blogs, progress); err != nil {
		return err
	}
	slog.Info("resynced blogs", "blogs", len(blogs))
	return nil
}

func (s *SyncService) upsertBlogs(ctx context.Context, blogs []domain.Blog, progress func(done, total int)) error {
	var batch []domain.VectorEntry
	for i, blog := range blogs {
		entry, err := s.entryFor(ctx, blog)
		if err != nil {
			return err
		}
		batch = append(batch, entry)

		if len(batch) >= upsertBatchSize {
			if err := s.index.Upsert(ctx, batch); err != nil {
				return fmt.Errorf("upsert batch: %w", err)
			}
			batch = nil
		}
		if progress != nil {
			progress(i+1, len(blogs))
		}
	}

	if len(batch) > 0 {
		if err := s.index.Upsert(ctx, batch); err != nil {
			return fmt.Errorf("upsert final batch: %w", err)
		}
	}
	return nil
}

// SyncIncremental indexes only blogs whose ids are not already present
// in the index and returns how many were newly indexed. Blogs already
// present are never re-embedded, even if their content changed.
func (s *SyncService) SyncIncremental(ctx context.Context, blogs []domain.Blog) (int, error) {
	existing := s.existingIDs(ctx)
	slog.Info("found already indexed blogs", "count", len(existing))

	var batch []domain.VectorEntry
	indexed := 0
	for _, blog := range blogs {
		if _, ok := existing[blog.ID]; ok {
			continue
		}

		entry, err := s.entryFor(ctx, blog)
		if err != nil {
			return indexed, err
		}
		batch = append(batch, entry)
		indexed++

		if len(batch) >= upsertBatchSize {
			if err := s.index.Upsert(ctx, batch); err != nil {
				return indexed, fmt.Errorf("upsert batch: %w", err)
			}
			batch = nil
		}
	}

	if len(batch) > 0 {
		if err := s.index.Upsert(ctx, batch); err != nil {
			return indexed, fmt.Errorf("upsert final batch: %w", err)
		}
	}

	slog.Info("incrementally indexed blogs", "new", indexed)
	return indexed, nil
}

// EnsureIndexed is the startup path: incremental sync over the full
// snapshot, with a full rebuild as self-healing when the incremental
// pass found nothing new but the index is actually empty.
func (s *SyncService) EnsureIndexed(ctx context.Context) error {
	blogs, err := s.store.GetAllBlogs(ctx)
	if err != nil {
		return fmt.Errorf("load blogs: %w", err)
	}

	indexed, err := s.SyncIncremental(ctx, blogs)
	if err != nil {
		return err
	}

	if indexed == 0 && len(blogs) > 0 {
		count, err := s.index.Count(ctx)
		if err != nil {
			return fmt.Errorf("index stats: %w", err)
		}
		if count == 0 {
			slog.Warn("index reports zero entries after incremental sync, rebuilding", "blogs", len(blogs))
			return s.RebuildAll(ctx, blogs, nil)
		}
	}
	return nil
}

// existingIDs reconstructs a best-effort set of already-indexed blog
// ids via a single broad query against an all-zero probe vector. The
// index has no native id listing, so this can under-count, and any
// failure degrades to an empty set: the worst outcome is redundant
// re-indexing, never data loss.
func (s *SyncService) existingIDs(ctx context.Context) map[int64]struct{} {
	dim, err := s.embedder.Dimension(ctx)
	if err != nil {
		slog.Warn("could not resolve dimension for id reconstruction", "error", err)
		return map[int64]struct{}{}
	}

	probe := make([]float32, dim)
	matches, err := s.index.Query(ctx, probe, existingIDsProbeTopK)
	if err != nil {
		slog.Warn("could not reconstruct existing blog ids", "error", err)
		return map[int64]struct{}{}
	}

	ids := make(map[int64]struct{}, len(matches))
	for _, m := range matches {
		if m.Metadata.BlogID != 0 {
			ids[m.Metadata.BlogID] = struct{}{}
		}
	}
	return ids
}
