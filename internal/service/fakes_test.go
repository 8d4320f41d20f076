package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bblog/blogbot/internal/domain"
	"github.com/bblog/blogbot/internal/port"
)

// fakeIndex records upsert calls and keeps entries keyed by id so tests
// can assert idempotency and batch boundaries. Query results can be
// scripted independently of the stored entries to simulate the
// approximate id reconstruction.
type fakeIndex struct {
	dimension int

	entries     map[string]domain.VectorEntry
	upsertSizes []int

	queryMatches []domain.VectorMatch
	queryErr     error
	lastQueryVec []float32
	lastTopK     int

	count    int
	countErr error

	deleteCalls int
	deleteErr   error
	dimErr      error
	dimCalls    int
}

func newFakeIndex(dim int) *fakeIndex {
	return &fakeIndex{dimension: dim, entries: map[string]domain.VectorEntry{}}
}

func (f *fakeIndex) Dimension(ctx context.Context) (int, error) {
	f.dimCalls++
	if f.dimErr != nil {
		return 0, f.dimErr
	}
	return f.dimension, nil
}

func (f *fakeIndex) Upsert(ctx context.Context, entries []domain.VectorEntry) error {
	f.upsertSizes = append(f.upsertSizes, len(entries))
	for _, e := range entries {
		f.entries[e.ID] = e
	}
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, vector []float32, topK int) ([]domain.VectorMatch, error) {
	f.lastQueryVec = vector
	f.lastTopK = topK
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryMatches, nil
}

func (f *fakeIndex) DeleteAll(ctx context.Context) error {
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.entries = map[string]domain.VectorEntry{}
	return nil
}

func (f *fakeIndex) Count(ctx context.Context) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

// matchesFor builds query matches that claim the given blogs are
// already indexed.
func matchesFor(blogs []domain.Blog) []domain.VectorMatch {
	matches := make([]domain.VectorMatch, len(blogs))
	for i, b := range blogs {
		matches[i] = domain.VectorMatch{
			ID:       fmt.Sprintf("%d", b.ID),
			Score:    0.9,
			Metadata: domain.EntryMetadata{Title: b.Title, BlogID: b.ID},
		}
	}
	return matches
}

// fakeEmbedder returns a deterministic vector of the fixed dimension,
// varying with the text so re-syncs are distinguishable.
type fakeEmbedder struct {
	dimension int
	embedErr  error
	calls     int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	vec := make([]float32, f.dimension)
	for i := range vec {
		vec[i] = float32(len(text)%7) + float32(i)
	}
	return vec, nil
}

func (f *fakeEmbedder) Dimension(ctx context.Context) (int, error) {
	if f.embedErr != nil {
		return 0, f.embedErr
	}
	return f.dimension, nil
}

// fakeStore serves blogs from a map.
type fakeStore struct {
	blogs map[int64]domain.Blog
}

func newFakeStore(blogs ...domain.Blog) *fakeStore {
	m := make(map[int64]domain.Blog, len(blogs))
	for _, b := range blogs {
		m[b.ID] = b
	}
	return &fakeStore{blogs: m}
}

func (f *fakeStore) GetAllBlogs(ctx context.Context) ([]domain.Blog, error) {
	var out []domain.Blog
	for _, b := range f.blogs {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeStore) GetBlogByID(ctx context.Context, id int64) (*domain.Blog, error) {
	b, ok := f.blogs[id]
	if !ok {
		return nil, port.ErrBlogNotFound
	}
	return &b, nil
}

func (f *fakeStore) GetBlogsModifiedAfter(ctx context.Context, ts time.Time) ([]domain.Blog, error) {
	return f.GetAllBlogs(ctx)
}

func (f *fakeStore) GetBlogCount(ctx context.Context) (int, error) {
	return len(f.blogs), nil
}

// fakeLLM counts calls and returns scripted responses.
type fakeLLM struct {
	response      string
	err           error
	fragments     []string
	completeCalls int
	streamCalls   int
	lastUser      string
	lastSystem    string
}

func (f *fakeLLM) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	f.completeCalls++
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeLLM) CompleteStream(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (<-chan string, error) {
	f.streamCalls++
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan string, len(f.fragments))
	for _, fr := range f.fragments {
		ch <- fr
	}
	close(ch)
	return ch, nil
}

func (f *fakeLLM) MaskedKey() string { return "gsk_...fake" }

// fakeModel implements port.EmbeddingModel with a fixed native length.
type fakeModel struct {
	nativeLen int
	lastModel string
	calls     int
	err       error
}

func (f *fakeModel) Encode(ctx context.Context, model, text string) ([]float32, error) {
	f.calls++
	f.lastModel = model
	if f.err != nil {
		return nil, f.err
	}
	vec := make([]float32, f.nativeLen)
	for i := range vec {
		vec[i] = float32(i + 1)
	}
	return vec, nil
}

var errBoom = errors.New("boom")
