package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/bblog/blogbot/internal/domain"
)

// PineconeIndex implements port.VectorIndex against Pinecone's REST
// API, scoped to one named serverless index. The control plane resolves
// the index's data-plane host and dimension once; data-plane calls are
// issued against that host afterwards.
type PineconeIndex struct {
	controlURL string
	apiKey     string
	region     string
	indexName  string
	defaultDim int
	httpClient *http.Client

	mu        sync.Mutex
	host      string
	dimension int
}

// NewPineconeIndex creates a client for the named index. defaultDim is
// used only if the index does not exist yet and has to be created.
func NewPineconeIndex(controlURL, apiKey, region, indexName string, defaultDim int) *PineconeIndex {
	return &PineconeIndex{
		controlURL: controlURL,
		apiKey:     apiKey,
		region:     region,
		indexName:  indexName,
		defaultDim: defaultDim,
		httpClient: &http.Client{},
	}
}

type indexDescription struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Host      string `json:"host"`
}

// Dimension resolves the index's declared dimensionality, creating the
// index when missing. Safe for concurrent callers; resolution happens
// at most once.
func (p *PineconeIndex) Dimension(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.host != "" {
		return p.dimension, nil
	}

	var listed struct {
		Indexes []indexDescription `json:"indexes"`
	}
	if err := p.doJSON(ctx, http.MethodGet, p.controlURL+"/indexes", nil, &listed); err != nil {
		return 0, fmt.Errorf("list indexes: %w", err)
	}

	for _, idx := range listed.Indexes {
		if idx.Name == p.indexName {
			p.host = normalizeHost(idx.Host)
			p.dimension = idx.Dimension
			slog.Info("using existing vector index", "index", p.indexName, "dimension", p.dimension)
			return p.dimension, nil
		}
	}

	created, err := p.createIndex(ctx)
	if err != nil {
		return 0, err
	}
	p.host = normalizeHost(created.Host)
	p.dimension = created.Dimension
	slog.Info("created vector index", "index", p.indexName, "dimension", p.dimension)
	return p.dimension, nil
}

func (p *PineconeIndex) createIndex(ctx context.Context) (*indexDescription, error) {
	payload := map[string]interface{}{
		"name":      p.indexName,
		"dimension": p.defaultDim,
		"metric":    "cosine",
		"spec": map[string]interface{}{
			"serverless": map[string]interface{}{
				"cloud":  "aws",
				"region": p.region,
			},
		},
	}

	var created indexDescription
	if err := p.doJSON(ctx, http.MethodPost, p.controlURL+"/indexes", payload, &created); err != nil {
		return nil, fmt.Errorf("create index %q: %w", p.indexName, err)
	}
	return &created, nil
}

// Upsert inserts or replaces entries keyed by id.
func (p *PineconeIndex) Upsert(ctx context.Context, entries []domain.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	host, err := p.dataHost(ctx)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"vectors":   entries,
		"namespace": "",
	}
	if err := p.doJSON(ctx, http.MethodPost, host+"/vectors/upsert", payload, nil); err != nil {
		return fmt.Errorf("upsert %d vectors: %w", len(entries), err)
	}
	return nil
}

// Query returns up to topK nearest entries by cosine similarity.
func (p *PineconeIndex) Query(ctx context.Context, vector []float32, topK int) ([]domain.VectorMatch, error) {
	host, err := p.dataHost(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
		"namespace":       "",
	}

	var decoded struct {
		Matches []domain.VectorMatch `json:"matches"`
	}
	if err := p.doJSON(ctx, http.MethodPost, host+"/query", payload, &decoded); err != nil {
		return nil, fmt.Errorf("query top %d: %w", topK, err)
	}
	return decoded.Matches, nil
}

// DeleteAll clears the index. A "not found" answer means the namespace
// is new or already empty and is treated as a no-op.
func (p *PineconeIndex) DeleteAll(ctx context.Context) error {
	host, err := p.dataHost(ctx)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"deleteAll": true,
		"namespace": "",
	}
	err = p.doJSON(ctx, http.MethodPost, host+"/vectors/delete", payload, nil)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.status == http.StatusNotFound {
			slog.Info("vector index already empty, nothing to clear", "index", p.indexName)
			return nil
		}
		return fmt.Errorf("delete all: %w", err)
	}
	return nil
}

// Count returns the approximate total vector count.
func (p *PineconeIndex) Count(ctx context.Context) (int, error) {
	host, err := p.dataHost(ctx)
	if err != nil {
		return 0, err
	}

	var decoded struct {
		TotalVectorCount int `json:"totalVectorCount"`
	}
	if err := p.doJSON(ctx, http.MethodPost, host+"/describe_index_stats", map[string]interface{}{}, &decoded); err != nil {
		return 0, fmt.Errorf("index stats: %w", err)
	}
	return decoded.TotalVectorCount, nil
}

func (p *PineconeIndex) dataHost(ctx context.Context) (string, error) {
	if _, err := p.Dimension(ctx); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.host, nil
}

// apiError carries the HTTP status so callers can tell "missing" apart
// from real failures.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("pinecone API error (%d): %s", e.status, e.body)
}

func (p *PineconeIndex) doJSON(ctx context.Context, method, url string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(payloadBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Api-Key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &apiError{status: resp.StatusCode, body: strings.TrimSpace(string(respBody))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// normalizeHost prepends https:// when the control plane returns a bare
// hostname.
func normalizeHost(host string) string {
	if strings.Contains(host, "://") {
		return host
	}
	return "https://" + host
}
