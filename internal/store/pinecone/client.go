// Package pinecone implements store.Store against the Pinecone data-plane
// REST API. There is no official Pinecone Go SDK; the driver is a plain
// net/http client like the other provider clients in this repo.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kailas-cloud/clipdex/internal/domain"
	"github.com/kailas-cloud/clipdex/internal/store"
)

// Compile-time check: Store implements store.Store.
var _ store.Store = (*Store)(nil)

// Config holds connection parameters for a Pinecone index.
type Config struct {
	// APIKey is sent as the Api-Key header on every request.
	APIKey string
	// Host is the index endpoint, e.g. https://myindex-abc123.svc.us-east-1.pinecone.io
	Host string
	// Namespace is the Pinecone namespace; empty selects the default one.
	Namespace string
	// Dimension is the index vector dimension. Upserts and queries with a
	// different vector length are rejected client-side.
	Dimension int
	// Client overrides the HTTP client (tests). Defaults to a 30s-timeout client.
	Client *http.Client
}

// Store talks to one Pinecone index.
type Store struct {
	apiKey    string
	host      string
	namespace string
	dim       int
	client    *http.Client
}

// New creates a Pinecone store.
func New(cfg Config) (*Store, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Store{
		apiKey:    cfg.APIKey,
		host:      cfg.Host,
		namespace: cfg.Namespace,
		dim:       cfg.Dimension,
		client:    client,
	}, nil
}

type upsertRequest struct {
	Vectors   []vector `json:"vectors"`
	Namespace string   `json:"namespace"`
}

type vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Upsert writes one record. Same ID overwrites.
func (s *Store) Upsert(ctx context.Context, rec domain.Record) error {
	if len(rec.Vector) != s.dim {
		return fmt.Errorf("%w: got %d, index expects %d",
			domain.ErrVectorDimMismatch, len(rec.Vector), s.dim)
	}

	req := upsertRequest{
		Vectors:   []vector{{ID: rec.ID, Values: rec.Vector, Metadata: rec.Metadata}},
		Namespace: s.namespace,
	}
	var resp struct {
		UpsertedCount int `json:"upsertedCount"`
	}
	if err := s.post(ctx, "/vectors/upsert", req, &resp); err != nil {
		return &store.Error{Op: store.OpUpsert, Err: err}
	}
	return nil
}

type queryRequest struct {
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	IncludeMetadata bool           `json:"includeMetadata"`
	Namespace       string         `json:"namespace"`
	Filter          map[string]any `json:"filter,omitempty"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

// Query runs a filtered top-k similarity search. The content type filter
// is evaluated server-side before ranking, so TopK is satisfied from the
// filtered subset.
func (s *Store) Query(ctx context.Context, q *store.Query) ([]domain.Match, error) {
	if len(q.Vector) != s.dim {
		return nil, fmt.Errorf("%w: got %d, index expects %d",
			domain.ErrVectorDimMismatch, len(q.Vector), s.dim)
	}
	if q.TopK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}

	req := queryRequest{
		Vector:          q.Vector,
		TopK:            q.TopK,
		IncludeMetadata: q.IncludeMetadata,
		Namespace:       s.namespace,
	}
	if q.ContentType.IsFilter() {
		req.Filter = map[string]any{
			domain.FieldType: map[string]any{"$eq": string(q.ContentType)},
		}
	}

	var resp queryResponse
	if err := s.post(ctx, "/query", req, &resp); err != nil {
		return nil, &store.Error{Op: store.OpQuery, Err: err}
	}

	matches := make([]domain.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		md := m.Metadata
		if md == nil {
			md = map[string]any{}
		}
		matches = append(matches, domain.Match{ID: m.ID, Score: m.Score, Metadata: md})
	}
	return matches, nil
}

// Stats reports index dimension and vector count via describe_index_stats.
func (s *Store) Stats(ctx context.Context) (domain.Stats, error) {
	var resp struct {
		Dimension        int `json:"dimension"`
		TotalVectorCount int `json:"totalVectorCount"`
	}
	if err := s.post(ctx, "/describe_index_stats", struct{}{}, &resp); err != nil {
		return domain.Stats{}, &store.Error{Op: store.OpStats, Err: err}
	}
	return domain.Stats{
		TotalVectorCount: resp.TotalVectorCount,
		Dimension:        resp.Dimension,
	}, nil
}

// Ping checks connectivity by fetching index stats.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.Stats(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// WaitForReady polls Ping until the index responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := s.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for index: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Close is a no-op: the driver holds no persistent connections.
func (s *Store) Close() {}

func (s *Store) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("pinecone API %s: status %d: %s", path, resp.StatusCode, detail)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
	}
	return nil
}
