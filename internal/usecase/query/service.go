// Package query embeds free-text queries, runs filtered top-k similarity
// search, and reshapes raw matches into per-content-type response records.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/clipdex/internal/domain"
	"github.com/kailas-cloud/clipdex/internal/store"
)

// Top-k defaults and bound. The generic endpoint defaults lower than the
// specialized ones, matching the callers that depend on each.
const (
	DefaultTopK      = 5
	DefaultTypedTopK = 10
	MaxTopK          = 100
)

// Service handles all three query shapes over one algorithm skeleton:
// validate, embed, filter, search, normalize.
type Service struct {
	store Searcher
	embed Embedder
}

// New creates a query service.
func New(store Searcher, embed Embedder) *Service {
	return &Service{store: store, embed: embed}
}

// Search runs a generic query with a caller-supplied content type filter.
// contentType "all" (or empty) searches everything. An empty result slice
// is a valid outcome, not an error.
func (s *Service) Search(
	ctx context.Context, queryText string, topK int, contentType domain.ContentType,
) ([]GenericResult, error) {
	matches, err := s.search(ctx, queryText, topK, DefaultTopK, contentType)
	if err != nil {
		return nil, err
	}

	results := make([]GenericResult, len(matches))
	for i, m := range matches {
		results[i] = normalizeGeneric(m)
	}
	return results, nil
}

// SearchDocuments runs a query hard-filtered to document records.
func (s *Service) SearchDocuments(
	ctx context.Context, queryText string, topK int,
) ([]DocumentResult, error) {
	matches, err := s.search(ctx, queryText, topK, DefaultTypedTopK, domain.ContentDocument)
	if err != nil {
		return nil, err
	}

	results := make([]DocumentResult, len(matches))
	for i, m := range matches {
		results[i] = normalizeDocument(m)
	}
	return results, nil
}

// SearchImages runs a query hard-filtered to image records.
func (s *Service) SearchImages(
	ctx context.Context, queryText string, topK int,
) ([]ImageResult, error) {
	matches, err := s.search(ctx, queryText, topK, DefaultTypedTopK, domain.ContentImage)
	if err != nil {
		return nil, err
	}

	results := make([]ImageResult, len(matches))
	for i, m := range matches {
		results[i] = normalizeImage(m)
	}
	return results, nil
}

// search is the shared skeleton. Matches come back in store order:
// descending score, ties left as the backend returned them.
func (s *Service) search(
	ctx context.Context, queryText string, topK, defaultTopK int, contentType domain.ContentType,
) ([]domain.Match, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	vec, err := s.embed.EmbedText(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	matches, err := s.store.Query(ctx, &store.Query{
		Vector:          vec,
		TopK:            topK,
		ContentType:     contentType,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return matches, nil
}
