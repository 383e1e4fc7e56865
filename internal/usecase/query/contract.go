package query

import (
	"context"

	"github.com/kailas-cloud/clipdex/internal/domain"
	"github.com/kailas-cloud/clipdex/internal/store"
)

// Searcher is the vector store contract the query service consumes.
type Searcher interface {
	Query(ctx context.Context, q *store.Query) ([]domain.Match, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}
