// Package store defines the vector index contract shared by the
// ingestion and query paths. Drivers live in subpackages.
package store

import (
	"context"
	"time"

	"github.com/kailas-cloud/clipdex/internal/domain"
)

// Store is the vector index facade. Both drivers (Pinecone, Redis) satisfy
// it; consumers depend on this interface, never on a driver.
type Store interface {
	// Upsert writes a record by ID, overwriting any previous record with
	// the same ID. Fails before reaching the backend if the vector length
	// does not match the index dimension.
	Upsert(ctx context.Context, rec domain.Record) error

	// Query runs a filtered top-k cosine similarity search. Matches come
	// back ordered by descending score, at most q.TopK of them. An empty
	// result is not an error.
	Query(ctx context.Context, q *Query) ([]domain.Match, error)

	// Stats reports index state for health and debug endpoints.
	Stats(ctx context.Context) (domain.Stats, error)

	Ping(ctx context.Context) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}

// Query is the input for a similarity search.
type Query struct {
	Vector          []float32
	TopK            int
	ContentType     domain.ContentType // ContentAll or empty means no filter
	IncludeMetadata bool
}
