package health

import (
	"context"

	"github.com/kailas-cloud/clipdex/internal/domain"
)

// StatsReader reads index statistics from the vector store.
type StatsReader interface {
	Stats(ctx context.Context) (domain.Stats, error)
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
