// Package health reports service and backend availability.
package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Unhealthy indicates a backend failure.
	Unhealthy Status = "error"
)

// Report is the health check outcome surfaced by /health.
type Report struct {
	Status      Status
	Message     string
	IndexName   string
	VectorCount int
}

// Service coordinates health checks against the store and embedder.
type Service struct {
	store     StatsReader
	embedding EmbeddingChecker
	indexName string
}

// New creates a Service. embedding can be nil.
func New(store StatsReader, embedding EmbeddingChecker, indexName string) *Service {
	return &Service{store: store, embedding: embedding, indexName: indexName}
}

// Check verifies backend connectivity by fetching index stats. Failures
// are reported in the result, never returned as an error.
func (s *Service) Check(ctx context.Context) Report {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return Report{
			Status:    Unhealthy,
			Message:   err.Error(),
			IndexName: s.indexName,
		}
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			return Report{
				Status:      Unhealthy,
				Message:     "embedding provider unreachable: " + err.Error(),
				IndexName:   s.indexName,
				VectorCount: stats.TotalVectorCount,
			}
		}
	}

	return Report{
		Status:      Healthy,
		Message:     "clipdex service is running",
		IndexName:   s.indexName,
		VectorCount: stats.TotalVectorCount,
	}
}
