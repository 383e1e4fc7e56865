package domain

import "context"

// TextEmbedder vectorizes a text string into a fixed-dimension embedding.
// Implementations must be safe for concurrent use: the query service calls
// EmbedText once per inbound request.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ImageEmbedder vectorizes the image at path into a fixed-dimension
// embedding in the same space as the index. Implementations must be safe
// for concurrent use: the ingest pipeline may call EmbedImage from a
// worker pool.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, path string) ([]float32, error)
}

// HealthChecker verifies embedding provider availability. Both embedders
// implement it; the health service consumes it through its own contract.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
