package domain

import "errors"

var (
	// ErrEmptyQuery signals a missing or empty query string.
	ErrEmptyQuery = errors.New("no query provided")
	// ErrVectorDimMismatch signals a vector whose length does not match
	// the index dimension.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrUnsupportedMedia signals a file the classifier could not
	// categorize. Treated as a skip during ingestion, not a failure.
	ErrUnsupportedMedia = errors.New("unsupported media type")
	// ErrEmbeddingProviderError signals an embedding inference failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrStoreUnavailable signals that the vector store backend cannot
	// be reached.
	ErrStoreUnavailable = errors.New("vector store unavailable")
)
