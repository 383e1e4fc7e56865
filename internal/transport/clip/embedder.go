// Package clip provides the image-side embedder against a CLIP inference
// server (clip-vit-base-patch32, 512-dim vectors). The server exposes a
// plain JSON API: POST /embed/image with a base64 payload.
package clip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"os"
	"time"

	// Decoders registered for the decodability check.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clipdex/internal/domain"
	"github.com/kailas-cloud/clipdex/internal/metrics"
)

// Compile-time check: Embedder satisfies the image contract.
var _ domain.ImageEmbedder = (*Embedder)(nil)

// Embedder posts image bytes to a CLIP inference server.
type Embedder struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
	logger     *zap.Logger
}

// Config holds the CLIP inference server settings.
type Config struct {
	BaseURL    string
	Model      string
	Dimensions int
	Client     *http.Client
	Logger     *zap.Logger
}

// NewEmbedder creates a CLIP image embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		client:     client,
		logger:     logger,
	}
}

type embedRequest struct {
	Model string `json:"model"`
	// Image is the base64-encoded file content. The server decodes and
	// normalizes it to 3-channel RGB before encoding.
	Image  string `json:"image"`
	Format string `json:"format"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// EmbedImage implements domain.ImageEmbedder. The file must be decodable
// as an image; undecodable input fails before any network call.
func (e *Embedder) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	// Reject corrupt or non-image input locally instead of burning an
	// inference call on it.
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		metrics.EmbeddingErrorsTotal.WithLabelValues("image", e.model, "undecodable").Inc()
		return nil, fmt.Errorf("decode image %s: %v: %w", path, err, domain.ErrEmbeddingProviderError)
	}

	body, err := json.Marshal(embedRequest{
		Model:  e.model,
		Image:  base64.StdEncoding.EncodeToString(data),
		Format: format,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed/image", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()

	resp, err := e.client.Do(req)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("image", e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues("image", e.model, "api_error").Inc()
		return nil, fmt.Errorf("do request: %w: %w", err, domain.ErrEmbeddingProviderError)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.EmbeddingRequestsTotal.WithLabelValues("image", e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues("image", e.model, "api_error").Inc()
		return nil, fmt.Errorf("clip server: status %d: %w", resp.StatusCode, domain.ErrEmbeddingProviderError)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		metrics.EmbeddingErrorsTotal.WithLabelValues("image", e.model, "bad_response").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Embedding) == 0 {
		metrics.EmbeddingErrorsTotal.WithLabelValues("image", e.model, "empty_response").Inc()
		return nil, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}
	if e.dimensions > 0 && len(result.Embedding) != e.dimensions {
		metrics.EmbeddingErrorsTotal.WithLabelValues("image", e.model, "dim_mismatch").Inc()
		return nil, fmt.Errorf("%w: model returned %d, expected %d",
			domain.ErrVectorDimMismatch, len(result.Embedding), e.dimensions)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("image", e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues("image", e.model).Observe(time.Since(start).Seconds())

	return result.Embedding, nil
}

// HealthCheck verifies the inference server responds.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("clip server health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("clip server health: status %d", resp.StatusCode)
	}
	return nil
}
