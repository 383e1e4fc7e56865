package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/clipdex/internal/domain"
)

func newTestEmbedder(t *testing.T, handler http.HandlerFunc, dims int) *Embedder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/v1",
		Model:      "clip-ViT-B-32-multilingual-v1",
		Dimensions: dims,
	})
}

func embeddingsResponse(vectors ...[]float32) map[string]any {
	data := make([]map[string]any, len(vectors))
	for i, v := range vectors {
		data[i] = map[string]any{"object": "embedding", "index": i, "embedding": v}
	}
	return map[string]any{"object": "list", "data": data}
}

func TestEmbedText(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(embeddingsResponse([]float32{0.1, 0.2, 0.3}))
	}, 3)

	vec, err := e.EmbedText(context.Background(), "red bicycle")
	if err != nil {
		t.Fatalf("EmbedText: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3 dims, got %d", len(vec))
	}
}

func TestEmbedText_EmptyResponse(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embeddingsResponse())
	}, 3)

	_, err := e.EmbedText(context.Background(), "query")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestEmbedText_DimensionMismatch(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embeddingsResponse([]float32{0.1, 0.2}))
	}, 512)

	_, err := e.EmbedText(context.Background(), "query")
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected dim mismatch, got %v", err)
	}
}

func TestEmbedText_APIError(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"model not found"}`, http.StatusNotFound)
	}, 3)

	_, err := e.EmbedText(context.Background(), "query")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Errorf("expected detail in error, got %v", err)
	}
}

func TestParseAPIError_RequestError(t *testing.T) {
	err := parseAPIError(&openai.RequestError{
		HTTPStatusCode: 422,
		Body:           []byte(`{"detail":"input too long"}`),
	})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if !strings.Contains(err.Error(), "input too long") {
		t.Errorf("expected detail extracted, got %v", err)
	}
	if !strings.Contains(err.Error(), "422") {
		t.Errorf("expected status code in message, got %v", err)
	}
}

func TestParseAPIError_APIError(t *testing.T) {
	err := parseAPIError(&openai.APIError{
		HTTPStatusCode: 429,
		Message:        "rate limit exceeded",
	})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestParseAPIError_Unknown(t *testing.T) {
	err := parseAPIError(errors.New("dial tcp: connection refused"))
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestExtractDetail(t *testing.T) {
	if got := extractDetail([]byte(`{"detail":"bad input"}`)); got != "bad input" {
		t.Errorf("expected detail, got %q", got)
	}
	if got := extractDetail([]byte(`not json`)); got != "" {
		t.Errorf("expected empty for invalid json, got %q", got)
	}
	if got := extractDetail([]byte(`{"error":"other shape"}`)); got != "" {
		t.Errorf("expected empty when no detail field, got %q", got)
	}
}
