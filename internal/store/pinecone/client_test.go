package pinecone

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kailas-cloud/clipdex/internal/domain"
	"github.com/kailas-cloud/clipdex/internal/store"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	st, err := New(Config{
		APIKey:    "test-key",
		Host:      srv.URL,
		Namespace: "ns1",
		Dimension: 3,
		Client:    srv.Client(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return st
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Dimension: 3}); err == nil {
		t.Error("expected error for missing host")
	}
	if _, err := New(Config{Host: "https://x"}); err == nil {
		t.Error("expected error for missing dimension")
	}
}

func TestUpsert(t *testing.T) {
	var captured upsertRequest
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vectors/upsert" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Api-Key") != "test-key" {
			t.Errorf("missing Api-Key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"upsertedCount": 1})
	})

	rec := domain.Record{
		ID:     "bike1.png",
		Vector: []float32{0.1, 0.2, 0.3},
		Metadata: map[string]any{
			domain.FieldType:     "image",
			domain.FieldFilename: "bike1.png",
			domain.FieldGroup:    "zip",
		},
	}
	if err := st.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if len(captured.Vectors) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(captured.Vectors))
	}
	if captured.Vectors[0].ID != "bike1.png" {
		t.Errorf("unexpected id %q", captured.Vectors[0].ID)
	}
	if captured.Namespace != "ns1" {
		t.Errorf("unexpected namespace %q", captured.Namespace)
	}
	if captured.Vectors[0].Metadata[domain.FieldGroup] != "zip" {
		t.Errorf("metadata not forwarded: %v", captured.Vectors[0].Metadata)
	}
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the server on a dimension mismatch")
	})

	err := st.Upsert(context.Background(), domain.Record{ID: "x", Vector: []float32{0.1}})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestQuery_FilterAndParse(t *testing.T) {
	var captured queryRequest
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"matches": []map[string]any{
				{"id": "bike1.png", "score": 0.93, "metadata": map[string]any{"type": "image"}},
				{"id": "bike2.png", "score": 0.88},
			},
		})
	})

	matches, err := st.Query(context.Background(), &store.Query{
		Vector:          []float32{0.1, 0.2, 0.3},
		TopK:            5,
		ContentType:     domain.ContentImage,
		IncludeMetadata: true,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if captured.TopK != 5 || !captured.IncludeMetadata {
		t.Errorf("unexpected request: %+v", captured)
	}
	typeFilter, ok := captured.Filter[domain.FieldType].(map[string]any)
	if !ok || typeFilter["$eq"] != "image" {
		t.Errorf("unexpected filter: %v", captured.Filter)
	}

	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != "bike1.png" || matches[0].Score != 0.93 {
		t.Errorf("unexpected match: %+v", matches[0])
	}
	// Missing metadata comes back as an empty map, not nil.
	if matches[1].Metadata == nil {
		t.Error("expected non-nil metadata for metadata-less match")
	}
}

func TestQuery_NoFilterForAll(t *testing.T) {
	var captured queryRequest
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"matches": []any{}})
	})

	if _, err := st.Query(context.Background(), &store.Query{
		Vector:      []float32{0.1, 0.2, 0.3},
		TopK:        5,
		ContentType: domain.ContentAll,
	}); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if captured.Filter != nil {
		t.Errorf("expected no filter for content type all, got %v", captured.Filter)
	}
}

func TestQuery_APIError(t *testing.T) {
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"quota exceeded"}`, http.StatusTooManyRequests)
	})

	_, err := st.Query(context.Background(), &store.Query{
		Vector: []float32{0.1, 0.2, 0.3},
		TopK:   5,
	})
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	var storeErr *store.Error
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected *store.Error, got %T", err)
	}
	if storeErr.Op != store.OpQuery {
		t.Errorf("unexpected op %q", storeErr.Op)
	}
}

func TestStats(t *testing.T) {
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/describe_index_stats" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"dimension":        512,
			"totalVectorCount": 1234,
		})
	})

	stats, err := st.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Dimension != 512 || stats.TotalVectorCount != 1234 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestPing_Unavailable(t *testing.T) {
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	err := st.Ping(context.Background())
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
