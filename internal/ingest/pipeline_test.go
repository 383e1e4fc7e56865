package ingest

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/clipdex/internal/domain"
	"github.com/kailas-cloud/clipdex/internal/store"
)

// --- Mocks ---

type mockVectorStore struct {
	mu      sync.Mutex
	records map[string]domain.Record
	err     error
}

func newMockVectorStore() *mockVectorStore {
	return &mockVectorStore{records: map[string]domain.Record{}}
}

func (m *mockVectorStore) Upsert(_ context.Context, rec domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *mockVectorStore) Query(_ context.Context, _ *store.Query) ([]domain.Match, error) {
	return nil, nil
}

func (m *mockVectorStore) Stats(_ context.Context) (domain.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.Stats{TotalVectorCount: len(m.records)}, nil
}

func (m *mockVectorStore) Ping(_ context.Context) error { return nil }

func (m *mockVectorStore) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

func (m *mockVectorStore) Close() {}

func (m *mockVectorStore) get(id string) (domain.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	return rec, ok
}

func (m *mockVectorStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type mockImageEmbedder struct {
	failOn map[string]bool
}

func (m *mockImageEmbedder) EmbedImage(_ context.Context, path string) ([]float32, error) {
	if m.failOn[filepath.Base(path)] {
		return nil, errors.New("cannot decode image")
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type mockTextEmbedder struct{}

func (m *mockTextEmbedder) EmbedText(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.4, 0.5, 0.6}, nil
}

// --- Helpers ---

// writeZip builds a zip archive in a temp dir from name->content pairs.
func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return path
}

// --- Tests ---

func TestRun_ImagesIndexed(t *testing.T) {
	st := newMockVectorStore()
	p := New(Config{
		Store:  st,
		Images: &mockImageEmbedder{},
	})

	archive := writeZip(t, map[string]string{
		"bike1.png": "png-bytes",
		"bike2.jpg": "jpg-bytes",
	})

	report, err := p.Run(context.Background(), archive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Indexed != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	rec, ok := st.get("bike1.png")
	if !ok {
		t.Fatal("bike1.png not upserted")
	}
	if rec.Metadata[domain.FieldType] != "image" {
		t.Errorf("expected type image, got %v", rec.Metadata[domain.FieldType])
	}
	if rec.Metadata[domain.FieldFilename] != "bike1.png" {
		t.Errorf("expected filename metadata, got %v", rec.Metadata[domain.FieldFilename])
	}
	if rec.Metadata[domain.FieldGroup] != metaGroup {
		t.Errorf("expected group %q, got %v", metaGroup, rec.Metadata[domain.FieldGroup])
	}
}

func TestRun_CorruptFileDoesNotAbortBatch(t *testing.T) {
	st := newMockVectorStore()
	p := New(Config{
		Store:  st,
		Images: &mockImageEmbedder{failOn: map[string]bool{"broken.png": true}},
	})

	archive := writeZip(t, map[string]string{
		"ok1.png":    "a",
		"broken.png": "b",
		"ok2.png":    "c",
	})

	report, err := p.Run(context.Background(), archive)
	if err != nil {
		t.Fatalf("batch must not abort on a single bad file: %v", err)
	}
	if report.Indexed != 2 {
		t.Errorf("expected 2 indexed, got %d", report.Indexed)
	}
	if report.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", report.Failed)
	}
	if len(report.Failures) != 1 || report.Failures[0].Path() != "broken.png" {
		t.Errorf("unexpected failures: %+v", report.Failures)
	}
	if _, ok := st.get("broken.png"); ok {
		t.Error("failed file must not be upserted")
	}
}

func TestRun_UnsupportedSkipped(t *testing.T) {
	st := newMockVectorStore()
	p := New(Config{
		Store:  st,
		Images: &mockImageEmbedder{},
	})

	archive := writeZip(t, map[string]string{
		"photo.png":  "a",
		"report.pdf": "b",
		"data.bin":   "c",
	})

	report, err := p.Run(context.Background(), archive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Indexed != 1 || report.Skipped != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestRun_TextDisabledByDefault(t *testing.T) {
	st := newMockVectorStore()
	p := New(Config{
		Store:  st,
		Images: &mockImageEmbedder{},
	})

	archive := writeZip(t, map[string]string{"notes.txt": "hello world"})

	report, err := p.Run(context.Background(), archive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Skipped != 1 || report.Indexed != 0 {
		t.Fatalf("expected text skipped without text embedder, got %+v", report)
	}
}

func TestRun_TextIngestion(t *testing.T) {
	st := newMockVectorStore()
	p := New(Config{
		Store:  st,
		Images: &mockImageEmbedder{},
		Texts:  &mockTextEmbedder{},
	})

	archive := writeZip(t, map[string]string{
		"notes.txt": "hello world",
		"empty.txt": "   \n",
	})

	report, err := p.Run(context.Background(), archive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Indexed != 1 {
		t.Errorf("expected 1 indexed text, got %d", report.Indexed)
	}
	if report.Skipped != 1 {
		t.Errorf("expected empty text skipped, got %d skipped", report.Skipped)
	}

	rec, ok := st.get("notes.txt")
	if !ok {
		t.Fatal("notes.txt not upserted")
	}
	if rec.Metadata[domain.FieldType] != "text" {
		t.Errorf("expected type text, got %v", rec.Metadata[domain.FieldType])
	}
}

func TestRun_Idempotent(t *testing.T) {
	st := newMockVectorStore()
	p := New(Config{
		Store:  st,
		Images: &mockImageEmbedder{},
	})

	archive := writeZip(t, map[string]string{
		"a.png": "a",
		"b.png": "b",
	})

	for i := 0; i < 2; i++ {
		if _, err := p.Run(context.Background(), archive); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if st.count() != 2 {
		t.Errorf("re-running the same archive must overwrite, not duplicate: got %d records", st.count())
	}
}

func TestRun_NestedDirectories(t *testing.T) {
	st := newMockVectorStore()
	p := New(Config{
		Store:  st,
		Images: &mockImageEmbedder{},
	})

	archive := writeZip(t, map[string]string{
		"photos/summer/beach.png": "a",
		"photos/winter/snow.jpg":  "b",
	})

	report, err := p.Run(context.Background(), archive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Indexed != 2 {
		t.Fatalf("expected nested files ingested, got %+v", report)
	}
	// IDs use the base filename, not the archive path.
	if _, ok := st.get("beach.png"); !ok {
		t.Error("expected beach.png keyed by base name")
	}
}

func TestRun_ConcurrentWorkers(t *testing.T) {
	st := newMockVectorStore()
	p := New(Config{
		Store:   st,
		Images:  &mockImageEmbedder{},
		Workers: 4,
	})

	files := map[string]string{}
	for _, n := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		files[n+".png"] = n
	}
	archive := writeZip(t, files)

	report, err := p.Run(context.Background(), archive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Indexed != len(files) {
		t.Errorf("expected %d indexed, got %d", len(files), report.Indexed)
	}
	if st.count() != len(files) {
		t.Errorf("expected %d records, got %d", len(files), st.count())
	}
}

func TestRun_MissingArchive(t *testing.T) {
	p := New(Config{
		Store:  newMockVectorStore(),
		Images: &mockImageEmbedder{},
	})

	if _, err := p.Run(context.Background(), filepath.Join(t.TempDir(), "nope.zip")); err == nil {
		t.Fatal("expected error for missing archive")
	}
}

func TestExtractEntry_RejectsEscape(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "evil.zip")

	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "../escape.png"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if err := extractArchive(zipPath, filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected zip-slip entry to be rejected")
	}
}
