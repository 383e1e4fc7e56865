// Package ingest walks an archive of media files and loads them into the
// vector store: extract, classify, embed, upsert. A single malformed file
// never aborts the batch.
package ingest

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clipdex/internal/classify"
	"github.com/kailas-cloud/clipdex/internal/domain"
	"github.com/kailas-cloud/clipdex/internal/metrics"
	"github.com/kailas-cloud/clipdex/internal/store"
)

// metaGroup tags every record ingested from an archive batch.
const metaGroup = "zip"

// Config holds pipeline dependencies and tuning.
type Config struct {
	Store store.Store
	// Images embeds image files. Required.
	Images domain.ImageEmbedder
	// Texts embeds text files. Nil disables text ingestion; text files
	// are then skipped with a distinct reason.
	Texts domain.TextEmbedder
	// Workers bounds concurrent embed-and-upsert calls. <=1 means
	// sequential processing.
	Workers int
	// ExtractDir is where archives are unpacked. Empty uses a temp dir.
	ExtractDir string
	Logger     *zap.Logger
}

// Pipeline is the batch ingestion orchestrator.
type Pipeline struct {
	store   store.Store
	images  domain.ImageEmbedder
	texts   domain.TextEmbedder
	workers int
	workDir string
	logger  *zap.Logger
}

// New creates an ingestion pipeline.
func New(cfg Config) *Pipeline {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:   cfg.Store,
		images:  cfg.Images,
		texts:   cfg.Texts,
		workers: workers,
		workDir: cfg.ExtractDir,
		logger:  logger,
	}
}

// Run extracts archivePath and ingests every file found inside. Per-file
// failures are logged and collected into the report; only extraction
// itself is fatal. Upserts are idempotent (filename-derived IDs), so
// re-running the same archive overwrites rather than duplicates.
func (p *Pipeline) Run(ctx context.Context, archivePath string) (Report, error) {
	start := time.Now()

	dir := p.workDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "clipdex-ingest-*")
		if err != nil {
			return Report{}, fmt.Errorf("create work dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	if err := extractArchive(archivePath, dir); err != nil {
		return Report{}, fmt.Errorf("extract %s: %w", archivePath, err)
	}
	p.logger.Info("archive extracted",
		zap.String("archive", archivePath),
		zap.String("dir", dir),
	)

	paths := make(chan string, p.workers*2)
	results := make(chan FileResult, p.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				results <- p.processFile(ctx, path)
			}
		}()
	}

	var walkErr error
	go func() {
		defer close(paths)
		walkErr = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case paths <- path:
			}
			return nil
		})
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var report Report
	for r := range results {
		report.add(r)
		metrics.IngestFilesTotal.WithLabelValues(string(r.Status())).Inc()
	}
	report.Duration = time.Since(start)

	p.logger.Info("ingest complete",
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)

	if walkErr != nil {
		return report, fmt.Errorf("walk %s: %w", dir, walkErr)
	}
	return report, nil
}

// processFile classifies and ingests one file. Always returns a result,
// never propagates an error up to the batch loop.
func (p *Pipeline) processFile(ctx context.Context, path string) FileResult {
	filename := filepath.Base(path)
	start := time.Now()

	switch classify.Classify(path) {
	case classify.KindImage:
		if err := p.ingestImage(ctx, path, filename); err != nil {
			p.logger.Error("image ingest failed",
				zap.String("file", filename), zap.Error(err))
			return NewFailed(filename, err)
		}
		metrics.IngestFileDuration.Observe(time.Since(start).Seconds())
		p.logger.Info("indexed image", zap.String("file", filename))
		return NewIndexed(filename)

	case classify.KindText:
		if p.texts == nil {
			p.logger.Info("skipping text file, text ingestion disabled",
				zap.String("file", filename))
			return NewSkipped(filename, "text ingestion disabled")
		}
		res := p.ingestText(ctx, path, filename)
		if res.Status() == StatusIndexed {
			metrics.IngestFileDuration.Observe(time.Since(start).Seconds())
		}
		return res

	default:
		p.logger.Info("skipping unsupported file", zap.String("file", filename))
		return NewSkipped(filename, domain.ErrUnsupportedMedia.Error())
	}
}

func (p *Pipeline) ingestImage(ctx context.Context, path, filename string) error {
	vec, err := p.images.EmbedImage(ctx, path)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	rec := domain.Record{
		ID:     filename,
		Vector: vec,
		Metadata: map[string]any{
			domain.FieldType:     string(domain.ContentImage),
			domain.FieldFilename: filename,
			domain.FieldGroup:    metaGroup,
		},
	}
	if err := p.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

func (p *Pipeline) ingestText(ctx context.Context, path, filename string) FileResult {
	data, err := os.ReadFile(path)
	if err != nil {
		p.logger.Error("text read failed", zap.String("file", filename), zap.Error(err))
		return NewFailed(filename, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return NewSkipped(filename, "empty text file")
	}

	vec, err := p.texts.EmbedText(ctx, text)
	if err != nil {
		p.logger.Error("text embed failed", zap.String("file", filename), zap.Error(err))
		return NewFailed(filename, err)
	}

	rec := domain.Record{
		ID:     filename,
		Vector: vec,
		Metadata: map[string]any{
			domain.FieldType:     string(domain.ContentText),
			domain.FieldFilename: filename,
			domain.FieldGroup:    metaGroup,
		},
	}
	if err := p.store.Upsert(ctx, rec); err != nil {
		p.logger.Error("text upsert failed", zap.String("file", filename), zap.Error(err))
		return NewFailed(filename, err)
	}

	p.logger.Info("indexed text", zap.String("file", filename))
	return NewIndexed(filename)
}

// extractArchive unpacks a zip archive into dir, refusing entries that
// escape it.
func extractArchive(archivePath, dir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := extractEntry(f, dir); err != nil {
			return fmt.Errorf("entry %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractEntry(f *zip.File, dir string) error {
	dest := filepath.Join(dir, filepath.Clean(f.Name))
	if !strings.HasPrefix(dest, filepath.Clean(dir)+string(os.PathSeparator)) {
		return fmt.Errorf("illegal path %q", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return err
	}
	return nil
}
