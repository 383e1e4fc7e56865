// clipdex-ingest loads an archive of media files into the vector index:
//
//	clipdex-ingest [-workers N] <archive.zip>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clipdex/internal/config"
	"github.com/kailas-cloud/clipdex/internal/ingest"
	logpkg "github.com/kailas-cloud/clipdex/internal/logger"
	"github.com/kailas-cloud/clipdex/internal/metrics"
	"github.com/kailas-cloud/clipdex/internal/store"
	storePinecone "github.com/kailas-cloud/clipdex/internal/store/pinecone"
	storeRedis "github.com/kailas-cloud/clipdex/internal/store/redis"
	clipEmb "github.com/kailas-cloud/clipdex/internal/transport/clip"
	openaiEmb "github.com/kailas-cloud/clipdex/internal/transport/openai"
	"github.com/kailas-cloud/clipdex/internal/version"
)

func main() {
	workers := flag.Int("workers", 0, "concurrent embed-and-upsert workers (default from config)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <archive.zip>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	archivePath := flag.Arg(0)

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting clipdex ingest",
		zap.String("version", version.Version),
		zap.String("env", env),
		zap.String("archive", archivePath),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("index_name", cfg.IndexName()),
	)

	st, err := newStore(cfg)
	if err != nil {
		logger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Vector store not ready", zap.Error(err))
	}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIngestMetrics()

	imageEmbedder := clipEmb.NewEmbedder(&clipEmb.Config{
		BaseURL:    cfg.Embedding.Image.BaseURL,
		Model:      cfg.Embedding.Image.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})

	// Text ingestion is off unless enabled: the index is image-first and
	// text records share its embedding space only when the text encoder
	// matches the configured dimension.
	var textEmbedder *openaiEmb.Embedder
	if cfg.Ingest.EnableText {
		textEmbedder = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.Text.APIKey,
			BaseURL:    cfg.Embedding.Text.BaseURL,
			Model:      cfg.Embedding.Text.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Logger:     logger,
		})
	}

	nWorkers := cfg.Ingest.Workers
	if *workers > 0 {
		nWorkers = *workers
	}

	pipelineCfg := ingest.Config{
		Store:      st,
		Images:     imageEmbedder,
		Workers:    nWorkers,
		ExtractDir: cfg.Ingest.ExtractDir,
		Logger:     logger,
	}
	if textEmbedder != nil {
		pipelineCfg.Texts = textEmbedder
	}
	pipeline := ingest.New(pipelineCfg)

	report, err := pipeline.Run(ctx, archivePath)
	if err != nil {
		logger.Fatal("Ingest failed", zap.Error(err))
	}

	logger.Info("All data embedded and upserted",
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)

	if report.Failed > 0 {
		for _, f := range report.Failures {
			logger.Warn("file failed", zap.String("file", f.Path()), zap.Error(f.Err()))
		}
		// os.Exit skips the deferred Sync/Close, so flush explicitly or
		// the failure summary can be lost with buffered JSON output.
		_ = logger.Sync()
		st.Close()
		os.Exit(1)
	}
}

// newStore creates the vector store driver selected by config. The Redis
// driver also bootstraps its FT index.
func newStore(cfg config.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case "pinecone":
		return storePinecone.New(storePinecone.Config{
			APIKey:    cfg.Database.Pinecone.APIKey,
			Host:      cfg.Database.Pinecone.Host,
			Namespace: cfg.Database.Pinecone.Namespace,
			Dimension: cfg.Embedding.Dimensions,
		})
	case "redis":
		rs, err := storeRedis.NewStore(storeRedis.Config{
			Addrs:           cfg.Database.Redis.Addrs,
			Username:        cfg.Database.Redis.Username,
			Password:        cfg.Database.Redis.Password,
			DB:              cfg.Database.Redis.DB,
			IndexName:       cfg.Database.Redis.IndexName,
			KeyPrefix:       cfg.Database.Redis.KeyPrefix,
			Dimension:       cfg.Embedding.Dimensions,
			HNSWM:           cfg.Database.Redis.HNSWM,
			HNSWEFConstruct: cfg.Database.Redis.HNSWEFConstruct,
		})
		if err != nil {
			return nil, err
		}
		if err := rs.EnsureIndex(context.Background()); err != nil {
			rs.Close()
			return nil, err
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
