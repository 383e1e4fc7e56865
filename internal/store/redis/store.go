// Package redis implements store.Store on Redis 8 via rueidis, using one
// FT index over hash records with an HNSW cosine vector field.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/clipdex/internal/domain"
	"github.com/kailas-cloud/clipdex/internal/store"
)

// Compile-time check: Store implements store.Store.
var _ store.Store = (*Store)(nil)

// Config holds connection and index parameters for the Redis store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int

	// IndexName is the FT index name (default "clipdex-media").
	IndexName string
	// KeyPrefix prefixes record keys (default "clipdex:doc:").
	KeyPrefix string
	// Dimension is the vector dimension of the index.
	Dimension int
	// HNSWM and HNSWEFConstruct tune the HNSW graph (defaults 16/200).
	HNSWM           int
	HNSWEFConstruct int
}

// Store is the rueidis-backed vector store.
type Store struct {
	client rueidis.Client
	cfg    Config
}

// NewStore creates a Redis store.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive")
	}
	if cfg.IndexName == "" {
		cfg.IndexName = "clipdex-media"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "clipdex:doc:"
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client, cfg: cfg}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: ping: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Upsert stores a record as a hash under KeyPrefix+ID. Same ID overwrites.
func (s *Store) Upsert(ctx context.Context, rec domain.Record) error {
	if len(rec.Vector) != s.cfg.Dimension {
		return fmt.Errorf("%w: got %d, index expects %d",
			domain.ErrVectorDimMismatch, len(rec.Vector), s.cfg.Dimension)
	}

	fields := metadataToFields(rec.Metadata)
	fields[vectorField] = vectorToBytes(rec.Vector)

	cmd := s.client.B().Hset().Key(s.cfg.KeyPrefix + rec.ID).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	if err := s.client.Do(ctx, cmd.Build()).Error(); err != nil {
		return &store.Error{Op: store.OpUpsert, Err: err}
	}
	return nil
}

// Stats reports the vector count via FT.SEARCH * LIMIT 0 0.
func (s *Store) Stats(ctx context.Context) (domain.Stats, error) {
	cmd := s.client.B().Arbitrary("FT.SEARCH").
		Args(s.cfg.IndexName, "*", "LIMIT", "0", "0").Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return domain.Stats{}, &store.Error{Op: store.OpStats, Err: err}
	}

	total := 0
	if len(raw) > 0 {
		if n, err := raw[0].AsInt64(); err == nil {
			total = int(n)
		}
	}
	return domain.Stats{TotalVectorCount: total, Dimension: s.cfg.Dimension}, nil
}

// metadataToFields flattens record metadata into hash string fields.
func metadataToFields(md map[string]any) map[string]string {
	fields := make(map[string]string, len(md)+1)
	for k, v := range md {
		switch t := v.(type) {
		case string:
			fields[k] = t
		case int:
			fields[k] = strconv.Itoa(t)
		case int64:
			fields[k] = strconv.FormatInt(t, 10)
		case float64:
			fields[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			fields[k] = strconv.FormatBool(t)
		default:
			fields[k] = fmt.Sprint(t)
		}
	}
	return fields
}

// numericMetaFields are metadata keys restored to numbers on read so the
// two drivers return the same metadata value types.
var numericMetaFields = map[string]bool{
	domain.FieldPageCount:  true,
	domain.FieldWordCount:  true,
	domain.FieldPageNumber: true,
}

// fieldsToMetadata rebuilds metadata from hash fields, dropping the raw
// vector blob.
func fieldsToMetadata(fields map[string]string) map[string]any {
	md := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == vectorField {
			continue
		}
		if numericMetaFields[k] {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				md[k] = f
				continue
			}
		}
		md[k] = v
	}
	return md
}

// isRedisErr checks if err is a Redis server error containing substr.
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return containsIgnoreCase(re.Error(), substr)
}

func containsIgnoreCase(s, substr string) bool {
	ls := len(s)
	lsub := len(substr)
	if lsub > ls {
		return false
	}
	for i := 0; i <= ls-lsub; i++ {
		match := true
		for j := 0; j < lsub; j++ {
			sc := s[i+j]
			tc := substr[j]
			if sc >= 'A' && sc <= 'Z' {
				sc += 'a' - 'A'
			}
			if tc >= 'A' && tc <= 'Z' {
				tc += 'a' - 'A'
			}
			if sc != tc {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
