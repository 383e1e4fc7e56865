package redis

import (
	"context"
	"strconv"

	"github.com/kailas-cloud/clipdex/internal/domain"
	"github.com/kailas-cloud/clipdex/internal/store"
)

// EnsureIndex creates the media FT index if it does not exist yet.
// Schema: type TAG pre-filter + HNSW cosine vector field. Safe to call on
// every startup.
func (s *Store) EnsureIndex(ctx context.Context) error {
	exists, err := s.indexExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	m := s.cfg.HNSWM
	if m <= 0 {
		m = 16
	}
	ef := s.cfg.HNSWEFConstruct
	if ef <= 0 {
		ef = 200
	}

	// FT.CREATE wants the vector attribute count ahead of the attributes;
	// derive it from the slice so the two can never drift apart.
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(s.cfg.Dimension),
		"DISTANCE_METRIC", "COSINE",
		"M", strconv.Itoa(m),
		"EF_CONSTRUCTION", strconv.Itoa(ef),
	}

	args := []string{
		s.cfg.IndexName,
		"ON", "HASH",
		"PREFIX", "1", s.cfg.KeyPrefix,
		"SCHEMA",
		domain.FieldType, "TAG",
		domain.FieldFilename, "TAG",
		vectorField, "VECTOR", "HNSW", strconv.Itoa(len(attrs)),
	}
	args = append(args, attrs...)

	cmd := s.client.B().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return &store.Error{Op: store.OpCreate, Err: err}
	}
	return nil
}

// indexExists probes via FT.INFO; "unknown index name" means absent.
func (s *Store) indexExists(ctx context.Context) (bool, error) {
	cmd := s.client.B().Arbitrary("FT.INFO").Args(s.cfg.IndexName).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return false, nil
		}
		return false, &store.Error{Op: store.OpCreate, Err: err}
	}
	return true, nil
}
