package redis

import "github.com/redis/rueidis"

// NewStoreForTest creates a Store with the provided rueidis client (test-only).
func NewStoreForTest(c rueidis.Client, cfg Config) *Store {
	if cfg.IndexName == "" {
		cfg.IndexName = "clipdex-media"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "clipdex:doc:"
	}
	return &Store{client: c, cfg: cfg}
}
