package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/rest-records-fetcher/internal/domain"
)

// Package storage keeps an optional local history of fetched batches.

// Store records fetched batches.
type Store interface {
	Close() error
	RecordBatch(batch domain.Batch) error
	LastBatch() (domain.Batch, bool, error)
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	BatchTTL        time.Duration
	CleanupInterval time.Duration
}

const (
	defaultBatchTTL        = 24 * time.Hour
	defaultCleanupInterval = time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.BatchTTL <= 0 {
		opts.BatchTTL = defaultBatchTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                           { return nil }
func (noopStore) RecordBatch(domain.Batch) error         { return nil }
func (noopStore) LastBatch() (domain.Batch, bool, error) { return domain.Batch{}, false, nil }
