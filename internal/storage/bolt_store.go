package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/rest-records-fetcher/internal/domain"
	bolt "go.etcd.io/bbolt"
)

const (
	batchBucket      = "batches"
	expiryValueBytes = 8
	keyBytes         = 8
)

// boltStore implements a Store backed by BoltDB.
// Keys are big-endian fetch timestamps so cursor order is fetch order.
// Values are an 8-byte expiry followed by the JSON-encoded batch.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	batchTTL        time.Duration
	cleanupInterval time.Duration
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(batchBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		batchTTL:        opts.BatchTTL,
		cleanupInterval: opts.CleanupInterval,
	}
	store.lastCleanup.Store(time.Now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// RecordBatch appends the batch to the history.
func (b *boltStore) RecordBatch(batch domain.Batch) error {
	if b == nil || b.db == nil {
		return nil
	}

	now := time.Now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	fetchedAt := batch.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = now
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	value := make([]byte, expiryValueBytes+len(payload))
	binary.BigEndian.PutUint64(value, uint64(now.Add(b.batchTTL).Unix()))
	copy(value[expiryValueBytes:], payload)

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(batchBucket))
		if bucket == nil {
			return fmt.Errorf("batch bucket missing")
		}
		return bucket.Put(encodeKey(fetchedAt), value)
	})
}

// LastBatch returns the most recently fetched batch that has not expired.
func (b *boltStore) LastBatch() (domain.Batch, bool, error) {
	if b == nil || b.db == nil {
		return domain.Batch{}, false, nil
	}

	var (
		out   domain.Batch
		found bool
	)
	now := time.Now()
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(batchBucket))
		if bucket == nil {
			return fmt.Errorf("batch bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil; k, v = cursor.Prev() {
			expiry, ok := decodeExpiry(v)
			if !ok || !expiry.After(now) {
				continue
			}
			if err := json.Unmarshal(v[expiryValueBytes:], &out); err != nil {
				return fmt.Errorf("decode batch: %w", err)
			}
			found = true
			return nil
		}
		return nil
	})
	return out, found, err
}

// maybeCleanupExpired removes expired batches on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(batchBucket))
		if bucket == nil {
			return fmt.Errorf("batch bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			expiry, ok := decodeExpiry(v)
			if !ok || !expiry.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func encodeKey(t time.Time) []byte {
	key := make([]byte, keyBytes)
	binary.BigEndian.PutUint64(key, uint64(t.UnixNano()))
	return key
}

// decodeExpiry decodes the expiry prefix from the stored value.
func decodeExpiry(value []byte) (time.Time, bool) {
	if len(value) < expiryValueBytes {
		return time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value[:expiryValueBytes]))
	if unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}
