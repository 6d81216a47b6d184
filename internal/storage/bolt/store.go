// Package bolt is an embedded vector store backed by a single bbolt file.
package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cloo-solutions/witsync/internal/domain"
	"github.com/cloo-solutions/witsync/internal/service"
	"go.etcd.io/bbolt"
)

var (
	bucketChunks = []byte("chunks")
	bucketRuns   = []byte("sync_runs")
)

// Store keeps chunk entries keyed by composite store id. Keys share the
// "{workItemID}_" prefix, so a work item's entries form one cursor range.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the store file, creating parent directories.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt store %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketChunks); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketRuns); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, domain.ErrStorageOperationFail.Wrap(fmt.Errorf("init buckets: %w", err))
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type entry struct {
	StoreID    string         `json:"store_id"`
	WorkItemID int            `json:"work_item_id"`
	ChunkIndex string         `json:"chunk_index"`
	Document   string         `json:"document"`
	Metadata   map[string]any `json:"metadata"`
	Embedding  []float32      `json:"embedding,omitempty"`
}

func (e entry) chunk() domain.StoredChunk {
	return domain.StoredChunk{
		StoreID:    e.StoreID,
		WorkItemID: e.WorkItemID,
		ChunkIndex: e.ChunkIndex,
		Document:   e.Document,
		Metadata:   e.Metadata,
		Embedding:  e.Embedding,
	}
}

func (s *Store) update(ctx context.Context, fn func(t *txStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

func (s *Store) view(ctx context.Context, fn func(t *txStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

func (s *Store) Upsert(ctx context.Context, chunks []domain.StoredChunk) error {
	return s.update(ctx, func(t *txStore) error {
		return t.Upsert(ctx, chunks)
	})
}

func (s *Store) DeleteByWorkItemID(ctx context.Context, workItemID int) (int, error) {
	var n int
	err := s.update(ctx, func(t *txStore) error {
		var err error
		n, err = t.DeleteByWorkItemID(ctx, workItemID)
		return err
	})
	return n, err
}

func (s *Store) ScanMetadataValues(ctx context.Context, keys []string) ([]string, error) {
	var values []string
	err := s.view(ctx, func(t *txStore) error {
		var err error
		values, err = t.ScanMetadataValues(ctx, keys)
		return err
	})
	return values, err
}

func (s *Store) ListStoreIDs(ctx context.Context, workItemID int) ([]string, error) {
	var ids []string
	err := s.view(ctx, func(t *txStore) error {
		var err error
		ids, err = t.ListStoreIDs(ctx, workItemID)
		return err
	})
	return ids, err
}

func (s *Store) DeleteByStoreIDs(ctx context.Context, storeIDs []string) (int, error) {
	var n int
	err := s.update(ctx, func(t *txStore) error {
		var err error
		n, err = t.DeleteByStoreIDs(ctx, storeIDs)
		return err
	})
	return n, err
}

// WithStoreTx runs fn inside one read-write transaction. Returning an error
// rolls back every write fn made.
func (s *Store) WithStoreTx(ctx context.Context, fn func(store service.VectorStore) error) error {
	return s.update(ctx, func(t *txStore) error {
		return fn(t)
	})
}

// Get returns one entry by store id.
func (s *Store) Get(ctx context.Context, storeID string) (domain.StoredChunk, bool, error) {
	var (
		chunk domain.StoredChunk
		found bool
	)
	err := s.view(ctx, func(t *txStore) error {
		data := t.tx.Bucket(bucketChunks).Get([]byte(storeID))
		if data == nil {
			return nil
		}
		var e entry
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("failed to decode entry %s: %w", storeID, err)
		}
		chunk, found = e.chunk(), true
		return nil
	})
	return chunk, found, err
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.view(ctx, func(t *txStore) error {
		n = t.tx.Bucket(bucketChunks).Stats().KeyN
		return nil
	})
	return n, err
}

// txStore runs store operations inside an open bbolt transaction.
type txStore struct {
	tx *bbolt.Tx
}

func (t *txStore) Upsert(ctx context.Context, chunks []domain.StoredChunk) error {
	b := t.tx.Bucket(bucketChunks)
	for _, c := range chunks {
		data, err := json.Marshal(entry{
			StoreID:    c.StoreID,
			WorkItemID: c.WorkItemID,
			ChunkIndex: c.ChunkIndex,
			Document:   c.Document,
			Metadata:   c.Metadata,
			Embedding:  c.Embedding,
		})
		if err != nil {
			return fmt.Errorf("failed to encode entry %s: %w", c.StoreID, err)
		}
		if err := b.Put([]byte(c.StoreID), data); err != nil {
			return err
		}
	}
	return nil
}

func (t *txStore) DeleteByWorkItemID(ctx context.Context, workItemID int) (int, error) {
	ids, err := t.ListStoreIDs(ctx, workItemID)
	if err != nil {
		return 0, err
	}
	return t.DeleteByStoreIDs(ctx, ids)
}

func (t *txStore) ScanMetadataValues(ctx context.Context, keys []string) ([]string, error) {
	var values []string
	err := t.tx.Bucket(bucketChunks).ForEach(func(k, v []byte) error {
		var e entry
		if err := json.Unmarshal(v, &e); err != nil {
			return fmt.Errorf("failed to decode entry %s: %w", k, err)
		}
		for _, key := range keys {
			if s, ok := e.Metadata[key].(string); ok && s != "" {
				values = append(values, s)
			}
		}
		return nil
	})
	return values, err
}

func (t *txStore) ListStoreIDs(ctx context.Context, workItemID int) ([]string, error) {
	prefix := []byte(strconv.Itoa(workItemID) + "_")

	var ids []string
	c := t.tx.Bucket(bucketChunks).Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		ids = append(ids, string(k))
	}
	return ids, nil
}

func (t *txStore) DeleteByStoreIDs(ctx context.Context, storeIDs []string) (int, error) {
	b := t.tx.Bucket(bucketChunks)
	n := 0
	for _, id := range storeIDs {
		key := []byte(id)
		if b.Get(key) == nil {
			continue
		}
		if err := b.Delete(key); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
