package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cloo-solutions/witsync/internal/domain"
	"github.com/cloo-solutions/witsync/internal/pagination"
	"go.etcd.io/bbolt"
)

const defaultRunLimit = 20

// RunStore persists sync run history in the same file as the chunks.
type RunStore struct {
	db *bbolt.DB
}

// Runs returns the sync run repository of this store.
func (s *Store) Runs() *RunStore {
	return &RunStore{db: s.db}
}

func (r *RunStore) Create(ctx context.Context, run *domain.SyncRun) error {
	if err := domain.ValidateSyncRun(run); err != nil {
		return err
	}
	return r.put(ctx, run, false)
}

func (r *RunStore) Update(ctx context.Context, run *domain.SyncRun) error {
	if err := domain.ValidateSyncRun(run); err != nil {
		return err
	}
	return r.put(ctx, run, true)
}

func (r *RunStore) put(ctx context.Context, run *domain.SyncRun, mustExist bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode sync run: %w", err)
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		if mustExist && b.Get([]byte(run.ID)) == nil {
			return domain.ErrSyncRunNotFound
		}
		return b.Put([]byte(run.ID), data)
	})
}

func (r *RunStore) GetByID(ctx context.Context, id string) (*domain.SyncRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var run domain.SyncRun
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRuns).Get([]byte(id))
		if data == nil {
			return domain.ErrSyncRunNotFound
		}
		return json.Unmarshal(data, &run)
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRecent returns up to limit runs older than cursor, newest first.
func (r *RunStore) ListRecent(ctx context.Context, cursor *pagination.Cursor, limit int) ([]*domain.SyncRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultRunLimit
	}

	runs := []*domain.SyncRun{}
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(_, v []byte) error {
			var run domain.SyncRun
			if err := json.Unmarshal(v, &run); err != nil {
				return err
			}
			if cursor.After(run.StartedAt, run.ID) {
				runs = append(runs, &run)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID > runs[j].ID
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
