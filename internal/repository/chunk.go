package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloo-solutions/witsync/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository stores work item chunks in postgres with pgvector
// embeddings.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// Upsert inserts or overwrites chunks by store id.
func (r *ChunkRepository) Upsert(ctx context.Context, chunks []domain.StoredChunk) error {
	now := time.Now().UTC()
	for _, c := range chunks {
		metadata, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", c.StoreID, err)
		}

		var embedding *pgvector.Vector
		if len(c.Embedding) > 0 {
			v := pgvector.NewVector(c.Embedding)
			embedding = &v
		}

		_, err = r.db.Exec(ctx,
			`INSERT INTO work_item_chunks
				(store_id, work_item_id, chunk_index, document, metadata, embedding, created_at, updated_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $7)
			 ON CONFLICT (store_id) DO UPDATE SET
				work_item_id = EXCLUDED.work_item_id,
				chunk_index = EXCLUDED.chunk_index,
				document = EXCLUDED.document,
				metadata = EXCLUDED.metadata,
				embedding = EXCLUDED.embedding,
				updated_at = EXCLUDED.updated_at`,
			c.StoreID,
			c.WorkItemID,
			c.ChunkIndex,
			c.Document,
			metadata,
			embedding,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", c.StoreID, err)
		}
	}
	return nil
}

// DeleteByWorkItemID removes every chunk of a work item.
func (r *ChunkRepository) DeleteByWorkItemID(ctx context.Context, workItemID int) (int, error) {
	var deleted int
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM work_item_chunks WHERE work_item_id = $1`, workItemID)
		if err != nil {
			return err
		}
		deleted = int(tag.RowsAffected())
		return nil
	})
	return deleted, err
}

// ListStoreIDs returns the store ids of a work item, sorted.
func (r *ChunkRepository) ListStoreIDs(ctx context.Context, workItemID int) ([]string, error) {
	var ids []string
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT store_id FROM work_item_chunks WHERE work_item_id = $1 ORDER BY store_id`,
			workItemID,
		)
		if err != nil {
			return err
		}
		ids, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteByStoreIDs removes the given chunks.
func (r *ChunkRepository) DeleteByStoreIDs(ctx context.Context, storeIDs []string) (int, error) {
	if len(storeIDs) == 0 {
		return 0, nil
	}
	var deleted int
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM work_item_chunks WHERE store_id = ANY($1)`, storeIDs)
		if err != nil {
			return err
		}
		deleted = int(tag.RowsAffected())
		return nil
	})
	return deleted, err
}

// ScanMetadataValues returns every non-empty metadata value stored under
// one of keys.
func (r *ChunkRepository) ScanMetadataValues(ctx context.Context, keys []string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT c.metadata->>k
		 FROM work_item_chunks c CROSS JOIN unnest($1::text[]) AS k
		 WHERE c.metadata->>k <> ''`,
		keys,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Get returns one chunk by store id.
func (r *ChunkRepository) Get(ctx context.Context, storeID string) (*domain.StoredChunk, error) {
	var (
		c         domain.StoredChunk
		metadata  []byte
		embedding *pgvector.Vector
	)
	err := r.db.QueryRow(ctx,
		`SELECT store_id, work_item_id, chunk_index, document, metadata, embedding
		 FROM work_item_chunks WHERE store_id = $1`,
		storeID,
	).Scan(&c.StoreID, &c.WorkItemID, &c.ChunkIndex, &c.Document, &metadata, &embedding)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata for %s: %w", storeID, err)
	}
	if embedding != nil {
		c.Embedding = embedding.Slice()
	}
	return &c, nil
}

// Count returns the number of stored chunks.
func (r *ChunkRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM work_item_chunks`).Scan(&n)
	return n, err
}
