//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/cloo-solutions/witsync/internal/domain"
	"github.com/cloo-solutions/witsync/internal/service"
	"github.com/cloo-solutions/witsync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ service.VectorStore       = (*ChunkRepository)(nil)
	_ service.ChunkLister       = (*ChunkRepository)(nil)
	_ service.StoreTxRunner     = (*TxRunner)(nil)
	_ service.SyncRunRepository = (*SyncRunRepository)(nil)
)

func chunk(workItemID int, idx domain.ChunkIndex, created string) domain.StoredChunk {
	rec := domain.ChunkRecord{
		ID:            workItemID,
		ChunkIndex:    idx,
		EmbeddingText: "text for " + idx.String(),
		Metadata:      domain.ChunkMetadata{Title: "Title", Section: domain.SectionMain, CreatedDate: created},
	}
	return rec.ToStoredChunk()
}

func TestChunkRepository_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	pool := testutil.NewTestPool(ctx, t, testutil.StartPostgres(ctx, t))

	repo := NewChunkRepository(pool)

	c := chunk(10, domain.MainIndex(0), "2025-01-01T00:00:00Z")
	c.Embedding = []float32{0.1, 0.2, 0.3}
	require.NoError(t, repo.Upsert(ctx, []domain.StoredChunk{c}))

	got, err := repo.Get(ctx, "10_0")
	require.NoError(t, err)
	assert.Equal(t, 10, got.WorkItemID)
	assert.Equal(t, "0", got.ChunkIndex)
	assert.Equal(t, c.Document, got.Document)
	assert.Equal(t, "Title", got.Metadata["title"])
	assert.InDeltaSlice(t, c.Embedding, got.Embedding, 1e-6)

	c.Document = "rewritten"
	c.Embedding = nil
	require.NoError(t, repo.Upsert(ctx, []domain.StoredChunk{c}))

	got, err = repo.Get(ctx, "10_0")
	require.NoError(t, err)
	assert.Equal(t, "rewritten", got.Document)
	assert.Nil(t, got.Embedding)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestChunkRepository_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	pool := testutil.NewTestPool(ctx, t, testutil.StartPostgres(ctx, t))

	repo := NewChunkRepository(pool)
	require.NoError(t, repo.Upsert(ctx, []domain.StoredChunk{
		chunk(1, domain.MainIndex(0), "2025-01-01T00:00:00Z"),
		chunk(1, domain.CommentIndex(0, 0), "2025-01-02T00:00:00Z"),
		chunk(12, domain.MainIndex(0), "2025-01-03T00:00:00Z"),
	}))

	ids, err := repo.ListStoreIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"1_0", "1_c0_0"}, ids)

	deleted, err := repo.DeleteByStoreIDs(ctx, []string{"1_c0_0", "missing"})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	deleted, err = repo.DeleteByStoreIDs(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	deleted, err = repo.DeleteByWorkItemID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	ids, err = repo.ListStoreIDs(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, []string{"12_0"}, ids)
}

func TestChunkRepository_ScanMetadataValues(t *testing.T) {
	ctx := context.Background()
	pool := testutil.NewTestPool(ctx, t, testutil.StartPostgres(ctx, t))

	repo := NewChunkRepository(pool)
	require.NoError(t, repo.Upsert(ctx, []domain.StoredChunk{
		chunk(1, domain.MainIndex(0), "2025-01-01T00:00:00Z"),
		chunk(2, domain.MainIndex(0), ""),
	}))

	values, err := repo.ScanMetadataValues(ctx, []string{domain.MetaCreatedDate})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-01T00:00:00Z"}, values)

	watermark, err := service.NewWatermarkTracker(repo).LatestKnownTimestamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01T00:00:00Z", domain.FormatISO(watermark))
}

func TestTxRunner_WithStoreTx(t *testing.T) {
	ctx := context.Background()
	pool := testutil.NewTestPool(ctx, t, testutil.StartPostgres(ctx, t))

	runner := NewTxRunner(pool)
	repo := NewChunkRepository(pool)

	t.Run("rollback on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := runner.WithStoreTx(ctx, func(store service.VectorStore) error {
			require.NoError(t, store.Upsert(ctx, []domain.StoredChunk{chunk(5, domain.MainIndex(0), "")}))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("commit on success", func(t *testing.T) {
		err := runner.WithStoreTx(ctx, func(store service.VectorStore) error {
			return store.Upsert(ctx, []domain.StoredChunk{chunk(5, domain.MainIndex(0), "")})
		})
		require.NoError(t, err)

		ids, err := repo.ListStoreIDs(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"5_0"}, ids)
	})

	t.Run("reconcile shrinks item inside transaction", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		require.NoError(t, repo.Upsert(ctx, []domain.StoredChunk{
			chunk(7, domain.MainIndex(0), ""),
			chunk(7, domain.MainIndex(1), ""),
			chunk(7, domain.MainIndex(2), ""),
		}))

		reconciler := service.NewReconciler(repo, service.WithStoreTx(runner))
		stats, err := reconciler.Reconcile(ctx, map[int][]domain.ChunkRecord{
			7: {{ID: 7, ChunkIndex: domain.MainIndex(0), EmbeddingText: "short now"}},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Upserted)
		assert.Equal(t, 2, stats.Deleted)

		ids, err := repo.ListStoreIDs(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, []string{"7_0"}, ids)
	})
}
