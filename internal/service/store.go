package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/witsync/internal/domain"
	"github.com/cloo-solutions/witsync/internal/pagination"
)

// ItemSource yields work items from the upstream tracker.
type ItemSource interface {
	FetchChangedSince(ctx context.Context, since time.Time) ([]domain.RawWorkItem, error)
	FetchComments(ctx context.Context, workItemID int) ([]domain.RawComment, error)
}

// VectorStore persists chunk entries keyed by composite store id.
type VectorStore interface {
	Upsert(ctx context.Context, chunks []domain.StoredChunk) error
	DeleteByWorkItemID(ctx context.Context, workItemID int) (int, error)
	ScanMetadataValues(ctx context.Context, keys []string) ([]string, error)
}

// ChunkLister is implemented by stores that can enumerate the entries of a
// single work item. Without it the reconciler cannot diff.
type ChunkLister interface {
	ListStoreIDs(ctx context.Context, workItemID int) ([]string, error)
	DeleteByStoreIDs(ctx context.Context, storeIDs []string) (int, error)
}

// Embedder computes embedding vectors.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// StoreTxRunner runs fn with a store bound to a single transaction.
type StoreTxRunner interface {
	WithStoreTx(ctx context.Context, fn func(store VectorStore) error) error
}

// SyncRunRepository persists sync run history.
type SyncRunRepository interface {
	Create(ctx context.Context, run *domain.SyncRun) error
	Update(ctx context.Context, run *domain.SyncRun) error
	GetByID(ctx context.Context, id string) (*domain.SyncRun, error)
	// ListRecent returns runs older than cursor, newest first. A nil cursor
	// starts at the newest run.
	ListRecent(ctx context.Context, cursor *pagination.Cursor, limit int) ([]*domain.SyncRun, error)
}
