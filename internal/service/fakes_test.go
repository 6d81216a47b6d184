package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cloo-solutions/witsync/internal/domain"
	"github.com/cloo-solutions/witsync/internal/pagination"
	"github.com/stretchr/testify/mock"
)

// memStore is an in-memory VectorStore and ChunkLister.
type memStore struct {
	entries    map[string]domain.StoredChunk
	upserts    int
	failUpsert error
	failList   error
	failDelete error
	failScan   error
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]domain.StoredChunk)}
}

func (m *memStore) Upsert(ctx context.Context, chunks []domain.StoredChunk) error {
	if m.failUpsert != nil {
		return m.failUpsert
	}
	m.upserts++
	for _, c := range chunks {
		m.entries[c.StoreID] = c
	}
	return nil
}

func (m *memStore) DeleteByWorkItemID(ctx context.Context, workItemID int) (int, error) {
	if m.failDelete != nil {
		return 0, m.failDelete
	}
	n := 0
	for id, c := range m.entries {
		if c.WorkItemID == workItemID {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) ScanMetadataValues(ctx context.Context, keys []string) ([]string, error) {
	if m.failScan != nil {
		return nil, m.failScan
	}
	var values []string
	for _, c := range m.entries {
		for _, k := range keys {
			if v, ok := c.Metadata[k].(string); ok && v != "" {
				values = append(values, v)
			}
		}
	}
	return values, nil
}

func (m *memStore) ListStoreIDs(ctx context.Context, workItemID int) ([]string, error) {
	if m.failList != nil {
		return nil, m.failList
	}
	return m.idsFor(workItemID), nil
}

func (m *memStore) DeleteByStoreIDs(ctx context.Context, storeIDs []string) (int, error) {
	if m.failDelete != nil {
		return 0, m.failDelete
	}
	n := 0
	for _, id := range storeIDs {
		if _, ok := m.entries[id]; ok {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) idsFor(workItemID int) []string {
	var ids []string
	for id, c := range m.entries {
		if c.WorkItemID == workItemID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func (m *memStore) put(workItemID int, idx domain.ChunkIndex, document string, meta map[string]any) {
	id := domain.StoreID(workItemID, idx)
	m.entries[id] = domain.StoredChunk{
		StoreID:    id,
		WorkItemID: workItemID,
		ChunkIndex: idx.String(),
		Document:   document,
		Metadata:   meta,
	}
}

// plainStore hides the lister capability of memStore.
type plainStore struct {
	inner *memStore
}

func (p plainStore) Upsert(ctx context.Context, chunks []domain.StoredChunk) error {
	return p.inner.Upsert(ctx, chunks)
}

func (p plainStore) DeleteByWorkItemID(ctx context.Context, workItemID int) (int, error) {
	return p.inner.DeleteByWorkItemID(ctx, workItemID)
}

func (p plainStore) ScanMetadataValues(ctx context.Context, keys []string) ([]string, error) {
	return p.inner.ScanMetadataValues(ctx, keys)
}

// countingTx runs fn directly against store and counts transactions.
type countingTx struct {
	store VectorStore
	calls int
}

func (c *countingTx) WithStoreTx(ctx context.Context, fn func(store VectorStore) error) error {
	c.calls++
	return fn(c.store)
}

// MockEmbedder mocks the embedding client
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockItemSource mocks the upstream tracker
type MockItemSource struct {
	mock.Mock
}

func (m *MockItemSource) FetchChangedSince(ctx context.Context, since time.Time) ([]domain.RawWorkItem, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RawWorkItem), args.Error(1)
}

func (m *MockItemSource) FetchComments(ctx context.Context, workItemID int) ([]domain.RawComment, error) {
	args := m.Called(ctx, workItemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RawComment), args.Error(1)
}

// MockSyncRunRepository mocks sync run persistence
type MockSyncRunRepository struct {
	mock.Mock
}

func (m *MockSyncRunRepository) Create(ctx context.Context, run *domain.SyncRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockSyncRunRepository) Update(ctx context.Context, run *domain.SyncRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockSyncRunRepository) GetByID(ctx context.Context, id string) (*domain.SyncRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SyncRun), args.Error(1)
}

func (m *MockSyncRunRepository) ListRecent(ctx context.Context, cursor *pagination.Cursor, limit int) ([]*domain.SyncRun, error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SyncRun), args.Error(1)
}

// fixedIDs returns "run-1", "run-2", ...
type fixedIDs struct {
	n int
}

func (f *fixedIDs) NewString() string {
	f.n++
	return fmt.Sprintf("run-%d", f.n)
}

// recordingSink captures checkpointed records.
type recordingSink struct {
	runID   string
	records []domain.ChunkRecord
	err     error
}

func (r *recordingSink) SaveCheckpoint(ctx context.Context, runID string, records []domain.ChunkRecord) error {
	r.runID = runID
	r.records = records
	return r.err
}

func words(n int, prefix string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(parts, " ")
}
