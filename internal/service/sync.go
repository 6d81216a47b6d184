package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cloo-solutions/witsync/internal/domain"
	"github.com/cloo-solutions/witsync/internal/pagination"
	"github.com/cloo-solutions/witsync/internal/telemetry"
	"github.com/google/uuid"
)

// DefaultLookback is the safety buffer subtracted from the watermark.
const DefaultLookback = 72 * time.Hour

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// CheckpointSink persists the records of a run before they are reconciled.
type CheckpointSink interface {
	SaveCheckpoint(ctx context.Context, runID string, records []domain.ChunkRecord) error
}

// SyncOption configures a SyncService.
type SyncOption func(*SyncService)

// WithLookback sets the buffer subtracted from the watermark.
func WithLookback(d time.Duration) SyncOption {
	return func(s *SyncService) {
		if d >= 0 {
			s.lookback = d
		}
	}
}

// WithInitialSince sets the fetch start used when the store is empty.
func WithInitialSince(t time.Time) SyncOption {
	return func(s *SyncService) {
		s.initialSince = t.UTC()
	}
}

// WithRunRepository records every run.
func WithRunRepository(repo SyncRunRepository) SyncOption {
	return func(s *SyncService) {
		s.runs = repo
	}
}

// WithCheckpoint writes built records before reconciliation.
func WithCheckpoint(sink CheckpointSink) SyncOption {
	return func(s *SyncService) {
		s.checkpoint = sink
	}
}

// WithSyncLogger sets the logger. Default is slog.Default().
func WithSyncLogger(logger *slog.Logger) SyncOption {
	return func(s *SyncService) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) SyncOption {
	return func(s *SyncService) {
		s.now = now
	}
}

// WithIDGenerator overrides run id generation.
func WithIDGenerator(gen UUIDGenerator) SyncOption {
	return func(s *SyncService) {
		s.ids = gen
	}
}

// SyncService runs one incremental sync: watermark, fetch, build, reconcile.
type SyncService struct {
	source     ItemSource
	builder    *RecordBuilder
	watermark  *WatermarkTracker
	reconciler *Reconciler

	runs         SyncRunRepository
	checkpoint   CheckpointSink
	lookback     time.Duration
	initialSince time.Time
	now          func() time.Time
	ids          UUIDGenerator
	logger       *slog.Logger

	mu sync.Mutex
}

func NewSyncService(
	source ItemSource,
	builder *RecordBuilder,
	watermark *WatermarkTracker,
	reconciler *Reconciler,
	opts ...SyncOption,
) *SyncService {
	s := &SyncService{
		source:     source,
		builder:    builder,
		watermark:  watermark,
		reconciler: reconciler,
		lookback:   DefaultLookback,
		now:        func() time.Time { return time.Now().UTC() },
		ids:        &DefaultUUIDGenerator{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Watermark returns the latest timestamp reflected in the store.
func (s *SyncService) Watermark(ctx context.Context) (time.Time, error) {
	return s.watermark.LatestKnownTimestamp(ctx)
}

// WindowStart returns the fetch lower bound for a given watermark.
func (s *SyncService) WindowStart(watermark time.Time) time.Time {
	return WindowStart(watermark, s.lookback, s.initialSince)
}

// Run performs one sync. Only one run executes at a time; a concurrent call
// returns domain.ErrSyncInProgress. The returned run is non-nil whenever a run
// was started, including failed ones.
func (s *SyncService) Run(ctx context.Context) (*domain.SyncRun, error) {
	if !s.mu.TryLock() {
		return nil, domain.ErrSyncInProgress
	}
	defer s.mu.Unlock()

	watermark, err := s.watermark.LatestKnownTimestamp(ctx)
	if err != nil {
		return nil, err
	}

	run := domain.NewSyncRun(s.ids.NewString(), watermark, s.WindowStart(watermark), s.now())

	ctx, span := telemetry.StartSpan(ctx, "SyncService.Run", telemetry.SpanAttributes{
		RunID:     run.ID,
		Mode:      string(s.reconciler.Mode()),
		Operation: "sync",
	})
	defer span.End()

	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			span.SetError(err)
			return nil, fmt.Errorf("failed to record sync run: %w", err)
		}
	}

	logger := s.logger.With("run_id", run.ID)
	logger.InfoContext(ctx, "sync started",
		"watermark", domain.FormatISO(run.Watermark),
		"since", domain.FormatISO(run.Since),
	)

	items, err := s.source.FetchChangedSince(ctx, run.Since)
	if err != nil {
		return s.fail(ctx, span, run, fmt.Errorf("failed to fetch work items: %w", err))
	}
	run.ItemsFetched = len(items)

	byWorkItem := make(map[int][]domain.ChunkRecord, len(items))
	var all []domain.ChunkRecord
	for _, item := range items {
		records, err := s.buildItem(ctx, item)
		if err != nil {
			run.ItemsFailed++
			logger.ErrorContext(ctx, "work item skipped", "work_item_id", item.ID, "error", err)
			telemetry.CaptureError(ctx, err)
			continue
		}
		byWorkItem[item.ID] = records
		all = append(all, records...)
	}

	if s.checkpoint != nil {
		if err := s.checkpoint.SaveCheckpoint(ctx, run.ID, all); err != nil {
			return s.fail(ctx, span, run, fmt.Errorf("failed to save checkpoint: %w", err))
		}
	}

	stats, err := s.reconciler.Reconcile(ctx, byWorkItem)
	run.ItemsSynced = stats.WorkItems
	run.ChunksWritten = stats.Upserted
	run.ChunksDeleted = stats.Deleted
	if err != nil {
		return s.fail(ctx, span, run, err)
	}

	run.Finish(s.now(), nil)
	s.record(ctx, run)

	span.SetData("items_fetched", run.ItemsFetched)
	span.SetData("items_failed", run.ItemsFailed)
	span.SetData("chunks_written", run.ChunksWritten)
	span.SetData("chunks_deleted", run.ChunksDeleted)

	logger.InfoContext(ctx, "sync completed",
		"items_fetched", run.ItemsFetched,
		"items_synced", run.ItemsSynced,
		"items_failed", run.ItemsFailed,
		"chunks_written", run.ChunksWritten,
		"chunks_deleted", run.ChunksDeleted,
		"degraded", stats.Degraded,
	)
	return run, nil
}

// Runs returns recorded sync runs older than cursor, newest first.
func (s *SyncService) Runs(ctx context.Context, cursor *pagination.Cursor, limit int) ([]*domain.SyncRun, error) {
	if s.runs == nil {
		return []*domain.SyncRun{}, nil
	}
	return s.runs.ListRecent(ctx, cursor, limit)
}

// GetRun returns a recorded sync run.
func (s *SyncService) GetRun(ctx context.Context, id string) (*domain.SyncRun, error) {
	if s.runs == nil {
		return nil, domain.ErrSyncRunNotFound
	}
	return s.runs.GetByID(ctx, id)
}

func (s *SyncService) buildItem(ctx context.Context, item domain.RawWorkItem) ([]domain.ChunkRecord, error) {
	comments, err := s.source.FetchComments(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comments for work item %d: %w", item.ID, err)
	}
	item.Comments = comments

	return s.builder.BuildRecords(item)
}

func (s *SyncService) fail(ctx context.Context, span *telemetry.Span, run *domain.SyncRun, err error) (*domain.SyncRun, error) {
	span.SetError(err)
	run.Finish(s.now(), err)
	s.record(ctx, run)
	s.logger.ErrorContext(ctx, "sync failed", "run_id", run.ID, "error", err)
	return run, err
}

func (s *SyncService) record(ctx context.Context, run *domain.SyncRun) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Update(ctx, run); err != nil {
		s.logger.ErrorContext(ctx, "failed to update sync run", "run_id", run.ID, "error", err)
	}
}
