package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/cloo-solutions/witsync/internal/domain"
	"github.com/cloo-solutions/witsync/internal/telemetry"
)

// ReconcileMode selects how stale entries of a re-synced work item are removed.
type ReconcileMode string

const (
	// ReconcileDiff lists stored ids, upserts the fresh set and deletes the rest.
	ReconcileDiff ReconcileMode = "diff"
	// ReconcileReplace deletes every entry of the work item before upserting.
	ReconcileReplace ReconcileMode = "replace"
	// ReconcileUpsert only upserts; entries beyond a shrunk chunk count remain.
	ReconcileUpsert ReconcileMode = "upsert"
)

// ParseReconcileMode parses a mode name. Empty selects ReconcileDiff.
func ParseReconcileMode(s string) (ReconcileMode, error) {
	switch ReconcileMode(s) {
	case "":
		return ReconcileDiff, nil
	case ReconcileDiff, ReconcileReplace, ReconcileUpsert:
		return ReconcileMode(s), nil
	default:
		return "", domain.ErrInvalidReconcileMode.Wrap(fmt.Errorf("%q", s))
	}
}

// ReconcileStats summarizes a reconcile pass.
type ReconcileStats struct {
	WorkItems int
	Upserted  int
	Deleted   int
	Degraded  int
}

func (s *ReconcileStats) add(o ReconcileStats) {
	s.WorkItems += o.WorkItems
	s.Upserted += o.Upserted
	s.Deleted += o.Deleted
	s.Degraded += o.Degraded
}

// ReconcileOption configures a Reconciler.
type ReconcileOption func(*Reconciler)

// WithMode sets the reconcile strategy.
func WithMode(mode ReconcileMode) ReconcileOption {
	return func(r *Reconciler) {
		if mode != "" {
			r.mode = mode
		}
	}
}

// WithEmbedder embeds every record before it is upserted.
func WithEmbedder(e Embedder) ReconcileOption {
	return func(r *Reconciler) {
		r.embedder = e
	}
}

// WithStoreTx runs each work item inside one store transaction.
func WithStoreTx(tx StoreTxRunner) ReconcileOption {
	return func(r *Reconciler) {
		r.tx = tx
	}
}

// WithReconcileLogger sets the logger. Default is slog.Default().
func WithReconcileLogger(logger *slog.Logger) ReconcileOption {
	return func(r *Reconciler) {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
	}
}

// Reconciler writes fresh chunk sets to a vector store so that no stale or
// duplicate entries survive for a re-synced work item.
type Reconciler struct {
	store    VectorStore
	mode     ReconcileMode
	embedder Embedder
	tx       StoreTxRunner
	logger   *slog.Logger
}

func NewReconciler(store VectorStore, opts ...ReconcileOption) *Reconciler {
	r := &Reconciler{
		store:  store,
		mode:   ReconcileDiff,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mode returns the configured strategy.
func (r *Reconciler) Mode() ReconcileMode {
	return r.mode
}

// Reconcile processes work items in ascending id order. A work item with an
// empty record set has all of its entries removed. Upsert and embedding
// failures abort the pass; lookup failures degrade the item to upsert-only.
func (r *Reconciler) Reconcile(ctx context.Context, recordsByWorkItem map[int][]domain.ChunkRecord) (ReconcileStats, error) {
	var stats ReconcileStats

	ids := make([]int, 0, len(recordsByWorkItem))
	for id := range recordsByWorkItem {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		itemStats, err := r.reconcileItem(ctx, id, recordsByWorkItem[id])
		if err != nil {
			return stats, fmt.Errorf("failed to reconcile work item %d: %w", id, err)
		}
		stats.add(itemStats)
	}

	return stats, nil
}

func (r *Reconciler) reconcileItem(ctx context.Context, workItemID int, records []domain.ChunkRecord) (ReconcileStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "Reconciler.ReconcileItem", telemetry.SpanAttributes{
		WorkItemID: workItemID,
		Mode:       string(r.mode),
		Operation:  "reconcile",
	})
	defer span.End()

	chunks, err := r.prepare(ctx, records)
	if err != nil {
		span.SetError(err)
		return ReconcileStats{}, err
	}

	var stats ReconcileStats
	apply := func(store VectorStore) error {
		stats, err = r.apply(ctx, store, workItemID, chunks)
		return err
	}

	if r.tx != nil {
		err = r.tx.WithStoreTx(ctx, apply)
	} else {
		err = apply(r.store)
	}
	if err != nil {
		span.SetError(err)
		return ReconcileStats{}, err
	}

	return stats, nil
}

func (r *Reconciler) prepare(ctx context.Context, records []domain.ChunkRecord) ([]domain.StoredChunk, error) {
	chunks := make([]domain.StoredChunk, 0, len(records))
	for _, rec := range records {
		chunk := rec.ToStoredChunk()
		if r.embedder != nil {
			embedding, err := r.embedder.GenerateEmbedding(ctx, chunk.Document)
			if err != nil {
				return nil, fmt.Errorf("failed to generate embedding for %s: %w", chunk.StoreID, err)
			}
			chunk.Embedding = embedding
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func (r *Reconciler) apply(ctx context.Context, store VectorStore, workItemID int, chunks []domain.StoredChunk) (ReconcileStats, error) {
	stats := ReconcileStats{WorkItems: 1}

	switch r.mode {
	case ReconcileReplace:
		deleted, err := store.DeleteByWorkItemID(ctx, workItemID)
		if err != nil {
			r.degrade(ctx, &stats, workItemID, err)
		}
		stats.Deleted += deleted
		if err := upsert(ctx, store, chunks); err != nil {
			return stats, err
		}

	case ReconcileUpsert:
		if err := upsert(ctx, store, chunks); err != nil {
			return stats, err
		}

	default:
		lister, ok := store.(ChunkLister)
		if !ok {
			r.degrade(ctx, &stats, workItemID, domain.ErrStoreLookupUnsupported)
			if err := upsert(ctx, store, chunks); err != nil {
				return stats, err
			}
			break
		}

		existing, listErr := lister.ListStoreIDs(ctx, workItemID)
		if listErr != nil {
			r.degrade(ctx, &stats, workItemID, listErr)
		}

		if err := upsert(ctx, store, chunks); err != nil {
			return stats, err
		}

		if listErr == nil {
			if stale := staleIDs(existing, chunks); len(stale) > 0 {
				deleted, err := lister.DeleteByStoreIDs(ctx, stale)
				if err != nil {
					r.degrade(ctx, &stats, workItemID, err)
				}
				stats.Deleted += deleted
			}
		}
	}

	stats.Upserted = len(chunks)
	return stats, nil
}

func (r *Reconciler) degrade(ctx context.Context, stats *ReconcileStats, workItemID int, cause error) {
	if stats.Degraded > 0 {
		return
	}
	stats.Degraded = 1
	r.logger.WarnContext(ctx, "store lookup failed, falling back to upsert only",
		"work_item_id", workItemID,
		"mode", string(r.mode),
		"error", cause,
	)
	telemetry.AddBreadcrumb(ctx, "reconcile", fmt.Sprintf("work item %d degraded to upsert only: %v", workItemID, cause))
}

func upsert(ctx context.Context, store VectorStore, chunks []domain.StoredChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := store.Upsert(ctx, chunks); err != nil {
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}
	return nil
}

// staleIDs returns stored ids absent from the fresh chunk set, sorted.
func staleIDs(existing []string, fresh []domain.StoredChunk) []string {
	keep := make(map[string]struct{}, len(fresh))
	for _, c := range fresh {
		keep[c.StoreID] = struct{}{}
	}

	var stale []string
	for _, id := range existing {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	slices.Sort(stale)
	return slices.Compact(stale)
}
