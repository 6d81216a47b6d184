package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/witsync/internal/domain"
)

// WatermarkTracker derives the latest timestamp already reflected in the
// store from stored chunk metadata.
type WatermarkTracker struct {
	store VectorStore
}

func NewWatermarkTracker(store VectorStore) *WatermarkTracker {
	return &WatermarkTracker{store: store}
}

// LatestKnownTimestamp returns the maximum parsable date across all stored
// date keys, or domain.EpochSentinel when nothing parses.
func (w *WatermarkTracker) LatestKnownTimestamp(ctx context.Context) (time.Time, error) {
	values, err := w.store.ScanMetadataValues(ctx, domain.DateKeys)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to scan stored dates: %w", err)
	}
	return LatestTimestamp(values), nil
}

// LatestTimestamp returns the maximum parsable value, or domain.EpochSentinel.
func LatestTimestamp(values []string) time.Time {
	latest := domain.EpochSentinel
	found := false
	for _, v := range values {
		ts, ok := domain.ParseTimestamp(v)
		if !ok {
			continue
		}
		if !found || ts.After(latest) {
			latest = ts
			found = true
		}
	}
	return latest
}

// WindowStart is the fetch lower bound for watermark. A cold store starts at
// initialSince when one is set; otherwise FetchWindowStart applies.
func WindowStart(watermark time.Time, lookback time.Duration, initialSince time.Time) time.Time {
	if !watermark.After(domain.EpochSentinel) && !initialSince.IsZero() {
		return initialSince
	}
	return FetchWindowStart(watermark, lookback)
}

// FetchWindowStart subtracts lookback from watermark, clamped at the epoch
// sentinel. The sentinel itself is returned unchanged.
func FetchWindowStart(watermark time.Time, lookback time.Duration) time.Time {
	if !watermark.After(domain.EpochSentinel) {
		return domain.EpochSentinel
	}
	since := watermark.Add(-lookback)
	if since.Before(domain.EpochSentinel) {
		return domain.EpochSentinel
	}
	return since.UTC()
}
