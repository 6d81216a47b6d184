package domain

import (
	"fmt"
	"time"
)

// SyncRunStatus represents the status of a sync run
type SyncRunStatus string

const (
	SyncRunStatusRunning   SyncRunStatus = "running"
	SyncRunStatusCompleted SyncRunStatus = "completed"
	SyncRunStatusFailed    SyncRunStatus = "failed"
)

// SyncRun records one incremental synchronization pass
type SyncRun struct {
	ID            string        `json:"id"`
	Status        SyncRunStatus `json:"status"`
	Since         time.Time     `json:"since"`
	Watermark     time.Time     `json:"watermark"`
	ItemsFetched  int           `json:"items_fetched"`
	ItemsSynced   int           `json:"items_synced"`
	ItemsFailed   int           `json:"items_failed"`
	ChunksWritten int           `json:"chunks_written"`
	ChunksDeleted int           `json:"chunks_deleted"`
	Error         string        `json:"error,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
}

// NewSyncRun creates a running SyncRun
func NewSyncRun(id string, watermark, since, startedAt time.Time) *SyncRun {
	return &SyncRun{
		ID:        id,
		Status:    SyncRunStatusRunning,
		Watermark: watermark,
		Since:     since,
		StartedAt: startedAt,
	}
}

// Finish marks the run completed, or failed when runErr is non-nil.
func (r *SyncRun) Finish(finishedAt time.Time, runErr error) {
	r.FinishedAt = &finishedAt
	if runErr != nil {
		r.Status = SyncRunStatusFailed
		r.Error = runErr.Error()
		return
	}
	r.Status = SyncRunStatusCompleted
}

// ValidateSyncRun validates a SyncRun instance
func ValidateSyncRun(r *SyncRun) error {
	if r == nil {
		return fmt.Errorf("sync run cannot be nil")
	}

	if r.ID == "" {
		return fmt.Errorf("sync run ID is required")
	}

	if !isValidSyncRunStatus(r.Status) {
		return ErrInvalidSyncRunStatus.Wrap(fmt.Errorf("status %q", r.Status))
	}

	if r.ItemsFetched < 0 || r.ItemsSynced < 0 || r.ItemsFailed < 0 {
		return fmt.Errorf("sync run counters cannot be negative")
	}

	if r.FinishedAt != nil && r.FinishedAt.Before(r.StartedAt) {
		return fmt.Errorf("sync run cannot finish before it starts")
	}

	return nil
}

func isValidSyncRunStatus(s SyncRunStatus) bool {
	switch s {
	case SyncRunStatusRunning, SyncRunStatusCompleted, SyncRunStatusFailed:
		return true
	}
	return false
}
