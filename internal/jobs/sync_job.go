package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cloo-solutions/witsync/internal/domain"
)

// SyncRunner performs one incremental sync.
type SyncRunner interface {
	Run(ctx context.Context) (*domain.SyncRun, error)
}

// SyncJob adapts a SyncRunner to the Worker.
type SyncJob struct {
	runner SyncRunner
	logger *slog.Logger
}

func NewSyncJob(runner SyncRunner, logger *slog.Logger) *SyncJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncJob{runner: runner, logger: logger}
}

// ProcessJobs runs a sync. A tick that overlaps a running sync is skipped.
func (j *SyncJob) ProcessJobs(ctx context.Context) error {
	run, err := j.runner.Run(ctx)
	if errors.Is(err, domain.ErrSyncInProgress) {
		j.logger.InfoContext(ctx, "sync already in progress, skipping tick")
		return nil
	}
	if err != nil {
		return err
	}
	j.logger.InfoContext(ctx, "scheduled sync finished", "run_id", run.ID, "status", string(run.Status))
	return nil
}
