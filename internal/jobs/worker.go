package jobs

import (
	"context"
	"log/slog"
	"time"
)

// JobProcessor runs one unit of periodic work.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker calls its processor on every tick until stopped.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	runOnStart   bool
	logger       *slog.Logger
	stopChan     chan struct{}
	doneChan     chan struct{}
}

type WorkerOption func(*Worker)

// WithRunOnStart processes once before the first tick.
func WithRunOnStart() WorkerOption {
	return func(w *Worker) {
		w.runOnStart = true
	}
}

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWorker creates a new Worker instance
func NewWorker(processor JobProcessor, pollInterval time.Duration, opts ...WorkerOption) *Worker {
	w := &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		logger:       slog.Default(),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start blocks, processing on each tick until ctx is done or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	w.logger.InfoContext(ctx, "worker started", "poll_interval", w.pollInterval.String())

	if w.runOnStart {
		w.process(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped", "reason", "context cancelled")
			return
		case <-w.stopChan:
			w.logger.Info("worker stopped", "reason", "stop signal received")
			return
		case <-ticker.C:
			w.process(ctx)
		}
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	w.logger.Info("worker shutdown complete")
}

func (w *Worker) process(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil {
		w.logger.ErrorContext(ctx, "error processing jobs", "error", err)
	}
}
