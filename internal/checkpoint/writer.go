package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/cloo-solutions/witsync/internal/domain"
)

// Archiver uploads checkpoint payloads to remote storage.
type Archiver interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	Key(name string) string
}

// Writer saves one records file per sync run and optionally archives it.
type Writer struct {
	dir      string
	archiver Archiver
	logger   *slog.Logger
}

// NewWriter creates a Writer rooted at dir. archiver may be nil.
func NewWriter(dir string, archiver Archiver, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{dir: dir, archiver: archiver, logger: logger}
}

// FileName returns the records file name for a run.
func FileName(runID string) string {
	return fmt.Sprintf("records_%s.json", runID)
}

// SaveCheckpoint writes the records of runID to disk, then to the archive.
func (w *Writer) SaveCheckpoint(ctx context.Context, runID string, records []domain.ChunkRecord) error {
	data, err := EncodeRecords(records)
	if err != nil {
		return err
	}

	name := FileName(runID)
	path := filepath.Join(w.dir, name)
	if err := writeFile(path, data); err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "checkpoint written", "path", path, "records", len(records))

	if w.archiver == nil {
		return nil
	}

	key := w.archiver.Key(name)
	if err := w.archiver.PutObject(ctx, key, data, "application/json"); err != nil {
		return fmt.Errorf("failed to archive checkpoint: %w", err)
	}
	w.logger.InfoContext(ctx, "checkpoint archived", "key", key)
	return nil
}
