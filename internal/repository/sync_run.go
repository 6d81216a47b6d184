package repository

import (
	"context"
	"errors"

	"github.com/cloo-solutions/witsync/internal/domain"
	"github.com/cloo-solutions/witsync/internal/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const syncRunColumns = `id, status, since, watermark, items_fetched, items_synced, items_failed,
	chunks_written, chunks_deleted, error, started_at, finished_at`

type SyncRunRepository struct {
	db dbtx
}

func NewSyncRunRepository(pool *pgxpool.Pool) *SyncRunRepository {
	return &SyncRunRepository{db: pool}
}

func NewSyncRunRepositoryWithTx(tx pgx.Tx) *SyncRunRepository {
	return &SyncRunRepository{db: tx}
}

func (r *SyncRunRepository) Create(ctx context.Context, run *domain.SyncRun) error {
	if err := domain.ValidateSyncRun(run); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO sync_runs (`+syncRunColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		run.ID, run.Status, run.Since, run.Watermark, run.ItemsFetched, run.ItemsSynced, run.ItemsFailed,
		run.ChunksWritten, run.ChunksDeleted, nullableString(run.Error), run.StartedAt, run.FinishedAt,
	)
	return err
}

func (r *SyncRunRepository) Update(ctx context.Context, run *domain.SyncRun) error {
	if err := domain.ValidateSyncRun(run); err != nil {
		return err
	}
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE sync_runs SET
			status = $2, items_fetched = $3, items_synced = $4, items_failed = $5,
			chunks_written = $6, chunks_deleted = $7, error = $8, finished_at = $9
		 WHERE id = $1`,
		run.ID, run.Status, run.ItemsFetched, run.ItemsSynced, run.ItemsFailed,
		run.ChunksWritten, run.ChunksDeleted, nullableString(run.Error), run.FinishedAt,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrSyncRunNotFound
	}
	return nil
}

func (r *SyncRunRepository) GetByID(ctx context.Context, id string) (*domain.SyncRun, error) {
	run, err := scanSyncRun(r.db.QueryRow(ctx,
		`SELECT `+syncRunColumns+` FROM sync_runs WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSyncRunNotFound
		}
		return nil, err
	}
	return run, nil
}

// ListRecent returns up to limit runs older than cursor, newest first.
func (r *SyncRunRepository) ListRecent(ctx context.Context, cursor *pagination.Cursor, limit int) ([]*domain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	var (
		rows pgx.Rows
		err  error
	)
	if cursor == nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+syncRunColumns+` FROM sync_runs ORDER BY started_at DESC, id DESC LIMIT $1`,
			limit,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+syncRunColumns+` FROM sync_runs
			WHERE (started_at, id) < ($1, $2)
			ORDER BY started_at DESC, id DESC LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*domain.SyncRun{}
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanSyncRun(row pgx.Row) (*domain.SyncRun, error) {
	var run domain.SyncRun
	var errMsg pgtype.Text
	err := row.Scan(
		&run.ID, &run.Status, &run.Since, &run.Watermark,
		&run.ItemsFetched, &run.ItemsSynced, &run.ItemsFailed,
		&run.ChunksWritten, &run.ChunksDeleted, &errMsg,
		&run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return &run, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
