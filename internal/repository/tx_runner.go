package repository

import (
	"context"

	"github.com/cloo-solutions/witsync/internal/domain"
	"github.com/cloo-solutions/witsync/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner provides transaction-bound chunk stores using a pgx pool.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (r *TxRunner) WithStoreTx(ctx context.Context, fn func(store service.VectorStore) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.ErrStorageOperationFail.Wrap(err)
	}

	if err := fn(NewChunkRepositoryWithTx(tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ErrStorageOperationFail.Wrap(err)
	}
	return nil
}
