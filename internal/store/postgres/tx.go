package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/vin-jex/queuectl/internal/store"
)

type TransactionFunc func(transaction pgx.Tx) error

func (s *Store) WithTransaction(
	ctx context.Context,
	fn TransactionFunc,
) error {
	transaction, err := s.connectionPool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.Unavailable("begin transaction", err)
	}

	defer transaction.Rollback(ctx)

	if err := fn(transaction); err != nil {
		return err
	}

	return store.Unavailable("commit transaction", transaction.Commit(ctx))
}
