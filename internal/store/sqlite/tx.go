package sqlite

import (
	"context"
	"database/sql"

	"github.com/vin-jex/queuectl/internal/store"
)

type TransactionFunc func(transaction *sql.Tx) error

// WithTransaction runs fn inside a write transaction. Errors returned by fn
// are passed through untouched; begin and commit failures are reported as
// storage unavailability.
func (s *Store) WithTransaction(
	ctx context.Context,
	fn TransactionFunc,
) error {
	transaction, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Unavailable("begin transaction", err)
	}

	defer transaction.Rollback()

	if err := fn(transaction); err != nil {
		return err
	}

	return store.Unavailable("commit transaction", transaction.Commit())
}
