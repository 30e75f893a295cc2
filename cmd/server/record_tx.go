package main

import (
	"context"
	"database/sql"

	txcontext "dataspace/pkg/platform/tx"
)

// postgresStoreTx opens one SQL transaction per record transition and carries
// it through the context, so the record, revision and ledger writes commit or
// roll back together.
type postgresStoreTx struct {
	db *sql.DB
}

func newPostgresStoreTx(db *sql.DB) *postgresStoreTx {
	return &postgresStoreTx{db: db}
}

func (t *postgresStoreTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}
