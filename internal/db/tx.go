package db

import (
	"context"
	"database/sql"
)

type txKey struct{}

// WithTx begins a transaction unless ctx already carries one, in which case
// fn joins it.
func WithTx(ctx context.Context, conn *sql.DB, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func TxFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// Conn returns the transaction carried by ctx, or conn itself.
func Conn(ctx context.Context, conn *sql.DB) Execer {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return conn
}
