// Package sqltx runs work inside database/sql transactions.
package sqltx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Config groups parameters for With.
type Config struct {
	Opts *sql.TxOptions
	Fn   func(*sql.Tx) error
}

// With runs cfg.Fn in a transaction, committing when it returns nil and
// rolling back otherwise. A failed rollback is joined onto the returned error.
func With(ctx context.Context, db *sql.DB, cfg Config) (err error) {
	if cfg.Fn == nil {
		return errors.New("transaction function is required")
	}
	tx, err := db.BeginTx(ctx, cfg.Opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rerr))
		}
	}()
	if err = cfg.Fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
