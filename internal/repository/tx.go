package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// TxRunner wraps a database handle and runs a function inside a single
// transaction, committing on success and rolling back on error or panic.
// All reservation lifecycle transitions execute through RunTx or
// RunHallTx so that the status change, the attachment rewrite and the
// notification fan-out either all commit or none do.
type TxRunner struct {
	db *sql.DB
}

// NewTxRunner returns a TxRunner bound to the given database.
func NewTxRunner(db *sql.DB) *TxRunner { return &TxRunner{db: db} }

// RunTx begins a transaction, invokes fn with it and commits when fn
// returns nil.  Any error from fn aborts the transaction and is returned
// unchanged so sentinel comparisons keep working across the boundary.
func (r *TxRunner) RunTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	return runTx(tx, fn)
}

// RunHallTx runs fn inside a transaction serialized against every other
// transition for the hall.  The advisory lock is taken on a dedicated
// connection before the transaction begins, so the transaction's read
// snapshot cannot predate the lock, and it is released only after commit
// or rollback.  A competing transition therefore blocks on GET_LOCK until
// this transaction's writes are committed and visible, which closes the
// window where two approvers could both pass the overlap check.
func (r *TxRunner) RunHallTx(ctx context.Context, hallID uint64, fn func(tx *sql.Tx) error) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := lockHall(ctx, conn, hallID); err != nil {
		return err
	}
	defer func() { _ = unlockHall(ctx, conn, hallID) }()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	return runTx(tx, fn)
}

func runTx(tx *sql.Tx, fn func(tx *sql.Tx) error) error {
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func hallLockName(hallID uint64) string {
	return fmt.Sprintf("hall_schedule:%d", hallID)
}

// lockHall acquires the per-hall advisory lock on the connection, waiting
// up to five seconds before giving up with ErrLockTimeout.
func lockHall(ctx context.Context, conn *sql.Conn, hallID uint64) error {
	var got sql.NullInt64
	err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, 5)`, hallLockName(hallID)).Scan(&got)
	if err != nil {
		return err
	}
	if !got.Valid || got.Int64 != 1 {
		return ErrLockTimeout
	}
	return nil
}

func unlockHall(ctx context.Context, conn *sql.Conn, hallID uint64) error {
	var released sql.NullInt64
	return conn.QueryRowContext(ctx, `SELECT RELEASE_LOCK(?)`, hallLockName(hallID)).Scan(&released)
}
