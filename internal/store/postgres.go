// Package store implements studio.RecordStore on Postgres and in memory.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/snapstudio-crm/internal/studio"
)

// DB abstracts the pgx query interface for testing. Both *pgxpool.Pool and
// pgx.Tx satisfy it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is the durable record store.
type Postgres struct {
	db DB
}

var _ studio.RecordStore = (*Postgres)(nil)

// NewPostgres creates a store over a pool or transaction.
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

// Atomic runs fn inside a transaction. A nested call opens a savepoint.
func (s *Postgres) Atomic(ctx context.Context, fn func(tx studio.RecordStore) error) error {
	return s.inTx(ctx, func(tx *Postgres) error { return fn(tx) })
}

func (s *Postgres) inTx(ctx context.Context, fn func(tx *Postgres) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	if err := fn(&Postgres{db: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("store: rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func notFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("store: %s: %w", op, studio.ErrNotFound)
	}
	return fmt.Errorf("store: %s: %w", op, err)
}
