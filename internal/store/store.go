// Package store provides the unit of work the engines run their
// read-modify-write sequences in. Repositories take a sqlx.ExtContext so the
// same code runs against the pool or against an open transaction.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store { return &Store{db: db} }

// DB returns the pool for reads that need no transaction.
func (s *Store) DB() *sqlx.DB { return s.db }

// InTx runs fn inside a single transaction. The transaction commits only if
// fn returns nil; any error or panic rolls every write back.
func (s *Store) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
