package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Store wraps the connection pool. Repositories hand-write their SQL and
// either run it directly against DB or inside an ExecTx closure.
type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		DB: db,
	}
}

func (s *Store) ExecTx(ctx context.Context, fq func(tx *sql.Tx) error) error {
	// initialize transaction
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	err = fq(tx)

	if err != nil {
		txErr := tx.Rollback()
		if txErr != nil && txErr != sql.ErrTxDone {
			return fmt.Errorf("encountered rollback error: %v", txErr)
		}
		return err
	}

	return tx.Commit()
}
