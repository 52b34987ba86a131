package repository

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

// TxFn runs inside a transaction. Returning an error rolls the transaction back.
type TxFn func(tx *gorm.DB) error

// RunInTransaction executes fn in one database transaction bound to ctx. The transaction
// commits only when fn returns nil; errors and panics roll it back, so no partial write
// survives a failed call. The connection is returned to the pool on every exit path.
func RunInTransaction(ctx context.Context, db *gorm.DB, log *slog.Logger, fn TxFn) error {
	if log == nil {
		log = slog.Default()
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})
	if err != nil {
		classified := classify(err)
		if IsUnavailable(classified) {
			log.Warn("transaction rolled back", slog.String("error", err.Error()))
			return fmt.Errorf("transaction: %w", classified)
		}
		log.Debug("transaction rolled back", slog.String("error", err.Error()))
		return classified
	}

	log.Debug("transaction committed")
	return nil
}
