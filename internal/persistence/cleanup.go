package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PruneEventLog drops alarm and status-change rows older than the
// retention window. The event log is a bounded history, not an archive.
func PruneEventLog(ctx context.Context, db *sql.DB, retention time.Duration) error {
	if db == nil {
		return fmt.Errorf("database is not initialized")
	}
	if retention <= 0 {
		return fmt.Errorf("retention must be positive")
	}

	cutoff := toUnixMillis(time.Now().Add(-retention))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin prune tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM alarms WHERE raised_at < ?;`, cutoff); err != nil {
		return fmt.Errorf("prune alarms: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM status_changes WHERE changed_at < ?;`, cutoff); err != nil {
		return fmt.Errorf("prune status changes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit prune tx: %w", err)
	}

	return nil
}
