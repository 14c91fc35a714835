package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"mtmon/internal/domain"
)

type StatusRepo struct {
	db *sql.DB
}

func NewStatusRepo(db *sql.DB) *StatusRepo {
	return &StatusRepo{db: db}
}

func (r *StatusRepo) Insert(ctx context.Context, c domain.StatusChange) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO status_changes(machine_id, old_status, new_status, changed_at)
		VALUES (?, ?, ?, ?)
	`, c.MachineID, string(c.OldStatus), string(c.NewStatus), toUnixMillis(c.At))
	if err != nil {
		return 0, fmt.Errorf("insert status change: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("status change insert id: %w", err)
	}
	return id, nil
}

func (r *StatusRepo) ListRecent(ctx context.Context, limit int) ([]domain.StatusChange, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT machine_id, old_status, new_status, changed_at
		FROM status_changes
		ORDER BY changed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list status changes: %w", err)
	}
	defer rows.Close()

	var out []domain.StatusChange
	for rows.Next() {
		var (
			c         domain.StatusChange
			oldStatus string
			newStatus string
			changedAt int64
		)
		if err := rows.Scan(&c.MachineID, &oldStatus, &newStatus, &changedAt); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		c.OldStatus = domain.MachineStatus(oldStatus)
		c.NewStatus = domain.MachineStatus(newStatus)
		c.At = fromUnixMillis(changedAt)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status changes: %w", err)
	}
	return out, nil
}
