package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"mtmon/internal/domain"
)

type AlarmRepo struct {
	db *sql.DB
}

func NewAlarmRepo(db *sql.DB) *AlarmRepo {
	return &AlarmRepo{db: db}
}

func (r *AlarmRepo) Insert(ctx context.Context, a domain.Alarm) (int64, error) {
	var acknowledged int64
	if a.IsAcknowledged {
		acknowledged = 1
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO alarms(alarm_id, machine_id, level, alarm_type, message, parameter, value, threshold, is_acknowledged, acknowledged_by, raised_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.AlarmID, a.MachineID, string(a.Level), a.Type, a.Message, a.Parameter, a.Value, a.Threshold, acknowledged, nullableString(a.AcknowledgedBy), toUnixMillis(a.Timestamp.OrNow()))
	if err != nil {
		return 0, fmt.Errorf("insert alarm: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("alarm insert id: %w", err)
	}
	return id, nil
}

func (r *AlarmRepo) ListRecent(ctx context.Context, limit int) ([]domain.Alarm, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT alarm_id, machine_id, level, alarm_type, message, parameter, value, threshold, is_acknowledged, acknowledged_by, raised_at
		FROM alarms
		ORDER BY raised_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}
	defer rows.Close()

	var out []domain.Alarm
	for rows.Next() {
		var (
			a            domain.Alarm
			level        string
			acknowledged int64
			ackBy        sql.NullString
			raisedAt     int64
		)
		if err := rows.Scan(&a.AlarmID, &a.MachineID, &level, &a.Type, &a.Message, &a.Parameter, &a.Value, &a.Threshold, &acknowledged, &ackBy, &raisedAt); err != nil {
			return nil, fmt.Errorf("scan alarm: %w", err)
		}
		a.Level = domain.AlarmLevel(level)
		a.IsAcknowledged = acknowledged != 0
		if ackBy.Valid {
			a.AcknowledgedBy = ackBy.String
		}
		a.Timestamp = domain.Timestamp{Time: fromUnixMillis(raisedAt)}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alarms: %w", err)
	}
	return out, nil
}

// Acknowledge marks every stored row of one alarm as acknowledged.
func (r *AlarmRepo) Acknowledge(ctx context.Context, alarmID, operator string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE alarms SET is_acknowledged = 1, acknowledged_by = ?
		WHERE alarm_id = ?
	`, operator, alarmID)
	if err != nil {
		return fmt.Errorf("acknowledge alarm: %w", err)
	}
	return nil
}
