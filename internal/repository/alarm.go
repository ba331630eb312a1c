package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"nsp-alarm-correlator/internal/models"
)

// AlarmRepository is the durable alarm store: one active_alarms row per
// currently-active alarm (alarm_id unique key, full record as jsonb) and an
// append-only alarm_history archive of cleared alarms.
type AlarmRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlarmRepository creates a new alarm repository
func NewAlarmRepository(db *sql.DB, logger *zap.Logger) *AlarmRepository {
	return &AlarmRepository{
		db:     db,
		logger: logger,
	}
}

const upsertActiveSQL = `
	INSERT INTO active_alarms (alarm_id, alarm)
	VALUES ($1, $2::jsonb)
	ON CONFLICT (alarm_id)
	DO UPDATE SET
		alarm = EXCLUDED.alarm,
		last_updated = now()
`

const deleteActiveSQL = `
	DELETE FROM active_alarms
	WHERE alarm_id = $1
	RETURNING alarm
`

const insertHistorySQL = `
	INSERT INTO alarm_history (alarm_id, alarm, cleared_at)
	VALUES ($1, $2::jsonb, now())
`

// UpsertActive inserts or overwrites the active row for the alarm.
// Idempotent by alarm_id.
func (r *AlarmRepository) UpsertActive(ctx context.Context, alarm *models.AlarmRecord) error {
	payload, err := json.Marshal(alarm)
	if err != nil {
		return fmt.Errorf("failed to marshal alarm %s: %w", alarm.AlarmID, err)
	}

	if _, err := r.db.ExecContext(ctx, upsertActiveSQL, alarm.AlarmID, payload); err != nil {
		return fmt.Errorf("failed to upsert active alarm: %w", err)
	}

	return nil
}

// ClearActive deletes the active row for the alarm and, if one existed,
// archives the captured payload into alarm_history. Both statements run in
// one transaction: either the row moves to history or nothing changes.
// Returns whether a row was archived.
func (r *AlarmRepository) ClearActive(ctx context.Context, alarmID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var payload []byte
	err = tx.QueryRowContext(ctx, deleteActiveSQL, alarmID).Scan(&payload)
	if err == sql.ErrNoRows {
		// Nothing was active under this id; still commit so the (empty)
		// delete is not held open.
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit: %w", err)
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete active alarm: %w", err)
	}

	if _, err := tx.ExecContext(ctx, insertHistorySQL, alarmID, payload); err != nil {
		return false, fmt.Errorf("failed to insert history row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}

	return true, nil
}

// ActivePowerIssues returns the active alarms matching the power-issue
// cache category. Startup only, used to seed the correlation cache.
func (r *AlarmRepository) ActivePowerIssues(ctx context.Context) ([]models.AlarmRecord, error) {
	query := `
		SELECT alarm FROM active_alarms
		WHERE alarm->>'alarm_name' = 'Power Issue'
		  AND alarm->>'object_type' = 'PHYSICALCONNECTION'
	`
	return r.queryActive(ctx, query)
}

// ActiveLossOfSignal returns the active alarms matching the loss-of-signal
// cache category. Startup only, used to seed the correlation cache.
func (r *AlarmRepository) ActiveLossOfSignal(ctx context.Context) ([]models.AlarmRecord, error) {
	query := `
		SELECT alarm FROM active_alarms
		WHERE alarm->>'alarm_name' = 'Loss of signal - OCH'
		  AND alarm->>'severity' IN ('CRITICAL', 'MAJOR')
	`
	return r.queryActive(ctx, query)
}

func (r *AlarmRepository) queryActive(ctx context.Context, query string) ([]models.AlarmRecord, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active alarms: %w", err)
	}
	defer rows.Close()

	var alarms []models.AlarmRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan alarm row: %w", err)
		}

		var alarm models.AlarmRecord
		if err := json.Unmarshal(payload, &alarm); err != nil {
			// A malformed payload must not prevent the cache seed; skip it.
			r.logger.Warn("Skipping unparseable active alarm payload",
				zap.Error(err),
			)
			continue
		}

		alarms = append(alarms, alarm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active alarms: %w", err)
	}

	return alarms, nil
}
