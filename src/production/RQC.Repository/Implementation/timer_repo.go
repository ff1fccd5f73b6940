package implementation

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	rqcmodels "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Models"
)

type PostgresTimerRepository struct {
	db *sql.DB
}

func NewPostgresTimerRepository(db *sql.DB) *PostgresTimerRepository {
	return &PostgresTimerRepository{db: db}
}

// ListActiveTimers returns every current desired-state row.
func (r *PostgresTimerRepository) ListActiveTimers(ctx context.Context) ([]rqcmodels.Timer, error) {
	query := `SELECT id, device_code, mode, start_time, duration_seconds, target_stop_time FROM timers ORDER BY device_code`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var timers []rqcmodels.Timer
	for rows.Next() {
		var t rqcmodels.Timer
		if err := rows.Scan(&t.ID, &t.DeviceCode, &t.Mode, &t.StartTime, &t.DurationSeconds, &t.TargetStopTime); err != nil {
			return nil, err
		}
		timers = append(timers, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return timers, nil
}

// UpsertTimer creates or replaces the single timer row for a device. The
// unique constraint on device_code enforces one row per device.
func (r *PostgresTimerRepository) UpsertTimer(ctx context.Context, timer rqcmodels.Timer) error {
	query := `
		INSERT INTO timers (device_code, mode, start_time, duration_seconds, target_stop_time)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (device_code)
		DO UPDATE SET mode = EXCLUDED.mode, start_time = EXCLUDED.start_time,
			duration_seconds = EXCLUDED.duration_seconds, target_stop_time = EXCLUDED.target_stop_time
	`

	_, err := r.db.ExecContext(ctx, query, timer.DeviceCode, timer.Mode, timer.StartTime, timer.DurationSeconds, timer.TargetStopTime)
	return err
}

// DeleteTimers removes expired manual rows in one statement. Ids that no
// longer exist are ignored, so retried cycles cannot fail here.
func (r *PostgresTimerRepository) DeleteTimers(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := `DELETE FROM timers WHERE id = ANY($1)`
	_, err := r.db.ExecContext(ctx, query, pq.Array(ids))
	return err
}

// PromoteToAuto rewrites a pending_auto_restart row to unbounded auto mode.
// The target_stop_time lands ten years out; it is a sentinel, not a real
// expiry.
func (r *PostgresTimerRepository) PromoteToAuto(ctx context.Context, id int64, now time.Time) error {
	query := `
		UPDATE timers
		SET mode = $1, start_time = $2, duration_seconds = 0, target_stop_time = $3
		WHERE id = $4
	`

	_, err := r.db.ExecContext(ctx, query, rqcmodels.TimerModeAuto, now, rqcmodels.AutoModeStopTime(now), id)
	return err
}
