package implementation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	rqcmodels "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Models"
)

type PostgresDeviceRepository struct {
	db *sql.DB
}

func NewPostgresDeviceRepository(db *sql.DB) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db}
}

// ListAllDeviceCodes returns the code of every registered device.
func (r *PostgresDeviceRepository) ListAllDeviceCodes(ctx context.Context) ([]string, error) {
	query := `SELECT device_code FROM devices ORDER BY device_code`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return codes, nil
}

// CreateOrUpdateDevice registers a device (idempotent upsert).
func (r *PostgresDeviceRepository) CreateOrUpdateDevice(ctx context.Context, device rqcmodels.Device) error {
	query := `
		INSERT INTO devices (device_code, device_type, created_at, meta)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (device_code)
		DO UPDATE SET device_type = EXCLUDED.device_type, meta = EXCLUDED.meta
	`

	metaJSON, err := json.Marshal(ensureMetaNotNull(device.Meta))
	if err != nil {
		return fmt.Errorf("failed to marshal meta: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, device.DeviceCode, device.DeviceType, device.CreatedAt, metaJSON)
	return err
}
