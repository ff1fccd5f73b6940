package implementation

import (
	"context"
	"database/sql"

	rqcmodels "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Models"
)

type PostgresAuditRepository struct {
	db *sql.DB
}

func NewPostgresAuditRepository(db *sql.DB) *PostgresAuditRepository {
	return &PostgresAuditRepository{db: db}
}

// CreateAuditRecord appends one record to the command audit trail.
func (r *PostgresAuditRepository) CreateAuditRecord(ctx context.Context, record rqcmodels.AuditRecord) error {
	query := `
		INSERT INTO command_audit (id, timestamp, actor, role, mode, command, device_code, moisture, correction)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.Timestamp, record.Actor, record.Role, record.Mode,
		record.Command, record.DeviceCode, record.Moisture, record.Correction)
	return err
}
