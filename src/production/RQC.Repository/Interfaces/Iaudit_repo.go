package interfaces

import (
	"context"

	rqcmodels "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Models"
)

type AuditRepository interface {
	// Append one audit record. The table is append-only; nothing in the
	// control service ever updates or deletes records.
	CreateAuditRecord(ctx context.Context, record rqcmodels.AuditRecord) error
}
