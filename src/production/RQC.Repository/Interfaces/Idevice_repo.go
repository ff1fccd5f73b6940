package interfaces

import (
	"context"

	rqcmodels "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Models"
)

type DeviceRepository interface {
	// ListAllDeviceCodes enumerates every registered device. The
	// reconciler uses it to find devices with no timer row at all.
	ListAllDeviceCodes(ctx context.Context) ([]string, error)

	// Register device (idempotent upsert)
	CreateOrUpdateDevice(ctx context.Context, device rqcmodels.Device) error
}
