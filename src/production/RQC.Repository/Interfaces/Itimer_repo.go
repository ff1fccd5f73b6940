package interfaces

import (
	"context"
	"time"

	rqcmodels "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Models"
)

type TimerRepository interface {
	// Read all current desired-state rows
	ListActiveTimers(ctx context.Context) ([]rqcmodels.Timer, error)

	// Create or replace the single timer row for a device
	UpsertTimer(ctx context.Context, timer rqcmodels.Timer) error

	// Remove rows whose manual run period has naturally expired
	DeleteTimers(ctx context.Context, ids []int64) error

	// Rewrite a pending_auto_restart row to unbounded auto mode
	PromoteToAuto(ctx context.Context, id int64, now time.Time) error
}
