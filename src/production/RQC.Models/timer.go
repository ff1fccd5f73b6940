package rqcmodels

import "time"

// TimerMode is the desired run mode recorded for a device.
type TimerMode string

const (
	// TimerModeManual is a bounded run started by an operator; it expires
	// when target_stop_time passes.
	TimerModeManual TimerMode = "manual"

	// TimerModeAuto is unbounded automatic operation. Its
	// target_stop_time is a far-future sentinel, not a real expiry.
	TimerModeAuto TimerMode = "auto"

	// TimerModePendingAutoRestart marks a device that is cooling down and
	// must be switched back to auto once target_stop_time passes.
	TimerModePendingAutoRestart TimerMode = "pending_auto_restart"
)

// AutoModeSentinelYears is how far in the future an auto timer's
// target_stop_time is placed. It stands in for "no natural expiry" while
// staying comparable with ordinary timestamp arithmetic.
const AutoModeSentinelYears = 10

// Timer is the persisted desired run-state for one device. At most one row
// exists per device; a device with no row is implicitly desired stopped.
type Timer struct {
	ID              int64     `json:"id" db:"id"`
	DeviceCode      string    `json:"device_code" db:"device_code"`
	Mode            TimerMode `json:"mode" db:"mode"`
	StartTime       time.Time `json:"start_time" db:"start_time"`
	DurationSeconds int64     `json:"duration_seconds" db:"duration_seconds"`
	TargetStopTime  time.Time `json:"target_stop_time" db:"target_stop_time"`
}

// Expired reports whether the timer's run period has ended at now.
func (t Timer) Expired(now time.Time) bool {
	return !t.TargetStopTime.After(now)
}

// AutoModeStopTime returns the sentinel target_stop_time written when a
// timer is promoted to auto mode.
func AutoModeStopTime(now time.Time) time.Time {
	return now.AddDate(AutoModeSentinelYears, 0, 0)
}
