package rqcmodels

import "time"

// DispatchMode records whether an issued command targeted a real device
// ("live") or fell back to the default device ("dry-run").
type DispatchMode string

const (
	DispatchModeLive   DispatchMode = "live"
	DispatchModeDryRun DispatchMode = "dry-run"
)

// AnonymousActor is recorded when no verifiable identity accompanied a
// request. Command dispatch is never blocked on identity.
const AnonymousActor = "anonymous"

// AuditRecord is one append-only entry describing who asked for what
// command and when. Records are written regardless of transport outcome.
type AuditRecord struct {
	ID         string       `json:"id" db:"id"`
	Timestamp  time.Time    `json:"timestamp" db:"timestamp"`
	Actor      string       `json:"actor" db:"actor"`
	Role       string       `json:"role" db:"role"`
	Mode       DispatchMode `json:"mode" db:"mode"`
	Command    string       `json:"command" db:"command"`
	DeviceCode string       `json:"device_code" db:"device_code"`
	Moisture   float64      `json:"moisture" db:"moisture"`
	Correction float64      `json:"correction" db:"correction"`
}
