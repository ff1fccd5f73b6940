package rqcmodels

import "time"

// Device represents a registered measurement device (rice-quality or
// moisture-meter sensor), identified by its stable code.
type Device struct {
	DeviceCode string                 `json:"device_code" db:"device_code"`
	DeviceType string                 `json:"device_type" db:"device_type"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
	Meta       map[string]interface{} `json:"meta" db:"meta"`
}
