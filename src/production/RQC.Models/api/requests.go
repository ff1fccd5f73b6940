package api_models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	rqcmodels "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Models"
)

// FlexNumber unmarshals from either a JSON number or a numeric string.
// Operator UIs have historically sent both.
type FlexNumber float64

func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*n = FlexNumber(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = FlexNumber(f)
	return nil
}

// RunRequest is the body of POST /run_manual.
type RunRequest struct {
	Command    string      `json:"command"`
	Mode       string      `json:"mode,omitempty"`
	Moisture   *FlexNumber `json:"moisture,omitempty"`
	Correction *FlexNumber `json:"correction,omitempty"`
	DeviceCode string      `json:"deviceCode,omitempty"`
}

// RunResponse is the body returned by POST /run_manual. Mode is "live",
// "dry-run", or "error"; Echo carries the request back for UI display.
type RunResponse struct {
	OK      bool        `json:"ok"`
	Mode    string      `json:"mode"`
	Message string      `json:"message"`
	Echo    *RunRequest `json:"echo"`
}

// SimulateRequest is the body of POST /simulate_sensor.
type SimulateRequest struct {
	DeviceCode string `json:"deviceCode"`
	Type       string `json:"type"`
}

// SimulateResponse is the body returned by POST /simulate_sensor.
type SimulateResponse struct {
	OK      bool                      `json:"ok"`
	Message string                    `json:"message"`
	Data    *rqcmodels.TelemetryEvent `json:"data,omitempty"`
}

// CheckTimersResponse is the body returned by POST /check_timers.
type CheckTimersResponse struct {
	Success        bool     `json:"success"`
	StoppedDevices []string `json:"stopped_devices"`
	ExpiredCleared int      `json:"expired_cleared"`
}
