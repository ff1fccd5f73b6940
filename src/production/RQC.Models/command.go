package rqcmodels

import (
	"encoding/json"
	"time"
)

// CommandPayload is the closed set of outbound device commands. Each
// variant serializes itself to the firmware wire shape; dispatch code works
// on the typed variants only.
type CommandPayload interface {
	json.Marshaler
	commandPayload()
}

// StopCommand drives a device to its safe stopped state.
type StopCommand struct {
	Timestamp time.Time
}

// StartManualCommand starts a bounded manual run with calibration inputs.
type StartManualCommand struct {
	Moisture   float64
	Correction float64
	Timestamp  time.Time
}

// SetModeCommand switches a device's operating mode. IntervalSeconds is the
// sampling interval sent along with auto mode; zero omits it from the wire.
type SetModeCommand struct {
	Mode            TimerMode
	IntervalSeconds int
	Timestamp       time.Time
}

func (StopCommand) commandPayload()        {}
func (StartManualCommand) commandPayload() {}
func (SetModeCommand) commandPayload()     {}

func (c StopCommand) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Cmd       string    `json:"cmd"`
		Mode      string    `json:"mode"`
		Timestamp time.Time `json:"timestamp"`
	}{
		Cmd:       "stop",
		Mode:      string(TimerModeManual),
		Timestamp: c.Timestamp,
	})
}

func (c StartManualCommand) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Cmd        string    `json:"cmd"`
		Mode       string    `json:"mode"`
		Moisture   float64   `json:"moisture"`
		Correction float64   `json:"correction"`
		Timestamp  time.Time `json:"timestamp"`
	}{
		Cmd:        "START",
		Mode:       string(TimerModeManual),
		Moisture:   c.Moisture,
		Correction: c.Correction,
		Timestamp:  c.Timestamp,
	})
}

func (c SetModeCommand) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Cmd          string    `json:"cmd"`
		Mode         string    `json:"mode"`
		TimeInterval int       `json:"time_interval,omitempty"`
		Timestamp    time.Time `json:"timestamp"`
	}{
		Cmd:          "SET_MODE",
		Mode:         string(c.Mode),
		TimeInterval: c.IntervalSeconds,
		Timestamp:    c.Timestamp,
	})
}

// Command pairs a payload with the device it is addressed to. Commands are
// transient; they exist only for the duration of one dispatch.
type Command struct {
	DeviceCode string
	Payload    CommandPayload
}

// TelemetryEvent is a fabricated sensor reading injected on the telemetry
// topic for downstream testing without real hardware.
type TelemetryEvent struct {
	Time            time.Time `json:"time"`
	MoistureMachine int       `json:"moisture_machine"`
	Temperature     int       `json:"temperature"`
	DeviceCode      string    `json:"device_code"`
	Event           string    `json:"event"`
}
