package rqcmodels

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMarshal(t *testing.T, payload CommandPayload) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	return decoded
}

func TestStopCommandWireShape(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	decoded := mustMarshal(t, StopCommand{Timestamp: now})

	assert.Equal(t, "stop", decoded["cmd"])
	assert.Equal(t, "manual", decoded["mode"])
	assert.Equal(t, "2026-03-14T09:00:00Z", decoded["timestamp"])
}

func TestStartManualCommandWireShape(t *testing.T) {
	decoded := mustMarshal(t, StartManualCommand{
		Moisture:   14.5,
		Correction: -2,
		Timestamp:  time.Now(),
	})

	assert.Equal(t, "START", decoded["cmd"])
	assert.Equal(t, "manual", decoded["mode"])
	assert.Equal(t, 14.5, decoded["moisture"])
	assert.Equal(t, -2.0, decoded["correction"])
	assert.Contains(t, decoded, "timestamp")
}

func TestSetModeCommandWireShape(t *testing.T) {
	decoded := mustMarshal(t, SetModeCommand{
		Mode:            TimerModeAuto,
		IntervalSeconds: 300,
		Timestamp:       time.Now(),
	})

	assert.Equal(t, "SET_MODE", decoded["cmd"])
	assert.Equal(t, "auto", decoded["mode"])
	assert.Equal(t, 300.0, decoded["time_interval"])
}

func TestSetModeCommandOmitsZeroInterval(t *testing.T) {
	decoded := mustMarshal(t, SetModeCommand{
		Mode:      TimerModeManual,
		Timestamp: time.Now(),
	})

	assert.Equal(t, "SET_MODE", decoded["cmd"])
	assert.Equal(t, "manual", decoded["mode"])
	assert.NotContains(t, decoded, "time_interval")
}

func TestTelemetryEventWireShape(t *testing.T) {
	event := TelemetryEvent{
		Time:            time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		MoistureMachine: 1,
		Temperature:     1,
		DeviceCode:      "mm000042",
		Event:           "test",
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, 1.0, decoded["moisture_machine"])
	assert.Equal(t, 1.0, decoded["temperature"])
	assert.Equal(t, "mm000042", decoded["device_code"])
	assert.Equal(t, "test", decoded["event"])
	assert.Contains(t, decoded, "time")
}

func TestTimerExpired(t *testing.T) {
	now := time.Now()

	expired := Timer{TargetStopTime: now.Add(-time.Minute)}
	assert.True(t, expired.Expired(now))

	boundary := Timer{TargetStopTime: now}
	assert.True(t, boundary.Expired(now))

	future := Timer{TargetStopTime: now.Add(time.Minute)}
	assert.False(t, future.Expired(now))
}

func TestAutoModeStopTimeIsFarFuture(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	sentinel := AutoModeStopTime(now)

	assert.Equal(t, now.AddDate(10, 0, 0), sentinel)
	// Still ordinary timestamp arithmetic, no overflow
	assert.True(t, sentinel.After(now))
	assert.GreaterOrEqual(t, sentinel.Sub(now), 3650*24*time.Hour)
}
