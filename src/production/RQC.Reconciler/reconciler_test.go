package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	commander "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Commander"
	config "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Config"
	logger "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Logger"
	rqcmodels "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Models"
)

// fakeTimerRepo keeps timer rows in memory and applies the same mutations
// the Postgres repository would.
type fakeTimerRepo struct {
	timers  []rqcmodels.Timer
	deleted []int64
	listErr error
}

func (f *fakeTimerRepo) ListActiveTimers(ctx context.Context) ([]rqcmodels.Timer, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]rqcmodels.Timer, len(f.timers))
	copy(out, f.timers)
	return out, nil
}

func (f *fakeTimerRepo) UpsertTimer(ctx context.Context, timer rqcmodels.Timer) error {
	for i, t := range f.timers {
		if t.DeviceCode == timer.DeviceCode {
			timer.ID = t.ID
			f.timers[i] = timer
			return nil
		}
	}
	timer.ID = int64(len(f.timers) + 1)
	f.timers = append(f.timers, timer)
	return nil
}

func (f *fakeTimerRepo) DeleteTimers(ctx context.Context, ids []int64) error {
	f.deleted = append(f.deleted, ids...)
	remaining := f.timers[:0]
	for _, t := range f.timers {
		keep := true
		for _, id := range ids {
			if t.ID == id {
				keep = false
			}
		}
		if keep {
			remaining = append(remaining, t)
		}
	}
	f.timers = remaining
	return nil
}

func (f *fakeTimerRepo) PromoteToAuto(ctx context.Context, id int64, now time.Time) error {
	for i, t := range f.timers {
		if t.ID == id {
			f.timers[i].Mode = rqcmodels.TimerModeAuto
			f.timers[i].StartTime = now
			f.timers[i].DurationSeconds = 0
			f.timers[i].TargetStopTime = rqcmodels.AutoModeStopTime(now)
			return nil
		}
	}
	return errors.New("timer not found")
}

type fakeDeviceRepo struct {
	codes []string
}

func (f *fakeDeviceRepo) ListAllDeviceCodes(ctx context.Context) ([]string, error) {
	return f.codes, nil
}

func (f *fakeDeviceRepo) CreateOrUpdateDevice(ctx context.Context, device rqcmodels.Device) error {
	return nil
}

type fakePublisher struct {
	batches [][]rqcmodels.Command
	err     error
}

func (f *fakePublisher) PublishCommands(ctx context.Context, commands []rqcmodels.Command) error {
	f.batches = append(f.batches, commands)
	return f.err
}

func (f *fakePublisher) PublishTelemetry(ctx context.Context, event rqcmodels.TelemetryEvent) error {
	return f.err
}

func (f *fakePublisher) allCommands() []rqcmodels.Command {
	var out []rqcmodels.Command
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

var testControlConfig = config.ControlConfig{
	TopicNamespace:             "c2tech",
	DefaultDeviceCode:          "mm000001",
	CheckInterval:              time.Minute,
	AutoRestartIntervalSeconds: 300,
}

func newTestReconciler(timers *fakeTimerRepo, devices *fakeDeviceRepo, pub *fakePublisher, now time.Time) *Reconciler {
	r := New(timers, devices, pub, testControlConfig, logger.NewNop())
	r.now = func() time.Time { return now }
	return r
}

func manualTimer(id int64, code string, stop time.Time) rqcmodels.Timer {
	return rqcmodels.Timer{
		ID:             id,
		DeviceCode:     code,
		Mode:           rqcmodels.TimerModeManual,
		StartTime:      stop.Add(-time.Hour),
		TargetStopTime: stop,
	}
}

func pendingTimer(id int64, code string, stop time.Time) rqcmodels.Timer {
	return rqcmodels.Timer{
		ID:             id,
		DeviceCode:     code,
		Mode:           rqcmodels.TimerModePendingAutoRestart,
		StartTime:      stop.Add(-time.Hour),
		TargetStopTime: stop,
	}
}

func TestSafetyStopForUntrackedDevices(t *testing.T) {
	now := time.Now()
	timers := &fakeTimerRepo{}
	devices := &fakeDeviceRepo{codes: []string{"mm000002", "mm000001"}}
	pub := &fakePublisher{}

	result, err := newTestReconciler(timers, devices, pub, now).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"mm000001", "mm000002"}, result.StoppedDevices)
	assert.Equal(t, 0, result.ExpiredCleared)

	cmds := pub.allCommands()
	require.Len(t, cmds, 2)
	for _, cmd := range cmds {
		assert.IsType(t, rqcmodels.StopCommand{}, cmd.Payload)
	}
}

func TestSafetyStopIsStandingNotOneShot(t *testing.T) {
	now := time.Now()
	timers := &fakeTimerRepo{}
	devices := &fakeDeviceRepo{codes: []string{"mm000007"}}
	pub := &fakePublisher{}
	rec := newTestReconciler(timers, devices, pub, now)

	for i := 0; i < 3; i++ {
		result, err := rec.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"mm000007"}, result.StoppedDevices)
	}

	assert.Len(t, pub.batches, 3)
}

func TestManualExpiryDeletesRowWithDispatch(t *testing.T) {
	now := time.Now()
	timers := &fakeTimerRepo{timers: []rqcmodels.Timer{
		manualTimer(1, "mm000010", now.Add(-time.Minute)),
		manualTimer(2, "mm000011", now.Add(time.Hour)), // not expired
	}}
	devices := &fakeDeviceRepo{codes: []string{"mm000010", "mm000011"}}
	pub := &fakePublisher{}

	result, err := newTestReconciler(timers, devices, pub, now).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"mm000010"}, result.StoppedDevices)
	assert.Equal(t, 1, result.ExpiredCleared)
	assert.Equal(t, []int64{1}, timers.deleted)

	// The unexpired, compliant device receives nothing this cycle.
	cmds := pub.allCommands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "mm000010", cmds[0].DeviceCode)
	assert.IsType(t, rqcmodels.StopCommand{}, cmds[0].Payload)
}

func TestPendingRestartPromotion(t *testing.T) {
	now := time.Now()
	timers := &fakeTimerRepo{timers: []rqcmodels.Timer{
		pendingTimer(5, "mm000020", now.Add(-time.Second)),
	}}
	devices := &fakeDeviceRepo{codes: []string{"mm000020"}}
	pub := &fakePublisher{}

	result, err := newTestReconciler(timers, devices, pub, now).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"mm000020"}, result.PromotedDevices)
	assert.Empty(t, result.StoppedDevices)

	cmds := pub.allCommands()
	require.Len(t, cmds, 1)
	setMode, ok := cmds[0].Payload.(rqcmodels.SetModeCommand)
	require.True(t, ok)
	assert.Equal(t, rqcmodels.TimerModeAuto, setMode.Mode)
	assert.Equal(t, 300, setMode.IntervalSeconds)

	// Row rewritten to unbounded auto mode
	require.Len(t, timers.timers, 1)
	promoted := timers.timers[0]
	assert.Equal(t, rqcmodels.TimerModeAuto, promoted.Mode)
	assert.Equal(t, int64(0), promoted.DurationSeconds)
	assert.True(t, promoted.TargetStopTime.Sub(now) >= 3650*24*time.Hour)
}

func TestStartAutoWinsOverSafetyStop(t *testing.T) {
	// The registry lists the device while its only timer is an expired
	// pending restart: it must receive the start-auto command and never
	// a contradictory stop in the same cycle.
	now := time.Now()
	timers := &fakeTimerRepo{timers: []rqcmodels.Timer{
		pendingTimer(9, "mm000030", now.Add(-time.Minute)),
	}}
	devices := &fakeDeviceRepo{codes: []string{"mm000030"}}
	pub := &fakePublisher{}

	result, err := newTestReconciler(timers, devices, pub, now).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.StoppedDevices)
	assert.Equal(t, []string{"mm000030"}, result.PromotedDevices)

	cmds := pub.allCommands()
	require.Len(t, cmds, 1)
	assert.IsType(t, rqcmodels.SetModeCommand{}, cmds[0].Payload)
}

func TestConnectFailureAbortsBeforeCommit(t *testing.T) {
	now := time.Now()
	timers := &fakeTimerRepo{timers: []rqcmodels.Timer{
		manualTimer(3, "mm000040", now.Add(-time.Minute)),
		pendingTimer(4, "mm000041", now.Add(-time.Minute)),
	}}
	devices := &fakeDeviceRepo{codes: []string{"mm000040", "mm000041"}}
	pub := &fakePublisher{err: &commander.ConnectError{Err: errors.New("dial tcp: timeout")}}
	rec := newTestReconciler(timers, devices, pub, now)

	_, err := rec.RunCycle(context.Background())
	require.Error(t, err)

	// Timer store untouched: next cycle recomputes the same targets.
	assert.Empty(t, timers.deleted)
	require.Len(t, timers.timers, 2)
	assert.Equal(t, rqcmodels.TimerModePendingAutoRestart, timers.timers[1].Mode)

	pub.err = nil
	result, err := rec.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mm000040"}, result.StoppedDevices)
	assert.Equal(t, []string{"mm000041"}, result.PromotedDevices)
}

func TestPartialPublishFailureStillCommits(t *testing.T) {
	now := time.Now()
	timers := &fakeTimerRepo{timers: []rqcmodels.Timer{
		manualTimer(7, "mm000050", now.Add(-time.Minute)),
	}}
	devices := &fakeDeviceRepo{codes: []string{"mm000050"}}
	pub := &fakePublisher{err: errors.New("publish c2tech/mm000050/cmd: broker rejected")}

	result, err := newTestReconciler(timers, devices, pub, now).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.ExpiredCleared)
	assert.Equal(t, []int64{7}, timers.deleted)
}

func TestNoOpCyclePublishesNothing(t *testing.T) {
	now := time.Now()
	timers := &fakeTimerRepo{timers: []rqcmodels.Timer{
		manualTimer(1, "mm000060", now.Add(time.Hour)),
	}}
	devices := &fakeDeviceRepo{codes: []string{"mm000060"}}
	pub := &fakePublisher{}

	result, err := newTestReconciler(timers, devices, pub, now).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.StoppedDevices)
	assert.Empty(t, result.PromotedDevices)
	assert.Empty(t, pub.batches)
}

func TestBackToBackCyclesAreIdempotent(t *testing.T) {
	now := time.Now()
	timers := &fakeTimerRepo{timers: []rqcmodels.Timer{
		manualTimer(1, "mm000070", now.Add(-time.Minute)),
		pendingTimer(2, "mm000071", now.Add(-time.Minute)),
	}}
	devices := &fakeDeviceRepo{codes: []string{"mm000070", "mm000071", "mm000072"}}
	pub := &fakePublisher{}
	rec := newTestReconciler(timers, devices, pub, now)

	first, err := rec.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mm000070", "mm000072"}, first.StoppedDevices)
	assert.Equal(t, []string{"mm000071"}, first.PromotedDevices)

	second, err := rec.RunCycle(context.Background())
	require.NoError(t, err)

	// Same stop set (safety-stop is standing), no double promotion, no
	// duplicate deletion errors.
	assert.Equal(t, first.StoppedDevices, second.StoppedDevices)
	assert.Empty(t, second.PromotedDevices)
	assert.Equal(t, 0, second.ExpiredCleared)
}

func TestGatherErrorAbortsCycle(t *testing.T) {
	now := time.Now()
	timers := &fakeTimerRepo{listErr: errors.New("connection refused")}
	devices := &fakeDeviceRepo{codes: []string{"mm000080"}}
	pub := &fakePublisher{}

	_, err := newTestReconciler(timers, devices, pub, now).RunCycle(context.Background())
	require.Error(t, err)
	assert.Empty(t, pub.batches)
}
