package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	commander "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Commander"
	config "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Config"
	logger "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Logger"
	metrics "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Metrics"
	rqcmodels "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Models"
	interfaces "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Repository/Interfaces"
)

// Reconciler drives every device back to its desired run state. Each cycle
// diffs the timer table against the device registry, dispatches corrective
// commands over the command channel and only then mutates the timer table.
// Cycles are idempotent: an aborted cycle recomputes the same targets on the
// next run.
type Reconciler struct {
	timerRepo  interfaces.TimerRepository
	deviceRepo interfaces.DeviceRepository
	publisher  commander.Publisher
	cfg        config.ControlConfig
	log        *logger.Logger

	// now is swappable for tests
	now func() time.Time
}

func New(timerRepo interfaces.TimerRepository, deviceRepo interfaces.DeviceRepository, publisher commander.Publisher, cfg config.ControlConfig, log *logger.Logger) *Reconciler {
	return &Reconciler{
		timerRepo:  timerRepo,
		deviceRepo: deviceRepo,
		publisher:  publisher,
		cfg:        cfg,
		log:        log.WithComponent("reconciler"),
		now:        time.Now,
	}
}

// CycleResult summarizes one reconciliation cycle.
type CycleResult struct {
	// StoppedDevices received a STOP command this cycle, either because
	// their manual run expired or because no timer tracks them.
	StoppedDevices []string

	// PromotedDevices had a pending_auto_restart timer promoted to auto
	// and received a SET_MODE(auto) command.
	PromotedDevices []string

	// ExpiredCleared is the number of expired manual timer rows deleted.
	ExpiredCleared int
}

// desiredState is the explicit per-device classification computed once per
// cycle. A device is either tracked by a timer row or untracked, in which
// case its desired state is "stopped" by standing policy.
type desiredState struct {
	tracked       map[string]rqcmodels.Timer
	manualExpired []rqcmodels.Timer
	pendingResume []rqcmodels.Timer
	untracked     []string
}

// RunCycle executes one gather -> classify -> dispatch -> commit sequence.
// A connect failure on dispatch aborts the cycle before any timer mutation.
func (r *Reconciler) RunCycle(ctx context.Context) (*CycleResult, error) {
	result, err := r.runCycle(ctx)
	if err != nil {
		metrics.ReconcileCycles.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.ReconcileCycles.WithLabelValues("ok").Inc()
	return result, nil
}

func (r *Reconciler) runCycle(ctx context.Context) (*CycleResult, error) {
	now := r.now()

	timers, err := r.timerRepo.ListActiveTimers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active timers: %w", err)
	}

	deviceCodes, err := r.deviceRepo.ListAllDeviceCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list device codes: %w", err)
	}

	state := classify(timers, deviceCodes, now)

	startAuto := make(map[string]bool, len(state.pendingResume))
	for _, t := range state.pendingResume {
		startAuto[t.DeviceCode] = true
	}

	// Stop targets: expired manual runs plus every untracked device,
	// unless the device is being switched to auto this same cycle. One
	// cycle never sends contradictory STOP and SET_MODE to one device.
	stopSet := make(map[string]bool)
	for _, t := range state.manualExpired {
		if !startAuto[t.DeviceCode] {
			stopSet[t.DeviceCode] = true
		}
	}
	for _, code := range state.untracked {
		if !startAuto[code] {
			stopSet[code] = true
		}
	}

	stopTargets := make([]string, 0, len(stopSet))
	for code := range stopSet {
		stopTargets = append(stopTargets, code)
	}
	sort.Strings(stopTargets)

	promoted := make([]string, 0, len(state.pendingResume))
	for _, t := range state.pendingResume {
		promoted = append(promoted, t.DeviceCode)
	}
	sort.Strings(promoted)

	commands := make([]rqcmodels.Command, 0, len(stopTargets)+len(promoted))
	for _, code := range stopTargets {
		commands = append(commands, rqcmodels.Command{
			DeviceCode: code,
			Payload:    rqcmodels.StopCommand{Timestamp: now},
		})
	}
	for _, code := range promoted {
		commands = append(commands, rqcmodels.Command{
			DeviceCode: code,
			Payload: rqcmodels.SetModeCommand{
				Mode:            rqcmodels.TimerModeAuto,
				IntervalSeconds: r.cfg.AutoRestartIntervalSeconds,
				Timestamp:       now,
			},
		})
	}

	result := &CycleResult{
		StoppedDevices:  stopTargets,
		PromotedDevices: promoted,
	}

	if len(commands) == 0 {
		return result, nil
	}

	if err := r.publisher.PublishCommands(ctx, commands); err != nil {
		var connErr *commander.ConnectError
		if errors.As(err, &connErr) {
			// Nothing was delivered; leave the timer table untouched
			// and let the next cycle recompute the same targets.
			return nil, fmt.Errorf("dispatch aborted: %w", err)
		}
		// Partial publish failure: some commands went out, so the
		// corresponding transitions must still be committed. QoS 1 and
		// idempotent firmware cover the rest.
		r.log.ErrorWithError(err, "partial publish failure, committing anyway")
	}

	expiredIDs := make([]int64, 0, len(state.manualExpired))
	for _, t := range state.manualExpired {
		expiredIDs = append(expiredIDs, t.ID)
	}
	if err := r.timerRepo.DeleteTimers(ctx, expiredIDs); err != nil {
		return nil, fmt.Errorf("failed to delete expired timers: %w", err)
	}
	result.ExpiredCleared = len(expiredIDs)

	for _, t := range state.pendingResume {
		if err := r.timerRepo.PromoteToAuto(ctx, t.ID, now); err != nil {
			return nil, fmt.Errorf("failed to promote timer for %s: %w", t.DeviceCode, err)
		}
	}

	r.log.WithField("stopped", len(stopTargets)).WithField("promoted", len(promoted)).Info("reconcile cycle complete")
	return result, nil
}

// classify splits the population once per cycle instead of relying on
// row-absence checks scattered through the dispatch logic.
func classify(timers []rqcmodels.Timer, deviceCodes []string, now time.Time) desiredState {
	state := desiredState{
		tracked: make(map[string]rqcmodels.Timer, len(timers)),
	}

	for _, t := range timers {
		state.tracked[t.DeviceCode] = t
		if !t.Expired(now) {
			// Compliant and unexpired; no command this cycle.
			continue
		}
		if t.Mode == rqcmodels.TimerModePendingAutoRestart {
			state.pendingResume = append(state.pendingResume, t)
		} else {
			state.manualExpired = append(state.manualExpired, t)
		}
	}

	for _, code := range deviceCodes {
		if _, ok := state.tracked[code]; !ok {
			state.untracked = append(state.untracked, code)
		}
	}

	return state
}

// Start runs the reconciliation loop until the context is cancelled. The
// HTTP trigger remains available for external schedulers; both paths call
// the same RunCycle.
func (r *Reconciler) Start(ctx context.Context) {
	r.log.WithField("interval", r.cfg.CheckInterval.String()).Info("reconcile loop starting")

	ticker := time.NewTicker(r.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reconcile loop stopped")
			return
		case <-ticker.C:
			if _, err := r.RunCycle(ctx); err != nil {
				r.log.ErrorWithError(err, "reconcile cycle failed")
			}
		}
	}
}
