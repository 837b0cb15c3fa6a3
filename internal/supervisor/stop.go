package supervisor

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/blur702/legiscrawl/internal/config"
	"github.com/blur702/legiscrawl/internal/state"
)

// ErrNoActiveRun is returned by StopRun when there is nothing to stop.
var ErrNoActiveRun = errors.New("no active run")

// StopRun ends the active run from outside the supervisor process.
//
// The normal path signals the supervisor, which drains its workers itself
// and clears the active flag. If the supervisor has died, the workers are
// orphans; they get the same graceful treatment directly. Checkpoints and
// heartbeats are left intact for inspection and resume.
func StopRun(cfg config.Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	root := cfg.State.RootDir
	rs, err := state.LoadRunState(root)
	if err != nil {
		if errors.Is(err, state.ErrNoRun) {
			return ErrNoActiveRun
		}
		return fmt.Errorf("load run state: %w", err)
	}
	if !rs.Active {
		return ErrNoActiveRun
	}

	grace := cfg.Pool.StopGracePeriod
	if pidAlive(rs.SupervisorPID) {
		logger.Info("signaling supervisor", zap.Int("pid", rs.SupervisorPID))
		if err := signalPID(rs.SupervisorPID, syscall.SIGTERM); err != nil {
			return fmt.Errorf("signal supervisor: %w", err)
		}
		// The supervisor drains workers and clears the active flag; wait
		// for that, then escalate if it never happens.
		deadline := time.Now().Add(grace + cfg.Pool.SupervisionInterval)
		for time.Now().Before(deadline) {
			current, err := state.LoadRunState(root)
			if err == nil && !current.Active {
				return nil
			}
			time.Sleep(200 * time.Millisecond)
		}
		logger.Warn("supervisor did not stop in time, escalating")
		_ = signalPID(rs.SupervisorPID, syscall.SIGKILL)
	}

	// Supervisor is gone; deal with the workers directly.
	stopOrphans(rs, grace, logger)

	rs.Active = false
	for i := range rs.Workers {
		if rs.Workers[i].Status == state.SlotRunning {
			rs.Workers[i].Status = state.SlotStopped
		}
	}
	if err := state.SaveRunState(root, rs); err != nil {
		return fmt.Errorf("clear active flag: %w", err)
	}
	return nil
}

// stopOrphans TERMs every live worker pid, waits out the grace period, and
// KILLs whatever is left.
func stopOrphans(rs state.RunState, grace time.Duration, logger *zap.Logger) {
	for _, slot := range rs.Workers {
		if slot.Status == state.SlotRunning && pidAlive(slot.PID) {
			logger.Info("signaling worker", zap.Int("worker", slot.Index), zap.Int("pid", slot.PID))
			_ = signalPID(slot.PID, syscall.SIGTERM)
		}
	}
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !anyWorkerAlive(rs) {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	for _, slot := range rs.Workers {
		if pidAlive(slot.PID) {
			logger.Warn("worker did not stop in time, killing",
				zap.Int("worker", slot.Index), zap.Int("pid", slot.PID))
			_ = signalPID(slot.PID, syscall.SIGKILL)
		}
	}
}

func anyWorkerAlive(rs state.RunState) bool {
	for _, slot := range rs.Workers {
		if slot.Status == state.SlotRunning && pidAlive(slot.PID) {
			return true
		}
	}
	return false
}

func signalPID(pid int, sig os.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(sig)
}
