// Package supervisor runs the worker pool: it spawns one process per worker
// slot, polls the heartbeat store for liveness, restarts dead workers within
// a bounded budget, and aggregates run status for the control surface.
//
// Coordination is entirely through the durable state directory plus process
// signals. The supervisor never writes a worker's checkpoint or heartbeat;
// it only reads them. A worker whose heartbeat goes stale is the one and
// only signal that it is dead.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blur702/legiscrawl/internal/config"
	"github.com/blur702/legiscrawl/internal/metrics"
	"github.com/blur702/legiscrawl/internal/roster"
	"github.com/blur702/legiscrawl/internal/state"
)

// ErrRunActive is returned by Run when another supervisor already owns an
// active run. Start is idempotent: callers report the existing run's status
// instead of double-spawning.
var ErrRunActive = errors.New("a run is already active")

// Supervisor owns one run of the worker pool.
type Supervisor struct {
	cfg      config.Config
	launcher Launcher
	clock    state.Clock
	logger   *zap.Logger

	runID      string
	started    time.Time
	heartbeats *state.HeartbeatStore
	procs      map[int]Process
	spawnedAt  map[int]time.Time
	slots      []state.WorkerSlot
}

// New constructs a Supervisor.
func New(cfg config.Config, launcher Launcher, clock state.Clock, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		cfg:       cfg,
		launcher:  launcher,
		clock:     clock,
		logger:    logger,
		procs:     make(map[int]Process),
		spawnedAt: make(map[int]time.Time),
	}
}

// RunID returns the id of the run this supervisor started.
func (s *Supervisor) RunID() string {
	return s.runID
}

// Run starts a new run and supervises it until every slot reaches a terminal
// status or ctx is canceled (graceful stop). It refuses to start while
// another supervisor's run is active.
func (s *Supervisor) Run(ctx context.Context) error {
	root := s.cfg.State.RootDir
	if existing, err := state.LoadRunState(root); err == nil {
		if existing.Active && pidAlive(existing.SupervisorPID) {
			return fmt.Errorf("%w (run %s, supervisor pid %d)", ErrRunActive, existing.RunID, existing.SupervisorPID)
		}
	} else if !errors.Is(err, state.ErrNoRun) {
		return fmt.Errorf("inspect previous run: %w", err)
	}

	// Fail fast on a bad roster before spawning anything; workers load
	// the same file themselves.
	members, err := roster.Load(s.cfg.Roster.Path)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}

	s.runID = uuid.NewString()
	s.started = s.clock.Now()
	s.heartbeats = state.NewHeartbeatStore(root, s.runID, s.clock)
	s.slots = make([]state.WorkerSlot, s.cfg.Pool.WorkerCount)
	for i := range s.slots {
		s.slots[i] = state.WorkerSlot{Index: i, Status: state.SlotRunning}
	}
	s.logger.Info("run starting",
		zap.String("run_id", s.runID),
		zap.Int("workers", s.cfg.Pool.WorkerCount),
		zap.Int("units", len(members)),
	)

	for i := range s.slots {
		if err := s.spawn(ctx, i, 0); err != nil {
			// Spawn failures at startup abort the run; half a pool is
			// worse than a clean retry.
			s.terminateAll()
			return fmt.Errorf("spawn worker %d: %w", i, err)
		}
	}
	if err := s.persist(true); err != nil {
		s.terminateAll()
		return fmt.Errorf("persist run state: %w", err)
	}

	ticker := time.NewTicker(s.cfg.Pool.SupervisionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stop requested, draining workers")
			s.stopWorkers()
			if err := s.persist(false); err != nil {
				s.logger.Error("persist run state failed", zap.Error(err))
			}
			return nil
		case <-ticker.C:
			s.tick(ctx)
			if err := s.persist(s.activeSlots() > 0); err != nil {
				s.logger.Error("persist run state failed", zap.Error(err))
			}
			if s.activeSlots() == 0 {
				s.logger.Info("run finished", zap.String("run_id", s.runID))
				return nil
			}
		}
	}
}

// tick is one supervision pass: classify every non-terminal slot from its
// heartbeat and restart the dead ones within budget.
func (s *Supervisor) tick(ctx context.Context) {
	now := s.clock.Now()
	alive := 0
	for i := range s.slots {
		slot := &s.slots[i]
		if slot.Status != state.SlotRunning {
			continue
		}

		hb, ok := s.heartbeats.Read(i)
		if ok {
			metrics.SetHeartbeatAge(i, now.Sub(hb.LastSeenAt))
		}
		switch {
		case ok && hb.State == state.StateIdle:
			slot.Status = state.SlotDone
			s.logger.Info("worker finished assignment", zap.Int("worker", i))
		case ok && hb.State == state.StateStopped:
			slot.Status = state.SlotStopped
			s.logger.Info("worker stopped cleanly", zap.Int("worker", i))
		case s.isStale(hb, ok, i, now):
			s.handleDead(ctx, slot)
		default:
			alive++
		}
	}
	metrics.SetWorkersAlive(alive)
}

// isStale applies the liveness rule. A worker that has not written any
// heartbeat yet is measured from its spawn time.
func (s *Supervisor) isStale(hb state.Heartbeat, ok bool, index int, now time.Time) bool {
	if ok {
		return hb.Stale(now, s.cfg.Pool.HeartbeatTimeout)
	}
	return now.Sub(s.spawnedAt[index]) > s.cfg.Pool.HeartbeatTimeout
}

// handleDead restarts a dead worker, or marks the slot permanently failed
// once its restart budget is exhausted. Other slots keep running either way.
func (s *Supervisor) handleDead(ctx context.Context, slot *state.WorkerSlot) {
	// Make sure the old process is gone, whether we are about to respawn
	// into the same files or giving up on the slot. A stale worker may be
	// hung rather than dead, and its successor must never share the
	// slot's checkpoint and heartbeat files with it. The exit code is
	// only valid once the process has been reaped, so wait for Done
	// after the kill.
	if proc, exists := s.procs[slot.Index]; exists {
		select {
		case <-proc.Done():
		default:
			_ = proc.Signal(syscall.SIGKILL)
			<-proc.Done()
		}
		code := proc.ExitCode()
		slot.LastExitCode = &code
	}

	if slot.RestartCount >= s.cfg.Pool.MaxRestartsPerWorker {
		slot.Status = state.SlotFailed
		s.logger.Error("worker exhausted restart budget",
			zap.Int("worker", slot.Index),
			zap.Int("restarts", slot.RestartCount),
		)
		return
	}

	next := slot.RestartCount + 1
	s.logger.Warn("worker declared dead, restarting",
		zap.Int("worker", slot.Index),
		zap.Int("restart", next),
		zap.Int("budget", s.cfg.Pool.MaxRestartsPerWorker),
	)
	if err := s.spawn(ctx, slot.Index, next); err != nil {
		s.logger.Error("respawn failed", zap.Int("worker", slot.Index), zap.Error(err))
		return
	}
	slot.RestartCount = next
	metrics.ObserveRestart()
}

func (s *Supervisor) spawn(ctx context.Context, index, restartCount int) error {
	proc, err := s.launcher.Launch(ctx, index, s.runID, restartCount)
	if err != nil {
		return err
	}
	s.procs[index] = proc
	s.spawnedAt[index] = s.clock.Now()
	s.slots[index].PID = proc.PID()
	return nil
}

// stopWorkers terminates live workers gracefully: SIGTERM, a grace period to
// finish the in-flight unit and flush, then SIGKILL for stragglers. The
// grace period is shared across the pool: one absolute deadline, with a
// fresh timer per worker so every straggler past it gets killed, not just
// the first.
func (s *Supervisor) stopWorkers() {
	deadline := s.clock.Now().Add(s.cfg.Pool.StopGracePeriod)
	for i := range s.slots {
		if s.slots[i].Status != state.SlotRunning {
			continue
		}
		if proc, exists := s.procs[i]; exists {
			_ = proc.Signal(syscall.SIGTERM)
		}
	}
	for i := range s.slots {
		slot := &s.slots[i]
		if slot.Status != state.SlotRunning {
			continue
		}
		proc, exists := s.procs[i]
		if !exists {
			slot.Status = state.SlotStopped
			continue
		}
		timer := time.NewTimer(deadline.Sub(s.clock.Now()))
		select {
		case <-proc.Done():
			timer.Stop()
		case <-timer.C:
			s.logger.Warn("worker did not stop in time, killing", zap.Int("worker", i))
			_ = proc.Signal(syscall.SIGKILL)
			<-proc.Done()
		}
		code := proc.ExitCode()
		slot.LastExitCode = &code
		slot.Status = state.SlotStopped
	}
}

// terminateAll is the abort path for startup failures.
func (s *Supervisor) terminateAll() {
	for _, proc := range s.procs {
		_ = proc.Signal(syscall.SIGKILL)
	}
}

func (s *Supervisor) activeSlots() int {
	n := 0
	for i := range s.slots {
		if s.slots[i].Status == state.SlotRunning {
			n++
		}
	}
	return n
}

func (s *Supervisor) persist(active bool) error {
	rs := state.RunState{
		RunID:         s.runID,
		WorkerCount:   s.cfg.Pool.WorkerCount,
		SupervisorPID: os.Getpid(),
		StartedAt:     s.started,
		UpdatedAt:     s.clock.Now(),
		Active:        active,
		Workers:       append([]state.WorkerSlot(nil), s.slots...),
	}
	return state.SaveRunState(s.cfg.State.RootDir, rs)
}
