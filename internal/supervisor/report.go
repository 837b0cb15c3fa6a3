package supervisor

import (
	"fmt"
	"time"

	"github.com/blur702/legiscrawl/internal/config"
	"github.com/blur702/legiscrawl/internal/partition"
	"github.com/blur702/legiscrawl/internal/roster"
	"github.com/blur702/legiscrawl/internal/state"
)

// Health classifies the run as a whole.
type Health string

const (
	// HealthOK means every worker slot is alive or cleanly done.
	HealthOK Health = "ok"
	// HealthDegraded means at least one slot exhausted its restart budget
	// while others keep running.
	HealthDegraded Health = "degraded"
	// HealthDead means no slot is progressing and work remains.
	HealthDead Health = "dead"
)

// WorkerReport is one slot's line in the status report.
type WorkerReport struct {
	Index         int       `json:"index"`
	PID           int       `json:"pid"`
	State         string    `json:"state"`
	RestartCount  int       `json:"restart_count"`
	Assigned      int       `json:"assigned"`
	Completed     int       `json:"completed"`
	Failed        int       `json:"failed"`
	CurrentUnitID string    `json:"current_unit_id,omitempty"`
	LastSeenAt    time.Time `json:"last_seen_at,omitzero"`
	Stale         bool      `json:"stale"`
}

// Report merges run state, heartbeats, and checkpoint progress into one view.
type Report struct {
	RunID          string         `json:"run_id"`
	Active         bool           `json:"active"`
	Health         Health         `json:"health"`
	StartedAt      time.Time      `json:"started_at"`
	WorkerCount    int            `json:"worker_count"`
	TotalUnits     int            `json:"total_units"`
	CompletedUnits int            `json:"completed_units"`
	FailedUnits    int            `json:"failed_units"`
	Workers        []WorkerReport `json:"workers"`
}

// Status builds the full run report from the durable stores. It is read-only
// and safe to call from any process, whether or not a supervisor is running.
func Status(cfg config.Config, clock state.Clock) (Report, error) {
	rs, err := state.LoadRunState(cfg.State.RootDir)
	if err != nil {
		return Report{}, fmt.Errorf("load run state: %w", err)
	}

	members, err := roster.Load(cfg.Roster.Path)
	if err != nil {
		return Report{}, fmt.Errorf("load roster: %w", err)
	}
	assignments, err := partition.Split(members, rs.WorkerCount)
	if err != nil {
		return Report{}, fmt.Errorf("partition roster: %w", err)
	}

	heartbeats := state.NewHeartbeatStore(cfg.State.RootDir, rs.RunID, clock)
	checkpoints := state.NewCheckpointStore(cfg.State.RootDir, rs.RunID, 1, clock)
	allHB := heartbeats.ReadAll(rs.WorkerCount)
	allCP := checkpoints.LoadAll(rs.WorkerCount)

	now := clock.Now()
	report := Report{
		RunID:       rs.RunID,
		Active:      rs.Active,
		StartedAt:   rs.StartedAt,
		WorkerCount: rs.WorkerCount,
		TotalUnits:  len(members),
		Workers:     make([]WorkerReport, rs.WorkerCount),
	}

	for _, slot := range rs.Workers {
		i := slot.Index
		if i < 0 || i >= rs.WorkerCount {
			continue
		}
		wr := WorkerReport{
			Index:        i,
			PID:          slot.PID,
			State:        string(slot.Status),
			RestartCount: slot.RestartCount,
			Assigned:     len(assignments[i]),
		}
		if hb, ok := allHB[i]; ok {
			wr.State = string(hb.State)
			wr.PID = hb.PID
			wr.CurrentUnitID = hb.CurrentUnitID
			wr.LastSeenAt = hb.LastSeenAt
			wr.Stale = !hb.State.Terminal() && hb.Stale(now, cfg.Pool.HeartbeatTimeout)
		}
		if slot.Status == state.SlotFailed {
			// The budget verdict outranks whatever the last heartbeat said.
			wr.State = string(state.SlotFailed)
		}
		if cp, ok := allCP[i]; ok {
			wr.Completed = len(cp.Completed)
			wr.Failed = len(cp.Failed)
		}
		report.CompletedUnits += wr.Completed
		report.FailedUnits += wr.Failed
		report.Workers[i] = wr
	}

	report.Health = classify(rs, report.Workers)
	return report, nil
}

// classify derives overall run health from the per-slot views.
func classify(rs state.RunState, workers []WorkerReport) Health {
	anyFailed := false
	anyProgressing := false
	allDone := true
	for _, w := range workers {
		switch {
		case w.State == string(state.SlotFailed):
			anyFailed = true
			allDone = false
		case w.State == string(state.StateIdle) || w.State == string(state.SlotDone) ||
			w.State == string(state.StateStopped) || w.State == string(state.SlotStopped):
			// Terminal and clean.
		default:
			allDone = false
			if !w.Stale {
				anyProgressing = true
			}
		}
	}
	switch {
	case allDone:
		return HealthOK
	case anyFailed:
		return HealthDegraded
	case !anyProgressing && rs.Active:
		return HealthDead
	case !rs.Active:
		return HealthOK
	default:
		return HealthOK
	}
}

// CheckResult is the lightweight classification the check verb returns.
type CheckResult struct {
	RunID   string         `json:"run_id"`
	Active  bool           `json:"active"`
	Health  Health         `json:"health"`
	Workers map[int]string `json:"workers"` // index -> alive|stale|done|failed
}

// Check performs the staleness classification of a supervision tick without
// any side effects: no restarts, no state writes. It reads only the run
// state and heartbeats, so it stays cheap enough for schedulers to poll.
func Check(cfg config.Config, clock state.Clock) (CheckResult, error) {
	rs, err := state.LoadRunState(cfg.State.RootDir)
	if err != nil {
		return CheckResult{}, fmt.Errorf("load run state: %w", err)
	}
	heartbeats := state.NewHeartbeatStore(cfg.State.RootDir, rs.RunID, clock)
	allHB := heartbeats.ReadAll(rs.WorkerCount)

	now := clock.Now()
	result := CheckResult{
		RunID:   rs.RunID,
		Active:  rs.Active,
		Workers: make(map[int]string, rs.WorkerCount),
	}
	stale := 0
	failed := 0
	done := 0
	for _, slot := range rs.Workers {
		i := slot.Index
		if slot.Status == state.SlotFailed {
			result.Workers[i] = "failed"
			failed++
			continue
		}
		hb, ok := allHB[i]
		switch {
		case ok && hb.State.Terminal():
			result.Workers[i] = "done"
			done++
		case ok && !hb.Stale(now, cfg.Pool.HeartbeatTimeout):
			result.Workers[i] = "alive"
		default:
			result.Workers[i] = "stale"
			stale++
		}
	}

	switch {
	case done == len(result.Workers):
		result.Health = HealthOK
	case failed > 0:
		result.Health = HealthDegraded
	case rs.Active && stale+failed+done == len(result.Workers):
		result.Health = HealthDead
	default:
		result.Health = HealthOK
	}
	return result, nil
}
