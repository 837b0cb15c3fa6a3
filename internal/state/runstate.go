package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNoRun is returned when no run state has been persisted yet.
var ErrNoRun = errors.New("no run state recorded")

// SlotStatus describes a worker slot from the supervisor's point of view.
type SlotStatus string

const (
	// SlotRunning means the slot has a live (or not-yet-declared-dead) process.
	SlotRunning SlotStatus = "running"
	// SlotDone means the slot finished its assignment and exited cleanly.
	SlotDone SlotStatus = "done"
	// SlotStopped means the slot exited after a graceful stop.
	SlotStopped SlotStatus = "stopped"
	// SlotFailed means the slot exhausted its restart budget.
	SlotFailed SlotStatus = "failed"
)

// WorkerSlot tracks one worker slot across process restarts within a run.
type WorkerSlot struct {
	Index        int        `json:"index"`
	PID          int        `json:"pid"`
	RestartCount int        `json:"restart_count"`
	Status       SlotStatus `json:"status"`
	LastExitCode *int       `json:"last_exit_code,omitempty"`
}

// RunState is the supervisor-owned record of the active (or last) run. It is
// persisted so stop/status/check invoked from a separate process can find the
// run without any IPC channel.
type RunState struct {
	RunID         string       `json:"run_id"`
	WorkerCount   int          `json:"worker_count"`
	SupervisorPID int          `json:"supervisor_pid"`
	StartedAt     time.Time    `json:"started_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	Active        bool         `json:"active"`
	Workers       []WorkerSlot `json:"workers"`
}

// SaveRunState atomically persists the run state under root.
func SaveRunState(root string, rs RunState) error {
	return writeFileAtomic(filepath.Join(root, RunStateFile), rs)
}

// LoadRunState reads the persisted run state. ErrNoRun when absent; a corrupt
// file is an error here (unlike worker records, run state has a single owner
// and corruption means the control surface cannot be trusted).
func LoadRunState(root string) (RunState, error) {
	data, err := os.ReadFile(filepath.Join(root, RunStateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return RunState{}, ErrNoRun
		}
		return RunState{}, fmt.Errorf("read run state: %w", err)
	}
	var rs RunState
	if err := json.Unmarshal(data, &rs); err != nil {
		return RunState{}, fmt.Errorf("decode run state: %w", err)
	}
	return rs, nil
}
