package state

import (
	"encoding/json"
	"os"
	"time"
)

// WorkerState is the lifecycle state a worker reports in its heartbeat.
type WorkerState string

const (
	// StateStarting means the worker is deriving its assignment and
	// loading its checkpoint.
	StateStarting WorkerState = "starting"
	// StateWorking means the worker is processing units.
	StateWorking WorkerState = "working"
	// StateIdle is the terminal marker for a worker that finished its
	// whole assignment and exited cleanly.
	StateIdle WorkerState = "idle"
	// StateStopping means the worker received a termination signal and is
	// finishing its in-flight unit.
	StateStopping WorkerState = "stopping"
	// StateStopped is the terminal marker for a worker that exited after
	// a graceful stop with work remaining.
	StateStopped WorkerState = "stopped"
)

// Terminal reports whether the state marks a clean, non-restartable exit.
func (s WorkerState) Terminal() bool {
	return s == StateIdle || s == StateStopped
}

// Heartbeat is one worker's durable liveness record. LastSeenAt strictly
// increases while the worker is alive; staleness beyond the configured
// timeout is the sole liveness signal the supervisor acts on.
type Heartbeat struct {
	WorkerIndex   int         `json:"worker_index"`
	RunID         string      `json:"run_id"`
	PID           int         `json:"pid"`
	State         WorkerState `json:"state"`
	CurrentUnitID string      `json:"current_unit_id,omitempty"`
	RestartCount  int         `json:"restart_count"`
	LastSeenAt    time.Time   `json:"last_seen_at"`
}

// HeartbeatStore reads and writes per-worker heartbeat files under one run's
// state directory. Writes are small and atomic; Beat never blocks on the
// scrape path because the worker calls it from its own cadence loop.
type HeartbeatStore struct {
	dir   string
	runID string
	clock Clock
}

// NewHeartbeatStore creates a store rooted at root for the given run.
func NewHeartbeatStore(root, runID string, clock Clock) *HeartbeatStore {
	return &HeartbeatStore{
		dir:   heartbeatDir(root, runID),
		runID: runID,
		clock: clock,
	}
}

// Beat writes the worker's heartbeat with a fresh timestamp.
func (s *HeartbeatStore) Beat(index, pid, restartCount int, ws WorkerState, currentUnitID string) error {
	hb := Heartbeat{
		WorkerIndex:   index,
		RunID:         s.runID,
		PID:           pid,
		State:         ws,
		CurrentUnitID: currentUnitID,
		RestartCount:  restartCount,
		LastSeenAt:    s.clock.Now(),
	}
	return writeFileAtomic(workerFile(s.dir, index), hb)
}

// Read returns one worker's heartbeat, or ok=false if none exists yet.
// A corrupt or wrong-run file reads as absent; the supervisor treats a
// missing heartbeat like a stale one once the timeout lapses.
func (s *HeartbeatStore) Read(index int) (Heartbeat, bool) {
	data, err := os.ReadFile(workerFile(s.dir, index))
	if err != nil {
		return Heartbeat{}, false
	}
	var hb Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil || hb.RunID != s.runID {
		return Heartbeat{}, false
	}
	return hb, true
}

// ReadAll returns the heartbeats of all worker slots that have written one.
func (s *HeartbeatStore) ReadAll(workerCount int) map[int]Heartbeat {
	out := make(map[int]Heartbeat, workerCount)
	for i := 0; i < workerCount; i++ {
		if hb, ok := s.Read(i); ok {
			out[i] = hb
		}
	}
	return out
}

// Stale reports whether the heartbeat's age exceeds timeout at time now.
func (hb Heartbeat) Stale(now time.Time, timeout time.Duration) bool {
	return now.Sub(hb.LastSeenAt) > timeout
}
