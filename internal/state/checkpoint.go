package state

import (
	"encoding/json"
	"os"
	"sort"
	"time"
)

// Checkpoint is one worker's durable progress record. The owning worker is
// the only writer; the supervisor only reads it to report progress.
type Checkpoint struct {
	WorkerIndex int       `json:"worker_index"`
	RunID       string    `json:"run_id"`
	Completed   []string  `json:"completed_unit_ids"`
	Failed      []string  `json:"failed_unit_ids,omitempty"`
	LastUnitID  string    `json:"last_unit_id,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Done reports whether a unit has been recorded, successfully or with error.
// Both count as processed for resume purposes so a permanently broken unit is
// never retried within a run.
func (c Checkpoint) Done(unitID string) bool {
	for _, id := range c.Completed {
		if id == unitID {
			return true
		}
	}
	for _, id := range c.Failed {
		if id == unitID {
			return true
		}
	}
	return false
}

// DoneCount returns the number of processed units, failures included.
func (c Checkpoint) DoneCount() int {
	return len(c.Completed) + len(c.Failed)
}

// CheckpointStore reads and writes per-worker checkpoint files under one
// run's state directory. Record batches writes: the file is flushed every
// Interval recorded units, trading a small amount of redone work on crash
// for reduced I/O. Callers must Flush before exiting.
type CheckpointStore struct {
	dir      string
	runID    string
	interval int
	clock    Clock

	completed map[int]map[string]struct{}
	failed    map[int]map[string]struct{}
	last      map[int]string
	unflushed map[int]int
}

// NewCheckpointStore creates a store rooted at root for the given run.
// interval <= 1 flushes on every recorded unit.
func NewCheckpointStore(root, runID string, interval int, clock Clock) *CheckpointStore {
	if interval < 1 {
		interval = 1
	}
	return &CheckpointStore{
		dir:       checkpointDir(root, runID),
		runID:     runID,
		interval:  interval,
		clock:     clock,
		completed: make(map[int]map[string]struct{}),
		failed:    make(map[int]map[string]struct{}),
		last:      make(map[int]string),
		unflushed: make(map[int]int),
	}
}

// Load reads a worker's checkpoint from disk and primes the in-memory sets.
// A missing, corrupt, or wrong-run checkpoint degrades to an empty one: the
// worker redoes work instead of getting stuck.
func (s *CheckpointStore) Load(index int) Checkpoint {
	cp := Checkpoint{WorkerIndex: index, RunID: s.runID}
	data, err := os.ReadFile(workerFile(s.dir, index))
	if err == nil {
		var loaded Checkpoint
		if jsonErr := json.Unmarshal(data, &loaded); jsonErr == nil && loaded.RunID == s.runID {
			cp = loaded
			cp.WorkerIndex = index
		}
	}
	s.completed[index] = toSet(cp.Completed)
	s.failed[index] = toSet(cp.Failed)
	s.last[index] = cp.LastUnitID
	s.unflushed[index] = 0
	return cp
}

// Record marks a unit as completed. Recording the same unit twice is a no-op
// (set semantics) and does not count toward the flush interval.
func (s *CheckpointStore) Record(index int, unitID string) error {
	return s.record(index, unitID, false)
}

// RecordFailed marks a unit as completed-with-error. The unit is treated as
// processed from then on; the pool does not loop retrying a broken unit.
func (s *CheckpointStore) RecordFailed(index int, unitID string) error {
	return s.record(index, unitID, true)
}

func (s *CheckpointStore) record(index int, unitID string, failed bool) error {
	target := s.completed
	if failed {
		target = s.failed
	}
	set := target[index]
	if set == nil {
		set = make(map[string]struct{})
		target[index] = set
	}
	if _, dup := set[unitID]; dup {
		return nil
	}
	set[unitID] = struct{}{}
	s.last[index] = unitID
	s.unflushed[index]++
	if s.unflushed[index] >= s.interval {
		return s.Flush(index)
	}
	return nil
}

// Flush writes the worker's checkpoint file atomically.
func (s *CheckpointStore) Flush(index int) error {
	cp := Checkpoint{
		WorkerIndex: index,
		RunID:       s.runID,
		Completed:   toSorted(s.completed[index]),
		Failed:      toSorted(s.failed[index]),
		LastUnitID:  s.last[index],
		UpdatedAt:   s.clock.Now(),
	}
	if err := writeFileAtomic(workerFile(s.dir, index), cp); err != nil {
		return err
	}
	s.unflushed[index] = 0
	return nil
}

// LoadAll reads every worker's checkpoint for status reporting. It does not
// touch the in-memory write state, so a supervisor-side store never clobbers
// worker-owned progress.
func (s *CheckpointStore) LoadAll(workerCount int) map[int]Checkpoint {
	out := make(map[int]Checkpoint, workerCount)
	for i := 0; i < workerCount; i++ {
		data, err := os.ReadFile(workerFile(s.dir, i))
		if err != nil {
			continue
		}
		var cp Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil || cp.RunID != s.runID {
			continue
		}
		out[i] = cp
	}
	return out
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func toSorted(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
