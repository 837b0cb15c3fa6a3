// Package state persists the coordination records the worker pool shares:
// per-worker checkpoints, per-worker heartbeats, and the supervisor's run
// state. Each record lives in its own file keyed by worker index, so there is
// exactly one writer per file and no cross-process locking. Crash safety
// comes from the write-to-temp-then-rename pattern: a reader never observes
// a half-written record.
//
// Layout under the state root:
//
//	<root>/runstate.json
//	<root>/<run_id>/checkpoints/worker-<index>.json
//	<root>/<run_id>/heartbeats/worker-<index>.json
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Clock abstracts time.Now for staleness logic and record timestamps.
type Clock interface {
	Now() time.Time
}

// RunStateFile is the name of the supervisor's persisted run record.
const RunStateFile = "runstate.json"

func checkpointDir(root, runID string) string {
	return filepath.Join(root, runID, "checkpoints")
}

func heartbeatDir(root, runID string) string {
	return filepath.Join(root, runID, "heartbeats")
}

func workerFile(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("worker-%d.json", index))
}

// writeFileAtomic marshals v to JSON and renames it into place. The temp file
// lives in the target directory so the rename stays on one filesystem.
func writeFileAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create state dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
