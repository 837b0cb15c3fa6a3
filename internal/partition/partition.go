// Package partition divides the work list into per-worker assignments.
//
// Partitioning is a pure function of (work list, worker count, worker index).
// Workers re-derive their assignment after every restart instead of receiving
// it over IPC, so the scheme is fixed: contiguous blocks in roster order, with
// the first len%n workers taking one extra member each. The union of all
// assignments is always the full list, with no duplicates and no omissions.
package partition

import (
	"fmt"

	"github.com/blur702/legiscrawl/internal/roster"
)

// Split returns the assignment for every worker slot. Slots beyond the list
// length receive empty assignments; that is normal, not an error.
func Split(members []roster.Member, workerCount int) ([][]roster.Member, error) {
	if workerCount < 1 {
		return nil, fmt.Errorf("worker count must be >= 1, got %d", workerCount)
	}
	assignments := make([][]roster.Member, workerCount)
	base := len(members) / workerCount
	extra := len(members) % workerCount
	offset := 0
	for i := 0; i < workerCount; i++ {
		size := base
		if i < extra {
			size++
		}
		assignments[i] = members[offset : offset+size : offset+size]
		offset += size
	}
	return assignments, nil
}

// ForWorker returns the assignment owned by one worker slot.
func ForWorker(members []roster.Member, workerCount, index int) ([]roster.Member, error) {
	if index < 0 || index >= workerCount {
		return nil, fmt.Errorf("worker index %d out of range [0,%d)", index, workerCount)
	}
	assignments, err := Split(members, workerCount)
	if err != nil {
		return nil, err
	}
	return assignments[index], nil
}
