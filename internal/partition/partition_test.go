package partition

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blur702/legiscrawl/internal/roster"
)

func makeMembers(n int) []roster.Member {
	members := make([]roster.Member, n)
	for i := range members {
		members[i] = roster.Member{
			ID:  fmt.Sprintf("member-%03d", i),
			URL: fmt.Sprintf("https://example.gov/%d", i),
		}
	}
	return members
}

func TestSplit_TotalityAndDisjointness(t *testing.T) {
	t.Parallel()

	for _, listLen := range []int{0, 1, 2, 5, 20, 441} {
		for _, workers := range []int{1, 2, 3, 7, 20, 500} {
			name := fmt.Sprintf("len=%d/workers=%d", listLen, workers)
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				members := makeMembers(listLen)
				assignments, err := Split(members, workers)
				require.NoError(t, err)
				require.Len(t, assignments, workers)

				seen := make(map[string]int)
				total := 0
				for _, a := range assignments {
					total += len(a)
					for _, m := range a {
						seen[m.ID]++
					}
				}
				require.Equal(t, listLen, total)
				for id, count := range seen {
					require.Equal(t, 1, count, "member %s assigned %d times", id, count)
				}
			})
		}
	}
}

func TestSplit_RemainderGoesToFirstWorkers(t *testing.T) {
	t.Parallel()

	// 10 members over 3 workers: sizes 4, 3, 3.
	assignments, err := Split(makeMembers(10), 3)
	require.NoError(t, err)
	require.Len(t, assignments[0], 4)
	require.Len(t, assignments[1], 3)
	require.Len(t, assignments[2], 3)
}

func TestSplit_PreservesOrderWithinAssignment(t *testing.T) {
	t.Parallel()

	members := makeMembers(9)
	assignments, err := Split(members, 2)
	require.NoError(t, err)

	// Contiguous blocks: worker 0 owns the prefix, worker 1 the suffix.
	require.Equal(t, members[:5], assignments[0])
	require.Equal(t, members[5:], assignments[1])
}

func TestSplit_Deterministic(t *testing.T) {
	t.Parallel()

	members := makeMembers(441)
	first, err := Split(members, 20)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Split(members, 20)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestSplit_MoreWorkersThanWork(t *testing.T) {
	t.Parallel()

	assignments, err := Split(makeMembers(2), 5)
	require.NoError(t, err)
	require.Len(t, assignments[0], 1)
	require.Len(t, assignments[1], 1)
	for i := 2; i < 5; i++ {
		require.Empty(t, assignments[i])
	}
}

func TestSplit_InvalidWorkerCount(t *testing.T) {
	t.Parallel()

	_, err := Split(makeMembers(3), 0)
	require.Error(t, err)
	_, err = Split(makeMembers(3), -1)
	require.Error(t, err)
}

func TestForWorker(t *testing.T) {
	t.Parallel()

	members := makeMembers(10)
	all, err := Split(members, 4)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		own, err := ForWorker(members, 4, i)
		require.NoError(t, err)
		require.Equal(t, all[i], own)
	}

	_, err = ForWorker(members, 4, 4)
	require.Error(t, err)
	_, err = ForWorker(members, 4, -1)
	require.Error(t, err)
}
