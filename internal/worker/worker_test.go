package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blur702/legiscrawl/internal/ratelimit"
	"github.com/blur702/legiscrawl/internal/roster"
	"github.com/blur702/legiscrawl/internal/scrape"
	"github.com/blur702/legiscrawl/internal/state"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0).UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type fakeExtractor struct {
	mu      sync.Mutex
	seen    []string
	failIDs map[string]bool
	block   chan struct{} // if set, FetchAndExtract waits for it per call
	started chan string   // if set, receives the unit id as each fetch begins
}

func (e *fakeExtractor) FetchAndExtract(ctx context.Context, m roster.Member) (scrape.ExtractedContent, error) {
	if e.started != nil {
		e.started <- m.ID
	}
	if e.block != nil {
		<-e.block
	}
	e.mu.Lock()
	e.seen = append(e.seen, m.ID)
	e.mu.Unlock()
	if e.failIDs[m.ID] {
		return scrape.ExtractedContent{}, errors.New("fetch blew up")
	}
	return scrape.ExtractedContent{
		UnitID:    m.ID,
		Name:      m.Name,
		SourceURL: m.URL,
		Pages:     []scrape.PageContent{{URL: m.URL, Text: "content"}},
	}, nil
}

func (e *fakeExtractor) order() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.seen...)
}

type fakeSink struct {
	mu     sync.Mutex
	writes []string
	err    error
}

func (s *fakeSink) Write(_ context.Context, content scrape.ExtractedContent) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.writes = append(s.writes, content.UnitID)
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

func makeMembers(n int) []roster.Member {
	members := make([]roster.Member, n)
	for i := range members {
		members[i] = roster.Member{
			ID:  fmt.Sprintf("m-%02d", i),
			URL: fmt.Sprintf("https://example.gov/%d", i),
		}
	}
	return members
}

type harness struct {
	root        string
	checkpoints *state.CheckpointStore
	heartbeats  *state.HeartbeatStore
	extractor   *fakeExtractor
	sink        *fakeSink
}

func newHarness(t *testing.T, runID string, cpInterval int) *harness {
	t.Helper()
	root := t.TempDir()
	return &harness{
		root:        root,
		checkpoints: state.NewCheckpointStore(root, runID, cpInterval, newFakeClock()),
		heartbeats:  state.NewHeartbeatStore(root, runID, newFakeClock()),
		extractor:   &fakeExtractor{},
		sink:        &fakeSink{},
	}
}

func (h *harness) worker(cfg Config, members []roster.Member) *Worker {
	return New(cfg, members, h.checkpoints, h.heartbeats, ratelimit.New(0), h.extractor, h.sink, nil)
}

func TestWorker_ProcessesWholeAssignmentInOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "run-1", 1)
	members := makeMembers(10)

	// Two worker slots: slot 0 owns the first five members.
	w := h.worker(Config{Index: 0, WorkerCount: 2, RunID: "run-1", PID: 100, HeartbeatInterval: time.Hour}, members)
	require.NoError(t, w.Run(context.Background()))

	require.Equal(t, []string{"m-00", "m-01", "m-02", "m-03", "m-04"}, h.extractor.order())
	require.Equal(t, []string{"m-00", "m-01", "m-02", "m-03", "m-04"}, h.sink.written())

	hb, ok := h.heartbeats.Read(0)
	require.True(t, ok)
	require.Equal(t, state.StateIdle, hb.State)
	require.Equal(t, 100, hb.PID)

	cp := state.NewCheckpointStore(h.root, "run-1", 1, newFakeClock()).Load(0)
	require.Equal(t, 5, cp.DoneCount())
	require.Empty(t, cp.Failed)
}

func TestWorker_ResumesFromCheckpoint(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "run-1", 1)
	members := makeMembers(10)

	// Simulate a previous incarnation that completed the first two units.
	prior := state.NewCheckpointStore(h.root, "run-1", 1, newFakeClock())
	prior.Load(0)
	require.NoError(t, prior.Record(0, "m-00"))
	require.NoError(t, prior.Record(0, "m-01"))

	w := h.worker(Config{Index: 0, WorkerCount: 2, RunID: "run-1", RestartCount: 1, HeartbeatInterval: time.Hour}, members)
	require.NoError(t, w.Run(context.Background()))

	// Exactly the remaining three, in original order, none reprocessed.
	require.Equal(t, []string{"m-02", "m-03", "m-04"}, h.extractor.order())

	cp := state.NewCheckpointStore(h.root, "run-1", 1, newFakeClock()).Load(0)
	require.Equal(t, 5, cp.DoneCount())

	hb, _ := h.heartbeats.Read(0)
	require.Equal(t, 1, hb.RestartCount)
}

func TestWorker_EmptyAssignmentExitsIdle(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "run-1", 1)
	// Three members, five workers: slot 4 gets nothing.
	w := h.worker(Config{Index: 4, WorkerCount: 5, RunID: "run-1", HeartbeatInterval: time.Hour}, makeMembers(3))
	require.NoError(t, w.Run(context.Background()))

	require.Empty(t, h.extractor.order())
	hb, ok := h.heartbeats.Read(4)
	require.True(t, ok)
	require.Equal(t, state.StateIdle, hb.State)
}

func TestWorker_UnitFailureIsRecordedAndSkippedOnResume(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "run-1", 1)
	h.extractor.failIDs = map[string]bool{"m-01": true}
	members := makeMembers(3)

	w := h.worker(Config{Index: 0, WorkerCount: 1, RunID: "run-1", HeartbeatInterval: time.Hour}, members)
	require.NoError(t, w.Run(context.Background()))

	require.Equal(t, []string{"m-00", "m-01", "m-02"}, h.extractor.order())
	require.Equal(t, []string{"m-00", "m-02"}, h.sink.written())

	cp := state.NewCheckpointStore(h.root, "run-1", 1, newFakeClock()).Load(0)
	require.Equal(t, []string{"m-01"}, cp.Failed)

	// A restarted worker must not retry the broken unit.
	h2 := &harness{
		root:        h.root,
		checkpoints: state.NewCheckpointStore(h.root, "run-1", 1, newFakeClock()),
		heartbeats:  h.heartbeats,
		extractor:   &fakeExtractor{},
		sink:        &fakeSink{},
	}
	w2 := h2.worker(Config{Index: 0, WorkerCount: 1, RunID: "run-1", HeartbeatInterval: time.Hour}, members)
	require.NoError(t, w2.Run(context.Background()))
	require.Empty(t, h2.extractor.order())
}

func TestWorker_SinkFailureMarksUnitFailed(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "run-1", 1)
	h.sink.err = errors.New("vector store down")

	w := h.worker(Config{Index: 0, WorkerCount: 1, RunID: "run-1", HeartbeatInterval: time.Hour}, makeMembers(2))
	require.NoError(t, w.Run(context.Background()))

	cp := state.NewCheckpointStore(h.root, "run-1", 1, newFakeClock()).Load(0)
	require.Len(t, cp.Failed, 2)
	require.Empty(t, cp.Completed)
}

func TestWorker_StopFinishesInFlightUnitThenExits(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "run-1", 1)
	h.extractor.block = make(chan struct{})
	h.extractor.started = make(chan string, 10)

	members := makeMembers(5)
	w := h.worker(Config{Index: 0, WorkerCount: 1, RunID: "run-1", HeartbeatInterval: 10 * time.Millisecond}, members)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- w.Run(ctx) }()

	// Wait until the second unit is in flight, then request a stop.
	require.Equal(t, "m-00", <-h.extractor.started)
	h.extractor.block <- struct{}{}
	require.Equal(t, "m-01", <-h.extractor.started)
	cancel()

	// The stopping marker shows up while the in-flight unit drains.
	require.Eventually(t, func() bool {
		hb, ok := h.heartbeats.Read(0)
		return ok && hb.State == state.StateStopping
	}, time.Second, 5*time.Millisecond)

	h.extractor.block <- struct{}{}
	require.NoError(t, <-runDone)

	// The in-flight unit completed and was checkpointed; no new unit started.
	require.Equal(t, []string{"m-00", "m-01"}, h.sink.written())
	cp := state.NewCheckpointStore(h.root, "run-1", 1, newFakeClock()).Load(0)
	require.Equal(t, 2, cp.DoneCount())

	hb, ok := h.heartbeats.Read(0)
	require.True(t, ok)
	require.Equal(t, state.StateStopped, hb.State)
}

func TestWorker_HeartbeatCadenceIndependentOfSlowUnit(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "run-1", 1)
	h.extractor.block = make(chan struct{})
	h.extractor.started = make(chan string, 1)

	w := h.worker(Config{Index: 0, WorkerCount: 1, RunID: "run-1", HeartbeatInterval: 5 * time.Millisecond}, makeMembers(1))

	runDone := make(chan error, 1)
	go func() { runDone <- w.Run(context.Background()) }()
	<-h.extractor.started

	// The unit is hung on the extractor, yet heartbeats keep advancing.
	var first time.Time
	require.Eventually(t, func() bool {
		hb, ok := h.heartbeats.Read(0)
		if !ok {
			return false
		}
		if first.IsZero() {
			first = hb.LastSeenAt
			return false
		}
		return hb.LastSeenAt.After(first)
	}, time.Second, 5*time.Millisecond)

	h.extractor.block <- struct{}{}
	require.NoError(t, <-runDone)
}

func TestWorker_FlushesPartialBatchOnExit(t *testing.T) {
	t.Parallel()

	// Checkpoint interval larger than the assignment: only the final
	// flush persists progress.
	h := newHarness(t, "run-1", 50)
	w := h.worker(Config{Index: 0, WorkerCount: 1, RunID: "run-1", HeartbeatInterval: time.Hour}, makeMembers(3))
	require.NoError(t, w.Run(context.Background()))

	cp := state.NewCheckpointStore(h.root, "run-1", 1, newFakeClock()).Load(0)
	require.Equal(t, 3, cp.DoneCount())
}
