// Package worker implements the per-process scrape loop.
//
// A worker owns one slot of the run. It derives its assignment from the
// shared roster, subtracts checkpointed progress, and processes the remaining
// units in order: rate-limit gate, fetch/extract, sink write, checkpoint.
// Liveness is reported on a dedicated heartbeat cadence that is independent
// of unit completion, so a worker stuck on one slow unit still looks alive
// while a dead process goes stale.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blur702/legiscrawl/internal/metrics"
	"github.com/blur702/legiscrawl/internal/partition"
	"github.com/blur702/legiscrawl/internal/ratelimit"
	"github.com/blur702/legiscrawl/internal/roster"
	"github.com/blur702/legiscrawl/internal/scrape"
	"github.com/blur702/legiscrawl/internal/state"
)

// Config controls Worker behavior.
type Config struct {
	Index             int
	WorkerCount       int
	RunID             string
	PID               int
	RestartCount      int
	RequestTimeout    time.Duration
	HeartbeatInterval time.Duration
}

// Worker processes one slot's assignment.
type Worker struct {
	cfg         Config
	members     []roster.Member
	checkpoints *state.CheckpointStore
	heartbeats  *state.HeartbeatStore
	limiter     *ratelimit.Limiter
	extractor   scrape.Extractor
	sink        scrape.Sink
	logger      *zap.Logger

	mu          sync.Mutex
	beatState   state.WorkerState
	currentUnit string
}

// New constructs a Worker. members is the full roster; the worker derives its
// own assignment from it.
func New(
	cfg Config,
	members []roster.Member,
	checkpoints *state.CheckpointStore,
	heartbeats *state.HeartbeatStore,
	limiter *ratelimit.Limiter,
	extractor scrape.Extractor,
	sink scrape.Sink,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 15 * time.Second
	}
	return &Worker{
		cfg:         cfg,
		members:     members,
		checkpoints: checkpoints,
		heartbeats:  heartbeats,
		limiter:     limiter,
		extractor:   extractor,
		sink:        sink,
		logger:      logger,
		beatState:   state.StateStarting,
	}
}

// Run executes the worker until its assignment is exhausted or ctx is
// canceled. Cancellation is cooperative: the in-flight unit is finished, the
// checkpoint flushed, and a terminal heartbeat written before returning. The
// error return covers infrastructure failures only; per-unit scrape errors
// are recorded in the checkpoint and do not stop the worker.
func (w *Worker) Run(ctx context.Context) error {
	assignment, err := partition.ForWorker(w.members, w.cfg.WorkerCount, w.cfg.Index)
	if err != nil {
		return fmt.Errorf("derive assignment: %w", err)
	}

	cp := w.checkpoints.Load(w.cfg.Index)
	remaining := make([]roster.Member, 0, len(assignment))
	for _, m := range assignment {
		if !cp.Done(m.ID) {
			remaining = append(remaining, m)
		}
	}
	w.logger.Info("worker starting",
		zap.String("run_id", w.cfg.RunID),
		zap.Int("assigned", len(assignment)),
		zap.Int("already_done", len(assignment)-len(remaining)),
		zap.Int("remaining", len(remaining)),
	)

	if err := w.beat(); err != nil {
		return fmt.Errorf("initial heartbeat: %w", err)
	}
	stopBeats := w.startHeartbeatLoop(ctx)
	defer stopBeats()

	stopped := false
	for _, m := range remaining {
		if ctx.Err() != nil {
			stopped = true
			break
		}
		w.setStatus(state.StateWorking, m.ID)
		w.processUnit(ctx, m)
	}

	if err := w.checkpoints.Flush(w.cfg.Index); err != nil {
		w.logger.Error("final checkpoint flush failed", zap.Error(err))
	}

	final := state.StateIdle
	if stopped {
		final = state.StateStopped
	}
	w.setStatus(final, "")
	stopBeats()
	if err := w.beat(); err != nil {
		return fmt.Errorf("final heartbeat: %w", err)
	}
	w.logger.Info("worker finished", zap.String("state", string(final)))
	return nil
}

// processUnit runs the rate gate and the fetch/extract/sink pipeline for one
// member. Failures are logged with the unit id and recorded as
// completed-with-error so a permanently broken unit never wedges the pool.
func (w *Worker) processUnit(ctx context.Context, m roster.Member) {
	if err := w.limiter.Wait(ctx); err != nil {
		// Context ended inside the gate; the unit was never started, so
		// it stays unrecorded and is picked up on resume.
		return
	}

	// The fetch gets its own deadline detached from stop-cancellation:
	// stop means "finish the in-flight unit", not "abort it". Only the
	// per-request timeout bounds a hung fetch.
	unitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	content, err := w.extractor.FetchAndExtract(unitCtx, m)
	if err == nil {
		err = w.sink.Write(unitCtx, content)
	}
	duration := time.Since(start)

	if err != nil {
		w.logger.Warn("unit failed",
			zap.String("unit_id", m.ID),
			zap.String("url", m.URL),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		metrics.ObserveUnit("error", duration)
		if cpErr := w.checkpoints.RecordFailed(w.cfg.Index, m.ID); cpErr != nil {
			w.logger.Error("checkpoint record failed", zap.String("unit_id", m.ID), zap.Error(cpErr))
		}
		return
	}

	w.logger.Debug("unit completed",
		zap.String("unit_id", m.ID),
		zap.Int("pages", len(content.Pages)),
		zap.Duration("duration", duration),
	)
	metrics.ObserveUnit("ok", duration)
	if cpErr := w.checkpoints.Record(w.cfg.Index, m.ID); cpErr != nil {
		w.logger.Error("checkpoint record failed", zap.String("unit_id", m.ID), zap.Error(cpErr))
	}
}

// startHeartbeatLoop emits heartbeats on a fixed cadence until stopped. The
// returned function stops the loop and is safe to call more than once.
func (w *Worker) startHeartbeatLoop(ctx context.Context) func() {
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() { close(done) })
	}
	go func() {
		ticker := time.NewTicker(w.cfg.HeartbeatInterval)
		defer ticker.Stop()
		ctxDone := ctx.Done()
		for {
			select {
			case <-ticker.C:
				if err := w.beat(); err != nil {
					w.logger.Error("heartbeat write failed", zap.Error(err))
				}
			case <-done:
				return
			case <-ctxDone:
				// Keep beating while the in-flight unit drains; the
				// stopping marker tells the supervisor what is happening.
				w.setStopping()
				ctxDone = nil
			}
		}
	}()
	return stop
}

func (w *Worker) setStatus(ws state.WorkerState, unitID string) {
	w.mu.Lock()
	w.beatState = ws
	w.currentUnit = unitID
	w.mu.Unlock()
}

func (w *Worker) setStopping() {
	w.mu.Lock()
	if !w.beatState.Terminal() {
		w.beatState = state.StateStopping
	}
	w.mu.Unlock()
}

func (w *Worker) beat() error {
	w.mu.Lock()
	ws, unit := w.beatState, w.currentUnit
	w.mu.Unlock()
	return w.heartbeats.Beat(w.cfg.Index, w.cfg.PID, w.cfg.RestartCount, ws, unit)
}
