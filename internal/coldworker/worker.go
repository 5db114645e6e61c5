// Package coldworker implements the cold-path worker: a long-lived
// background task that drains the offload queue and runs each job through
// the Semantic Manager, pausing while a session's LLM generation is
// in flight.
package coldworker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"vicw/internal/offloadqueue"
	"vicw/internal/semantic"
)

// PauseSignal reports whether the worker must yield right now. The
// orchestrator flips this per-session via the session registry; the worker
// only needs a global view since it processes one batch at a time and a
// paused session simply means "don't start new work this tick" — any
// in-flight job for a different session still completes — the pause latch
// exists to avoid CPU contention with an LLM call, not to serialize across
// sessions.
type PauseSignal func() bool

// Worker drains batches from a queue and processes them with a Semantic
// Manager. One Worker runs per process.
type Worker struct {
	queue      offloadqueue.Backend
	manager    *semantic.Manager
	paused     PauseSignal
	idleSleep  time.Duration
	batchSize  int
	log        zerolog.Logger

	processed uint64
	failed    uint64
}

// New constructs a Worker. idleSleep is t_idle (default 100ms); batchSize
// bounds how many jobs are drained per poll.
func New(queue offloadqueue.Backend, manager *semantic.Manager, paused PauseSignal, idleSleep time.Duration, batchSize int, log zerolog.Logger) *Worker {
	if batchSize <= 0 {
		batchSize = 8
	}
	if paused == nil {
		paused = func() bool { return false }
	}
	return &Worker{queue: queue, manager: manager, paused: paused, idleSleep: idleSleep, batchSize: batchSize, log: log}
}

// Run blocks, draining and processing batches until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if w.paused() {
			sleep(ctx, w.idleSleep)
			continue
		}

		batch := w.queue.DrainBatch(w.batchSize)
		if len(batch) == 0 {
			sleep(ctx, w.idleSleep)
			continue
		}

		for _, job := range batch {
			if w.paused() {
				// Yield promptly mid-batch rather than starving the LLM
				// call on the same session.
				sleep(ctx, w.idleSleep)
			}
			outcome := w.manager.Process(ctx, job, w.log)
			atomic.AddUint64(&w.processed, 1)
			if outcome.AnyFailed() {
				atomic.AddUint64(&w.failed, 1)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Stats reports the worker section of GET /stats.
type Stats struct {
	IsRunning     bool
	ProcessedCount uint64
	FailedCount    uint64
	SuccessRate    float64
}

func (w *Worker) Stats(running bool) Stats {
	processed := atomic.LoadUint64(&w.processed)
	failed := atomic.LoadUint64(&w.failed)
	rate := 1.0
	if processed > 0 {
		rate = float64(processed-failed) / float64(processed)
	}
	return Stats{IsRunning: running, ProcessedCount: processed, FailedCount: failed, SuccessRate: rate}
}
