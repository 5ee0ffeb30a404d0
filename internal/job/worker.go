package job

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultRescanInterval = 5 * time.Second

// Processor materializes the export file of a claimed job.
type Processor interface {
	Process(ctx context.Context, j *Job) error
}

// WorkerPool is the mock platform's export backend. Each worker claims a
// queued export, moves it to in_progress and hands it to the Processor,
// which leaves it done or error. Submissions wake a worker through Notify;
// a periodic rescan picks up exports re-queued after a restart.
type WorkerPool struct {
	repo      Repository
	processor Processor
	workers   int
	wake      chan struct{}
	rescan    time.Duration
}

// PoolOption configures a WorkerPool.
type PoolOption func(*WorkerPool)

// WithRescanInterval sets how often idle workers look for queued exports
// without being notified.
func WithRescanInterval(d time.Duration) PoolOption {
	return func(wp *WorkerPool) {
		if d > 0 {
			wp.rescan = d
		}
	}
}

func NewWorkerPool(repo Repository, processor Processor, workers int, opts ...PoolOption) *WorkerPool {
	wp := &WorkerPool{
		repo:      repo,
		processor: processor,
		workers:   max(workers, 1),
		wake:      make(chan struct{}, 1),
		rescan:    defaultRescanInterval,
	}
	for _, o := range opts {
		o(wp)
	}
	return wp
}

// Notify signals that an export was submitted. It never blocks; signals
// sent while one is pending are merged.
func (wp *WorkerPool) Notify() {
	select {
	case wp.wake <- struct{}{}:
	default:
	}
}

// Run materializes exports until ctx ends, then waits for every worker.
func (wp *WorkerPool) Run(ctx context.Context) {
	slog.Info("materializer: started", "workers", wp.workers, "rescan", wp.rescan)
	var wg sync.WaitGroup
	for w := range wp.workers {
		wg.Go(func() { wp.serve(ctx, w) })
	}
	wg.Wait()
	slog.Info("materializer: stopped")
}

func (wp *WorkerPool) serve(ctx context.Context, worker int) {
	rescan := time.NewTicker(wp.rescan)
	defer rescan.Stop()

	for {
		for wp.materializeNext(ctx, worker) {
		}
		select {
		case <-ctx.Done():
			return
		case <-wp.wake:
		case <-rescan.C:
		}
	}
}

// materializeNext claims one queued export and processes it. It reports
// whether the queue may hold more work.
func (wp *WorkerPool) materializeNext(ctx context.Context, worker int) bool {
	if ctx.Err() != nil {
		return false
	}
	j, err := wp.repo.ClaimQueued(ctx)
	switch {
	case err != nil && ctx.Err() != nil:
		return false
	case err != nil:
		slog.Error("materializer: claim export", "worker", worker, "error", err)
		return false
	case j == nil:
		return false
	}

	slog.Debug("materializer: export claimed", "worker", worker, "uuid", j.UUID, "poll", j.PollID, "format", j.FormatID)
	err = wp.processor.Process(ctx, j)
	if err == nil {
		return true
	}
	if ctx.Err() != nil {
		// Stays in_progress until RecoverStale re-queues it on the next start.
		return false
	}
	wp.markFailed(ctx, worker, j, err)
	return true
}

func (wp *WorkerPool) markFailed(ctx context.Context, worker int, j *Job, cause error) {
	slog.Warn("materializer: export failed", "worker", worker, "uuid", j.UUID, "poll", j.PollID, "error", cause)
	j.Status = StatusError
	j.Error = cause.Error()
	if err := wp.repo.Update(ctx, j); err != nil {
		slog.Error("materializer: record failure", "uuid", j.UUID, "error", err)
	}
}
