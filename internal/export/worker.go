package export

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Processor handles one poll id taken from the queue.
type Processor interface {
	Process(ctx context.Context, pollID int) error
}

// WorkerPool runs a fixed number of goroutines that take poll ids from a
// queue until it is closed.
type WorkerPool struct {
	processor Processor
	workers   int
	onError   func(pollID int, err error)
}

// PoolOption configures a WorkerPool.
type PoolOption func(*WorkerPool)

// WithErrorHandler sets a function called with every processing error,
// including recovered panics.
func WithErrorHandler(fn func(pollID int, err error)) PoolOption {
	return func(wp *WorkerPool) { wp.onError = fn }
}

// NewWorkerPool creates a pool with the given number of workers.
func NewWorkerPool(processor Processor, workers int, opts ...PoolOption) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	wp := &WorkerPool{processor: processor, workers: workers}
	for _, o := range opts {
		o(wp)
	}
	return wp
}

// Run starts the workers and blocks until the queue is drained. Processing
// errors are reported to the error handler and do not stop other workers.
func (wp *WorkerPool) Run(ctx context.Context, queue <-chan int) error {
	var g errgroup.Group
	for i := range wp.workers {
		g.Go(func() error {
			wp.loop(ctx, i, queue)
			return nil
		})
	}
	return g.Wait()
}

func (wp *WorkerPool) loop(ctx context.Context, id int, queue <-chan int) {
	for pollID := range queue {
		slog.Info("worker: processing poll", "worker", id, "poll", pollID)

		if err := wp.process(ctx, pollID); err != nil {
			slog.Error("worker: process poll", "worker", id, "poll", pollID, "error", err)
			if wp.onError != nil {
				wp.onError(pollID, err)
			}
		}
	}
}

// process converts a panic in the processor into an error so one bad poll
// cannot take the worker down with it.
func (wp *WorkerPool) process(ctx context.Context, pollID int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing poll %d: %v", pollID, r)
		}
	}()
	return wp.processor.Process(ctx, pollID)
}
