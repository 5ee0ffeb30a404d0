// Package export downloads poll exports in batches. A batch submits one
// export per poll, watches the platform's progress list, and downloads every
// export that becomes ready with a bounded pool of workers.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/ahmethakanbesel/socpanel/internal/apperror"
)

const (
	defaultWorkers      = 5
	defaultPollInterval = time.Second
	abandonAckTimeout   = 10 * time.Second
)

// Request describes one batch.
type Request struct {
	PollIDs []int
	// Names optionally names the file of each poll, in PollIDs order.
	Names  []string
	Dir    string
	Format Format
	Filter Filter
}

// Summary reports the outcome of every poll of a batch. A poll id appears in
// exactly one of the two maps.
type Summary struct {
	Downloaded map[int]string
	Failed     map[int]error
}

type Service struct {
	platform      Platform
	workers       int
	pollInterval  time.Duration
	exportTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithWorkers sets the number of download workers.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithPollInterval sets how often the progress list is fetched.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithExportTimeout bounds how long a worker waits for one export to become
// ready. Zero waits until the batch context ends.
func WithExportTimeout(d time.Duration) Option {
	return func(s *Service) { s.exportTimeout = d }
}

func NewService(p Platform, opts ...Option) *Service {
	s := &Service{
		platform:     p,
		workers:      defaultWorkers,
		pollInterval: defaultPollInterval,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Export runs one batch. When any poll fails it returns a
// *apperror.FailedPollsError together with the summary.
func (s *Service) Export(ctx context.Context, req Request) (*Summary, error) {
	format := req.Format
	if format == (Format{}) {
		format = DefaultFormat
	}
	if err := req.Filter.Validate(); err != nil {
		return nil, apperror.Wrap(apperror.BadRequest, "invalid filter", err)
	}
	paths, err := BuildPaths(req.Dir, req.PollIDs, req.Names, format)
	if err != nil {
		return nil, apperror.Wrap(apperror.BadRequest, "invalid batch", err)
	}

	registry := NewRegistry(req.PollIDs)
	b := &batch{
		platform:   s.platform,
		registry:   registry,
		paths:      paths,
		format:     format,
		filter:     req.Filter,
		timeout:    s.exportTimeout,
		downloaded: make(map[int]string, len(paths)),
	}

	queue := make(chan int, len(req.PollIDs))
	for _, id := range req.PollIDs {
		queue <- id
	}
	close(queue)

	pollCtx, cancelPoll := context.WithCancel(ctx)
	defer cancelPoll()
	pollDone := make(chan error, 1)
	go func() {
		pollDone <- NewPoller(s.platform, registry, s.pollInterval).Run(pollCtx)
	}()

	slog.Info("export: batch started", "polls", len(req.PollIDs), "workers", s.workers, "format", format.Name)

	pool := NewWorkerPool(b, s.workers, WithErrorHandler(registry.Fail))
	if err := pool.Run(ctx, queue); err != nil {
		return nil, err
	}

	cancelPoll()
	if err := <-pollDone; err != nil {
		slog.Warn("export: poller stopped", "error", err)
	}

	summary := &Summary{Downloaded: b.results(), Failed: registry.Failures()}
	slog.Info("export: batch finished", "downloaded", len(summary.Downloaded), "failed", len(summary.Failed))

	if len(summary.Failed) > 0 {
		return summary, apperror.NewFailedPolls(summary.Failed)
	}
	return summary, nil
}

// ExportOne exports a single poll to dest. The format follows dest's
// extension, whose spelling is kept as given; without one the default
// format is used and its extension appended.
func (s *Service) ExportOne(ctx context.Context, pollID int, dest string, filter Filter) (string, error) {
	format, err := ParseFormat(filepath.Ext(dest))
	if err != nil {
		return "", apperror.Wrap(apperror.BadRequest, "invalid destination", err)
	}

	summary, err := s.Export(ctx, Request{
		PollIDs: []int{pollID},
		Names:   []string{filepath.Base(dest)},
		Dir:     filepath.Dir(dest),
		Format:  format,
		Filter:  filter,
	})
	if err != nil {
		if summary != nil {
			if cause := summary.Failed[pollID]; cause != nil {
				return "", fmt.Errorf("export poll %d: %w", pollID, cause)
			}
		}
		return "", err
	}
	return summary.Downloaded[pollID], nil
}

// batch processes the polls of one Export call.
type batch struct {
	platform Platform
	registry *Registry
	paths    map[int]string
	format   Format
	filter   Filter
	timeout  time.Duration

	mu         sync.Mutex
	downloaded map[int]string
}

// Process submits, waits for and downloads one poll's export. A nil return
// means the poll was downloaded or its failure is already recorded.
func (b *batch) Process(ctx context.Context, pollID int) error {
	parent := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	if err := b.platform.SubmitExport(ctx, pollID, b.format, b.filter); err != nil {
		return fmt.Errorf("submit export: %w", err)
	}

	ready := b.registry.Register(pollID)
	defer b.registry.Remove(pollID)

	select {
	case <-ready:
	case <-ctx.Done():
		b.abandon(parent, pollID)
		if parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return apperror.New(apperror.ExportFailed,
				fmt.Sprintf("export of poll %d not ready after %s", pollID, b.timeout))
		}
		return fmt.Errorf("wait for export: %w", ctx.Err())
	}

	rec, known := b.registry.Lookup(pollID)
	if b.registry.Failed(pollID) {
		if known {
			b.ack(ctx, rec.UUID)
		}
		return nil
	}
	if !known {
		return apperror.New(apperror.Protocol, fmt.Sprintf("export of poll %d is ready but has no uuid", pollID))
	}

	dest := b.paths[pollID]
	err := b.platform.DownloadExport(ctx, rec.UUID+"."+b.format.Ext(), dest)
	b.ack(ctx, rec.UUID)
	if err != nil {
		return fmt.Errorf("download export: %w", err)
	}

	b.mu.Lock()
	b.downloaded[pollID] = dest
	b.mu.Unlock()
	slog.Info("export: poll downloaded", "poll", pollID, "uuid", rec.UUID, "path", dest)
	return nil
}

// ack tells the platform the export can be dropped. Failures are only
// logged: the file is already on disk or the poll already failed.
func (b *batch) ack(ctx context.Context, uuid string) {
	if err := b.platform.DoneExport(ctx, uuid); err != nil {
		slog.Warn("export: acknowledge", "uuid", uuid, "error", err)
	}
}

// abandon acknowledges the export of a poll the batch stopped waiting for,
// so it does not linger in the platform's progress list. The acknowledgement
// outlives ctx but is bounded by abandonAckTimeout.
func (b *batch) abandon(ctx context.Context, pollID int) {
	rec, known := b.registry.Lookup(pollID)
	if !known {
		return
	}
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abandonAckTimeout)
	defer cancel()
	b.ack(ackCtx, rec.UUID)
}

func (b *batch) results() map[int]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[int]string, len(b.downloaded))
	for id, p := range b.downloaded {
		if !b.registry.Failed(id) {
			out[id] = p
		}
	}
	return out
}
