package job

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Materializer renders queued exports into files. It implements Processor.
type Materializer struct {
	repo  Repository
	polls PollRepository
	dir   string
	delay time.Duration
	fail  map[int]bool
}

// MaterializerOption configures a Materializer.
type MaterializerOption func(*Materializer)

// WithDelay makes every export take at least d.
func WithDelay(d time.Duration) MaterializerOption {
	return func(m *Materializer) { m.delay = d }
}

// WithFailingPolls makes exports of the given polls end in error.
func WithFailingPolls(ids ...int) MaterializerOption {
	return func(m *Materializer) {
		for _, id := range ids {
			m.fail[id] = true
		}
	}
}

func NewMaterializer(repo Repository, polls PollRepository, dir string, opts ...MaterializerOption) *Materializer {
	m := &Materializer{repo: repo, polls: polls, dir: dir, fail: make(map[int]bool)}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Materializer) Process(ctx context.Context, j *Job) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}

	if err := m.render(ctx, j); err != nil {
		slog.Warn("export failed", "job", j.ID, "poll", j.PollID, "error", err)
		j.Status = StatusError
		j.Error = err.Error()
		return m.repo.Update(ctx, j)
	}

	j.Status = StatusDone
	j.Error = ""
	if err := m.repo.Update(ctx, j); err != nil {
		return err
	}
	slog.Info("export materialized", "job", j.ID, "uuid", j.UUID, "file", j.Filename())
	return nil
}

func (m *Materializer) render(ctx context.Context, j *Job) error {
	if m.fail[j.PollID] {
		return fmt.Errorf("poll %d cannot be exported", j.PollID)
	}
	p, err := m.polls.GetPoll(ctx, j.PollID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(m.dir, j.Filename())
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer func() { _ = f.Close() }()

	_, err = fmt.Fprintf(f, "poll=%d\nname=%s\nformat=%s\nrespondents=%d\nfilter=%s\n",
		p.ID, p.Name, FormatExt(j.FormatID), p.EndedCount, j.Filter)
	if err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return f.Close()
}
