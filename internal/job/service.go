package job

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ahmethakanbesel/socpanel/internal/apperror"
)

type Service struct {
	repo   Repository
	polls  PollRepository
	dir    string
	notify func() // optional: wake worker pool
}

// NewService creates the export service. Materialized files live in dir.
func NewService(repo Repository, polls PollRepository, dir string) *Service {
	return &Service{repo: repo, polls: polls, dir: dir}
}

// SetNotify sets a callback invoked when a new queued job is created.
func (s *Service) SetNotify(fn func()) { s.notify = fn }

func (s *Service) RecoverStaleJobs(ctx context.Context) error {
	n, err := s.repo.RecoverStale(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("re-queued interrupted jobs", "count", n)
	}
	return nil
}

// Submit queues an export of a poll.
func (s *Service) Submit(ctx context.Context, req SubmitExportRequest) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.polls.GetPoll(ctx, req.PollID); err != nil {
		return nil, err
	}

	filter := "{}"
	if len(req.Filter) > 0 {
		filter = string(req.Filter)
	}
	j := &Job{
		UUID:     uuid.NewString(),
		PollID:   req.PollID,
		FormatID: req.FormatID,
		Filter:   filter,
		Status:   StatusQueued,
	}
	if err := s.repo.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	slog.Info("export queued", "job", j.ID, "uuid", j.UUID, "poll", j.PollID)

	if s.notify != nil {
		s.notify()
	}
	return j, nil
}

// Progress lists the jobs that have not been acknowledged yet.
func (s *Service) Progress(ctx context.Context) ([]Job, error) {
	return s.repo.ListUnacknowledged(ctx)
}

// Acknowledge hides a finished job from the progress list.
func (s *Service) Acknowledge(ctx context.Context, req AcknowledgeRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	j, err := s.repo.GetByUUID(ctx, req.UUID)
	if err != nil {
		return err
	}
	if j.Status != StatusDone && j.Status != StatusError && j.Status != StatusAcknowledged {
		return apperror.New(apperror.Conflict, "export is still in progress")
	}
	j.Status = StatusAcknowledged
	return s.repo.Update(ctx, j)
}

// ExportFile resolves a served file name to the materialized file on disk.
// Only finished exports can be downloaded, until they are acknowledged.
func (s *Service) ExportFile(ctx context.Context, name string) (string, error) {
	id, ext, ok := ParseFilename(name)
	if !ok {
		return "", apperror.New(apperror.NotFound, "export not found")
	}
	j, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return "", err
	}
	if j.Status != StatusDone || FormatExt(j.FormatID) != ext {
		return "", apperror.New(apperror.NotFound, "export not found")
	}
	return filepath.Join(s.dir, j.Filename()), nil
}

func (s *Service) SearchPolls(ctx context.Context, req SearchPollsRequest) ([]Poll, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = 51
	}
	return s.polls.SearchPolls(ctx, PollQuery{
		Name:    req.Name,
		Num:     req.Num,
		InTrack: req.InTrack,
		Limit:   limit,
		Offset:  req.Offset,
	})
}

func (s *Service) GetPoll(ctx context.Context, req PollRequest) (*Poll, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.polls.GetPoll(ctx, req.Poll())
}

func (s *Service) Counters(ctx context.Context, req PollRequest) ([]Counter, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.polls.GetPoll(ctx, req.Poll()); err != nil {
		return nil, err
	}
	return s.polls.ListCounters(ctx, req.Poll())
}

func (s *Service) Blocks(ctx context.Context, req PollRequest) ([]Block, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.polls.GetPoll(ctx, req.Poll()); err != nil {
		return nil, err
	}
	return s.polls.ListBlocks(ctx, req.Poll())
}

// Questions lists the questions of a poll or of a block. An unknown block
// yields an empty list, as on the platform.
func (s *Service) Questions(ctx context.Context, req QuestionsRequest) ([]Question, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.PollID > 0 {
		if _, err := s.polls.GetPoll(ctx, req.PollID); err != nil {
			return nil, err
		}
	}
	return s.polls.ListQuestions(ctx, QuestionQuery{PollID: req.PollID, BlockID: req.BlockID})
}

func (s *Service) Conversions(ctx context.Context, req PollRequest) ([]Conversion, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.polls.GetPoll(ctx, req.Poll()); err != nil {
		return nil, err
	}
	return s.polls.ListConversions(ctx, req.Poll())
}

// CreateLinks generates respondent links for a poll. A zero count creates
// one link.
func (s *Service) CreateLinks(ctx context.Context, req CreateLinksRequest) ([]Link, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.polls.GetPoll(ctx, req.PollID); err != nil {
		return nil, err
	}

	tokens := make([]string, max(req.LinkCount, 1))
	for i := range tokens {
		tokens[i] = uuid.NewString()
	}
	links, err := s.polls.CreateLinks(ctx, req.PollID, tokens)
	if err != nil {
		return nil, err
	}
	slog.Info("links created", "poll", req.PollID, "count", len(links))
	return links, nil
}
