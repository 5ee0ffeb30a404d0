package job

import "context"

type Repository interface {
	Create(ctx context.Context, j *Job) error
	Update(ctx context.Context, j *Job) error
	GetByUUID(ctx context.Context, uuid string) (*Job, error)
	ListUnacknowledged(ctx context.Context) ([]Job, error)
	ClaimQueued(ctx context.Context) (*Job, error)
	RecoverStale(ctx context.Context) (int64, error)
}

type PollRepository interface {
	SearchPolls(ctx context.Context, q PollQuery) ([]Poll, error)
	GetPoll(ctx context.Context, id int) (*Poll, error)
	ListCounters(ctx context.Context, pollID int) ([]Counter, error)
	ListBlocks(ctx context.Context, pollID int) ([]Block, error)
	ListQuestions(ctx context.Context, q QuestionQuery) ([]Question, error)
	ListConversions(ctx context.Context, pollID int) ([]Conversion, error)
	CreateLinks(ctx context.Context, pollID int, tokens []string) ([]Link, error)
}
