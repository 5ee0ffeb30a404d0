package job

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/ahmethakanbesel/socpanel/internal/apperror"
)

type mockRepo struct {
	mu         sync.Mutex
	jobs       map[int64]*Job
	nextID     int64
	staleCount int64
	recoverErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{jobs: make(map[int64]*Job), nextID: 1}
}

func (m *mockRepo) Create(_ context.Context, j *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j.ID = m.nextID
	m.nextID++
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *mockRepo) Update(_ context.Context, j *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *mockRepo) GetByUUID(_ context.Context, uuid string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.UUID == uuid {
			cp := *j
			return &cp, nil
		}
	}
	return nil, apperror.New(apperror.NotFound, "export not found")
}

func (m *mockRepo) ListUnacknowledged(_ context.Context) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.Status != StatusAcknowledged {
			result = append(result, *j)
		}
	}
	return result, nil
}

func (m *mockRepo) ClaimQueued(_ context.Context) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.Status == StatusQueued {
			j.Status = StatusInProgress
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) RecoverStale(_ context.Context) (int64, error) {
	return m.staleCount, m.recoverErr
}

func (m *mockRepo) get(id int64) Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.jobs[id]
}

type mockPolls struct {
	polls     map[int]*Poll
	counters  map[int][]Counter
	blocks    map[int][]Block
	questions map[int][]Question // by block id
	links     []Link
}

func newMockPolls() *mockPolls {
	return &mockPolls{
		polls: map[int]*Poll{
			10: {ID: 10, Num: 1010, Name: "wave 1", EndedCount: 5, Sources: []Source{{ID: 1, Name: "panel"}}},
			11: {ID: 11, Num: 1011, Name: "wave 2"},
		},
		counters: map[int][]Counter{
			10: {{ID: 100, Name: "Total", Hits: 5, Quota: 10, SourceIDs: []int{1}}},
		},
		blocks: map[int][]Block{
			10: {{ID: 20, PollID: 10, Name: "main", Order: 1}},
		},
		questions: map[int][]Question{
			20: {{ID: 30, BlockID: 20, TypeID: QuestionSinglePunch, Title: "Gender"}},
		},
	}
}

func (m *mockPolls) SearchPolls(_ context.Context, q PollQuery) ([]Poll, error) {
	var out []Poll
	for _, p := range m.polls {
		if q.Num > 0 && p.Num != q.Num {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockPolls) GetPoll(_ context.Context, id int) (*Poll, error) {
	p, ok := m.polls[id]
	if !ok {
		return nil, apperror.New(apperror.NotFound, "poll not found")
	}
	cp := *p
	return &cp, nil
}

func (m *mockPolls) ListCounters(_ context.Context, pollID int) ([]Counter, error) {
	return m.counters[pollID], nil
}

func (m *mockPolls) ListBlocks(_ context.Context, pollID int) ([]Block, error) {
	return m.blocks[pollID], nil
}

func (m *mockPolls) ListQuestions(_ context.Context, q QuestionQuery) ([]Question, error) {
	if q.BlockID > 0 {
		return m.questions[q.BlockID], nil
	}
	var out []Question
	for _, b := range m.blocks[q.PollID] {
		out = append(out, m.questions[b.ID]...)
	}
	return out, nil
}

func (m *mockPolls) ListConversions(_ context.Context, pollID int) ([]Conversion, error) {
	var out []Conversion
	for _, s := range m.polls[pollID].Sources {
		out = append(out, Conversion{SourceID: s.ID, SourceName: s.Name})
	}
	return out, nil
}

func (m *mockPolls) CreateLinks(_ context.Context, pollID int, tokens []string) ([]Link, error) {
	var out []Link
	for _, tok := range tokens {
		l := Link{ID: len(m.links) + 1, PollID: pollID, Token: tok}
		m.links = append(m.links, l)
		out = append(out, l)
	}
	return out, nil
}

func TestService_RecoverStaleJobs(t *testing.T) {
	repo := newMockRepo()
	repo.staleCount = 3
	svc := NewService(repo, newMockPolls(), t.TempDir())

	if err := svc.RecoverStaleJobs(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestService_Submit(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newMockPolls(), t.TempDir())
	notified := 0
	svc.SetNotify(func() { notified++ })

	j, err := svc.Submit(context.Background(), SubmitExportRequest{
		PollID:   10,
		FormatID: 2,
		Filter:   json.RawMessage(`{"domain_ids":[1]}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.UUID == "" || j.Status != StatusQueued {
		t.Errorf("unexpected job %+v", j)
	}
	if j.Filename() != j.UUID+".sav" {
		t.Errorf("unexpected filename %s", j.Filename())
	}
	if notified != 1 {
		t.Errorf("expected pool notified once, got %d", notified)
	}
}

func TestService_Submit_Invalid(t *testing.T) {
	tests := []struct {
		name string
		req  SubmitExportRequest
		code apperror.Code
	}{
		{"zero poll", SubmitExportRequest{FormatID: 2}, apperror.BadRequest},
		{"unknown format", SubmitExportRequest{PollID: 10, FormatID: 9}, apperror.BadRequest},
		{"broken filter", SubmitExportRequest{PollID: 10, FormatID: 1, Filter: json.RawMessage(`{`)}, apperror.BadRequest},
		{"unknown poll", SubmitExportRequest{PollID: 99, FormatID: 1}, apperror.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(newMockRepo(), newMockPolls(), t.TempDir())
			_, err := svc.Submit(context.Background(), tt.req)
			if !apperror.Is(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestService_AcknowledgeHidesJob(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newMockPolls(), t.TempDir())
	ctx := context.Background()

	j, err := svc.Submit(ctx, SubmitExportRequest{PollID: 10, FormatID: 1})
	if err != nil {
		t.Fatal(err)
	}

	err = svc.Acknowledge(ctx, AcknowledgeRequest{UUID: j.UUID})
	if !apperror.Is(err, apperror.Conflict) {
		t.Fatalf("expected conflict for unfinished export, got %v", err)
	}

	j.Status = StatusDone
	_ = repo.Update(ctx, j)
	if err := svc.Acknowledge(ctx, AcknowledgeRequest{UUID: j.UUID}); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	jobs, _ := svc.Progress(ctx)
	if len(jobs) != 0 {
		t.Errorf("expected acknowledged job hidden, got %+v", jobs)
	}
	if err := svc.Acknowledge(ctx, AcknowledgeRequest{UUID: "missing"}); !apperror.Is(err, apperror.NotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_ExportFile(t *testing.T) {
	repo := newMockRepo()
	dir := t.TempDir()
	svc := NewService(repo, newMockPolls(), dir)
	ctx := context.Background()

	j, _ := svc.Submit(ctx, SubmitExportRequest{PollID: 10, FormatID: 1})
	if _, err := svc.ExportFile(ctx, j.Filename()); !apperror.Is(err, apperror.NotFound) {
		t.Errorf("expected unfinished export hidden, got %v", err)
	}

	j.Status = StatusDone
	_ = repo.Update(ctx, j)

	if _, err := svc.ExportFile(ctx, j.UUID+".sav"); !apperror.Is(err, apperror.NotFound) {
		t.Errorf("expected wrong extension rejected, got %v", err)
	}
	path, err := svc.ExportFile(ctx, j.Filename())
	if err != nil {
		t.Fatal(err)
	}
	if path == "" {
		t.Error("expected a path")
	}
}

func TestService_Counters(t *testing.T) {
	svc := NewService(newMockRepo(), newMockPolls(), t.TempDir())

	counters, err := svc.Counters(context.Background(), PollRequest{PollID: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(counters) != 1 || counters[0].Quota != 10 {
		t.Errorf("unexpected counters %+v", counters)
	}
	if _, err := svc.Counters(context.Background(), PollRequest{PollID: 99}); !apperror.Is(err, apperror.NotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_SearchPolls_Invalid(t *testing.T) {
	svc := NewService(newMockRepo(), newMockPolls(), t.TempDir())
	if _, err := svc.SearchPolls(context.Background(), SearchPollsRequest{}); !apperror.Is(err, apperror.BadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestService_Questions(t *testing.T) {
	svc := NewService(newMockRepo(), newMockPolls(), t.TempDir())
	ctx := context.Background()

	byPoll, err := svc.Questions(ctx, QuestionsRequest{PollID: 10})
	if err != nil {
		t.Fatalf("questions by poll: %v", err)
	}
	byBlock, err := svc.Questions(ctx, QuestionsRequest{BlockID: 20})
	if err != nil {
		t.Fatalf("questions by block: %v", err)
	}
	if len(byPoll) != 1 || len(byBlock) != 1 || byPoll[0].ID != byBlock[0].ID {
		t.Errorf("unexpected questions %+v / %+v", byPoll, byBlock)
	}

	tests := []struct {
		name string
		req  QuestionsRequest
		code apperror.Code
	}{
		{"neither", QuestionsRequest{}, apperror.BadRequest},
		{"both", QuestionsRequest{PollID: 10, BlockID: 20}, apperror.BadRequest},
		{"unknown poll", QuestionsRequest{PollID: 99}, apperror.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Questions(ctx, tt.req); !apperror.Is(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestService_Blocks_UnknownPoll(t *testing.T) {
	svc := NewService(newMockRepo(), newMockPolls(), t.TempDir())
	if _, err := svc.Blocks(context.Background(), PollRequest{PollID: 99}); !apperror.Is(err, apperror.NotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_CreateLinks(t *testing.T) {
	polls := newMockPolls()
	svc := NewService(newMockRepo(), polls, t.TempDir())
	ctx := context.Background()

	links, err := svc.CreateLinks(ctx, CreateLinksRequest{PollID: 10})
	if err != nil {
		t.Fatalf("create links: %v", err)
	}
	if len(links) != 1 || links[0].Token == "" {
		t.Errorf("expected one link by default, got %+v", links)
	}

	links, err = svc.CreateLinks(ctx, CreateLinksRequest{PollID: 10, LinkCount: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 3 || links[0].Token == links[1].Token {
		t.Errorf("expected 3 distinct links, got %+v", links)
	}

	if _, err := svc.CreateLinks(ctx, CreateLinksRequest{PollID: 10, LinkCount: 5000}); !apperror.Is(err, apperror.BadRequest) {
		t.Errorf("expected bad request for an oversized batch, got %v", err)
	}
	if _, err := svc.CreateLinks(ctx, CreateLinksRequest{PollID: 99}); !apperror.Is(err, apperror.NotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
