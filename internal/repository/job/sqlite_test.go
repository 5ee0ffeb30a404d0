package job

import (
	"context"
	"testing"

	"github.com/ahmethakanbesel/socpanel/internal/apperror"
	domain "github.com/ahmethakanbesel/socpanel/internal/job"
	"github.com/ahmethakanbesel/socpanel/internal/platform/sqlite"
)

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newJob(uuid string, status domain.Status) *domain.Job {
	return &domain.Job{UUID: uuid, PollID: 10, FormatID: 2, Filter: `{"domain_ids":[1]}`, Status: status}
}

func TestCreate_And_GetByUUID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	j := newJob("a-1", domain.StatusQueued)
	if err := repo.Create(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}
	if j.ID == 0 {
		t.Fatal("expected non-zero ID")
	}

	got, err := repo.GetByUUID(ctx, "a-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PollID != 10 || got.FormatID != 2 || got.Status != domain.StatusQueued {
		t.Errorf("unexpected job %+v", got)
	}
	if got.Filter != `{"domain_ids":[1]}` {
		t.Errorf("unexpected filter %s", got.Filter)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at to be parsed")
	}
}

func TestUpdate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	j := newJob("a-1", domain.StatusQueued)
	if err := repo.Create(ctx, j); err != nil {
		t.Fatal(err)
	}

	j.Status = domain.StatusError
	j.Error = "poll cannot be exported"
	if err := repo.Update(ctx, j); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := repo.GetByUUID(ctx, "a-1")
	if got.Status != domain.StatusError || got.Error != "poll cannot be exported" {
		t.Errorf("unexpected job %+v", got)
	}
}

func TestListUnacknowledged(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	for _, j := range []*domain.Job{
		newJob("a", domain.StatusQueued),
		newJob("b", domain.StatusDone),
		newJob("c", domain.StatusAcknowledged),
	} {
		if err := repo.Create(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	jobs, err := repo.ListUnacknowledged(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 || jobs[0].UUID != "a" || jobs[1].UUID != "b" {
		t.Errorf("unexpected jobs %+v", jobs)
	}
}

func TestClaimQueued(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	if err := repo.Create(ctx, newJob("a", domain.StatusQueued)); err != nil {
		t.Fatal(err)
	}

	j, err := repo.ClaimQueued(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if j == nil || j.UUID != "a" || j.Status != domain.StatusInProgress {
		t.Fatalf("unexpected claimed job %+v", j)
	}

	j, err = repo.ClaimQueued(ctx)
	if err != nil {
		t.Fatalf("claim again: %v", err)
	}
	if j != nil {
		t.Error("expected no more queued jobs")
	}
}

func TestRecoverStale(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	for _, j := range []*domain.Job{
		newJob("a", domain.StatusInProgress),
		newJob("b", domain.StatusQueued),
		newJob("c", domain.StatusDone),
	} {
		if err := repo.Create(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	n, err := repo.RecoverStale(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 recovered (in_progress→queued), got %d", n)
	}

	j, err := repo.GetByUUID(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != domain.StatusQueued {
		t.Errorf("expected status queued, got %s", j.Status)
	}

	n2, err := repo.RecoverStale(ctx)
	if err != nil {
		t.Fatalf("recover again: %v", err)
	}
	if n2 != 0 {
		t.Errorf("expected 0, got %d", n2)
	}
}

func TestGetByUUID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	_, err := repo.GetByUUID(context.Background(), "missing")
	if !apperror.Is(err, apperror.NotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSearchPolls(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	polls, err := repo.SearchPolls(ctx, domain.PollQuery{Name: "Consumer", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(polls) != 2 || polls[0].ID != 10 || polls[1].ID != 11 {
		t.Errorf("unexpected polls %+v", polls)
	}

	polls, err = repo.SearchPolls(ctx, domain.PollQuery{Name: "Consumer", Limit: 10, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(polls) != 1 || polls[0].ID != 11 {
		t.Errorf("expected offset to skip the first poll, got %+v", polls)
	}

	polls, err = repo.SearchPolls(ctx, domain.PollQuery{Num: 1012, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(polls) != 1 || polls[0].Name != "Brand tracking Q2" {
		t.Errorf("unexpected polls %+v", polls)
	}
}

func TestGetPoll_WithSources(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)

	p, err := repo.GetPoll(context.Background(), 10)
	if err != nil {
		t.Fatalf("get poll: %v", err)
	}
	if p.EndedCount != 412 || !p.InTrack || len(p.Sources) != 2 || p.Sources[0].Name != "Online panel" {
		t.Errorf("unexpected poll %+v", p)
	}

	if _, err := repo.GetPoll(context.Background(), 999); !apperror.Is(err, apperror.NotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestListCounters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)

	counters, err := repo.ListCounters(context.Background(), 10)
	if err != nil {
		t.Fatalf("list counters: %v", err)
	}
	if len(counters) != 2 {
		t.Fatalf("expected 2 counters, got %d", len(counters))
	}
	if c := counters[0]; c.Hits != 180 || c.Quota != 200 || len(c.SourceIDs) != 2 || c.SourceIDs[1] != 102 {
		t.Errorf("unexpected counter %+v", c)
	}
}
