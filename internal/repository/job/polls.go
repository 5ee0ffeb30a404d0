package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ahmethakanbesel/socpanel/internal/apperror"
	domain "github.com/ahmethakanbesel/socpanel/internal/job"
)

const pollColumns = `id, num, name, status_id, is_in_track, ended_count, created_at`

func scanPoll(s scanner) (*domain.Poll, error) {
	p := &domain.Poll{}
	var createdStr string
	if err := s.Scan(&p.ID, &p.Num, &p.Name, &p.StatusID, &p.InTrack, &p.EndedCount, &createdStr); err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	p.Sources = []domain.Source{}
	return p, nil
}

func (r *Repository) SearchPolls(ctx context.Context, q domain.PollQuery) ([]domain.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE 1=1`

	var args []any
	if q.Name != "" {
		query += " AND name LIKE ?"
		args = append(args, "%"+q.Name+"%")
	}
	if q.Num > 0 {
		query += " AND num = ?"
		args = append(args, q.Num)
	}
	if q.InTrack {
		query += " AND is_in_track = 1"
	}
	query += " ORDER BY id ASC LIMIT ? OFFSET ?"
	args = append(args, q.Limit, q.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search polls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	polls := []domain.Poll{}
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, fmt.Errorf("scan poll: %w", err)
		}
		polls = append(polls, *p)
	}
	return polls, rows.Err()
}

// GetPoll returns the poll with its sources.
func (r *Repository) GetPoll(ctx context.Context, id int) (*domain.Poll, error) {
	p, err := scanPoll(r.db.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, apperror.New(apperror.NotFound, "poll not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get poll: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM sources WHERE poll_id = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var s domain.Source
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		p.Sources = append(p.Sources, s)
	}
	return p, rows.Err()
}

func (r *Repository) ListCounters(ctx context.Context, pollID int) ([]domain.Counter, error) {
	const query = `SELECT id, name, hits, quota, source_ids
		FROM counters WHERE poll_id = ? ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counters := []domain.Counter{}
	for rows.Next() {
		var c domain.Counter
		var sourceIDs string
		if err := rows.Scan(&c.ID, &c.Name, &c.Hits, &c.Quota, &sourceIDs); err != nil {
			return nil, fmt.Errorf("scan counter: %w", err)
		}
		if err := json.Unmarshal([]byte(sourceIDs), &c.SourceIDs); err != nil {
			return nil, fmt.Errorf("decode counter %d sources: %w", c.ID, err)
		}
		counters = append(counters, c)
	}
	return counters, rows.Err()
}
