package job

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ahmethakanbesel/socpanel/internal/apperror"
	domain "github.com/ahmethakanbesel/socpanel/internal/job"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const jobColumns = `id, uuid, poll_id, format_id, filter, status, error, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*domain.Job, error) {
	j := &domain.Job{}
	var status, createdStr, updatedStr string
	var dbErr sql.NullString

	if err := s.Scan(
		&j.ID, &j.UUID, &j.PollID, &j.FormatID, &j.Filter,
		&status, &dbErr, &createdStr, &updatedStr,
	); err != nil {
		return nil, err
	}

	j.Status = domain.Status(status)
	if dbErr.Valid {
		j.Error = dbErr.String
	}
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedStr)
	return j, nil
}

func (r *Repository) Create(ctx context.Context, j *domain.Job) error {
	const query = `INSERT INTO export_jobs (uuid, poll_id, format_id, filter, status)
		VALUES (?, ?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query, j.UUID, j.PollID, j.FormatID, j.Filter, string(j.Status))
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	j.ID, _ = res.LastInsertId()
	j.CreatedAt = time.Now().UTC()
	j.UpdatedAt = j.CreatedAt
	return nil
}

func (r *Repository) Update(ctx context.Context, j *domain.Job) error {
	const query = `UPDATE export_jobs SET status = ?, error = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`

	var dbErr sql.NullString
	if j.Error != "" {
		dbErr = sql.NullString{String: j.Error, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query, string(j.Status), dbErr, j.ID)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Repository) GetByUUID(ctx context.Context, uuid string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM export_jobs WHERE uuid = ?`

	j, err := scanJob(r.db.QueryRowContext(ctx, query, uuid))
	if err == sql.ErrNoRows {
		return nil, apperror.New(apperror.NotFound, "export not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (r *Repository) ListUnacknowledged(ctx context.Context) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM export_jobs
		WHERE status != 'acknowledged' ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	jobs := []domain.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (r *Repository) ClaimQueued(ctx context.Context) (*domain.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("claim queued: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM export_jobs WHERE status = 'queued' ORDER BY id ASC LIMIT 1`,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim queued: select: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE export_jobs SET status = 'in_progress', updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("claim queued: update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("claim queued: commit: %w", err)
	}

	j, err := scanJob(r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("claim queued: reload: %w", err)
	}
	return j, nil
}

func (r *Repository) RecoverStale(ctx context.Context) (int64, error) {
	const query = `UPDATE export_jobs SET status = 'queued', error = NULL,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE status = 'in_progress'`

	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}

	return res.RowsAffected()
}
