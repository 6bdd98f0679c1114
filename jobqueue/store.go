package jobqueue

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/weavehub/weave/apperr"
)

// Store persists job rows directly via pgx, bypassing the ORM for the
// write-heavy progress-update path, and fans out changes on a Postgres
// NOTIFY channel for API replicas to pick up without polling.
type Store struct {
	pool    *pgxpool.Pool
	channel string
}

func NewStore(pool *pgxpool.Pool, notifyChannel string) *Store {
	if notifyChannel == "" {
		notifyChannel = "job_events"
	}
	return &Store{pool: pool, channel: notifyChannel}
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id TEXT NOT NULL,
			collection_id TEXT NOT NULL,
			type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			input_data JSONB NOT NULL DEFAULT '{}',
			processing_options JSONB NOT NULL DEFAULT '{}',
			result_data JSONB,
			progress_percent INT NOT NULL DEFAULT 0,
			current_step TEXT NOT NULL DEFAULT '',
			total_steps INT,
			error_message TEXT NOT NULL DEFAULT '',
			documents_processed INT NOT NULL DEFAULT 0,
			chunks_created INT NOT NULL DEFAULT 0,
			estimated_duration_seconds INT NOT NULL DEFAULT 0,
			processing_time_seconds DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_user_status ON jobs (user_id, status);
	`)
	return err
}

const jobColumns = `id, user_id, collection_id, type, status, input_data, processing_options,
	COALESCE(result_data::text, ''), progress_percent, current_step, total_steps, error_message,
	documents_processed, chunks_created, estimated_duration_seconds, processing_time_seconds,
	created_at, started_at, completed_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*Job, error) {
	j := &Job{}
	err := row.Scan(
		&j.ID, &j.UserID, &j.CollectionID, &j.Type, &j.Status, &j.InputData, &j.ProcessingOptions,
		&j.ResultData, &j.ProgressPercent, &j.CurrentStep, &j.TotalSteps, &j.ErrorMessage,
		&j.DocumentsProcessed, &j.ChunksCreated, &j.EstimatedDurationSecond, &j.ProcessingTimeSeconds,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Store) Create(ctx context.Context, in SubmitInput) (*Job, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO jobs (user_id, collection_id, type, input_data, processing_options, estimated_duration_seconds)
		VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6)
		RETURNING `+jobColumns,
		in.UserID, in.CollectionID, in.Type, orEmptyJSON(in.InputData), orEmptyJSON(in.ProcessingOptions), in.EstimatedDurationSecond,
	)
	j, err := scanJob(row)
	if err != nil {
		return nil, apperr.WrapInternal(err, "creating job")
	}
	s.notify(ctx, j.ID, "created")
	return j, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if err != nil {
		return nil, apperr.NewNotFound("job %s", id)
	}
	return j, nil
}

// List returns jobs for userID, or every job when admin is true.
func (s *Store) List(ctx context.Context, userID string, admin bool, limit, offset int) ([]Job, error) {
	var rows pgx.Rows
	var err error
	if admin {
		rows, err = s.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	}
	if err != nil {
		return nil, apperr.WrapInternal(err, "listing jobs")
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, apperr.WrapInternal(err, "scanning job row")
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (s *Store) UpdateCurrentStep(ctx context.Context, id, step string) error {
	_, err := s.pool.Exec(ctx, `UPDATE jobs SET current_step = $1 WHERE id = $2`, step, id)
	return err
}

func (s *Store) Start(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'processing', started_at = now() WHERE id = $1 AND status = 'pending'
	`, id)
	s.notify(ctx, id, "started")
	return err
}

func (s *Store) UpdateProgress(ctx context.Context, id string, percent int, step string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET progress_percent = $1, current_step = $2 WHERE id = $3
	`, percent, step, id)
	s.notify(ctx, id, "progress")
	return err
}

func (s *Store) Complete(ctx context.Context, id, resultDataJSON string, documentsProcessed, chunksCreated int, durationSeconds float64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'completed', result_data = $1::jsonb, documents_processed = $2,
			chunks_created = $3, processing_time_seconds = $4, progress_percent = 100, completed_at = now()
		WHERE id = $5
	`, orEmptyJSON(resultDataJSON), documentsProcessed, chunksCreated, durationSeconds, id)
	s.notify(ctx, id, "completed")
	return err
}

func (s *Store) Fail(ctx context.Context, id, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'failed', error_message = $1, completed_at = now() WHERE id = $2
	`, errMsg, id)
	s.notify(ctx, id, "failed")
	return err
}

// CancelPending transitions a still-pending job straight to cancelled,
// reporting whether it applied (false if the job had already started).
func (s *Store) CancelPending(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'cancelled', completed_at = now() WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, err
	}
	s.notify(ctx, id, "cancelled")
	return tag.RowsAffected() > 0, nil
}

func (s *Store) CancelProcessing(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'cancelled', completed_at = now() WHERE id = $1 AND status = 'processing'
	`, id)
	s.notify(ctx, id, "cancelled")
	return err
}

func (s *Store) notify(ctx context.Context, jobID, event string) {
	_, _ = s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, s.channel, jobID+":"+event)
}

func orEmptyJSON(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}
