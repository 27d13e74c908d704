package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
	apperrors "github.com/jamesmontemagno/feedbackflow-sub002/internal/core/errors"
)

// InsertJob enqueues a generation job in pending state and returns its id.
func (db *DB) InsertJob(ctx context.Context, requestID, platformType, target string) (string, error) {
	id := uuid.NewString()

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO report_jobs (id, request_id, platform_type, target, status, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, id, requestID, platformType, target, domain.JobPending)
	if err != nil {
		return "", fmt.Errorf("insert job: %w", err)
	}

	return id, nil
}

// ClaimNextJob atomically moves the oldest pending job to running and returns
// it. Returns ErrJobNotFound when the queue is empty. FOR UPDATE SKIP LOCKED
// keeps concurrent workers from claiming the same row.
func (db *DB) ClaimNextJob(ctx context.Context) (*domain.GenerationJob, error) {
	row := db.Pool.QueryRow(ctx, `
		UPDATE report_jobs
		SET status = $1
		WHERE id = (
			SELECT id FROM report_jobs
			WHERE status = $2
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, request_id, platform_type, target, status, error, report_id, created_at, finished_at
	`, domain.JobRunning, domain.JobPending)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrJobNotFound
		}

		return nil, fmt.Errorf("claim next job: %w", err)
	}

	return job, nil
}

// FinishJob records a terminal job outcome.
func (db *DB) FinishJob(ctx context.Context, id string, status domain.JobStatus, reportID, errText string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE report_jobs
		SET status = $2, report_id = $3, error = $4, finished_at = $5
		WHERE id = $1
	`, id, status, reportID, errText, toTimestamptz(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.ErrJobNotFound
	}

	return nil
}

// GetJob fetches a generation job by id for status polling.
func (db *DB) GetJob(ctx context.Context, id string) (*domain.GenerationJob, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT id, request_id, platform_type, target, status, error, report_id, created_at, finished_at
		FROM report_jobs
		WHERE id = $1
	`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrJobNotFound
		}

		return nil, fmt.Errorf("get job: %w", err)
	}

	return job, nil
}

func scanJob(row pgx.Row) (*domain.GenerationJob, error) {
	var (
		job      domain.GenerationJob
		status   string
		finished pgtype.Timestamptz
	)

	if err := row.Scan(&job.ID, &job.RequestID, &job.PlatformType, &job.Target,
		&status, &job.Error, &job.ReportID, &job.CreatedAt, &finished); err != nil {
		return nil, err
	}

	job.Status = domain.JobStatus(status)
	job.FinishedAt = fromTimestamptzPtr(finished)

	return &job, nil
}
