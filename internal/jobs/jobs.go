// Package jobs runs detached report generations as observable jobs. The
// creation endpoint enqueues instead of firing a background task into the
// void: every job has a persisted status a caller can poll.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
	apperrors "github.com/jamesmontemagno/feedbackflow-sub002/internal/core/errors"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/platform/observability"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/platform/worker"
)

const defaultPollInterval = 5 * time.Second

// Store is the job persistence, satisfied by storage.DB.
type Store interface {
	InsertJob(ctx context.Context, requestID, platformType, target string) (string, error)
	ClaimNextJob(ctx context.Context) (*domain.GenerationJob, error)
	FinishJob(ctx context.Context, id string, status domain.JobStatus, reportID, errText string) error
	GetJob(ctx context.Context, id string) (*domain.GenerationJob, error)
}

// Generator runs one report generation, satisfied by generator.Generator.
type Generator interface {
	Process(ctx context.Context, platformType, target string) (*domain.Report, error)
}

// ReportCache receives freshly generated reports.
type ReportCache interface {
	Set(ctx context.Context, report *domain.Report) error
}

// Queue enqueues and executes generation jobs.
type Queue struct {
	store        Store
	generator    Generator
	cache        ReportCache
	pollInterval time.Duration
	logger       *zerolog.Logger
}

func NewQueue(store Store, gen Generator, cache ReportCache, pollInterval time.Duration, logger *zerolog.Logger) *Queue {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	return &Queue{
		store:        store,
		generator:    gen,
		cache:        cache,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Enqueue records a pending generation job and returns its id.
func (q *Queue) Enqueue(ctx context.Context, requestID, platformType, target string) (string, error) {
	id, err := q.store.InsertJob(ctx, requestID, platformType, target)
	if err != nil {
		return "", fmt.Errorf("enqueue generation job: %w", err)
	}

	q.logger.Info().Str("job_id", id).Str("request_id", requestID).Msg("generation job enqueued")

	return id, nil
}

// Get returns a job's current state for status polling.
func (q *Queue) Get(ctx context.Context, id string) (*domain.GenerationJob, error) {
	return q.store.GetJob(ctx, id)
}

// Run polls for pending jobs until the context is canceled. Jobs run one at
// a time; errors are recorded on the job row, never propagated out of the
// loop.
func (q *Queue) Run(ctx context.Context) error {
	q.logger.Info().Dur("poll_interval", q.pollInterval).Msg("job worker starting")

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("job worker: %w", ctx.Err())
		default:
		}

		if !q.runNext(ctx) {
			if err := worker.Wait(ctx, q.pollInterval); err != nil {
				return err
			}
		}
	}
}

// runNext claims and executes one job. Returns false when the queue was
// empty so the caller backs off.
func (q *Queue) runNext(ctx context.Context) bool {
	defer worker.RecoverPanic(q.logger, "generation job")

	job, err := q.store.ClaimNextJob(ctx)
	if err != nil {
		if !errors.Is(err, apperrors.ErrJobNotFound) {
			q.logger.Error().Err(err).Msg("claim job failed")
		}

		return false
	}

	logger := q.logger.With().Str("job_id", job.ID).Str("request_id", job.RequestID).Logger()

	report, err := q.generator.Process(ctx, job.PlatformType, job.Target)

	switch {
	case err != nil:
		logger.Error().Err(err).Msg("generation job failed")
		q.finish(ctx, job.ID, domain.JobFailed, "", err.Error())
	case report == nil:
		// Nothing analyzable in the window; the job is done, not broken.
		logger.Info().Msg("generation job found nothing to analyze")
		q.finish(ctx, job.ID, domain.JobSucceeded, "", apperrors.ErrEmptyResult.Error())
	default:
		if q.cache != nil {
			if err := q.cache.Set(ctx, report); err != nil {
				logger.Warn().Err(err).Msg("cache update failed after generation")
			}
		}

		logger.Info().Str("report_id", report.ID).Msg("generation job succeeded")
		q.finish(ctx, job.ID, domain.JobSucceeded, report.ID, "")
	}

	return true
}

func (q *Queue) finish(ctx context.Context, id string, status domain.JobStatus, reportID, errText string) {
	observability.JobsProcessed.WithLabelValues(string(status)).Inc()

	if err := q.store.FinishJob(ctx, id, status, reportID, errText); err != nil {
		q.logger.Error().Err(err).Str("job_id", id).Msg("failed to record job outcome")
	}
}
