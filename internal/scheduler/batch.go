// Package scheduler drives the weekly regeneration of every active
// subscription. Items are processed sequentially, one failure never stops
// the rest, and every run leaves an immutable summary behind.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/platform/observability"
)

// Registry lists the active subscriptions, satisfied by registry.Registry.
type Registry interface {
	List(ctx context.Context) ([]domain.ReportRequest, error)
}

// Generator runs one report generation, satisfied by generator.Generator.
type Generator interface {
	Process(ctx context.Context, platformType, target string) (*domain.Report, error)
}

// ReportCache receives regenerated reports so the distributor sees them.
type ReportCache interface {
	Set(ctx context.Context, report *domain.Report) error
}

// SummaryStore persists run summaries, satisfied by storage.DB.
type SummaryStore interface {
	SaveRunSummary(ctx context.Context, summary *domain.RunSummary) error
}

// Scheduler regenerates reports for all subscriptions in one pass.
type Scheduler struct {
	registry  Registry
	generator Generator
	cache     ReportCache
	summaries SummaryStore
	logger    *zerolog.Logger

	now func() time.Time
}

func New(reg Registry, gen Generator, cache ReportCache, summaries SummaryStore, logger *zerolog.Logger) *Scheduler {
	return &Scheduler{
		registry:  reg,
		generator: gen,
		cache:     cache,
		summaries: summaries,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce processes every subscription and persists the run summary.
// Always: summary.SuccessCount + summary.FailureCount == summary.TotalRequests.
func (s *Scheduler) RunOnce(ctx context.Context) (*domain.RunSummary, error) {
	start := s.now()

	requests, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	observability.SubscriptionsActive.Set(float64(len(requests)))

	summary := &domain.RunSummary{
		ProcessedAt:      start,
		TotalRequests:    len(requests),
		GeneratedReports: []string{},
		FailedRequests:   []string{},
	}

	for _, req := range requests {
		s.processOne(ctx, req, summary)
	}

	observability.BatchRunDuration.Observe(time.Since(start).Seconds())

	if err := s.summaries.SaveRunSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("persist run summary: %w", err)
	}

	s.logger.Info().
		Int("total", summary.TotalRequests).
		Int("succeeded", summary.SuccessCount).
		Int("failed", summary.FailureCount).
		Msg("batch regeneration finished")

	return summary, nil
}

// processOne regenerates a single subscription, recording the outcome on the
// summary. Failures are contained here: nothing propagates to the loop.
func (s *Scheduler) processOne(ctx context.Context, req domain.ReportRequest, summary *domain.RunSummary) {
	report, err := s.generator.Process(ctx, req.PlatformType, req.Target)

	switch {
	case err != nil:
		s.logger.Error().Err(err).Str("request_id", req.ID).Msg("regeneration failed")
		observability.BatchRequestsProcessed.WithLabelValues("failed").Inc()

		summary.FailureCount++
		summary.FailedRequests = append(summary.FailedRequests, req.ID)
	case report == nil:
		// Soft failure: the window held nothing to analyze.
		s.logger.Warn().Str("request_id", req.ID).Msg("regeneration produced no report")
		observability.BatchRequestsProcessed.WithLabelValues("empty").Inc()

		summary.FailureCount++
		summary.FailedRequests = append(summary.FailedRequests, req.ID)
	default:
		observability.BatchRequestsProcessed.WithLabelValues("ok").Inc()

		summary.SuccessCount++
		summary.GeneratedReports = append(summary.GeneratedReports, report.ID)

		if s.cache != nil {
			if err := s.cache.Set(ctx, report); err != nil {
				s.logger.Warn().Err(err).Str("request_id", req.ID).Msg("cache update failed")
			}
		}
	}
}
