package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
)

// SaveRunSummary appends the immutable record of one batch run. Rows are
// never updated after this insert.
func (db *DB) SaveRunSummary(ctx context.Context, summary *domain.RunSummary) error {
	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO run_summaries (id, processed_at, total_requests, success_count, failure_count, generated_reports, failed_requests)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, summary.ID, toTimestamptz(summary.ProcessedAt), summary.TotalRequests,
		summary.SuccessCount, summary.FailureCount, summary.GeneratedReports, summary.FailedRequests)
	if err != nil {
		return fmt.Errorf("save run summary: %w", err)
	}

	return nil
}

// ListRunSummaries returns recent batch run summaries, newest first.
func (db *DB) ListRunSummaries(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, processed_at, total_requests, success_count, failure_count, generated_reports, failed_requests
		FROM run_summaries
		ORDER BY processed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list run summaries: %w", err)
	}
	defer rows.Close()

	var summaries []domain.RunSummary

	for rows.Next() {
		var s domain.RunSummary

		if err := rows.Scan(&s.ID, &s.ProcessedAt, &s.TotalRequests, &s.SuccessCount,
			&s.FailureCount, &s.GeneratedReports, &s.FailedRequests); err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}

		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run summaries: %w", err)
	}

	return summaries, nil
}
