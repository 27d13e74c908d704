package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
	apperrors "github.com/jamesmontemagno/feedbackflow-sub002/internal/core/errors"
)

// SaveReport persists a generated report to the durable store. Reports are
// immutable rows; regeneration inserts a new row under the same request key
// and readers take the newest.
func (db *DB) SaveReport(ctx context.Context, report *domain.Report) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO reports (id, request_key, source, sub_source, generated_at, cutoff_date, thread_count, comment_count, html_content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, report.ID, report.Key(), report.Source, report.SubSource,
		toTimestamptz(report.GeneratedAt), toTimestamptz(report.CutoffDate),
		report.ThreadCount, report.CommentCount, report.HTMLContent)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	return nil
}

// GetReport fetches a report by id.
func (db *DB) GetReport(ctx context.Context, id string) (*domain.Report, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT id, source, sub_source, generated_at, cutoff_date, thread_count, comment_count, html_content
		FROM reports
		WHERE id = $1
	`, id)

	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrReportNotFound
		}

		return nil, fmt.Errorf("get report: %w", err)
	}

	return report, nil
}

// LatestReportForKey returns the newest report generated for a request key.
func (db *DB) LatestReportForKey(ctx context.Context, key string) (*domain.Report, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT id, source, sub_source, generated_at, cutoff_date, thread_count, comment_count, html_content
		FROM reports
		WHERE request_key = $1
		ORDER BY generated_at DESC
		LIMIT 1
	`, key)

	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrReportNotFound
		}

		return nil, fmt.Errorf("latest report for key: %w", err)
	}

	return report, nil
}

// FilterReportsByKeys returns the newest report per request key, for matching
// a user's subscriptions against persisted reports.
func (db *DB) FilterReportsByKeys(ctx context.Context, keys []string) ([]domain.Report, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT DISTINCT ON (request_key)
		       id, source, sub_source, generated_at, cutoff_date, thread_count, comment_count, html_content
		FROM reports
		WHERE request_key = ANY($1)
		ORDER BY request_key, generated_at DESC
	`, keys)
	if err != nil {
		return nil, fmt.Errorf("filter reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.Report

	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}

		reports = append(reports, *report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}

	return reports, nil
}

func scanReport(row pgx.Row) (*domain.Report, error) {
	var (
		report      domain.Report
		generatedAt pgtype.Timestamptz
		cutoffDate  pgtype.Timestamptz
	)

	if err := row.Scan(&report.ID, &report.Source, &report.SubSource, &generatedAt, &cutoffDate,
		&report.ThreadCount, &report.CommentCount, &report.HTMLContent); err != nil {
		return nil, err
	}

	report.GeneratedAt = fromTimestamptz(generatedAt)
	report.CutoffDate = fromTimestamptz(cutoffDate)

	return &report, nil
}
