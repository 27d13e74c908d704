package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
	apperrors "github.com/jamesmontemagno/feedbackflow-sub002/internal/core/errors"
)

// InsertRequest conditionally creates a dedup record with subscriber_count 1.
// Returns false without error when a record with the same id already exists,
// so two callers racing to create the same new subscription converge: the
// loser retries as an increment.
func (db *DB) InsertRequest(ctx context.Context, req *domain.ReportRequest) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO report_requests (id, platform_type, target, subscriber_count, version, created_at)
		VALUES ($1, $2, $3, 1, 1, now())
		ON CONFLICT (id) DO NOTHING
	`, req.ID, req.PlatformType, req.Target)
	if err != nil {
		return false, fmt.Errorf("insert report request: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// GetRequest fetches a dedup record by id including its version.
func (db *DB) GetRequest(ctx context.Context, id string) (*domain.ReportRequest, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT id, platform_type, target, subscriber_count, version, created_at
		FROM report_requests
		WHERE id = $1
	`, id)

	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRequestNotFound
		}

		return nil, fmt.Errorf("get report request: %w", err)
	}

	return req, nil
}

// UpdateRequestCount applies a compare-and-swap on the subscriber count.
// The update only lands when the stored version still matches; otherwise
// ErrVersionConflict is returned and the caller must re-read and retry.
func (db *DB) UpdateRequestCount(ctx context.Context, id string, count int, version int64) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE report_requests
		SET subscriber_count = $2, version = version + 1
		WHERE id = $1 AND version = $3
	`, id, count, version)
	if err != nil {
		return fmt.Errorf("update report request count: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.ErrVersionConflict
	}

	return nil
}

// DeleteRequest removes a dedup record, guarded by the same version compare
// as count updates so a concurrent subscribe is not silently discarded.
func (db *DB) DeleteRequest(ctx context.Context, id string, version int64) error {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM report_requests
		WHERE id = $1 AND version = $2
	`, id, version)
	if err != nil {
		return fmt.Errorf("delete report request: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.ErrVersionConflict
	}

	return nil
}

// ListRequests returns all dedup records in one pass.
func (db *DB) ListRequests(ctx context.Context) ([]domain.ReportRequest, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, platform_type, target, subscriber_count, version, created_at
		FROM report_requests
		ORDER BY platform_type, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list report requests: %w", err)
	}
	defer rows.Close()

	var requests []domain.ReportRequest

	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report request: %w", err)
		}

		requests = append(requests, *req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report requests: %w", err)
	}

	return requests, nil
}

func scanRequest(row pgx.Row) (*domain.ReportRequest, error) {
	var req domain.ReportRequest

	if err := row.Scan(&req.ID, &req.PlatformType, &req.Target, &req.SubscriberCount, &req.Version, &req.CreatedAt); err != nil {
		return nil, err
	}

	return &req, nil
}
