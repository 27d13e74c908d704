package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
	apperrors "github.com/jamesmontemagno/feedbackflow-sub002/internal/core/errors"
)

// ListActiveAdminConfigs returns admin delivery targets that are enabled,
// oldest-processed first so starved recipients go early in the run.
func (db *DB) ListActiveAdminConfigs(ctx context.Context) ([]domain.AdminReportConfig, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, name, email_recipient, platform_type, target, active, last_processed_at
		FROM admin_report_configs
		WHERE active
		ORDER BY last_processed_at NULLS FIRST, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list active admin configs: %w", err)
	}
	defer rows.Close()

	var configs []domain.AdminReportConfig

	for rows.Next() {
		cfg, err := scanAdminConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan admin config: %w", err)
		}

		configs = append(configs, *cfg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admin configs: %w", err)
	}

	return configs, nil
}

// GetAdminConfig fetches a single config by id for on-demand sends.
func (db *DB) GetAdminConfig(ctx context.Context, id string) (*domain.AdminReportConfig, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT id, name, email_recipient, platform_type, target, active, last_processed_at
		FROM admin_report_configs
		WHERE id = $1
	`, id)

	cfg, err := scanAdminConfig(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrConfigNotFound
		}

		return nil, fmt.Errorf("get admin config: %w", err)
	}

	return cfg, nil
}

// MarkAdminConfigProcessed stamps last_processed_at after a delivery attempt
// that reached the email provider.
func (db *DB) MarkAdminConfigProcessed(ctx context.Context, id string, when time.Time) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE admin_report_configs
		SET last_processed_at = $2
		WHERE id = $1
	`, id, toTimestamptz(when))
	if err != nil {
		return fmt.Errorf("mark admin config processed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.ErrConfigNotFound
	}

	return nil
}

func scanAdminConfig(row pgx.Row) (*domain.AdminReportConfig, error) {
	var (
		cfg       domain.AdminReportConfig
		processed pgtype.Timestamptz
	)

	if err := row.Scan(&cfg.ID, &cfg.Name, &cfg.EmailRecipient, &cfg.PlatformType,
		&cfg.Target, &cfg.Active, &processed); err != nil {
		return nil, err
	}

	cfg.LastProcessedAt = fromTimestamptzPtr(processed)

	return &cfg, nil
}
