// Package distributor delivers reports to admin-configured recipients. It
// prefers the cache, regenerates on a miss, and paces sends through a token
// bucket so the AI and email backends never see bursty load.
package distributor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
	apperrors "github.com/jamesmontemagno/feedbackflow-sub002/internal/core/errors"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/platform/observability"
)

const defaultSendInterval = 45 * time.Second

// ConfigStore provides the admin delivery targets, satisfied by storage.DB.
type ConfigStore interface {
	ListActiveAdminConfigs(ctx context.Context) ([]domain.AdminReportConfig, error)
	GetAdminConfig(ctx context.Context, id string) (*domain.AdminReportConfig, error)
	MarkAdminConfigProcessed(ctx context.Context, id string, when time.Time) error
}

// ReportCache is the cache collaborator; a stale hit counts as a miss.
type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.Report, bool, error)
	Set(ctx context.Context, report *domain.Report) error
}

// Generator regenerates a report on a cache miss.
type Generator interface {
	Process(ctx context.Context, platformType, target string) (*domain.Report, error)
}

// Sender delivers one report by email.
type Sender interface {
	Send(ctx context.Context, report *domain.Report, recipient string) (domain.DeliveryStatus, error)
}

// Distributor processes admin report configs sequentially with pacing.
type Distributor struct {
	configs   ConfigStore
	cache     ReportCache
	generator Generator
	sender    Sender
	logger    *zerolog.Logger

	// limiter paces delivery between configs; sequential processing plus
	// the token bucket replaces a fixed inter-send sleep.
	limiter *rate.Limiter

	now func() time.Time
}

func New(configs ConfigStore, cache ReportCache, gen Generator, sender Sender, sendInterval time.Duration, logger *zerolog.Logger) *Distributor {
	if sendInterval <= 0 {
		sendInterval = defaultSendInterval
	}

	return &Distributor{
		configs:   configs,
		cache:     cache,
		generator: gen,
		sender:    sender,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Every(sendInterval), 1),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce processes every active config in order. One recipient's failure
// never blocks the others; each config ends terminal for this run.
func (d *Distributor) RunOnce(ctx context.Context) error {
	configs, err := d.configs.ListActiveAdminConfigs(ctx)
	if err != nil {
		return fmt.Errorf("list admin configs: %w", err)
	}

	// Drain the burst token so the first inter-config gap is paced like all
	// the others; the token refills between runs.
	d.limiter.Allow()

	for i, cfg := range configs {
		if i > 0 {
			if err := d.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("pacing wait: %w", err)
			}
		}

		if err := d.processConfig(ctx, &cfg); err != nil {
			d.logger.Error().Err(err).Str("config_id", cfg.ID).Msg("admin report delivery failed")
		}
	}

	d.logger.Info().Int("configs", len(configs)).Msg("admin distribution finished")

	return nil
}

// SendNow processes a single config on demand, bypassing pacing.
func (d *Distributor) SendNow(ctx context.Context, configID string) error {
	cfg, err := d.configs.GetAdminConfig(ctx, configID)
	if err != nil {
		return err
	}

	return d.processConfig(ctx, cfg)
}

// processConfig runs one config through its whole state machine:
// Pending → (CacheHit | Generated) → Sent | DeliveryFailed → Processed.
func (d *Distributor) processConfig(ctx context.Context, cfg *domain.AdminReportConfig) error {
	logger := d.logger.With().Str("config_id", cfg.ID).Str("recipient", cfg.EmailRecipient).Logger()

	report, err := d.resolveReport(ctx, cfg, &logger)
	if err != nil {
		return err
	}

	if report == nil {
		logger.Warn().Msg("no report available for config, skipping delivery")

		return nil
	}

	status, err := d.sender.Send(ctx, report, cfg.EmailRecipient)
	if err != nil {
		observability.EmailsSent.WithLabelValues("error").Inc()

		return fmt.Errorf("send report %s: %w", report.ID, err)
	}

	observability.EmailsSent.WithLabelValues(string(status)).Inc()

	if !status.Delivered() {
		// Terminal for this run: recorded, no retry.
		logger.Warn().Str("status", string(status)).Msg("delivery not accepted")

		return nil
	}

	if err := d.configs.MarkAdminConfigProcessed(ctx, cfg.ID, d.now()); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	logger.Info().Str("report_id", report.ID).Str("status", string(status)).Msg("admin report delivered")

	return nil
}

// resolveReport returns the cached report for the config's key, or
// regenerates and caches on a miss. Stale cache entries are regenerated
// rather than silently trusted.
func (d *Distributor) resolveReport(ctx context.Context, cfg *domain.AdminReportConfig, logger *zerolog.Logger) (*domain.Report, error) {
	key := cfg.Key()

	cached, stale, err := d.cache.Get(ctx, key)
	if err != nil && !errors.Is(err, apperrors.ErrCacheNotFound) {
		return nil, fmt.Errorf("cache lookup %s: %w", key, err)
	}

	if cached != nil && !stale {
		logger.Debug().Str("report_id", cached.ID).Msg("using cached report")

		return cached, nil
	}

	if stale {
		logger.Info().Str("key", key).Msg("cached report is stale, regenerating")
	}

	report, err := d.generator.Process(ctx, cfg.PlatformType, cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("generate report for %s: %w", key, err)
	}

	if report == nil {
		// Nothing analyzable; fall back to the stale copy if there was one.
		return cached, nil
	}

	if err := d.cache.Set(ctx, report); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("cache update failed")
	}

	return report, nil
}
