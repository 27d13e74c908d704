// Package app provides the application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// different operational modes:
//
//   - Serve mode: HTTP API plus the generation job worker
//   - Batch mode: weekly regeneration of every active subscription
//   - Admin mode: weekly email distribution to admin-configured recipients
//   - All mode: everything in one process
//
// Each mode can be run independently or combined based on deployment needs.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/analyzer"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/cache"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/config"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/distributor"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/email"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/fetch"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/generator"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/httpapi"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/jobs"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/platform/observability"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/platform/worker"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/registry"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/scheduler"
	db "github.com/jamesmontemagno/feedbackflow-sub002/internal/storage"
)

const (
	batchTaskName       = "batch regeneration"
	adminTaskName       = "admin distribution"
	httpShutdownTimeout = 10 * time.Second
	mockFetcherItems    = 8
)

// App holds the application dependencies and provides methods to run different modes.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger
}

// New creates a new App instance with the given dependencies.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
	}
}

// components is the wired pipeline shared by all modes.
type components struct {
	cache       *cache.Cache
	registry    *registry.Registry
	generator   *generator.Generator
	queue       *jobs.Queue
	scheduler   *scheduler.Scheduler
	distributor *distributor.Distributor
}

func (a *App) build(ctx context.Context) (*components, error) {
	reportCache, err := cache.New(ctx, cache.Options{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
		MaxAge:   a.cfg.CacheMaxAge,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("report cache init: %w", err)
	}

	gen := generator.New(
		a.newFetcherRegistry(),
		a.newAnalyzer(),
		generator.NewHTMLRenderer(),
		a.database,
		generator.Options{
			Window:         a.cfg.ReportWindow,
			TopItems:       a.cfg.ReportTopItems,
			HighlightCount: a.cfg.ReportHighlightCount,
		},
		a.logger,
	)

	reg := registry.New(a.database, a.logger)
	queue := jobs.NewQueue(a.database, gen, reportCache, a.cfg.JobPollInterval, a.logger)
	batch := scheduler.New(reg, gen, reportCache, a.database, a.logger)
	dist := distributor.New(a.database, reportCache, gen, a.newEmailSender(), a.cfg.AdminSendInterval, a.logger)

	return &components{
		cache:       reportCache,
		registry:    reg,
		generator:   gen,
		queue:       queue,
		scheduler:   batch,
		distributor: dist,
	}, nil
}

// StartHealthServer starts the health check and metrics server.
func (a *App) StartHealthServer(ctx context.Context) error {
	srv := observability.NewServer(a.database, a.cfg.HealthPort, a.logger)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("health server start: %w", err)
	}

	return nil
}

// RunServe runs the HTTP API together with the generation job worker.
func (a *App) RunServe(ctx context.Context) error {
	a.logger.Info().Msg("starting serve mode")

	c, err := a.build(ctx)
	if err != nil {
		return err
	}

	go a.runJobWorker(ctx, c.queue)

	return a.serveHTTP(ctx, c)
}

// RunBatch runs the weekly batch regeneration loop, or a single run with once.
func (a *App) RunBatch(ctx context.Context, once bool) error {
	a.logger.Info().Bool("once", once).Msg("starting batch mode")

	c, err := a.build(ctx)
	if err != nil {
		return err
	}

	if once {
		_, err := c.scheduler.RunOnce(ctx)

		return err
	}

	weekly := worker.NewWeeklyScheduler(a.logger)
	weekly.AddTask(&worker.WeeklyTask{
		Name: batchTaskName,
		Day:  a.cfg.BatchDay,
		Hour: a.cfg.BatchHour,
		Run: func(ctx context.Context, _ *zerolog.Logger) error {
			_, err := c.scheduler.RunOnce(ctx)

			return err
		},
	})

	return worker.TickerLoop(ctx, worker.TickerConfig{
		Name:     "batch scheduler",
		Interval: a.cfg.SchedulerTickInterval,
		OnTick:   weekly.CheckAndRun,
		Logger:   a.logger,
	})
}

// RunAdmin runs the weekly admin distribution loop, or a single run with once.
func (a *App) RunAdmin(ctx context.Context, once bool) error {
	a.logger.Info().Bool("once", once).Msg("starting admin mode")

	c, err := a.build(ctx)
	if err != nil {
		return err
	}

	if once {
		return c.distributor.RunOnce(ctx)
	}

	weekly := worker.NewWeeklyScheduler(a.logger)
	weekly.AddTask(&worker.WeeklyTask{
		Name: adminTaskName,
		Day:  a.cfg.AdminDay,
		Hour: a.cfg.AdminHour,
		Run: func(ctx context.Context, _ *zerolog.Logger) error {
			return c.distributor.RunOnce(ctx)
		},
	})

	return worker.TickerLoop(ctx, worker.TickerConfig{
		Name:     "admin distributor",
		Interval: a.cfg.SchedulerTickInterval,
		OnTick:   weekly.CheckAndRun,
		Logger:   a.logger,
	})
}

// RunAll runs every mode in one process.
func (a *App) RunAll(ctx context.Context) error {
	a.logger.Info().Msg("starting all-in-one mode")

	c, err := a.build(ctx)
	if err != nil {
		return err
	}

	go a.runJobWorker(ctx, c.queue)

	weekly := worker.NewWeeklyScheduler(a.logger)
	weekly.AddTask(&worker.WeeklyTask{
		Name: batchTaskName,
		Day:  a.cfg.BatchDay,
		Hour: a.cfg.BatchHour,
		Run: func(ctx context.Context, _ *zerolog.Logger) error {
			_, err := c.scheduler.RunOnce(ctx)

			return err
		},
	})
	weekly.AddTask(&worker.WeeklyTask{
		Name: adminTaskName,
		Day:  a.cfg.AdminDay,
		Hour: a.cfg.AdminHour,
		Run: func(ctx context.Context, _ *zerolog.Logger) error {
			return c.distributor.RunOnce(ctx)
		},
	})

	go func() {
		err := worker.TickerLoop(ctx, worker.TickerConfig{
			Name:     "weekly scheduler",
			Interval: a.cfg.SchedulerTickInterval,
			OnTick:   weekly.CheckAndRun,
			Logger:   a.logger,
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error().Err(err).Msg("weekly scheduler stopped")
		}
	}()

	return a.serveHTTP(ctx, c)
}

func (a *App) serveHTTP(ctx context.Context, c *components) error {
	api := httpapi.NewAPI(c.registry, c.queue, a.database, a.database, c.distributor, a.logger)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(a.cfg.HTTPPort),
		Handler:           httpapi.NewRouter(api, a.cfg.AdminAPIToken, a.logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Int("port", a.cfg.HTTPPort).Msg("http api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn().Err(err).Msg("http shutdown failed")
		}

		return fmt.Errorf("http server: %w", ctx.Err())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("http server: %w", err)
	}
}

func (a *App) runJobWorker(ctx context.Context, queue *jobs.Queue) {
	if err := queue.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			a.logger.Info().Msg("job worker stopped")

			return
		}

		a.logger.Warn().Err(err).Msg("job worker stopped")
	}
}

// newAnalyzer returns the OpenAI analyzer, or the mock when no key is set so
// local runs work end to end without credentials.
func (a *App) newAnalyzer() generator.Analyzer {
	if a.cfg.LLMAPIKey == "" {
		a.logger.Warn().Msg("no LLM API key configured, using mock analyzer")

		return &analyzer.Mock{}
	}

	return analyzer.NewOpenAI(analyzer.Options{
		APIKey:    a.cfg.LLMAPIKey,
		Model:     a.cfg.LLMModel,
		RateRPS:   a.cfg.LLMRateRPS,
		RateBurst: a.cfg.LLMRateBurst,
	}, a.logger)
}

// newFetcherRegistry registers the platform collaborators. Real clients are
// external; every platform currently resolves to the mock fetcher, which is
// enough to exercise the whole pipeline locally.
func (a *App) newFetcherRegistry() *fetch.Registry {
	fetchers := fetch.NewRegistry()

	for _, platform := range []domain.Platform{
		domain.PlatformReddit,
		domain.PlatformGitHub,
		domain.PlatformYouTube,
		domain.PlatformHackerNews,
		domain.PlatformBlueSky,
	} {
		fetchers.Register(string(platform), fetch.NewMockFetcher(mockFetcherItems))
	}

	return fetchers
}

// newEmailSender returns the delivery collaborator; the provider client is
// external, so the logging default stands in for it.
func (a *App) newEmailSender() email.Sender {
	return &email.LogSender{Logger: a.logger}
}
