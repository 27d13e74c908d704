// Package generator orchestrates one report generation:
// fetch listing → rank → analyze top items → weekly summary → assemble →
// persist. Failures of individual items are logged and skipped; only a run
// that yields nothing analyzable is empty.
package generator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/fetch"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/platform/observability"
)

const (
	defaultWindow         = 7 * 24 * time.Hour
	defaultTopItems       = 5
	defaultHighlightCount = 5
)

// Analyzer is the AI collaborator the generator needs.
type Analyzer interface {
	Summarize(ctx context.Context, text string) (string, error)
	SummarizeWeekly(ctx context.Context, texts []string) (string, error)
}

// ReportStore persists assembled reports, satisfied by storage.DB.
type ReportStore interface {
	SaveReport(ctx context.Context, report *domain.Report) error
}

// Options tunes the generation pipeline.
type Options struct {
	// Window is how far back the cutoff reaches (default 7 days).
	Window time.Duration

	// TopItems bounds how many ranked candidates get full analysis.
	TopItems int

	// HighlightCount bounds the highlighted-comments section.
	HighlightCount int
}

// Generator produces reports for (platformType, target) pairs.
type Generator struct {
	fetchers *fetch.Registry
	analyzer Analyzer
	renderer Renderer
	store    ReportStore
	opts     Options
	logger   *zerolog.Logger

	// locks serializes generation per key; concurrent callers for the same
	// key wait rather than duplicating work downstream.
	locks *keyedMutex

	now func() time.Time
}

func New(fetchers *fetch.Registry, analyzer Analyzer, renderer Renderer, store ReportStore, opts Options, logger *zerolog.Logger) *Generator {
	if opts.Window <= 0 {
		opts.Window = defaultWindow
	}

	if opts.TopItems <= 0 {
		opts.TopItems = defaultTopItems
	}

	if opts.HighlightCount <= 0 {
		opts.HighlightCount = defaultHighlightCount
	}

	return &Generator{
		fetchers: fetchers,
		analyzer: analyzer,
		renderer: renderer,
		store:    store,
		opts:     opts,
		logger:   logger,
		locks:    newKeyedMutex(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Process generates, persists and returns a report for one subscription.
// Returns (nil, nil) when the window held nothing analyzable — a soft empty
// result, not an error, so batch callers can count it without unwrapping.
// Idempotent for the same target and window; concurrent calls for the same
// key are serialized.
func (g *Generator) Process(ctx context.Context, platformType, target string) (*domain.Report, error) {
	key := domain.RequestID(platformType, target)

	unlock := g.locks.Lock(key)
	defer unlock()

	start := g.now()

	report, err := g.generate(ctx, platformType, target, start)

	observability.ReportGenerationDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		observability.ReportsGenerated.WithLabelValues("failed").Inc()
	case report == nil:
		observability.ReportsGenerated.WithLabelValues("empty").Inc()
	default:
		observability.ReportsGenerated.WithLabelValues("ok").Inc()
	}

	return report, err
}

func (g *Generator) generate(ctx context.Context, platformType, target string, now time.Time) (*domain.Report, error) {
	logger := g.logger.With().Str("platform", platformType).Str("target", target).Logger()

	fetcher, err := g.fetchers.For(platformType)
	if err != nil {
		return nil, err
	}

	cutoff := now.Add(-g.opts.Window)

	items, err := fetcher.ListRecent(ctx, target, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list recent %s/%s: %w", platformType, target, err)
	}

	selected := rankTop(items, g.opts.TopItems)
	if len(selected) == 0 {
		logger.Info().Time("cutoff", cutoff).Msg("no feedback items in window")

		return nil, nil
	}

	analyses, comments := g.analyzeItems(ctx, fetcher, selected, &logger)
	if len(analyses) == 0 {
		logger.Warn().Int("candidates", len(selected)).Msg("no items survived analysis")

		return nil, nil
	}

	weekly, err := g.weeklySummary(ctx, analyses, comments)
	if err != nil {
		return nil, fmt.Errorf("weekly summary: %w", err)
	}

	content := &ReportContent{
		Source:        strings.ToLower(platformType),
		SubSource:     target,
		GeneratedAt:   now,
		CutoffDate:    cutoff,
		WeeklySummary: weekly,
		Items:         analyses,
		Highlights:    topComments(comments, g.opts.HighlightCount),
	}

	html, err := g.renderer.Render(content)
	if err != nil {
		return nil, fmt.Errorf("assemble report: %w", err)
	}

	report := &domain.Report{
		ID:           uuid.NewString(),
		Source:       strings.ToLower(platformType),
		SubSource:    target,
		GeneratedAt:  now,
		CutoffDate:   cutoff,
		ThreadCount:  len(analyses),
		CommentCount: len(comments),
		HTMLContent:  html,
	}

	if err := g.store.SaveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("persist report: %w", err)
	}

	logger.Info().
		Str("report_id", report.ID).
		Int("threads", report.ThreadCount).
		Int("comments", report.CommentCount).
		Msg("report generated")

	return report, nil
}

// analyzeItems fetches detail and summarizes each selected item. A failure
// on one item is recorded and the item skipped; the rest continue.
func (g *Generator) analyzeItems(ctx context.Context, fetcher fetch.PlatformFetcher, selected []domain.FeedbackItem, logger *zerolog.Logger) ([]ItemAnalysis, []domain.Comment) {
	analyses := make([]ItemAnalysis, 0, len(selected))

	var comments []domain.Comment

	for _, item := range selected {
		detail, err := fetcher.FetchDetail(ctx, item.ID)
		if err != nil {
			logger.Warn().Err(err).Str("item_id", item.ID).Msg("skipping item, detail fetch failed")
			observability.ItemsSkipped.WithLabelValues("fetch").Inc()

			continue
		}

		summary, err := g.analyzer.Summarize(ctx, detailText(detail))
		if err != nil {
			logger.Warn().Err(err).Str("item_id", item.ID).Msg("skipping item, analysis failed")
			observability.ItemsSkipped.WithLabelValues("analyze").Inc()

			continue
		}

		analyses = append(analyses, ItemAnalysis{Item: item, Summary: summary})
		comments = append(comments, detail.Comments...)
	}

	return analyses, comments
}

func (g *Generator) weeklySummary(ctx context.Context, analyses []ItemAnalysis, comments []domain.Comment) (string, error) {
	texts := make([]string, 0, len(analyses)+1)

	for _, a := range analyses {
		texts = append(texts, a.Item.Title+"\n"+a.Summary)
	}

	if flat := flattenComments(comments); flat != "" {
		texts = append(texts, flat)
	}

	return g.analyzer.SummarizeWeekly(ctx, texts)
}

// rankTop orders candidates by weighted engagement and returns the first n.
func rankTop(items []domain.FeedbackItem, n int) []domain.FeedbackItem {
	ranked := make([]domain.FeedbackItem, len(items))
	copy(ranked, items)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].EngagementScore() > ranked[j].EngagementScore()
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}

	return ranked
}

// topComments returns the n highest-scored comments for the highlight section.
func topComments(comments []domain.Comment, n int) []domain.Comment {
	ranked := make([]domain.Comment, len(comments))
	copy(ranked, comments)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}

	return ranked
}

func detailText(detail *domain.FeedbackDetail) string {
	var sb strings.Builder

	sb.WriteString(detail.Title)
	sb.WriteString("\n")
	sb.WriteString(detail.Body)
	sb.WriteString("\n")
	sb.WriteString(flattenComments(detail.Comments))

	return sb.String()
}

func flattenComments(comments []domain.Comment) string {
	var sb strings.Builder

	for _, c := range comments {
		sb.WriteString(c.Author)
		sb.WriteString(": ")
		sb.WriteString(c.Body)
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}
