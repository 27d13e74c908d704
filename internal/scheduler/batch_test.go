package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
)

type stubRegistry struct {
	requests []domain.ReportRequest
	err      error
}

func (r *stubRegistry) List(_ context.Context) ([]domain.ReportRequest, error) {
	return r.requests, r.err
}

// scriptedGenerator returns a per-target outcome.
type scriptedGenerator struct {
	reports map[string]*domain.Report
	errs    map[string]error
	order   []string
}

func (g *scriptedGenerator) Process(_ context.Context, _, target string) (*domain.Report, error) {
	g.order = append(g.order, target)

	if err, ok := g.errs[target]; ok {
		return nil, err
	}

	return g.reports[target], nil
}

type memSummaryStore struct {
	saved []domain.RunSummary
}

func (s *memSummaryStore) SaveRunSummary(_ context.Context, summary *domain.RunSummary) error {
	s.saved = append(s.saved, *summary)

	return nil
}

type recordingCache struct {
	keys []string
}

func (c *recordingCache) Set(_ context.Context, report *domain.Report) error {
	c.keys = append(c.keys, report.Key())

	return nil
}

func requests(targets ...string) []domain.ReportRequest {
	reqs := make([]domain.ReportRequest, 0, len(targets))
	for _, target := range targets {
		reqs = append(reqs, domain.ReportRequest{
			ID:           domain.RequestID("reddit", target),
			PlatformType: "reddit",
			Target:       target,
		})
	}

	return reqs
}

func newScheduler(reg Registry, gen Generator, cache ReportCache, store SummaryStore) *Scheduler {
	logger := zerolog.Nop()

	return New(reg, gen, cache, store, &logger)
}

func TestRunOnceIsolatesFailures(t *testing.T) {
	reg := &stubRegistry{requests: requests("one", "two", "three")}
	gen := &scriptedGenerator{
		reports: map[string]*domain.Report{
			"one":   {ID: "r-one", Source: "reddit", SubSource: "one"},
			"three": {ID: "r-three", Source: "reddit", SubSource: "three"},
		},
		errs: map[string]error{"two": errors.New("platform fetch blew up")},
	}
	store := &memSummaryStore{}
	cache := &recordingCache{}

	summary, err := newScheduler(reg, gen, cache, store).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalRequests)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailureCount)
	assert.Equal(t, summary.TotalRequests, summary.SuccessCount+summary.FailureCount)
	assert.Equal(t, []string{"r-one", "r-three"}, summary.GeneratedReports)
	assert.Equal(t, []string{"reddit_two"}, summary.FailedRequests)

	// The failing request must not have stopped the remainder.
	assert.Equal(t, []string{"one", "two", "three"}, gen.order)

	require.Len(t, store.saved, 1)
	assert.Equal(t, []string{"reddit_one", "reddit_three"}, cache.keys)
}

func TestRunOnceCountsEmptyAsFailure(t *testing.T) {
	reg := &stubRegistry{requests: requests("quiet")}
	gen := &scriptedGenerator{} // nil report, nil error

	summary, err := newScheduler(reg, gen, nil, &memSummaryStore{}).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalRequests)
	assert.Equal(t, 0, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailureCount)
	assert.Equal(t, []string{"reddit_quiet"}, summary.FailedRequests)
}

func TestRunOnceEmptyRegistry(t *testing.T) {
	store := &memSummaryStore{}

	summary, err := newScheduler(&stubRegistry{}, &scriptedGenerator{}, nil, store).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TotalRequests)
	require.Len(t, store.saved, 1, "an empty run still leaves a summary")
}

func TestRunOnceRegistryError(t *testing.T) {
	reg := &stubRegistry{err: errors.New("db down")}
	store := &memSummaryStore{}

	_, err := newScheduler(reg, &scriptedGenerator{}, nil, store).RunOnce(context.Background())
	require.Error(t, err)
	assert.Empty(t, store.saved)
}

func TestRunOnceAllOutcomeMixes(t *testing.T) {
	tests := []struct {
		name     string
		targets  []string
		errs     map[string]error
		empty    map[string]bool
		wantOK   int
		wantFail int
	}{
		{
			name:    "all succeed",
			targets: []string{"a", "b"},
			wantOK:  2,
		},
		{
			name:     "all fail",
			targets:  []string{"a", "b"},
			errs:     map[string]error{"a": errors.New("x"), "b": errors.New("y")},
			wantFail: 2,
		},
		{
			name:     "mixed with empty",
			targets:  []string{"a", "b", "c"},
			errs:     map[string]error{"b": errors.New("x")},
			empty:    map[string]bool{"c": true},
			wantOK:   1,
			wantFail: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptedGenerator{reports: map[string]*domain.Report{}, errs: tt.errs}
			for _, target := range tt.targets {
				if !tt.empty[target] {
					gen.reports[target] = &domain.Report{ID: "r-" + target, Source: "reddit", SubSource: target}
				}
			}

			reg := &stubRegistry{requests: requests(tt.targets...)}

			summary, err := newScheduler(reg, gen, nil, &memSummaryStore{}).RunOnce(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.wantOK, summary.SuccessCount)
			assert.Equal(t, tt.wantFail, summary.FailureCount)
			assert.Equal(t, len(tt.targets), summary.SuccessCount+summary.FailureCount)
		})
	}
}
