package distributor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
	apperrors "github.com/jamesmontemagno/feedbackflow-sub002/internal/core/errors"
)

type memConfigStore struct {
	configs   []domain.AdminReportConfig
	listErr   error
	processed map[string]time.Time
}

func (s *memConfigStore) ListActiveAdminConfigs(_ context.Context) ([]domain.AdminReportConfig, error) {
	return s.configs, s.listErr
}

func (s *memConfigStore) GetAdminConfig(_ context.Context, id string) (*domain.AdminReportConfig, error) {
	for _, cfg := range s.configs {
		if cfg.ID == id {
			copied := cfg

			return &copied, nil
		}
	}

	return nil, apperrors.ErrConfigNotFound
}

func (s *memConfigStore) MarkAdminConfigProcessed(_ context.Context, id string, when time.Time) error {
	if s.processed == nil {
		s.processed = make(map[string]time.Time)
	}

	s.processed[id] = when

	return nil
}

type fakeCache struct {
	entries map[string]*domain.Report
	stale   map[string]bool
	set     []string
}

func (c *fakeCache) Get(_ context.Context, key string) (*domain.Report, bool, error) {
	report, ok := c.entries[key]
	if !ok {
		return nil, false, apperrors.ErrCacheNotFound
	}

	return report, c.stale[key], nil
}

func (c *fakeCache) Set(_ context.Context, report *domain.Report) error {
	c.set = append(c.set, report.Key())

	return nil
}

type countingGenerator struct {
	reports map[string]*domain.Report
	err     error
	calls   []string
}

func (g *countingGenerator) Process(_ context.Context, platformType, target string) (*domain.Report, error) {
	key := domain.RequestID(platformType, target)
	g.calls = append(g.calls, key)

	if g.err != nil {
		return nil, g.err
	}

	return g.reports[key], nil
}

type recordingSender struct {
	status domain.DeliveryStatus
	err    error
	sent   []string
}

func (s *recordingSender) Send(_ context.Context, report *domain.Report, recipient string) (domain.DeliveryStatus, error) {
	if s.err != nil {
		return domain.DeliveryFailed, s.err
	}

	s.sent = append(s.sent, report.ID+"->"+recipient)

	status := s.status
	if status == "" {
		status = domain.DeliverySent
	}

	return status, nil
}

func adminConfig(id, target string) domain.AdminReportConfig {
	return domain.AdminReportConfig{
		ID:             id,
		Name:           "weekly " + target,
		EmailRecipient: id + "@example.com",
		PlatformType:   "reddit",
		Target:         target,
		Active:         true,
	}
}

func newDistributor(configs ConfigStore, cache ReportCache, gen Generator, sender Sender) *Distributor {
	logger := zerolog.Nop()

	return New(configs, cache, gen, sender, time.Millisecond, &logger)
}

func TestRunOnceCacheHitSkipsGenerator(t *testing.T) {
	cfg := adminConfig("c1", "dotnet")
	report := &domain.Report{ID: "r1", Source: "reddit", SubSource: "dotnet"}

	store := &memConfigStore{configs: []domain.AdminReportConfig{cfg}}
	cache := &fakeCache{entries: map[string]*domain.Report{"reddit_dotnet": report}}
	gen := &countingGenerator{}
	sender := &recordingSender{}

	err := newDistributor(store, cache, gen, sender).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Empty(t, gen.calls, "a fresh cached report must not trigger regeneration")
	assert.Equal(t, []string{"r1->c1@example.com"}, sender.sent)
	assert.Contains(t, store.processed, "c1")
}

func TestRunOnceGeneratesOnMiss(t *testing.T) {
	cfg := adminConfig("c1", "dotnet")
	report := &domain.Report{ID: "r2", Source: "reddit", SubSource: "dotnet"}

	store := &memConfigStore{configs: []domain.AdminReportConfig{cfg}}
	cache := &fakeCache{entries: map[string]*domain.Report{}}
	gen := &countingGenerator{reports: map[string]*domain.Report{"reddit_dotnet": report}}
	sender := &recordingSender{}

	err := newDistributor(store, cache, gen, sender).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"reddit_dotnet"}, gen.calls)
	assert.Equal(t, []string{"reddit_dotnet"}, cache.set, "the regenerated report must land in the cache")
	assert.Equal(t, []string{"r2->c1@example.com"}, sender.sent)
	assert.Contains(t, store.processed, "c1")
}

func TestRunOnceStaleCacheRegenerates(t *testing.T) {
	cfg := adminConfig("c1", "dotnet")
	old := &domain.Report{ID: "r-old", Source: "reddit", SubSource: "dotnet"}
	fresh := &domain.Report{ID: "r-new", Source: "reddit", SubSource: "dotnet"}

	store := &memConfigStore{configs: []domain.AdminReportConfig{cfg}}
	cache := &fakeCache{
		entries: map[string]*domain.Report{"reddit_dotnet": old},
		stale:   map[string]bool{"reddit_dotnet": true},
	}
	gen := &countingGenerator{reports: map[string]*domain.Report{"reddit_dotnet": fresh}}
	sender := &recordingSender{}

	err := newDistributor(store, cache, gen, sender).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"reddit_dotnet"}, gen.calls)
	assert.Equal(t, []string{"r-new->c1@example.com"}, sender.sent)
}

func TestRunOnceStaleFallbackWhenWindowEmpty(t *testing.T) {
	cfg := adminConfig("c1", "dotnet")
	old := &domain.Report{ID: "r-old", Source: "reddit", SubSource: "dotnet"}

	store := &memConfigStore{configs: []domain.AdminReportConfig{cfg}}
	cache := &fakeCache{
		entries: map[string]*domain.Report{"reddit_dotnet": old},
		stale:   map[string]bool{"reddit_dotnet": true},
	}
	gen := &countingGenerator{} // nil report, nil error
	sender := &recordingSender{}

	err := newDistributor(store, cache, gen, sender).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"r-old->c1@example.com"}, sender.sent,
		"an empty regeneration should fall back to the stale copy")
}

func TestRunOnceIsolatesConfigFailures(t *testing.T) {
	first := adminConfig("c1", "broken")
	second := adminConfig("c2", "dotnet")
	report := &domain.Report{ID: "r1", Source: "reddit", SubSource: "dotnet"}

	store := &memConfigStore{configs: []domain.AdminReportConfig{first, second}}
	cache := &fakeCache{entries: map[string]*domain.Report{"reddit_dotnet": report}}
	gen := &countingGenerator{err: errors.New("upstream down")}
	sender := &recordingSender{}

	err := newDistributor(store, cache, gen, sender).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"r1->c2@example.com"}, sender.sent)
	assert.NotContains(t, store.processed, "c1")
	assert.Contains(t, store.processed, "c2")
}

func TestRunOnceSendFailureLeavesConfigUnprocessed(t *testing.T) {
	cfg := adminConfig("c1", "dotnet")
	report := &domain.Report{ID: "r1", Source: "reddit", SubSource: "dotnet"}

	store := &memConfigStore{configs: []domain.AdminReportConfig{cfg}}
	cache := &fakeCache{entries: map[string]*domain.Report{"reddit_dotnet": report}}
	sender := &recordingSender{err: errors.New("smtp refused")}

	err := newDistributor(store, cache, &countingGenerator{}, sender).RunOnce(context.Background())
	require.NoError(t, err)

	assert.NotContains(t, store.processed, "c1")
}

func TestRunOnceInProgressCountsAsDelivered(t *testing.T) {
	cfg := adminConfig("c1", "dotnet")
	report := &domain.Report{ID: "r1", Source: "reddit", SubSource: "dotnet"}

	store := &memConfigStore{configs: []domain.AdminReportConfig{cfg}}
	cache := &fakeCache{entries: map[string]*domain.Report{"reddit_dotnet": report}}
	sender := &recordingSender{status: domain.DeliveryInProgress}

	err := newDistributor(store, cache, &countingGenerator{}, sender).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Contains(t, store.processed, "c1")
}

func TestRunOncePacesEveryGap(t *testing.T) {
	const interval = 120 * time.Millisecond

	report := func(target string) *domain.Report {
		return &domain.Report{ID: "r-" + target, Source: "reddit", SubSource: target}
	}

	store := &memConfigStore{configs: []domain.AdminReportConfig{
		adminConfig("c1", "one"),
		adminConfig("c2", "two"),
		adminConfig("c3", "three"),
	}}
	cache := &fakeCache{entries: map[string]*domain.Report{
		"reddit_one":   report("one"),
		"reddit_two":   report("two"),
		"reddit_three": report("three"),
	}}
	sender := &recordingSender{}

	logger := zerolog.Nop()
	d := New(store, cache, &countingGenerator{}, sender, interval, &logger)

	start := time.Now()
	require.NoError(t, d.RunOnce(context.Background()))
	elapsed := time.Since(start)

	require.Len(t, sender.sent, 3)

	// Three configs mean two gaps, each a full interval: the burst token must
	// not let the first gap through unpaced.
	assert.GreaterOrEqual(t, elapsed, 2*interval)
}

func TestRunOnceSingleConfigDoesNotWait(t *testing.T) {
	const interval = 30 * time.Second

	cfg := adminConfig("c1", "dotnet")
	store := &memConfigStore{configs: []domain.AdminReportConfig{cfg}}
	cache := &fakeCache{entries: map[string]*domain.Report{
		"reddit_dotnet": {ID: "r1", Source: "reddit", SubSource: "dotnet"},
	}}
	sender := &recordingSender{}

	logger := zerolog.Nop()
	d := New(store, cache, &countingGenerator{}, sender, interval, &logger)

	start := time.Now()
	require.NoError(t, d.RunOnce(context.Background()))

	assert.Less(t, time.Since(start), time.Second)
	require.Len(t, sender.sent, 1)
}

func TestSendNowUnknownConfig(t *testing.T) {
	store := &memConfigStore{}

	err := newDistributor(store, &fakeCache{}, &countingGenerator{}, &recordingSender{}).
		SendNow(context.Background(), "missing")
	require.ErrorIs(t, err, apperrors.ErrConfigNotFound)
}

func TestSendNowDeliversOnDemand(t *testing.T) {
	cfg := adminConfig("c1", "dotnet")
	report := &domain.Report{ID: "r1", Source: "reddit", SubSource: "dotnet"}

	store := &memConfigStore{configs: []domain.AdminReportConfig{cfg}}
	cache := &fakeCache{entries: map[string]*domain.Report{"reddit_dotnet": report}}
	sender := &recordingSender{}

	err := newDistributor(store, cache, &countingGenerator{}, sender).
		SendNow(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, []string{"r1->c1@example.com"}, sender.sent)
	assert.Contains(t, store.processed, "c1")
}
