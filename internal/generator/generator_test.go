package generator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/analyzer"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/fetch"
)

type fakeReportStore struct {
	mu    sync.Mutex
	saved []domain.Report
	err   error
}

func (s *fakeReportStore) SaveReport(_ context.Context, report *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	s.saved = append(s.saved, *report)

	return nil
}

func newTestGenerator(t *testing.T, fetcher fetch.PlatformFetcher, a Analyzer) (*Generator, *fakeReportStore) {
	t.Helper()

	fetchers := fetch.NewRegistry()
	fetchers.Register("reddit", fetcher)

	store := &fakeReportStore{}
	logger := zerolog.Nop()

	gen := New(fetchers, a, NewHTMLRenderer(), store, Options{}, &logger)

	return gen, store
}

func TestProcessGeneratesReport(t *testing.T) {
	fetcher := fetch.NewMockFetcher(8)
	gen, store := newTestGenerator(t, fetcher, &analyzer.Mock{})

	report, err := gen.Process(context.Background(), "reddit", "dotnet")
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, "reddit", report.Source)
	assert.Equal(t, "dotnet", report.SubSource)
	assert.Equal(t, 5, report.ThreadCount, "only the top 5 candidates get analyzed")
	assert.Equal(t, 10, report.CommentCount, "two comments per analyzed item")
	assert.NotEmpty(t, report.HTMLContent)
	assert.Contains(t, report.HTMLContent, "Weekly feedback report")

	require.Len(t, store.saved, 1)
	assert.Equal(t, report.ID, store.saved[0].ID)

	assert.WithinDuration(t, report.GeneratedAt.Add(-7*24*time.Hour), report.CutoffDate, time.Second)
}

func TestProcessSelectsByEngagement(t *testing.T) {
	fetcher := fetch.NewMockFetcher(3)
	// Item 2 has the lowest default engagement; boost its score so weighting
	// matters: 0.7*comments dominates unless score compensates.
	fetcher.Items[2].CommentCount = 0
	fetcher.Items[2].Score = 1000

	ranked := rankTop(fetcher.Items, 1)
	require.Len(t, ranked, 1)
	assert.Equal(t, "item-2", ranked[0].ID, "0.3*1000 outweighs 0.7*30")
}

func TestProcessSkipsFailingItem(t *testing.T) {
	fetcher := fetch.NewMockFetcher(5)
	fetcher.DetailErrs = map[string]error{"item-1": errors.New("upstream 500")}

	gen, _ := newTestGenerator(t, fetcher, &analyzer.Mock{})

	report, err := gen.Process(context.Background(), "reddit", "dotnet")
	require.NoError(t, err, "a single failing item must not raise past Process")
	require.NotNil(t, report)

	assert.Equal(t, 4, report.ThreadCount)
	assert.NotContains(t, report.HTMLContent, "Feedback thread 1")
}

func TestProcessSkipsFailingAnalysis(t *testing.T) {
	fetcher := fetch.NewMockFetcher(5)
	gen, _ := newTestGenerator(t, fetcher, &analyzer.Mock{FailOn: "thread 0"})

	report, err := gen.Process(context.Background(), "reddit", "dotnet")
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, 4, report.ThreadCount)
}

func TestProcessEmptyWindow(t *testing.T) {
	fetcher := &fetch.MockFetcher{}
	gen, store := newTestGenerator(t, fetcher, &analyzer.Mock{})

	report, err := gen.Process(context.Background(), "reddit", "dotnet")
	require.NoError(t, err, "an empty window is a soft result, not an error")
	assert.Nil(t, report)
	assert.Empty(t, store.saved)
}

func TestProcessAllItemsFail(t *testing.T) {
	fetcher := fetch.NewMockFetcher(3)
	fetcher.DetailErrs = map[string]error{
		"item-0": errors.New("boom"),
		"item-1": errors.New("boom"),
		"item-2": errors.New("boom"),
	}

	gen, store := newTestGenerator(t, fetcher, &analyzer.Mock{})

	report, err := gen.Process(context.Background(), "reddit", "dotnet")
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Empty(t, store.saved)
}

func TestProcessListFailure(t *testing.T) {
	fetcher := &fetch.MockFetcher{Err: errors.New("rate limited")}
	gen, _ := newTestGenerator(t, fetcher, &analyzer.Mock{})

	report, err := gen.Process(context.Background(), "reddit", "dotnet")
	require.Error(t, err)
	assert.Nil(t, report)
}

func TestProcessUnsupportedPlatform(t *testing.T) {
	gen, _ := newTestGenerator(t, fetch.NewMockFetcher(1), &analyzer.Mock{})

	_, err := gen.Process(context.Background(), "myspace", "whatever")
	require.Error(t, err)
}

func TestConcurrentProcessSameKeySerialized(t *testing.T) {
	fetcher := fetch.NewMockFetcher(3)
	gen, store := newTestGenerator(t, fetcher, &analyzer.Mock{})

	const callers = 4

	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			report, err := gen.Process(context.Background(), "reddit", "dotnet")
			assert.NoError(t, err)
			assert.NotNil(t, report)
		}()
	}

	wg.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.saved, callers)
}

func TestTopComments(t *testing.T) {
	comments := []domain.Comment{
		{ID: "a", Score: 1},
		{ID: "b", Score: 10},
		{ID: "c", Score: 5},
	}

	top := topComments(comments, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].ID)
	assert.Equal(t, "c", top[1].ID)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.Lock("a")

	done := make(chan struct{})

	go func() {
		unlockB := km.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on independent key blocked")
	}

	unlockA()
}
