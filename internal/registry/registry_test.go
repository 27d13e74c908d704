package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
	apperrors "github.com/jamesmontemagno/feedbackflow-sub002/internal/core/errors"
)

// fakeStore is an in-memory Store with the same conditional-insert and
// version-compare semantics as the postgres implementation.
type fakeStore struct {
	mu       sync.Mutex
	records  map[string]*domain.ReportRequest
	conflict int // inject this many CAS failures before an update lands
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*domain.ReportRequest)}
}

func (s *fakeStore) InsertRequest(_ context.Context, req *domain.ReportRequest) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[req.ID]; ok {
		return false, nil
	}

	s.records[req.ID] = &domain.ReportRequest{
		ID:              req.ID,
		PlatformType:    req.PlatformType,
		Target:          req.Target,
		SubscriberCount: 1,
		Version:         1,
	}

	return true, nil
}

func (s *fakeStore) GetRequest(_ context.Context, id string) (*domain.ReportRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, apperrors.ErrRequestNotFound
	}

	copied := *rec

	return &copied, nil
}

func (s *fakeStore) UpdateRequestCount(_ context.Context, id string, count int, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.Version != version {
		return apperrors.ErrVersionConflict
	}

	if s.conflict > 0 {
		s.conflict--
		rec.Version++

		return apperrors.ErrVersionConflict
	}

	rec.SubscriberCount = count
	rec.Version++

	return nil
}

func (s *fakeStore) DeleteRequest(_ context.Context, id string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.Version != version {
		return apperrors.ErrVersionConflict
	}

	delete(s.records, id)

	return nil
}

func (s *fakeStore) ListRequests(_ context.Context) ([]domain.ReportRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ReportRequest, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}

	return out, nil
}

func newRegistry(store Store) *Registry {
	logger := zerolog.Nop()

	return New(store, &logger)
}

func TestAddOrIncrementTwiceSameID(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	reg := newRegistry(store)

	id1, isNew, err := reg.AddOrIncrement(ctx, "reddit", "dotnet")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, "reddit_dotnet", id1)

	id2, isNew, err := reg.AddOrIncrement(ctx, "Reddit", "DotNet")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, id1, id2)

	rec, err := store.GetRequest(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.SubscriberCount)
}

func TestDecrementKeepsRecordAboveOne(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	reg := newRegistry(store)

	id, _, err := reg.AddOrIncrement(ctx, "github", "owner/repo")
	require.NoError(t, err)

	_, _, err = reg.AddOrIncrement(ctx, "github", "owner/repo")
	require.NoError(t, err)

	res, err := reg.Decrement(ctx, id)
	require.NoError(t, err)
	assert.False(t, res.Deleted)
	assert.Equal(t, 1, res.Remaining)

	requests, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Len(t, requests, 1)
}

func TestDecrementDeletesLastSubscriber(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	reg := newRegistry(store)

	id, _, err := reg.AddOrIncrement(ctx, "reddit", "dotnet")
	require.NoError(t, err)

	res, err := reg.Decrement(ctx, id)
	require.NoError(t, err)
	assert.True(t, res.Deleted)

	_, err = store.GetRequest(ctx, id)
	assert.ErrorIs(t, err, apperrors.ErrRequestNotFound)

	_, err = reg.Decrement(ctx, id)
	assert.ErrorIs(t, err, apperrors.ErrRequestNotFound)
}

func TestDecrementUnknownID(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(newFakeStore())

	_, err := reg.Decrement(ctx, "reddit_missing")
	assert.ErrorIs(t, err, apperrors.ErrRequestNotFound)
}

func TestIncrementRetriesOnVersionConflict(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	reg := newRegistry(store)

	_, _, err := reg.AddOrIncrement(ctx, "reddit", "dotnet")
	require.NoError(t, err)

	store.conflict = 2

	_, isNew, err := reg.AddOrIncrement(ctx, "reddit", "dotnet")
	require.NoError(t, err)
	assert.False(t, isNew)

	rec, err := store.GetRequest(ctx, "reddit_dotnet")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.SubscriberCount)
}

func TestConcurrentSubscribersConverge(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	reg := newRegistry(store)

	const subscribers = 8

	var wg sync.WaitGroup

	for i := 0; i < subscribers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, _, err := reg.AddOrIncrement(ctx, "reddit", "dotnet")
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	rec, err := store.GetRequest(ctx, "reddit_dotnet")
	require.NoError(t, err)
	assert.Equal(t, subscribers, rec.SubscriberCount)
}
