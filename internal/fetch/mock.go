package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
)

// MockFetcher returns canned feedback for local runs and tests.
type MockFetcher struct {
	Items   []domain.FeedbackItem
	Details map[string]*domain.FeedbackDetail

	// Err fails every call when set.
	Err error
	// DetailErrs fails FetchDetail for specific ids.
	DetailErrs map[string]error
}

// NewMockFetcher seeds a fetcher with n items of descending engagement.
func NewMockFetcher(n int) *MockFetcher {
	m := &MockFetcher{Details: make(map[string]*domain.FeedbackDetail)}

	now := time.Now().UTC()

	for i := 0; i < n; i++ {
		item := domain.FeedbackItem{
			ID:           fmt.Sprintf("item-%d", i),
			Title:        fmt.Sprintf("Feedback thread %d", i),
			URL:          fmt.Sprintf("https://example.com/item-%d", i),
			Author:       "tester",
			CreatedAt:    now.Add(-time.Duration(i) * time.Hour),
			CommentCount: 10 * (n - i),
			Score:        5 * (n - i),
		}
		m.Items = append(m.Items, item)
		m.Details[item.ID] = &domain.FeedbackDetail{
			FeedbackItem: item,
			Body:         "body of " + item.Title,
			Comments: []domain.Comment{
				{ID: item.ID + "-c1", Author: "alice", Body: "first comment", Score: 3, CreatedAt: now},
				{ID: item.ID + "-c2", Author: "bob", Body: "second comment", Score: 1, CreatedAt: now},
			},
		}
	}

	return m
}

func (m *MockFetcher) ListRecent(_ context.Context, _ string, cutoff time.Time) ([]domain.FeedbackItem, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	var items []domain.FeedbackItem

	for _, item := range m.Items {
		if item.CreatedAt.After(cutoff) {
			items = append(items, item)
		}
	}

	return items, nil
}

func (m *MockFetcher) FetchDetail(_ context.Context, id string) (*domain.FeedbackDetail, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	if err, ok := m.DetailErrs[id]; ok {
		return nil, err
	}

	detail, ok := m.Details[id]
	if !ok {
		return nil, fmt.Errorf("mock detail %s: not found", id)
	}

	return detail, nil
}
