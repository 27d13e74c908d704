// Package fetch defines the platform collaborator boundary. Real clients
// (Reddit, GitHub, YouTube, ...) live outside this core and plug in through
// the PlatformFetcher interface.
package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
	apperrors "github.com/jamesmontemagno/feedbackflow-sub002/internal/core/errors"
)

// PlatformFetcher retrieves feedback from one platform.
type PlatformFetcher interface {
	// ListRecent returns a lightweight listing of items created or active
	// since the cutoff.
	ListRecent(ctx context.Context, target string, cutoff time.Time) ([]domain.FeedbackItem, error)

	// FetchDetail returns the full item including its comment tree.
	FetchDetail(ctx context.Context, id string) (*domain.FeedbackDetail, error)
}

// Registry resolves a fetcher by platform type, case-insensitively.
type Registry struct {
	fetchers map[string]PlatformFetcher
}

func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[string]PlatformFetcher)}
}

// Register adds a fetcher for a platform type, replacing any previous one.
func (r *Registry) Register(platformType string, fetcher PlatformFetcher) {
	r.fetchers[strings.ToLower(platformType)] = fetcher
}

// For returns the fetcher for a platform type.
func (r *Registry) For(platformType string) (PlatformFetcher, error) {
	fetcher, ok := r.fetchers[strings.ToLower(platformType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedPlatform, platformType)
	}

	return fetcher, nil
}
