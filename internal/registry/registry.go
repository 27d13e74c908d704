// Package registry implements the dedup registry: one record per logical
// subscription, reference counted by independent subscribers.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
	apperrors "github.com/jamesmontemagno/feedbackflow-sub002/internal/core/errors"
)

// casRetries bounds how often a conflicting update is retried with a fresh
// read before giving up.
const casRetries = 10

// Store is the persistence the registry needs, satisfied by storage.DB.
type Store interface {
	InsertRequest(ctx context.Context, req *domain.ReportRequest) (bool, error)
	GetRequest(ctx context.Context, id string) (*domain.ReportRequest, error)
	UpdateRequestCount(ctx context.Context, id string, count int, version int64) error
	DeleteRequest(ctx context.Context, id string, version int64) error
	ListRequests(ctx context.Context) ([]domain.ReportRequest, error)
}

// Registry deduplicates report subscriptions by deterministic id.
type Registry struct {
	store  Store
	logger *zerolog.Logger
}

// DecrementResult reports the outcome of an unsubscribe.
type DecrementResult struct {
	Deleted   bool
	Remaining int
}

func New(store Store, logger *zerolog.Logger) *Registry {
	return &Registry{store: store, logger: logger}
}

// AddOrIncrement resolves the deterministic id for (platformType, target) and
// either creates the record with count 1 or increments the existing count.
// Returns the id and whether a brand-new record was created. A duplicate
// subscribe is not a conflict, it is a normal increment.
func (r *Registry) AddOrIncrement(ctx context.Context, platformType, target string) (string, bool, error) {
	id := domain.RequestID(platformType, target)

	req := &domain.ReportRequest{
		ID:           id,
		PlatformType: platformType,
		Target:       target,
	}

	created, err := r.store.InsertRequest(ctx, req)
	if err != nil {
		return "", false, fmt.Errorf("add request: %w", err)
	}

	if created {
		r.logger.Info().Str("id", id).Msg("created report request")

		return id, true, nil
	}

	// Lost the conditional insert or the record already existed: increment.
	if err := r.increment(ctx, req); err != nil {
		return "", false, err
	}

	return id, false, nil
}

func (r *Registry) increment(ctx context.Context, req *domain.ReportRequest) error {
	id := req.ID

	for attempt := 0; attempt < casRetries; attempt++ {
		current, err := r.store.GetRequest(ctx, id)
		if errors.Is(err, apperrors.ErrRequestNotFound) {
			// Deleted between our insert attempt and the read; re-create.
			created, insErr := r.store.InsertRequest(ctx, req)
			if insErr != nil {
				return fmt.Errorf("recreate request: %w", insErr)
			}

			if created {
				return nil
			}

			continue
		}

		if err != nil {
			return fmt.Errorf("read request for increment: %w", err)
		}

		err = r.store.UpdateRequestCount(ctx, id, current.SubscriberCount+1, current.Version)
		if err == nil {
			r.logger.Debug().Str("id", id).Int("count", current.SubscriberCount+1).Msg("incremented subscriber count")

			return nil
		}

		if !errors.Is(err, apperrors.ErrVersionConflict) {
			return fmt.Errorf("increment request: %w", err)
		}
	}

	return fmt.Errorf("increment %s: %w", id, apperrors.ErrVersionConflict)
}

// Decrement reduces a record's subscriber count, deleting the record when the
// last subscriber leaves. Returns ErrRequestNotFound for unknown ids.
func (r *Registry) Decrement(ctx context.Context, id string) (DecrementResult, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		req, err := r.store.GetRequest(ctx, id)
		if err != nil {
			if errors.Is(err, apperrors.ErrRequestNotFound) {
				return DecrementResult{}, apperrors.ErrRequestNotFound
			}

			return DecrementResult{}, fmt.Errorf("read request for decrement: %w", err)
		}

		if req.SubscriberCount <= 1 {
			err = r.store.DeleteRequest(ctx, id, req.Version)
			if err == nil {
				r.logger.Info().Str("id", id).Msg("removed report request")

				return DecrementResult{Deleted: true}, nil
			}
		} else {
			err = r.store.UpdateRequestCount(ctx, id, req.SubscriberCount-1, req.Version)
			if err == nil {
				return DecrementResult{Remaining: req.SubscriberCount - 1}, nil
			}
		}

		if !errors.Is(err, apperrors.ErrVersionConflict) {
			return DecrementResult{}, fmt.Errorf("decrement request: %w", err)
		}
	}

	return DecrementResult{}, fmt.Errorf("decrement %s: %w", id, apperrors.ErrVersionConflict)
}

// List returns all subscription records in one pass.
func (r *Registry) List(ctx context.Context) ([]domain.ReportRequest, error) {
	requests, err := r.store.ListRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}

	return requests, nil
}
