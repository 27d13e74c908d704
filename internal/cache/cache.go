// Package cache provides the Redis-backed report cache. Entries are keyed by
// the normalized generation key and hold the latest report for that key; a
// regeneration overwrites unconditionally, last Set wins.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
	apperrors "github.com/jamesmontemagno/feedbackflow-sub002/internal/core/errors"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/platform/observability"
)

const keyPrefix = "report:"

// Options configures the cache connection and freshness policy.
type Options struct {
	Addr     string
	Password string
	DB       int

	// MaxAge marks entries older than this as stale. Zero disables the
	// staleness check and every hit is treated as fresh.
	MaxAge time.Duration
}

// Cache stores the most recently produced report per generation key.
type Cache struct {
	client *redis.Client
	maxAge time.Duration
	logger *zerolog.Logger

	now func() time.Time
}

type entry struct {
	Report   domain.Report `json:"report"`
	StoredAt time.Time     `json:"storedAt"`
}

func encodeEntry(report *domain.Report, storedAt time.Time) ([]byte, error) {
	raw, err := json.Marshal(entry{Report: *report, StoredAt: storedAt})
	if err != nil {
		return nil, fmt.Errorf("cache encode: %w", err)
	}

	return raw, nil
}

// decodeEntry unpacks a stored entry and decides freshness against maxAge.
// maxAge <= 0 disables the staleness check and every entry counts as fresh.
func decodeEntry(raw []byte, maxAge time.Duration, now time.Time) (*domain.Report, bool, error) {
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, fmt.Errorf("decode cache entry: %w", err)
	}

	stale := maxAge > 0 && now.Sub(e.StoredAt) > maxAge

	return &e.Report, stale, nil
}

// New connects to Redis and returns the cache.
func New(ctx context.Context, opts Options, logger *zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Cache{
		client: client,
		maxAge: opts.MaxAge,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Get returns the cached report for a key and whether it is stale. A stale
// hit is still returned so callers can decide between reuse and regeneration.
// Returns ErrCacheNotFound on a miss.
func (c *Cache) Get(ctx context.Context, key string) (*domain.Report, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			observability.CacheMisses.Inc()

			return nil, false, apperrors.ErrCacheNotFound
		}

		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	report, stale, err := decodeEntry(raw, c.maxAge, c.now())
	if err != nil {
		// Treat a corrupt entry as a miss; the next Set repairs it.
		c.logger.Warn().Err(err).Str("key", key).Msg("dropping undecodable cache entry")
		observability.CacheMisses.Inc()

		return nil, false, apperrors.ErrCacheNotFound
	}

	if stale {
		observability.CacheStaleHits.Inc()
	} else {
		observability.CacheHits.Inc()
	}

	return report, stale, nil
}

// Set stores a report under its generation key, unconditionally overwriting
// any prior entry.
func (c *Cache) Set(ctx context.Context, report *domain.Report) error {
	raw, err := encodeEntry(report, c.now())
	if err != nil {
		return err
	}

	// No TTL: entries live until the next regeneration overwrites them,
	// freshness is handled by the MaxAge check on read.
	if err := c.client.Set(ctx, keyPrefix+report.Key(), raw, 0).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}

	return nil
}
