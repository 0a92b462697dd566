package trending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cinevault/backend/internal/cache"
	"github.com/cinevault/backend/internal/logging"
	"github.com/cinevault/backend/internal/metrics"
	"github.com/cinevault/backend/internal/models"
)

const cacheKey = "trending:v1"

// Store loads the inputs of the ranking.
type Store interface {
	TrendingCandidates(ctx context.Context, since time.Time) ([]models.Video, error)
	InteractionsSince(ctx context.Context, videoIDs []string, since time.Time) ([]models.Interaction, error)
}

// Cache keeps the most recent ranking between computations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Options configures a Service.
type Options struct {
	Params   Params
	CacheTTL time.Duration
	// Limit is the number of ranked videos computed and cached.
	Limit int
}

// Service serves the trending ranking, recomputing it when the cache is cold.
type Service struct {
	store   Store
	cache   Cache
	opts    Options
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService constructs a Service. c and m may be nil.
func NewService(store Store, c Cache, opts Options, m *metrics.Metrics) *Service {
	if opts.Params == (Params{}) {
		opts.Params = DefaultParams()
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	return &Service{
		store:   store,
		cache:   c,
		opts:    opts,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Trending returns at most limit videos ordered by trending score.
func (s *Service) Trending(ctx context.Context, limit int) ([]Ranked, error) {
	if limit <= 0 || limit > s.opts.Limit {
		limit = s.opts.Limit
	}

	ranked, ok := s.cached(ctx)
	if !ok {
		var err error
		ranked, err = s.Compute(ctx)
		if err != nil {
			return nil, err
		}
		s.remember(ctx, ranked)
	}

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// Invalidate drops the cached ranking so the next read recomputes it. Callers
// use it whenever a video leaves the published set.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		return fmt.Errorf("invalidate trending cache: %w", err)
	}
	s.observeCache("invalidated")
	return nil
}

// Compute builds the ranking from the store, bypassing the cache.
func (s *Service) Compute(ctx context.Context) ([]Ranked, error) {
	ctx, span := logging.StartSpan(ctx, "trending.compute")
	defer span.End()

	now := s.now()
	since := now.Add(-s.opts.Params.Window)

	candidates, err := s.store.TrendingCandidates(ctx, since)
	if err != nil {
		span.Fail(err)
		return nil, fmt.Errorf("load trending candidates: %w", err)
	}

	ids := make([]string, 0, len(candidates))
	for _, v := range candidates {
		ids = append(ids, v.ID)
	}

	var interactions []models.Interaction
	if len(ids) > 0 {
		interactions, err = s.store.InteractionsSince(ctx, ids, since)
		if err != nil {
			span.Fail(err)
			return nil, fmt.Errorf("load interactions: %w", err)
		}
	}

	ranked := Rank(candidates, interactions, now, s.opts.Params)
	if len(ranked) > s.opts.Limit {
		ranked = ranked[:s.opts.Limit]
	}

	span.SetAttr("candidates", len(candidates))
	span.SetAttr("interactions", len(interactions))
	if s.metrics != nil {
		s.metrics.TrendingDuration.Observe(span.Elapsed().Seconds())
	}

	return ranked, nil
}

func (s *Service) cached(ctx context.Context) ([]Ranked, bool) {
	if s.cache == nil {
		return nil, false
	}

	data, err := s.cache.Get(ctx, cacheKey)
	if err != nil {
		s.observeCache("miss")
		if !isMiss(err) {
			logging.FromContext(ctx).Warn("trending cache read failed", "error", err)
		}
		return nil, false
	}

	var ranked []Ranked
	if err := json.Unmarshal(data, &ranked); err != nil {
		s.observeCache("corrupt")
		logging.FromContext(ctx).Warn("discarding corrupt trending cache entry", "error", err)
		return nil, false
	}

	s.observeCache("hit")
	return ranked, true
}

func (s *Service) remember(ctx context.Context, ranked []Ranked) {
	if s.cache == nil || s.opts.CacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(ranked)
	if err != nil {
		logging.FromContext(ctx).Warn("encode trending cache entry", "error", err)
		return
	}
	if err := s.cache.Set(ctx, cacheKey, data, s.opts.CacheTTL); err != nil {
		logging.FromContext(ctx).Warn("trending cache write failed", "error", err)
	}
}

func (s *Service) observeCache(result string) {
	if s.metrics != nil {
		s.metrics.TrendingCache.WithLabelValues(result).Inc()
	}
}

func isMiss(err error) bool {
	return errors.Is(err, cache.ErrCacheMiss) || errors.Is(err, cache.ErrCacheDisabled)
}
