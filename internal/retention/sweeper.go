// Package retention purges trashed videos once their retention period has
// passed and drops expired sessions.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/cinevault/backend/internal/logging"
	"github.com/cinevault/backend/internal/metrics"
)

// VideoPurger removes trashed videos.
type VideoPurger interface {
	PurgeTrashedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

// SessionPurger removes expired refresh sessions.
type SessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ListingCache is a cached listing that must be rebuilt once videos are purged.
type ListingCache interface {
	Invalidate(ctx context.Context) error
}

// Result summarises one sweep.
type Result struct {
	Cutoff          time.Time
	PurgedVideos    []string
	ExpiredSessions int64
}

// Sweeper runs retention passes.
type Sweeper struct {
	videos    VideoPurger
	sessions  SessionPurger
	listings  []ListingCache
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewSweeper constructs a Sweeper. sessions and m may be nil.
func NewSweeper(videos VideoPurger, sessions SessionPurger, retention, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Sweeper {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		videos:    videos,
		sessions:  sessions,
		retention: retention,
		interval:  interval,
		logger:    logger,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// InvalidateOnPurge registers caches dropped after a sweep purges videos.
func (s *Sweeper) InvalidateOnPurge(caches ...ListingCache) {
	s.listings = append(s.listings, caches...)
}

// PurgeAt returns when a video trashed at trashedAt becomes eligible for purge.
func (s *Sweeper) PurgeAt(trashedAt time.Time) time.Time {
	return trashedAt.Add(s.retention)
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	ctx = logging.WithLogger(ctx, s.logger)
	ctx, span := logging.StartSpan(ctx, "retention.sweep")
	defer span.End()

	now := s.now()
	res := Result{Cutoff: now.Add(-s.retention)}
	span.SetAttr("cutoff", res.Cutoff)

	purged, err := s.videos.PurgeTrashedBefore(ctx, res.Cutoff)
	if err != nil {
		span.Fail(err)
		return res, err
	}
	res.PurgedVideos = purged
	span.SetAttr("purged_videos", len(purged))
	if len(purged) > 0 {
		for _, c := range s.listings {
			if err := c.Invalidate(ctx); err != nil {
				logging.FromContext(ctx).Warn("invalidate listing after purge", "error", err)
			}
		}
	}
	if s.metrics != nil {
		s.metrics.VideosPurged.Add(float64(len(purged)))
	}

	if s.sessions != nil {
		expired, err := s.sessions.DeleteExpired(ctx, now)
		if err != nil {
			span.Fail(err)
			return res, err
		}
		res.ExpiredSessions = expired
		span.SetAttr("expired_sessions", expired)
	}

	return res, nil
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("retention sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
