package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cinevault/backend/internal/auth"
	"github.com/cinevault/backend/internal/billing"
	"github.com/cinevault/backend/internal/cache"
	"github.com/cinevault/backend/internal/config"
	"github.com/cinevault/backend/internal/db"
	"github.com/cinevault/backend/internal/engagement"
	"github.com/cinevault/backend/internal/events"
	"github.com/cinevault/backend/internal/handlers"
	"github.com/cinevault/backend/internal/metadata"
	"github.com/cinevault/backend/internal/metrics"
	"github.com/cinevault/backend/internal/middleware"
	"github.com/cinevault/backend/internal/realtime"
	"github.com/cinevault/backend/internal/repositories"
	"github.com/cinevault/backend/internal/retention"
	"github.com/cinevault/backend/internal/storage"
	"github.com/cinevault/backend/internal/trending"
)

var (
	authPolicy  = middleware.Policy{Requests: 10, Window: time.Minute, Burst: 5, IdleTTL: 10 * time.Minute}
	writePolicy = middleware.Policy{Requests: 120, Window: time.Minute, Burst: 30, IdleTTL: 10 * time.Minute}
)

// components bundles what serve needs beyond the HTTP handler dependencies.
type components struct {
	deps    handlers.Dependencies
	sweeper *retention.Sweeper
	cleanup func(context.Context) error
}

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (components, error) {
	var closers []func(context.Context) error
	cleanup := func(ctx context.Context) error {
		var errs []error
		for _, fn := range closers {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}

	users := repositories.NewPostgresUserRepository(pool)
	videos := repositories.NewPostgresVideoRepository(pool)
	sessionStore := repositories.NewPostgresSessionStore(pool)
	engagementRepo := repositories.NewPostgresEngagementRepository(pool)

	redisCache, err := cache.NewRedisCache(ctx, cfg.Redis, logger)
	if err != nil {
		return components{}, err
	}
	var (
		trendingCache trending.Cache
		metadataCache metadata.SharedStore
	)
	if redisCache.IsEnabled() {
		trendingCache = redisCache
		metadataCache = redisCache
	}

	hub := realtime.NewHub(cfg.AllowedOrigins, logger, m)
	publishers := []engagement.Publisher{hub}

	var kafka *events.KafkaPublisher
	if cfg.Kafka.Enabled() {
		kafka = events.NewKafkaPublisher(cfg.Kafka, logger)
		publishers = append(publishers, kafka)
	}

	dispatcher := engagement.NewDispatcher(publishers, engagement.DispatcherConfig{
		QueueSize:      512,
		Workers:        4,
		PublishTimeout: 5 * time.Second,
	}, logger, m)

	// The dispatcher drains first so queued events still reach every sink.
	closers = append(closers, dispatcher.Shutdown)
	if kafka != nil {
		closers = append(closers, func(context.Context) error { return kafka.Close() })
	}
	closers = append(closers,
		func(context.Context) error { hub.Close(); return nil },
		func(context.Context) error { return redisCache.Close() },
	)

	params := trending.DefaultParams()
	if cfg.Trending.Window > 0 {
		params.Window = cfg.Trending.Window
	}
	trendingService := trending.NewService(videos, trendingCache, trending.Options{
		Params:   params,
		CacheTTL: cfg.Trending.CacheTTL,
		Limit:    cfg.Trending.Limit,
	}, m)

	ytdlp := metadata.NewYTDLP(cfg.YTDLPPath, cfg.YTDLPTimeout)

	var thumbnails handlers.ThumbnailStorage
	if cfg.ObjectStore.Enabled() {
		store, err := storage.NewThumbnailStore(ctx, cfg.ObjectStore)
		if err != nil {
			_ = cleanup(ctx)
			return components{}, fmt.Errorf("configure thumbnail storage: %w", err)
		}
		thumbnails = store
	} else {
		logger.Info("thumbnail uploads disabled", "reason", "no bucket configured")
	}

	sweeper := retention.NewSweeper(videos, sessionStore, cfg.TrashRetention, cfg.SweepInterval, logger, m)
	sweeper.InvalidateOnPurge(trendingService)

	deps := handlers.Dependencies{
		Users:        users,
		Sessions:     auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL, sessionStore),
		Videos:       videos,
		Trending:     trendingService,
		Engagement:   engagement.NewService(engagementRepo, videos, dispatcher, m),
		Favorites:    engagementRepo,
		Playlists:    repositories.NewPostgresPlaylistRepository(pool),
		Billing:      billing.NewService(repositories.NewPostgresPaymentRepository(pool), cfg.ProPrice),
		Metadata:     metadata.NewCachingProvider(ytdlp, metadataCache, cfg.MetadataCacheTTL),
		Thumbnails:   thumbnails,
		Retention:    sweeper,
		Live:         hub,
		Metrics:      m.Handler(),
		AuthLimiter:  middleware.NewIPRateLimiter(authPolicy),
		WriteLimiter: middleware.NewIPRateLimiter(writePolicy),
	}

	return components{deps: deps, sweeper: sweeper, cleanup: cleanup}, nil
}
