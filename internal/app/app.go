package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/cinevault/backend/internal/config"
	"github.com/cinevault/backend/internal/db"
	"github.com/cinevault/backend/internal/handlers"
	"github.com/cinevault/backend/internal/httpserver"
	"github.com/cinevault/backend/internal/logging"
	"github.com/cinevault/backend/internal/metrics"
	"github.com/cinevault/backend/internal/middleware"
	"github.com/cinevault/backend/internal/repositories"
	"github.com/cinevault/backend/internal/retention"
)

const limiterJanitorInterval = time.Minute

// Run bootstraps the CineVault backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, seed, or sweep")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	ctx = logging.WithLogger(ctx, logger)

	switch args[0] {
	case "serve":
		return serve(ctx, cfg, logger)
	case "migrate":
		return runMigrations(ctx, cfg, args[1:])
	case "seed":
		return runSeed(ctx, cfg, args[1:])
	case "sweep":
		return runSweep(ctx, cfg, logger)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	trust, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	pool, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	built, err := buildDependencies(ctx, pool, cfg, logger, m)
	if err != nil {
		return err
	}
	deps := built.deps
	deps.DB = pool

	go built.sweeper.Run(ctx)
	go middleware.Janitor(ctx, deps.AuthLimiter, limiterJanitorInterval)
	go middleware.Janitor(ctx, deps.WriteLimiter, limiterJanitorInterval)

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	var handler http.Handler = mux
	handler = middleware.CORS(cfg.AllowedOrigins)(handler)
	handler = middleware.Instrument(m)(handler)
	handler = middleware.RequestLogger(logger)(handler)
	handler = middleware.RealIP(trust)(handler)

	srv := httpserver.New(cfg.AppPort, handler, logger)
	logger.Info("starting http server", "port", cfg.AppPort, "environment", cfg.Environment)

	serveErr := srv.Run(ctx)
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		logger.Error("http server stopped", "error", serveErr)
	} else {
		serveErr = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()
	if err := built.cleanup(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}

	logger.Info("server stopped")
	return serveErr
}

// runSweep performs a single retention sweep, for use from cron when the
// in-process sweeper is not wanted.
func runSweep(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	pool, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	sweeper := retention.NewSweeper(
		repositories.NewPostgresVideoRepository(pool),
		repositories.NewPostgresSessionStore(pool),
		cfg.TrashRetention, cfg.SweepInterval, logger, nil,
	)

	res, err := sweeper.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("purged %d videos trashed before %s and %d expired sessions\n",
		len(res.PurgedVideos), res.Cutoff.Format(time.RFC3339), res.ExpiredSessions)
	return nil
}

func connectDB(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	return db.Connect(ctx, cfg.DatabaseURL, db.Options{
		MaxConns:        int32(cfg.DBMaxConns),
		MaxConnIdleTime: 5 * time.Minute,
	})
}
