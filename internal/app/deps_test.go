package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinevault/backend/internal/config"
	"github.com/cinevault/backend/internal/metrics"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Close() {}

func testConfig() config.Config {
	return config.Config{
		YTDLPPath:        "yt-dlp",
		YTDLPTimeout:     time.Second,
		MetadataCacheTTL: time.Minute,
		TrashRetention:   30 * 24 * time.Hour,
		SweepInterval:    time.Hour,
		ProPrice:         950,
		Auth:             config.AuthConfig{JWTSecret: "test", AccessTTL: time.Minute, RefreshTTL: time.Hour},
		Trending:         config.TrendingConfig{Window: 7 * 24 * time.Hour, CacheTTL: time.Minute, Limit: 10},
	}
}

func TestBuildDependencies(t *testing.T) {
	cfg := testConfig()
	cfg.ObjectStore = config.ObjectStoreConfig{Bucket: "test-bucket", Endpoint: "http://localhost:9000", Region: "us-east-1"}

	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	built, err := buildDependencies(context.Background(), fakePool{}, cfg, logger, metrics.New(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := built.cleanup(ctx); err != nil {
			t.Fatalf("cleanup: %v", err)
		}
	}()

	deps := built.deps
	checks := map[string]bool{
		"users":        deps.Users != nil,
		"sessions":     deps.Sessions != nil,
		"videos":       deps.Videos != nil,
		"trending":     deps.Trending != nil,
		"engagement":   deps.Engagement != nil,
		"favorites":    deps.Favorites != nil,
		"playlists":    deps.Playlists != nil,
		"billing":      deps.Billing != nil,
		"metadata":     deps.Metadata != nil,
		"thumbnails":   deps.Thumbnails != nil,
		"retention":    deps.Retention != nil,
		"live":         deps.Live != nil,
		"metrics":      deps.Metrics != nil,
		"authLimiter":  deps.AuthLimiter != nil,
		"writeLimiter": deps.WriteLimiter != nil,
	}
	for name, ok := range checks {
		if !ok {
			t.Errorf("expected %s to be configured", name)
		}
	}

	if built.sweeper == nil {
		t.Fatal("expected retention sweeper")
	}
	trashed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := deps.Retention.PurgeAt(trashed); !got.Equal(trashed.Add(cfg.TrashRetention)) {
		t.Fatalf("unexpected purge time %v", got)
	}
}

func TestBuildDependenciesWithoutObjectStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	built, err := buildDependencies(context.Background(), fakePool{}, testConfig(), logger, metrics.New(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer built.cleanup(context.Background())

	if built.deps.Thumbnails != nil {
		t.Fatal("expected thumbnail uploads to be disabled without a bucket")
	}
}
