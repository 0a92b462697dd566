package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CINEVAULT_ENV", "development")
	t.Setenv("CINEVAULT_JWT_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AppPort != 8080 {
		t.Fatalf("expected default port 8080 got %d", cfg.AppPort)
	}
	if cfg.TrashRetention != 30*24*time.Hour {
		t.Fatalf("unexpected trash retention: %v", cfg.TrashRetention)
	}
	if cfg.Trending.Window != 30*24*time.Hour {
		t.Fatalf("unexpected trending window: %v", cfg.Trending.Window)
	}
	if cfg.DBMaxConns != 10 {
		t.Fatalf("unexpected db max conns: %d", cfg.DBMaxConns)
	}
	if cfg.ProPrice != 950 {
		t.Fatalf("unexpected pro price: %v", cfg.ProPrice)
	}
	if cfg.Auth.JWTSecret == "" {
		t.Fatal("expected development secret to be filled in")
	}
	if cfg.Kafka.Enabled() {
		t.Fatal("expected kafka disabled without brokers")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CINEVAULT_PORT", "9090")
	t.Setenv("CINEVAULT_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("CINEVAULT_REDIS_ENABLED", "true")
	t.Setenv("CINEVAULT_TRENDING_CACHE_TTL", "90s")
	t.Setenv("CINEVAULT_S3_BUCKET", "thumbs")
	t.Setenv("CINEVAULT_TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AppPort != 9090 {
		t.Fatalf("expected port override got %d", cfg.AppPort)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.Kafka.Brokers)
	}
	if !cfg.Redis.Enabled {
		t.Fatal("expected redis enabled")
	}
	if cfg.Trending.CacheTTL != 90*time.Second {
		t.Fatalf("unexpected cache ttl: %v", cfg.Trending.CacheTTL)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[0] != "10.0.0.0/8" {
		t.Fatalf("unexpected trusted proxies: %v", cfg.TrustedProxies)
	}
	if !cfg.ObjectStore.Enabled() {
		t.Fatal("expected object store enabled")
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("CINEVAULT_PORT", "not-a-number")
	t.Setenv("CINEVAULT_SWEEP_INTERVAL", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AppPort != 8080 {
		t.Fatalf("expected fallback port got %d", cfg.AppPort)
	}
	if cfg.SweepInterval != time.Hour {
		t.Fatalf("expected fallback sweep interval got %v", cfg.SweepInterval)
	}
}

func TestValidateRequiresSecretOutsideDevelopment(t *testing.T) {
	t.Setenv("CINEVAULT_ENV", "production")
	t.Setenv("CINEVAULT_JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without jwt secret in production")
	}

	t.Setenv("CINEVAULT_JWT_SECRET", "s3cret")
	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error with secret: %v", err)
	}
}
