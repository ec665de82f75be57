package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("HTTP_ADDR", "127.0.0.1:8080")
	t.Setenv("SHUTDOWN_TIMEOUT", "1s")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("ASYNQ_CONCURRENCY", "1")
	t.Setenv("GOMAXPROCS", "0")
}

func TestStorageAndDeployBinding(t *testing.T) {
	setRequiredEnv(t)

	tmp := t.TempDir()
	t.Setenv("STORAGE_ROOT", tmp)
	t.Setenv("DEPLOY_TIMEOUT", "45s")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("NETLIFY_TOKEN", "nf-token")

	c, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if c.StorageRoot != tmp {
		t.Fatalf("expected storage root %s, got %s", tmp, c.StorageRoot)
	}
	if c.DeployTimeout != 45*time.Second {
		t.Fatalf("expected deploy timeout 45s, got %s", c.DeployTimeout)
	}
	if c.LockBackend != "redis" {
		t.Fatalf("expected redis lock backend, got %s", c.LockBackend)
	}
	if c.NetlifyToken != "nf-token" {
		t.Fatalf("expected netlify token to bind, got %q", c.NetlifyToken)
	}
	if c.VercelAPIURL != "https://api.vercel.com" {
		t.Fatalf("unexpected vercel api default %q", c.VercelAPIURL)
	}
}

func TestInvalidLockBackendRejected(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORAGE_ROOT", t.TempDir())
	t.Setenv("LOCK_BACKEND", "etcd")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for unknown lock backend")
	}
}
