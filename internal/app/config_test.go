package app

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, name := range []string{"PORT", "REDIS_ADDR", "REPAIR_MAX_ATTEMPTS", "SECONDARY_WRITE_TIMEOUT_MS", "CORS_ALLOW_ORIGINS", "OTEL_ENABLED"} {
		t.Setenv(name, "")
	}
	cfg := LoadConfig(nil)

	if cfg.Port != "8080" || cfg.RedisAddr != "" || cfg.RepairMaxAttempts != 5 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.SecondaryWriteTimeout != 5*time.Second || cfg.BreakerOpenTimeout != 30*time.Second {
		t.Fatalf("timeouts = %v, %v", cfg.SecondaryWriteTimeout, cfg.BreakerOpenTimeout)
	}
	if cfg.CORSAllowOrigins != nil {
		t.Fatalf("origins = %v, want nil", cfg.CORSAllowOrigins)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REPAIR_MAX_ATTEMPTS", "9")
	t.Setenv("REPAIR_WORKER_ENABLED", "false")
	t.Setenv("SECONDARY_WRITE_TIMEOUT_MS", "250")
	t.Setenv("BREAKER_FAILURE_THRESHOLD", "not-a-number")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example.test, ,https://b.example.test")

	cfg := LoadConfig(nil)
	if cfg.Port != "9090" || cfg.RedisAddr != "redis:6379" || cfg.RepairMaxAttempts != 9 || cfg.RepairWorkerEnabled {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.SecondaryWriteTimeout != 250*time.Millisecond {
		t.Fatalf("secondary timeout = %v", cfg.SecondaryWriteTimeout)
	}
	if cfg.BreakerFailureThreshold != 5 {
		t.Fatalf("unparseable threshold should fall back, got %d", cfg.BreakerFailureThreshold)
	}
	if diff := cmp.Diff([]string{"https://a.example.test", "https://b.example.test"}, cfg.CORSAllowOrigins); diff != "" {
		t.Fatalf("origins (-want +got):\n%s", diff)
	}
}
