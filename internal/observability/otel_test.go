package observability

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseHeaders(t *testing.T) {
	got := parseHeaders([]string{"api-key=abc", " x-team = ops ", "broken", "=missing", "empty="})
	want := map[string]string{"api-key": "abc", "x-team": "ops"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}
	if parseHeaders(nil) != nil {
		t.Fatalf("expected nil for no headers")
	}
}

func TestOtelConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("OTEL_SAMPLER_PERCENT", "250")
	cfg := OtelConfigFromEnv(nil)
	if cfg.Enabled {
		t.Fatalf("tracing should default off")
	}
	if cfg.SampleRatio != 1 {
		t.Fatalf("sample ratio should clamp to 1, got %v", cfg.SampleRatio)
	}
	if cfg.ServiceName != "trainwatch" {
		t.Fatalf("service name %q", cfg.ServiceName)
	}
}
