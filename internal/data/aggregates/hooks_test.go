package aggregates

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/trainwatch-backend/internal/observability"
)

func TestObservabilityHooksNilSafe(t *testing.T) {
	if _, ok := NewObservabilityHooks(nil).(noopHooks); !ok {
		t.Fatalf("nil metrics should yield noop hooks")
	}

	var h *observabilityHooks
	h.ObserveOperation("Playback.TraineeView.Record", "success", time.Millisecond)
	h.IncConflict("Playback.TraineeView.Record")
	h.IncRetry("Playback.TraineeView.Record")

	empty := &observabilityHooks{}
	empty.ObserveOperation("op", "success", time.Millisecond)
	empty.IncConflict("op")
	empty.IncRetry("op")
}

func TestObservabilityHooksLabels(t *testing.T) {
	m := observability.New()
	h := NewObservabilityHooks(m)
	h.ObserveOperation(" Playback.ProgramView.Record ", "", time.Millisecond)
	h.IncConflict("")
	h.IncRetry("Playback.TrainerView.Record")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`tw_aggregate_operation_duration_seconds_count{op="Playback.ProgramView.Record",status="failure"} 1`,
		`tw_aggregate_conflicts_total{op="unknown"} 1`,
		`tw_aggregate_retries_total{op="Playback.TrainerView.Record"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
