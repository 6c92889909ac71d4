package aggregates

import (
	"strings"
	"time"

	"github.com/yungbote/trainwatch-backend/internal/observability"
)

// Hooks captures aggregate-level observability events. name is the contract
// op, e.g. "Playback.ProgramView.Record".
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	IncRetry(name string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}

type observabilityHooks struct {
	metrics *observability.Metrics
}

// NewObservabilityHooks reports view writes through the tw_aggregate_* series.
func NewObservabilityHooks(metrics *observability.Metrics) Hooks {
	if metrics == nil {
		return noopHooks{}
	}
	return &observabilityHooks{metrics: metrics}
}

func (h *observabilityHooks) ObserveOperation(name, status string, dur time.Duration) {
	if h == nil || h.metrics == nil {
		return
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = "failure"
	}
	h.metrics.ObserveAggregateOperation(opLabel(name), status, dur)
}

func (h *observabilityHooks) IncConflict(name string) {
	if h == nil || h.metrics == nil {
		return
	}
	h.metrics.IncAggregateConflict(opLabel(name))
}

func (h *observabilityHooks) IncRetry(name string) {
	if h == nil || h.metrics == nil {
		return
	}
	h.metrics.IncAggregateRetry(opLabel(name))
}

// opLabel keeps blank op names from producing an empty label value.
func opLabel(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return "unknown"
}
