package ingestion

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	domainagg "github.com/yungbote/trainwatch-backend/internal/domain/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/domain/views"
	"github.com/yungbote/trainwatch-backend/internal/observability"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

type BreakerConfig struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
	HalfOpenRequests uint32
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenRequests == 0 {
		c.HalfOpenRequests = 1
	}
	return c
}

// ErrBreakerOpen is reported for writes refused without touching the store.
var ErrBreakerOpen = errors.New("view circuit breaker open")

// viewBreakers isolates the secondary views from each other: a struggling
// Program-View store does not stop Trainer-View writes.
type viewBreakers map[views.Kind]*gobreaker.CircuitBreaker[views.RecordResult]

func newViewBreakers(cfg BreakerConfig, log *logger.Logger, metrics *observability.Metrics, kinds ...views.Kind) viewBreakers {
	cfg = cfg.withDefaults()
	out := make(viewBreakers, len(kinds))
	for _, kind := range kinds {
		view := string(kind)
		out[kind] = gobreaker.NewCircuitBreaker[views.RecordResult](gobreaker.Settings{
			Name:        view + "-view",
			MaxRequests: cfg.HalfOpenRequests,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			},
			IsSuccessful: countsAsHealthy,
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("view breaker state change", "breaker", name, "from", from.String(), "to", to.String())
				metrics.SetBreakerState(view, to.String())
			},
		})
		metrics.SetBreakerState(view, gobreaker.StateClosed.String())
	}
	return out
}

// countsAsHealthy keeps caller-side rejections from tripping the breaker;
// only store trouble does.
func countsAsHealthy(err error) bool {
	return err == nil || domainagg.CallerFault(err)
}

func (b viewBreakers) execute(kind views.Kind, fn func() (views.RecordResult, error)) (views.RecordResult, error) {
	cb, ok := b[kind]
	if !ok {
		return fn()
	}
	res, err := cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return res, domainagg.NewError(domainagg.CodeRetryable, "ingestion."+string(kind), "breaker "+cb.State().String(), errors.Join(ErrBreakerOpen, err))
	}
	return res, err
}

func (b viewBreakers) state(kind views.Kind) string {
	if cb, ok := b[kind]; ok {
		return cb.State().String()
	}
	return gobreaker.StateClosed.String()
}
