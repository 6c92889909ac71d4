package observability

import (
	"context"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

// Metrics holds every collector on a private registry. All methods are safe
// on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	ingestions   *prometheus.CounterVec
	viewWrites   *prometheus.CounterVec
	viewLatency  *prometheus.HistogramVec
	breakerState *prometheus.GaugeVec
	repairs      *prometheus.CounterVec

	aggregateOps      *prometheus.HistogramVec
	aggregateConflict *prometheus.CounterVec
	aggregateRetry    *prometheus.CounterVec

	pgStats   *prometheus.GaugeVec
	redisUp   prometheus.Gauge
	redisPing prometheus.Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return true
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

// Init returns the process-wide metrics, or nil when disabled.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		if log != nil {
			log.Info("metrics disabled")
		}
		return nil
	}
	initOnce.Do(func() {
		instance = New()
	})
	return instance
}

func Current() *Metrics {
	return instance
}

// New builds a metrics set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tw_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tw_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route", "status"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "tw_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		ingestions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tw_ingestions_total",
			Help: "Recorded events by result status (recorded, degraded, rejected, failed).",
		}, []string{"status"}),
		viewWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tw_view_writes_total",
			Help: "View writes by view and outcome.",
		}, []string{"view", "outcome"}),
		viewLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tw_view_write_duration_seconds",
			Help:    "View write latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"view"}),
		breakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tw_view_breaker_open",
			Help: "1 when the view's circuit breaker is open, 0.5 half-open, 0 closed.",
		}, []string{"view"}),
		repairs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tw_view_repairs_total",
			Help: "Repair jobs by view and status (scheduled, repaired, requeued, abandoned).",
		}, []string{"view", "status"}),
		aggregateOps: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tw_aggregate_operation_duration_seconds",
			Help:    "Aggregate write duration by operation and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
		aggregateConflict: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tw_aggregate_conflicts_total",
			Help: "Aggregate writes that lost a concurrency race.",
		}, []string{"op"}),
		aggregateRetry: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tw_aggregate_retries_total",
			Help: "Aggregate writes retried after a conflict or transient failure.",
		}, []string{"op"}),
		pgStats: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tw_postgres_pool",
			Help: "database/sql pool stats.",
		}, []string{"stat"}),
		redisUp: f.NewGauge(prometheus.GaugeOpts{
			Name: "tw_redis_up",
			Help: "1 when the last redis ping succeeded.",
		}),
		redisPing: f.NewGauge(prometheus.GaugeOpts{
			Name: "tw_redis_ping_seconds",
			Help: "Latency of the last redis ping.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) IncIngestion(status string) {
	if m == nil {
		return
	}
	m.ingestions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveViewWrite(view, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.viewWrites.WithLabelValues(view, outcome).Inc()
	m.viewLatency.WithLabelValues(view).Observe(dur.Seconds())
}

func (m *Metrics) SetBreakerState(view, state string) {
	if m == nil {
		return
	}
	v := 0.0
	switch state {
	case "open":
		v = 1
	case "half-open":
		v = 0.5
	}
	m.breakerState.WithLabelValues(view).Set(v)
}

func (m *Metrics) IncRepair(view, status string) {
	if m == nil {
		return
	}
	m.repairs.WithLabelValues(view, status).Inc()
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.WithLabelValues(op, status).Observe(dur.Seconds())
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m == nil {
		return
	}
	m.aggregateConflict.WithLabelValues(op).Inc()
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m == nil {
		return
	}
	m.aggregateRetry.WithLabelValues(op).Inc()
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL"))
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	return 15 * time.Second
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: postgres stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.WithLabelValues("open_connections").Set(float64(stats.OpenConnections))
				m.pgStats.WithLabelValues("in_use").Set(float64(stats.InUse))
				m.pgStats.WithLabelValues("idle").Set(float64(stats.Idle))
				m.pgStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
				m.pgStats.WithLabelValues("wait_duration_seconds").Set(stats.WaitDuration.Seconds())
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
