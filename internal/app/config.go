package app

import (
	"time"

	"github.com/yungbote/trainwatch-backend/internal/observability"
	"github.com/yungbote/trainwatch-backend/internal/platform/envutil"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

type Config struct {
	Port        string
	AutoMigrate bool

	RedisAddr       string
	PseudonymPrefix string

	RepairQueueKey          string
	RepairMaxAttempts       int
	RepairWorkerEnabled     bool
	RepairWorkerConcurrency int
	RepairRetryDelay        time.Duration

	SecondaryWriteTimeout   time.Duration
	ViewWriteMaxAttempts    int
	ViewLockTimeout         time.Duration
	BreakerFailureThreshold int
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenRequests int

	ConceptCatalogFile string
	CORSAllowOrigins   []string

	Otel observability.OtelConfig
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:        envutil.String("PORT", "8080", log),
		AutoMigrate: envutil.Bool("AUTO_MIGRATE", true, log),

		RedisAddr:       envutil.String("REDIS_ADDR", "", log),
		PseudonymPrefix: envutil.String("PSEUDONYM_KEY_PREFIX", "pseudonym:", log),

		RepairQueueKey:          envutil.String("REPAIR_QUEUE_KEY", "repair:jobs", log),
		RepairMaxAttempts:       envutil.Int("REPAIR_MAX_ATTEMPTS", 5, log),
		RepairWorkerEnabled:     envutil.Bool("REPAIR_WORKER_ENABLED", true, log),
		RepairWorkerConcurrency: envutil.Int("REPAIR_WORKER_CONCURRENCY", 2, log),
		RepairRetryDelay:        envutil.Millis("REPAIR_RETRY_DELAY_MS", time.Second, log),

		SecondaryWriteTimeout:   envutil.Millis("SECONDARY_WRITE_TIMEOUT_MS", 5*time.Second, log),
		ViewWriteMaxAttempts:    envutil.Int("VIEW_WRITE_MAX_ATTEMPTS", 4, log),
		ViewLockTimeout:         envutil.Millis("VIEW_LOCK_TIMEOUT_MS", 2*time.Second, log),
		BreakerFailureThreshold: envutil.Int("BREAKER_FAILURE_THRESHOLD", 5, log),
		BreakerOpenTimeout:      envutil.Millis("BREAKER_OPEN_TIMEOUT_MS", 30*time.Second, log),
		BreakerHalfOpenRequests: envutil.Int("BREAKER_HALF_OPEN_REQUESTS", 1, log),

		ConceptCatalogFile: envutil.String("CONCEPT_CATALOG_FILE", "", log),
		CORSAllowOrigins:   envutil.List("CORS_ALLOW_ORIGINS", nil, log),

		Otel: observability.OtelConfigFromEnv(log),
	}
}
