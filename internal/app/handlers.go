package app

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/trainwatch-backend/internal/http"
	httpH "github.com/yungbote/trainwatch-backend/internal/http/handlers"
	"github.com/yungbote/trainwatch-backend/internal/observability"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Event    *httpH.EventHandler
	Trainee  *httpH.TraineeHandler
	Program  *httpH.ProgramHandler
	Insights *httpH.InsightsHandler
	Drift    *httpH.DriftHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, clients Clients, services Services) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Pinger{
		"db": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if clients.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return clients.Redis.Ping(ctx).Err() }
	}
	return Handlers{
		Health:   httpH.NewHealthHandler(checks),
		Event:    httpH.NewEventHandler(services.Coordinator),
		Trainee:  httpH.NewTraineeHandler(log, services.Trainee),
		Program:  httpH.NewProgramHandler(log, services.Program),
		Insights: httpH.NewInsightsHandler(services.Insights),
		Drift:    httpH.NewDriftHandler(services.Drift),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers) *http.Server {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewServer(http.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		ServiceName:     serviceName,
		CORSOrigins:     cfg.CORSAllowOrigins,
		HealthHandler:   handlers.Health,
		EventHandler:    handlers.Event,
		TraineeHandler:  handlers.Trainee,
		ProgramHandler:  handlers.Program,
		InsightsHandler: handlers.Insights,
		DriftHandler:    handlers.Drift,
	})
}
